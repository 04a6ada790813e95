package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// URLKey derives a deterministic dedupe key from a URL. Scheme and host
// are lowercased, the fragment is dropped, and query parameters are
// sorted so equivalent URLs hash alike.
func URLKey(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		for i, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}

	sum := sha256.Sum256([]byte(u.String()))
	return "url:" + hex.EncodeToString(sum[:]), nil
}

// HashKey derives a deterministic key from arbitrary bytes, with an
// optional namespace prefix
func HashKey(prefix string, data []byte) string {
	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:])
	if prefix == "" {
		return h
	}
	return prefix + ":" + h
}

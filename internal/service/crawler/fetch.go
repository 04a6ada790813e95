package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/errorsx"
	"crawld/internal/pkg/httpclient"
)

// maxDrainBytes bounds how much of a response body is read per fetch.
const maxDrainBytes = 10 << 20

// FetchResult is what a successful fetch returns. It round-trips through
// JSON so deduplicated fetches can serve it from the cache.
type FetchResult struct {
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	BodyBytes   int64     `json:"body_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// fetch is the default crawl operation: GET the URL, authenticating with
// the assigned resource and routing through its proxy when set.
func (s *Service) fetch(ctx context.Context, url string, res *dispatch.Resource, proxy string) (any, error) {
	client, err := s.clientFor(proxy)
	if err != nil {
		return nil, errorsx.WrapPermanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errorsx.WrapPermanent(err)
	}
	if res != nil && res.Value != "" {
		req.Header.Set("Cookie", res.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Network errors are worth retrying, possibly with a
		// different resource.
		return nil, err
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &FetchResult{
			URL:         url,
			StatusCode:  resp.StatusCode,
			BodyBytes:   n,
			ContentType: resp.Header.Get("Content-Type"),
			FetchedAt:   time.Now(),
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)

	default:
		// Remaining 4xx will not improve on retry
		return nil, errorsx.WrapPermanent(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	}
}

// clientFor returns the shared client, or a per-proxy client built on
// demand and cached for the life of the service.
func (s *Service) clientFor(proxy string) (*http.Client, error) {
	if proxy == "" {
		return s.client, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.proxyClients[proxy]; ok {
		return c, nil
	}

	c, err := httpclient.NewForProxy(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
	}
	s.proxyClients[proxy] = c
	return c, nil
}

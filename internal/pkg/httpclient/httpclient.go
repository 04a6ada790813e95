// Package httpclient builds tuned http.Clients for crawl fetches.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/fx"
)

// New constructs a tuned http.Client
func New() *http.Client {
	return &http.Client{
		Timeout:   15 * time.Second,
		Transport: newTransport(http.ProxyFromEnvironment),
	}
}

// NewForProxy constructs a client that routes through the given proxy
// URL, as handed out by a resource pool
func NewForProxy(proxyURL string) (*http.Client, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	return &http.Client{
		Timeout:   15 * time.Second,
		Transport: newTransport(http.ProxyURL(u)),
	}, nil
}

func newTransport(proxy func(*http.Request) (*url.URL, error)) *http.Transport {
	return &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

var Module = fx.Module("httpclient",
	fx.Provide(New),
)

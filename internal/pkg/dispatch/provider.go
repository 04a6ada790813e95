package dispatch

import (
	"context"
)

// Resource is a reusable crawl credential such as a cookie jar entry or
// a proxy endpoint, handed to a task for the duration of one attempt
type Resource struct {
	// ID identifies the resource within its provider
	ID string

	// Value is the provider-specific payload (cookie string, proxy URL)
	Value string

	// Proxy is an optional proxy to pair with the resource
	Proxy string
}

// ResourceProvider hands out resources to task attempts and receives
// health reports back. Implementations decide rotation and quarantine.
type ResourceProvider interface {
	// Get returns the next resource, or nil when none is available.
	// Running without a resource is allowed.
	Get(ctx context.Context) (*Resource, error)

	// MarkSuccess reports that the attempt using the resource succeeded
	MarkSuccess(ctx context.Context, id string) error

	// MarkFailed reports that the attempt using the resource failed
	MarkFailed(ctx context.Context, id string) error
}

// NoOpProvider is a ResourceProvider that never hands out resources
type NoOpProvider struct{}

func (NoOpProvider) Get(ctx context.Context) (*Resource, error)        { return nil, nil }
func (NoOpProvider) MarkSuccess(ctx context.Context, id string) error  { return nil }
func (NoOpProvider) MarkFailed(ctx context.Context, id string) error   { return nil }

type resourceCtxKey struct{}

// withResource attaches a resource to the attempt context
func withResource(ctx context.Context, r *Resource) context.Context {
	return context.WithValue(ctx, resourceCtxKey{}, r)
}

// ResourceFromContext returns the resource assigned to the current
// attempt, if any. Task operations use it to authenticate fetches.
func ResourceFromContext(ctx context.Context) (*Resource, bool) {
	r, ok := ctx.Value(resourceCtxKey{}).(*Resource)
	return r, ok && r != nil
}

// FetchFunc is the shape of a crawl operation: fetch url using an
// optional resource and proxy
type FetchFunc func(ctx context.Context, url string, res *Resource, proxy string) (any, error)

// NewFetchTask wraps a FetchFunc as a task. The dispatcher's resource
// provider supplies the resource through the attempt context.
func NewFetchTask(name, url string, fetch FetchFunc, opts ...TaskOption) *Task {
	fn := func(ctx context.Context) (any, error) {
		res, _ := ResourceFromContext(ctx)
		proxy := ""
		if res != nil {
			proxy = res.Proxy
		}
		return fetch(ctx, url, res, proxy)
	}
	opts = append([]TaskOption{WithMetadata("url", url)}, opts...)
	return NewTask(name, fn, opts...)
}

package rate

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HTTPMiddleware applies a limiter to inbound API requests. The crawl
// API wraps it around the echo router to bound batch submissions.
type HTTPMiddleware struct {
	limiter   Limiter
	keyFunc   KeyFunc
	onLimited OnLimitedFunc
	skipFunc  SkipFunc
}

// KeyFunc derives the rate limit key from a request
type KeyFunc func(*http.Request) string

// OnLimitedFunc writes the response for a rejected request
type OnLimitedFunc func(w http.ResponseWriter, r *http.Request, result *Result)

// SkipFunc exempts a request from limiting when it returns true
type SkipFunc func(*http.Request) bool

// HTTPMiddlewareOption configures HTTPMiddleware
type HTTPMiddlewareOption func(*HTTPMiddleware)

// NewHTTPMiddleware creates middleware keyed by client IP unless
// overridden with WithKeyFunc.
func NewHTTPMiddleware(limiter Limiter, opts ...HTTPMiddlewareOption) *HTTPMiddleware {
	m := &HTTPMiddleware{
		limiter:   limiter,
		keyFunc:   DefaultKeyFunc,
		onLimited: DefaultOnLimitedFunc,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithKeyFunc sets the key extraction function
func WithKeyFunc(fn KeyFunc) HTTPMiddlewareOption {
	return func(m *HTTPMiddleware) {
		m.keyFunc = fn
	}
}

// WithOnLimited sets the handler for rejected requests
func WithOnLimited(fn OnLimitedFunc) HTTPMiddlewareOption {
	return func(m *HTTPMiddleware) {
		m.onLimited = fn
	}
}

// WithSkipFunc sets the exemption function
func WithSkipFunc(fn SkipFunc) HTTPMiddlewareOption {
	return func(m *HTTPMiddleware) {
		m.skipFunc = fn
	}
}

// Middleware returns the http.Handler wrapper
func (m *HTTPMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipFunc != nil && m.skipFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := m.keyFunc(r)

		start := time.Now()
		reservation, err := m.limiter.Reserve(r.Context(), key)
		duration := time.Since(start)

		if err != nil {
			// Fail-open/fail-close already resolved inside the limiter;
			// an error here means the check itself could not run.
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if !reservation.OK {
			result := &Result{
				Allowed:    false,
				RetryAfter: reservation.Delay,
			}
			m.onLimited(w, r, result)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(reservation.Limit.Rate))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(reservation.Tokens))
		if reservation.Delay > 0 {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reservation.Delay).Unix(), 10))
		}

		if impl, ok := m.limiter.(*limiterImpl); ok && impl.metrics != nil {
			impl.metrics.RecordLatency(impl.config.Strategy, duration)
		}

		next.ServeHTTP(w, r)
	})
}

// DefaultKeyFunc keys requests by client IP, honoring proxy headers.
func DefaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// IPKeyFunc keys requests by client IP
func IPKeyFunc() KeyFunc {
	return DefaultKeyFunc
}

// PathKeyFunc keys requests by client IP and path, so batch
// submissions and read endpoints draw from separate budgets.
func PathKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		ip := DefaultKeyFunc(r)
		return fmt.Sprintf("%s:%s", ip, r.URL.Path)
	}
}

// HeaderKeyFunc keys requests by a header value, falling back to IP.
func HeaderKeyFunc(header string) KeyFunc {
	return func(r *http.Request) string {
		value := r.Header.Get(header)
		if value == "" {
			return DefaultKeyFunc(r)
		}
		return value
	}
}

// DefaultOnLimitedFunc responds 429 with a Retry-After hint.
func DefaultOnLimitedFunc(w http.ResponseWriter, r *http.Request, result *Result) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
	w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))

	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, int64(result.RetryAfter.Seconds()))
}

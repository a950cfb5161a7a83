package context

import (
	"context"
	"fmt"
	"sync"
)

type ctxKey struct{}

// RequestContext holds the memoized reads and staged writes of one request.
type RequestContext struct {
	ctx       context.Context
	cache     sync.Map
	mu        sync.Mutex
	actions   []Action
	committed bool
}

// New creates a RequestContext bound to ctx.
func New(ctx context.Context) *RequestContext {
	return &RequestContext{ctx: ctx}
}

// FromContext extracts the RequestContext, or nil if ctx carries none.
func FromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}

	if rc, ok := ctx.Value(ctxKey{}).(*RequestContext); ok {
		return rc
	}

	return nil
}

// WithContext stores rc in ctx.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// Ensure returns the RequestContext carried by ctx, attaching a new one
// when there is none.
func Ensure(ctx context.Context) (context.Context, *RequestContext) {
	if rc := FromContext(ctx); rc != nil {
		return ctx, rc
	}

	rc := New(ctx)

	return WithContext(ctx, rc), rc
}

// GetOrFetch returns the cached value for key, calling fetchFn on a miss.
// Errors are not cached.
func (rc *RequestContext) GetOrFetch(key string, fetchFn func(ctx context.Context) (any, error)) (any, error) {
	if cached, ok := rc.cache.Load(key); ok {
		return cached, nil
	}

	value, err := fetchFn(rc.ctx)
	if err != nil {
		return nil, err
	}

	actual, _ := rc.cache.LoadOrStore(key, value)

	return actual, nil
}

// Forget drops a cached value so the next lookup fetches again.
func (rc *RequestContext) Forget(key string) {
	rc.cache.Delete(key)
}

// Context returns the context the RequestContext was created with.
func (rc *RequestContext) Context() context.Context {
	return rc.ctx
}

// Fetch is the typed form of GetOrFetch.
func Fetch[T any](rc *RequestContext, key string, fetchFn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	value, err := rc.GetOrFetch(key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for %q is %T, not %T", key, value, zero)
	}

	return typed, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonwraymond/transitcache/observe"
)

// Fetcher produces a fresh value for one key.
type Fetcher[T any] func(ctx context.Context) (T, error)

func (f Fetcher[T]) erase() fetchFunc {
	if f == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		return f(ctx)
	}
}

// Source tells where a Result's value came from.
type Source int

const (
	SourceMemory Source = iota + 1
	SourceDurable
	SourceFetched
	// SourceStale marks a cached value served because a fetch failed.
	SourceStale
)

func (s Source) String() string {
	switch s {
	case SourceMemory:
		return "memory"
	case SourceDurable:
		return "durable"
	case SourceFetched:
		return "fetched"
	case SourceStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of a read.
type Result[T any] struct {
	Value    T
	Source   Source
	StoredAt time.Time
	Age      time.Duration

	// Err is the fetch error that caused a stale value to be served.
	// It is nil for every other source.
	Err error
}

// Stale reports whether the value was served as a fallback.
func (r Result[T]) Stale() bool {
	return r.Source == SourceStale
}

// Get returns the value for key, serving it from memory or the durable store
// while it is younger than the policy TTL and calling fetch otherwise.
//
// A fetch failure returns the last cached value, however old, with
// Source == SourceStale. The error is returned only when nothing is cached.
func Get[T any](ctx context.Context, e *Engine, key string, fetch Fetcher[T], p Policy) (Result[T], error) {
	out, err := e.get(ctx, key, fetch.erase(), decodeJSON[T], p)
	if err != nil {
		return Result[T]{}, err
	}
	return toResult[T](e, key, out)
}

// Refresh fetches key unconditionally and caches the value.
func Refresh[T any](ctx context.Context, e *Engine, key string, fetch Fetcher[T], p Policy) (Result[T], error) {
	out, err := e.refresh(ctx, key, fetch.erase(), p)
	if err != nil {
		return Result[T]{}, err
	}
	return toResult[T](e, key, out)
}

// Subscribe registers fn for values fetched for key. Values of another type
// are logged and skipped.
func Subscribe[T any](e *Engine, key string, fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return e.Subscribe(key, func(v any) {
		typed, ok := asType[T](v)
		if !ok {
			e.logger.Warn(context.Background(), "subscriber skipped value of another type",
				observe.F("key", key), observe.F("type", fmt.Sprintf("%T", v)))
			return
		}
		fn(typed)
	})
}

func toResult[T any](e *Engine, key string, out outcome) (Result[T], error) {
	v, ok := asType[T](out.value)
	if !ok {
		return Result[T]{}, fmt.Errorf("%w: key %q holds %T", ErrTypeMismatch, key, out.value)
	}
	return Result[T]{
		Value:    v,
		Source:   out.source,
		StoredAt: out.storedAt,
		Age:      e.now().Sub(out.storedAt),
		Err:      out.err,
	}, nil
}

func asType[T any](v any) (T, bool) {
	if v == nil {
		var zero T
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}

func decodeJSON[T any](raw string) (any, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

package store

import (
	"context"
	"strings"

	"github.com/jonwraymond/transitcache/cache"
)

// Namespaced prefixes every key so several engines can share one Store.
// ListKeys only returns keys inside the namespace, with the prefix removed.
type Namespaced struct {
	inner cache.Store
	ns    string
}

var _ cache.Store = (*Namespaced)(nil)

// NewNamespaced wraps inner under ns.
func NewNamespaced(inner cache.Store, ns string) (*Namespaced, error) {
	if inner == nil {
		return nil, ErrNilStore
	}
	return &Namespaced{inner: inner, ns: ns}, nil
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.ns+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.ns+key, value)
}

func (n *Namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.ns+key)
}

func (n *Namespaced) ListKeys(ctx context.Context) ([]string, error) {
	all, err := n.inner.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, n.ns); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

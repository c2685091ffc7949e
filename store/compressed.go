package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/jonwraymond/transitcache/cache"
)

// Compressed zstd-compresses values before handing them to an inner Store.
// The compressed bytes are base64-encoded because stores hold text.
// Schedules and line catalogs are repetitive JSON and shrink well.
type Compressed struct {
	inner cache.Store
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

var _ cache.Store = (*Compressed)(nil)

// NewCompressed wraps inner.
func NewCompressed(inner cache.Store) (*Compressed, error) {
	if inner == nil {
		return nil, ErrNilStore
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("store: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("store: zstd decoder: %w", err)
	}
	return &Compressed{inner: inner, enc: enc, dec: dec}, nil
}

func (c *Compressed) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := c.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	packed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, fmt.Errorf("store: decode %q: %w", key, err)
	}
	plain, err := c.dec.DecodeAll(packed, nil)
	if err != nil {
		return "", false, fmt.Errorf("store: decompress %q: %w", key, err)
	}
	return string(plain), true, nil
}

func (c *Compressed) Set(ctx context.Context, key, value string) error {
	packed := c.enc.EncodeAll([]byte(value), nil)
	return c.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(packed))
}

func (c *Compressed) Remove(ctx context.Context, key string) error {
	return c.inner.Remove(ctx, key)
}

func (c *Compressed) ListKeys(ctx context.Context) ([]string, error) {
	return c.inner.ListKeys(ctx)
}

// Close releases the decoder's goroutines.
func (c *Compressed) Close() error {
	c.dec.Close()
	return nil
}

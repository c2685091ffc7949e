package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// indexKey is the durable key, relative to the engine prefix, holding the
// timestamp index. It cannot be used as a cache key.
const indexKey = "timestamps"

// Sentinel errors for cache operations.
var (
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrTypeMismatch = errors.New("cache: cached value has a different type")
	ErrNilFetcher   = errors.New("cache: fetcher is nil")
	ErrClosed       = errors.New("cache: engine is closed")
)

// Store is the durable key-value capability behind the engine's second tier.
// Values are serialized text; the engine handles encoding.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Get returns ("", false, nil) for an absent key. Remove is
// idempotent and returns no error for an absent key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// ListKeys returns every key in the store, including keys written by
	// other users of the same store.
	ListKeys(ctx context.Context) ([]string, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	if key == indexKey {
		return ErrInvalidKey
	}
	return nil
}

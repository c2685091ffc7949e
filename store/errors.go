package store

import "errors"

var (
	// ErrNilStore indicates a wrapper was given a nil inner store.
	ErrNilStore = errors.New("store: inner store is nil")

	// ErrEmptyDir indicates File was given no directory.
	ErrEmptyDir = errors.New("store: directory is required")

	// ErrNilClient indicates Redis was given no client.
	ErrNilClient = errors.New("store: redis client is nil")
)

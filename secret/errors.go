package secret

import "errors"

var (
	// ErrMissingEnv indicates ${VAR} referenced an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrProviderNotFound indicates a secretref named an unknown provider.
	ErrProviderNotFound = errors.New("secret: provider not registered")

	// ErrEmptySecret indicates a strict resolver got an empty value.
	ErrEmptySecret = errors.New("secret: provider returned empty value")

	// ErrNotFound indicates a provider has no secret for the reference.
	ErrNotFound = errors.New("secret: not found")
)

package auth

import "errors"

// Sentinel errors for authentication and authorization.
var (
	// Authentication errors
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")

	// ErrInvalidConfig indicates an authenticator was built with unusable settings.
	ErrInvalidConfig = errors.New("auth: invalid config")

	// Authorization errors
	ErrForbidden = errors.New("auth: access denied")
)

package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns (nil, error) for internal errors and
//   (AuthResult, nil) for auth failures (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if the request carries credentials this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest contains the information needed for authentication.
type AuthRequest struct {
	// Headers carries Authorization, X-API-Key and friends.
	Headers http.Header

	// Method and Path describe the target route.
	Method string
	Path   string
}

// NewAuthRequest builds an AuthRequest from an HTTP request.
func NewAuthRequest(r *http.Request) *AuthRequest {
	return &AuthRequest{
		Headers: r.Header,
		Method:  r.Method,
		Path:    r.URL.Path,
	}
}

// GetHeader returns the first value for a header, or "".
func (r *AuthRequest) GetHeader(key string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	Authenticated bool

	// Identity is set only when Authenticated is true.
	Identity *Identity

	// Error is set only when Authenticated is false.
	Error error

	// Method indicates which authenticator produced the result.
	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error, method AuthMethod) *AuthResult {
	return &AuthResult{
		Authenticated: false,
		Error:         err,
		Method:        string(method),
	}
}

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader is the header APIKeyAuthenticator reads by default.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey describes the principal behind a registered key.
type APIKey struct {
	// ID names the key in logs; the key itself is never kept in plain text.
	ID string

	Principal string
	Roles     []string

	// ExpiresAt is when this key expires (zero = never).
	ExpiresAt time.Time
}

// APIKeyAuthenticator validates keys against an in-memory set of SHA-256
// hashes.
type APIKeyAuthenticator struct {
	header string
	now    func() time.Time

	mu   sync.RWMutex
	keys map[string]APIKey // keyed by hash
}

// NewAPIKeyAuthenticator creates an authenticator reading header, or
// DefaultAPIKeyHeader when header is empty.
func NewAPIKeyAuthenticator(header string) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{
		header: header,
		now:    time.Now,
		keys:   make(map[string]APIKey),
	}
}

// Add registers a plain-text key. Only its hash is stored.
func (a *APIKeyAuthenticator) Add(key string, info APIKey) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty api key", ErrInvalidConfig)
	}
	if info.Principal == "" {
		return fmt.Errorf("%w: api key %q has no principal", ErrInvalidConfig, info.ID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[HashAPIKey(key)] = info
	return nil
}

// Remove forgets a plain-text key.
func (a *APIKeyAuthenticator) Remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, HashAPIKey(strings.TrimSpace(key)))
}

// Len returns the number of registered keys.
func (a *APIKeyAuthenticator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return string(AuthMethodAPIKey)
}

// Supports returns true if the request contains the API key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.header) != ""
}

// Authenticate validates the API key.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	key := strings.TrimSpace(req.GetHeader(a.header))
	if key == "" {
		return AuthFailure(ErrMissingCredentials, AuthMethodAPIKey), nil
	}

	a.mu.RLock()
	info, ok := a.keys[HashAPIKey(key)]
	a.mu.RUnlock()
	if !ok {
		return AuthFailure(ErrInvalidCredentials, AuthMethodAPIKey), nil
	}
	if !info.ExpiresAt.IsZero() && a.now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, AuthMethodAPIKey), nil
	}

	return AuthSuccess(&Identity{
		Principal: info.Principal,
		Roles:     append([]string(nil), info.Roles...),
		Method:    AuthMethodAPIKey,
		KeyID:     info.ID,
		ExpiresAt: info.ExpiresAt,
	}), nil
}

// HashAPIKey hashes an API key using SHA-256.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)

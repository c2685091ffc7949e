package auth

import "time"

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the unique identifier, e.g. the JWT subject or the API key owner.
	Principal string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// KeyID names the API key used, if any.
	KeyID string

	// ExpiresAt is when this identity expires (zero = never).
	ExpiresAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsExpired reports whether the identity expired before now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id == nil || id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity creates an identity for unauthenticated access.
func AnonymousIdentity(roles ...string) *Identity {
	return &Identity{
		Principal: "anonymous",
		Roles:     roles,
		Method:    AuthMethodAnonymous,
	}
}

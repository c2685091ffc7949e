package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HMAC key tokens are signed with.
	Secret []byte

	// Issuer and Audience, when set, must match the iss and aud claims.
	Issuer   string
	Audience string

	// RolesClaim is the claim containing user roles.
	// Default: "roles"
	RolesClaim string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration

	// Now overrides the validation clock.
	Now func() time.Time
}

// JWTAuthenticator validates HMAC-signed bearer tokens.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator. Tokens must carry an exp
// claim.
func NewJWTAuthenticator(config JWTConfig) (*JWTAuthenticator, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("%w: jwt secret is required", ErrInvalidConfig)
	}
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(config.Now))
	}

	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}, nil
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return string(AuthMethodJWT)
}

// Supports returns true if the request carries a bearer token.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	_, ok := bearerToken(req)
	return ok
}

// Authenticate validates the bearer token.
func (a *JWTAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	raw, ok := bearerToken(req)
	if !ok {
		return AuthFailure(ErrMissingCredentials, AuthMethodJWT), nil
	}

	token, err := a.parser.Parse(raw, func(*jwt.Token) (any, error) {
		return a.config.Secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return AuthFailure(ErrTokenExpired, AuthMethodJWT), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return AuthFailure(ErrTokenMalformed, AuthMethodJWT), nil
	case err != nil:
		return AuthFailure(fmt.Errorf("%w: %v", ErrInvalidCredentials, err), AuthMethodJWT), nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return AuthFailure(ErrTokenMalformed, AuthMethodJWT), nil
	}
	subject, _ := claims.GetSubject()
	if subject == "" {
		return AuthFailure(fmt.Errorf("%w: missing sub", ErrInvalidCredentials), AuthMethodJWT), nil
	}

	id := &Identity{
		Principal: subject,
		Roles:     a.roles(claims),
		Method:    AuthMethodJWT,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return AuthSuccess(id), nil
}

// roles accepts either a JSON array or a space-separated string.
func (a *JWTAuthenticator) roles(claims jwt.MapClaims) []string {
	switch v := claims[a.config.RolesClaim].(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func bearerToken(req *AuthRequest) (string, bool) {
	header := req.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

var _ Authenticator = (*JWTAuthenticator)(nil)

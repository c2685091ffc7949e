package auth

import (
	"context"
	"fmt"
	"time"
)

// Actions checked against roles.
const (
	// ActionRead covers stats, status, readiness and metrics.
	ActionRead = "read"
	// ActionWrite covers forced refreshes and clears.
	ActionWrite = "write"
)

// Authorizer determines if an identity is allowed to perform an action.
type Authorizer interface {
	// Authorize returns nil if permitted, or an error matching ErrForbidden.
	Authorize(ctx context.Context, id *Identity, action string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, id *Identity, action string) error

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, id *Identity, action string) error {
	return f(ctx, id, action)
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	Principal string
	Action    string
	Reason    string
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %q may not %s: %s", e.Principal, e.Action, e.Reason)
}

// Is reports whether target is ErrForbidden.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// Role grants actions, directly or through inherited roles.
type Role struct {
	Actions  []string `mapstructure:"actions"`
	Inherits []string `mapstructure:"inherits"`
}

// DefaultRoles returns the viewer/operator role set.
func DefaultRoles() map[string]Role {
	return map[string]Role{
		"viewer":   {Actions: []string{ActionRead}},
		"operator": {Actions: []string{ActionWrite}, Inherits: []string{"viewer"}},
	}
}

// RoleAuthorizer permits an action when any of the identity's roles,
// including inherited ones, lists it or "*".
type RoleAuthorizer struct {
	roles       map[string]Role
	defaultRole string
	now         func() time.Time
}

// NewRoleAuthorizer creates a role authorizer. A nil roles map uses
// DefaultRoles. defaultRole applies to identities without roles.
func NewRoleAuthorizer(roles map[string]Role, defaultRole string) *RoleAuthorizer {
	if roles == nil {
		roles = DefaultRoles()
	}
	return &RoleAuthorizer{roles: roles, defaultRole: defaultRole, now: time.Now}
}

// Authorize checks id against action.
func (a *RoleAuthorizer) Authorize(_ context.Context, id *Identity, action string) error {
	if id == nil {
		return &AuthzError{Action: action, Reason: "no identity"}
	}
	if id.IsExpired(a.now()) {
		return &AuthzError{Principal: id.Principal, Action: action, Reason: "identity expired"}
	}

	for _, name := range a.collectRoles(id) {
		for _, granted := range a.roles[name].Actions {
			if granted == "*" || granted == action {
				return nil
			}
		}
	}
	return &AuthzError{Principal: id.Principal, Action: action, Reason: "no role permits this action"}
}

func (a *RoleAuthorizer) collectRoles(id *Identity) []string {
	queue := append([]string(nil), id.Roles...)
	if len(queue) == 0 && a.defaultRole != "" {
		queue = append(queue, a.defaultRole)
	}

	seen := make(map[string]bool)
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		out = append(out, current)
		queue = append(queue, a.roles[current].Inherits...)
	}
	return out
}

var _ Authorizer = (*RoleAuthorizer)(nil)

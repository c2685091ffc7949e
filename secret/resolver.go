package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Resolver expands environment variables and resolves secret references.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. A strict resolver rejects empty secrets.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// NewDefaultResolver creates a strict resolver with the env provider and a
// file provider reading from secretsDir.
func NewDefaultResolver(secretsDir string) (*Resolver, error) {
	env, err := DefaultRegistry.Create("env", nil)
	if err != nil {
		return nil, err
	}
	file, err := DefaultRegistry.Create("file", map[string]any{"dir": secretsDir})
	if err != nil {
		return nil, err
	}
	return NewResolver(true, env, file), nil
}

// Register adds or replaces a provider.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// Close closes every provider.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ResolveValue expands value and resolves any secret references in it. A nil
// Resolver only expands.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolve(ctx, provider, ref)
	}
	return r.resolveInline(ctx, expanded)
}

// ResolveAll resolves each pointed-to string in place. It stops at the first
// failure and names the field.
func (r *Resolver) ResolveAll(ctx context.Context, fields map[string]*string) error {
	for name, ptr := range fields {
		if ptr == nil || *ptr == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, *ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*ptr = v
	}
	return nil
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, "secretref:")
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" || strings.ContainsAny(ref, " \t\r\n") {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolve(ctx context.Context, name, ref string) (string, error) {
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, name)
	}
	return v, nil
}

var inlineRef = regexp.MustCompile(`secretref:([^:\s@/]+):([^\s@]+)`)

// resolveInline replaces every reference embedded in a longer value,
// scanning from the end so earlier indexes stay valid.
func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineRef.FindAllStringSubmatchIndex(value, -1)
	out := value
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		v, err := r.resolve(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + v + out[m[1]:]
	}
	return out, nil
}

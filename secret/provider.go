package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %q", ErrNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file path relative to Dir. Trailing
// newlines are trimmed.
type FileProvider struct {
	Dir string
}

// Name returns "file".
func (FileProvider) Name() string { return "file" }

// Resolve reads the referenced file. References escaping Dir are rejected.
func (p FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filepath.IsAbs(ref) || !filepath.IsLocal(ref) {
		return "", fmt.Errorf("secret: file ref %q must be relative to the secrets dir", ref)
	}
	b, err := os.ReadFile(filepath.Join(p.Dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %q", ErrNotFound, ref)
		}
		return "", fmt.Errorf("secret: read %q: %w", ref, err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// Close is a no-op.
func (FileProvider) Close() error { return nil }

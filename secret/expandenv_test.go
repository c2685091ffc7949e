package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("TC_HOST", "cache")
	t.Setenv("TC_PORT", "6379")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"plain", "redis://localhost:6379", "redis://localhost:6379", ""},
		{"braced", "redis://${TC_HOST}:${TC_PORT}/0", "redis://cache:6379/0", ""},
		{"bare", "$TC_HOST", "cache", ""},
		{"bare unset", "x$TC_UNSET_BARE", "x", ""},
		{"escaped", "pa$$word", "pa$word", ""},
		{"missing sorted", "${TC_ZZ}${TC_AA}${TC_ZZ}", "", "TC_AA, TC_ZZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrMissingEnv) || !strings.HasSuffix(err.Error(), tt.wantErr) {
					t.Fatalf("ExpandEnvStrict() error = %v, want missing %s", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ExpandEnvStrict() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

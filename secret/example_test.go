package secret_test

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/transitcache/secret"
)

func ExampleResolver_ResolveValue() {
	_ = os.Setenv("EXAMPLE_REDIS_PASSWORD", "hunter2")
	defer os.Unsetenv("EXAMPLE_REDIS_PASSWORD")

	r := secret.NewResolver(true, secret.EnvProvider{})
	url, err := r.ResolveValue(context.Background(),
		"redis://:secretref:env:EXAMPLE_REDIS_PASSWORD@cache:6379/0")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(url)
	// Output: redis://:hunter2@cache:6379/0
}

func ExampleParseSecretRef() {
	provider, ref, ok := secret.ParseSecretRef("secretref:file:upstream_token")
	fmt.Println(provider, ref, ok)
	// Output: file upstream_token true
}

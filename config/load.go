package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRANSITCACHE"

// envKeys lists the settings that may be overridden from the environment.
var envKeys = []string{
	"cache.max_entries", "cache.prefix", "cache.default_ttl",
	"cache.refresh_threshold", "cache.refresh_delay",
	"store.kind", "store.dir", "store.redis_url", "store.redis_timeout",
	"store.compress", "store.namespace",
	"upstream.base_url", "upstream.token", "upstream.timeout",
	"schedule.live_interval", "schedule.lines_interval", "schedule.disabled",
	"resilience.timeout", "resilience.max_concurrent",
	"resilience.retry.max_attempts", "resilience.retry.initial_delay", "resilience.retry.max_delay",
	"resilience.circuit_breaker.max_failures", "resilience.circuit_breaker.reset_timeout",
	"resilience.rate_limit.per_second", "resilience.rate_limit.burst", "resilience.rate_limit.max_wait",
	"observe.service_name", "observe.version",
	"observe.tracing.enabled", "observe.tracing.exporter", "observe.tracing.sample_pct",
	"observe.metrics.enabled", "observe.metrics.exporter",
	"observe.logging.enabled", "observe.logging.level",
	"debug.addr", "debug.api_key", "debug.viewer_key",
	"debug.jwt_secret", "debug.jwt_issuer", "debug.jwt_audience",
	"secrets_dir",
}

// Load reads path (YAML; optional when empty) over Default() and applies
// environment overrides. The result is not validated or resolved.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Default()
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// LoadAndValidate is Load followed by Validate.
func LoadAndValidate(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Join(fmt.Errorf("config: invalid %s", describe(path)), err)
	}
	return cfg, nil
}

func describe(path string) string {
	if path == "" {
		return "defaults and environment"
	}
	return path
}

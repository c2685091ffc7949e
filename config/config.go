package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/transitcache/buscache"
	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/observe"
	"github.com/jonwraymond/transitcache/resilience"
	"github.com/jonwraymond/transitcache/secret"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all transitcache settings.
type Config struct {
	Cache      CacheConfig       `mapstructure:"cache"`
	Store      StoreConfig       `mapstructure:"store"`
	Upstream   UpstreamConfig    `mapstructure:"upstream"`
	Schedule   ScheduleConfig    `mapstructure:"schedule"`
	Resilience resilience.Config `mapstructure:"resilience"`
	Observe    observe.Config    `mapstructure:"observe"`
	Debug      DebugConfig       `mapstructure:"debug"`

	// SecretsDir is where secretref:file: references are read from.
	SecretsDir string `mapstructure:"secrets_dir"`
}

// CacheConfig configures the cache engine.
type CacheConfig struct {
	MaxEntries       int           `mapstructure:"max_entries"`
	Prefix           string        `mapstructure:"prefix"`
	DefaultTTL       time.Duration `mapstructure:"default_ttl"`
	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
	RefreshDelay     time.Duration `mapstructure:"refresh_delay"`

	// Datasets overrides per-dataset policies. Keys are dataset names and
	// match case-insensitively.
	Datasets map[string]DatasetConfig `mapstructure:"datasets"`
}

// DatasetConfig overrides one dataset's policy. Zero values keep the default.
type DatasetConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
	Persist          *bool         `mapstructure:"persist"`
}

// StoreConfig selects the durable tier.
type StoreConfig struct {
	Kind string `mapstructure:"kind"` // memory|file|redis

	// Dir is the file store directory.
	Dir string `mapstructure:"dir"`

	RedisURL     string        `mapstructure:"redis_url"`
	RedisTimeout time.Duration `mapstructure:"redis_timeout"`

	// Compress stores values zstd-compressed.
	Compress bool `mapstructure:"compress"`

	// Namespace isolates several deployments sharing one store.
	Namespace string `mapstructure:"namespace"`
}

// UpstreamConfig points at the transit gateway.
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScheduleConfig configures the maintenance timers.
type ScheduleConfig struct {
	LiveInterval  time.Duration `mapstructure:"live_interval"`
	LinesInterval time.Duration `mapstructure:"lines_interval"`
	Disabled      bool          `mapstructure:"disabled"`
}

// DebugConfig configures the operator HTTP surface. With no key and no JWT
// secret set, the surface is unauthenticated.
type DebugConfig struct {
	Addr string `mapstructure:"addr"`

	// APIKey grants the operator role; ViewerKey grants read-only access.
	APIKey    string `mapstructure:"api_key"`
	ViewerKey string `mapstructure:"viewer_key"`

	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience"`
}

// AuthEnabled reports whether any credential is configured.
func (d DebugConfig) AuthEnabled() bool {
	return d.APIKey != "" || d.ViewerKey != "" || d.JWTSecret != ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			MaxEntries:       cache.DefaultMaxEntries,
			Prefix:           cache.DefaultPrefix,
			DefaultTTL:       cache.DefaultTTL,
			RefreshThreshold: cache.DefaultRefreshThreshold,
		},
		Store: StoreConfig{
			Kind: StoreMemory,
		},
		Upstream: UpstreamConfig{
			Timeout: 10 * time.Second,
		},
		Schedule: ScheduleConfig{
			LiveInterval:  buscache.DefaultLiveInterval,
			LinesInterval: buscache.DefaultLinesInterval,
		},
		Resilience: resilience.Config{
			Timeout: 10 * time.Second,
			Retry: resilience.RetryOptions{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     2 * time.Second,
			},
			CircuitBreaker: resilience.BreakerOptions{
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
			RateLimit: resilience.RateOptions{
				PerSecond: 10,
				Burst:     5,
				MaxWait:   time.Second,
			},
			MaxConcurrent: 8,
		},
		Observe: observe.Config{
			ServiceName: "transitcache",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Debug: DebugConfig{
			Addr: "127.0.0.1:8080",
		},
		SecretsDir: "/run/secrets",
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	if c.Cache.MaxEntries <= 0 {
		add("cache.max_entries must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		add("cache.default_ttl must be positive")
	}
	if c.Cache.RefreshThreshold < 0 || c.Cache.RefreshDelay < 0 {
		add("cache refresh durations must not be negative")
	}
	for name, ds := range c.Cache.Datasets {
		if _, ok := datasetByName(name); !ok {
			add("cache.datasets: unknown dataset %q", name)
		}
		if ds.TTL < 0 || ds.RefreshThreshold < 0 {
			add("cache.datasets.%s: durations must not be negative", name)
		}
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if c.Store.Dir == "" {
			add("store.dir is required for the file store")
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			add("store.redis_url is required for the redis store")
		}
	default:
		add("store.kind %q must be memory, file or redis", c.Store.Kind)
	}
	if c.Store.RedisTimeout < 0 {
		add("store.redis_timeout must not be negative")
	}

	if c.Upstream.BaseURL == "" {
		add("upstream.base_url is required")
	} else if u, err := url.Parse(c.Upstream.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("upstream.base_url %q must be an absolute http(s) URL", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout < 0 {
		add("upstream.timeout must not be negative")
	}

	if !c.Schedule.Disabled && (c.Schedule.LiveInterval <= 0 || c.Schedule.LinesInterval <= 0) {
		add("schedule intervals must be positive unless schedule.disabled is set")
	}

	if c.Debug.JWTSecret == "" && (c.Debug.JWTIssuer != "" || c.Debug.JWTAudience != "") {
		add("debug.jwt_issuer and debug.jwt_audience need debug.jwt_secret")
	}

	if err := c.Resilience.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policies returns the default dataset policies with the configured
// overrides applied.
func (c *Config) Policies() buscache.Policies {
	p := buscache.DefaultPolicies()
	for name, ds := range c.Cache.Datasets {
		d, ok := datasetByName(name)
		if !ok {
			continue
		}
		pol := p[d]
		if ds.TTL > 0 {
			pol.TTL = ds.TTL
		}
		if ds.RefreshThreshold > 0 {
			pol.RefreshThreshold = ds.RefreshThreshold
		}
		if ds.Persist != nil {
			pol.Persist = *ds.Persist
		}
		p[d] = pol
	}
	return p
}

// Resolve expands ${ENV} and secretref: values in the secret-bearing fields.
// A nil resolver only expands the environment.
func (c *Config) Resolve(ctx context.Context, r *secret.Resolver) error {
	return r.ResolveAll(ctx, map[string]*string{
		"store.redis_url":   &c.Store.RedisURL,
		"upstream.base_url": &c.Upstream.BaseURL,
		"upstream.token":    &c.Upstream.Token,
		"debug.api_key":     &c.Debug.APIKey,
		"debug.viewer_key":  &c.Debug.ViewerKey,
		"debug.jwt_secret":  &c.Debug.JWTSecret,
	})
}

func datasetByName(name string) (buscache.Dataset, bool) {
	for _, d := range buscache.Datasets {
		if strings.EqualFold(string(d), name) {
			return d, true
		}
	}
	return "", false
}

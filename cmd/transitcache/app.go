package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/transitcache/auth"
	"github.com/jonwraymond/transitcache/buscache"
	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/cache/prom"
	"github.com/jonwraymond/transitcache/config"
	"github.com/jonwraymond/transitcache/debugserver"
	"github.com/jonwraymond/transitcache/health"
	"github.com/jonwraymond/transitcache/observe"
	"github.com/jonwraymond/transitcache/resilience"
	"github.com/jonwraymond/transitcache/store"
	"github.com/jonwraymond/transitcache/transit"
)

// app owns every long-lived component built from a Config.
type app struct {
	cfg      config.Config
	logger   observe.Logger
	observer observe.Observer
	// registry holds the cache collectors. The default registry, which
	// already carries the Go and process collectors and the otel
	// exporter, is served next to it.
	registry *prometheus.Registry
	engine   *cache.Engine
	service  *buscache.Service
	health   *health.Aggregator

	closers []io.Closer
	sync    func()
}

type appOptions struct {
	// maintenance starts the refresh timers unless the config disables them.
	maintenance bool
	// client overrides the upstream HTTP client.
	client *http.Client
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (_ *app, err error) {
	logger, sync, err := newLogger(cfg.Observe.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, sync: sync, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.observer, err = observe.NewObserver(ctx, cfg.Observe, observe.WithRegisterer(a.registry))
	if err != nil {
		return nil, err
	}
	metrics, err := observe.NewMetrics(a.observer.Meter())
	if err != nil {
		return nil, err
	}
	mw := observe.NewMiddleware(observe.NewTracer(a.observer.Tracer()), metrics, logger)

	a.health = health.NewAggregator()
	durable, err := a.openStore(cfg.Store, cfg.Cache.Prefix)
	if err != nil {
		return nil, err
	}

	cacheMetrics, err := prom.New(a.registry, "transitcache")
	if err != nil {
		return nil, err
	}
	a.engine = cache.New(
		cache.WithStore(durable),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithRefreshThreshold(cfg.Cache.RefreshThreshold),
		cache.WithRefreshDelay(cfg.Cache.RefreshDelay),
		cache.WithLogger(logger),
		cache.WithMetrics(cacheMetrics),
	)
	a.engine.LoadIndex(ctx)

	var upOpts []transit.HTTPOption
	if cfg.Upstream.Token != "" {
		upOpts = append(upOpts, transit.WithToken(cfg.Upstream.Token))
	}
	client := opts.client
	if client == nil && cfg.Upstream.Timeout > 0 {
		client = &http.Client{Timeout: cfg.Upstream.Timeout}
	}
	if client != nil {
		upOpts = append(upOpts, transit.WithHTTPClient(client))
	}
	upstream, err := transit.NewHTTPUpstream(cfg.Upstream.BaseURL, upOpts...)
	if err != nil {
		return nil, err
	}

	svcOpts := []buscache.Option{
		buscache.WithLogger(logger),
		buscache.WithExecutor(resilience.NewExecutorFromConfig(cfg.Resilience, logger)),
		buscache.WithMiddleware(mw),
		buscache.WithPolicies(cfg.Policies()),
		buscache.WithLiveInterval(cfg.Schedule.LiveInterval),
		buscache.WithLinesInterval(cfg.Schedule.LinesInterval),
	}
	if !opts.maintenance || cfg.Schedule.Disabled {
		svcOpts = append(svcOpts, buscache.WithoutMaintenance())
	}
	a.service = buscache.New(a.engine, upstream, svcOpts...)

	a.health.Register("buscache", a.service.HealthChecker())
	a.health.Register("heap", health.NewHeapChecker(0, health.ThresholdConfig{}))
	return a, nil
}

// openStore builds the durable tier: the base store, then optional
// compression, then an optional namespace.
func (a *app) openStore(cfg config.StoreConfig, prefix string) (cache.Store, error) {
	var s cache.Store
	switch cfg.Kind {
	case config.StoreMemory, "":
		s = store.NewMemory()
	case config.StoreFile:
		f, err := store.NewFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		s = f
	case config.StoreRedis:
		r, err := store.DialRedis(cfg.RedisURL, store.RedisOpts{
			Timeout: cfg.RedisTimeout,
			Match:   cfg.Namespace + prefix + "*",
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r)
		a.health.Register("redis", health.NewPingChecker("redis", r))
		s = r
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}

	if cfg.Compress {
		c, err := store.NewCompressed(s)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
		s = c
	}
	if cfg.Namespace != "" {
		n, err := store.NewNamespaced(s, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		s = n
	}
	return s, nil
}

// router builds the debug surface with the configured credentials.
func (a *app) router() (http.Handler, error) {
	authn, err := a.authenticator()
	if err != nil {
		return nil, err
	}
	return debugserver.NewRouter(debugserver.Options{
		Service:       a.service,
		Health:        a.health,
		Gatherer:      prometheus.Gatherers{a.registry, prometheus.DefaultGatherer},
		Authenticator: authn,
		Logger:        a.logger,
	})
}

// authenticator returns nil when no debug credential is configured.
func (a *app) authenticator() (auth.Authenticator, error) {
	d := a.cfg.Debug
	if !d.AuthEnabled() {
		a.logger.Warn(context.Background(), "debug surface has no credentials configured", observe.F("addr", d.Addr))
		return nil, nil
	}

	var chain []auth.Authenticator
	if d.APIKey != "" || d.ViewerKey != "" {
		keys := auth.NewAPIKeyAuthenticator("")
		if d.APIKey != "" {
			if err := keys.Add(d.APIKey, auth.APIKey{ID: "api_key", Principal: "operator", Roles: []string{"operator"}}); err != nil {
				return nil, err
			}
		}
		if d.ViewerKey != "" {
			if err := keys.Add(d.ViewerKey, auth.APIKey{ID: "viewer_key", Principal: "viewer", Roles: []string{"viewer"}}); err != nil {
				return nil, err
			}
		}
		chain = append(chain, keys)
	}
	if d.JWTSecret != "" {
		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(d.JWTSecret),
			Issuer:   d.JWTIssuer,
			Audience: d.JWTAudience,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, jwtAuth)
	}
	return auth.NewCompositeAuthenticator(chain...), nil
}

// Close stops the service, the engine, the stores and the telemetry
// providers, in that order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.service != nil {
		errs = append(errs, a.service.Close())
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if a.observer != nil {
		errs = append(errs, a.observer.Shutdown(ctx))
	}
	if a.sync != nil {
		a.sync()
	}
	return errors.Join(errs...)
}

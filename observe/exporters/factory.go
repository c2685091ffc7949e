// Package exporters builds OpenTelemetry span exporters and metric readers
// from the exporter names accepted by observe.Config.
package exporters

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultInterval is the push interval of periodic metric readers.
const DefaultInterval = 30 * time.Second

// Options control where exporters write. The zero value writes stdout
// output to os.Stdout and registers Prometheus metrics on the default
// registry without a namespace.
type Options struct {
	// Writer receives stdout exporter output.
	Writer io.Writer

	// Registerer receives the Prometheus exporter's collector, normally the
	// registry served by the debug server at /metrics.
	Registerer promclient.Registerer

	// Namespace prefixes Prometheus metric names, e.g. "transitcache".
	Namespace string

	// Interval is the push interval for stdout and OTLP metrics.
	// Default: 30s
	Interval time.Duration
}

func (o Options) writer() io.Writer {
	if o.Writer == nil {
		return os.Stdout
	}
	return o.Writer
}

func (o Options) periodic(exp sdkmetric.Exporter) sdkmetric.Reader {
	interval := o.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
}

// Namespace turns a service name into a Prometheus namespace: lower case,
// with every character outside [a-z0-9_] replaced by an underscore.
func Namespace(service string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, service)
}

// NewTracingExporter creates a span exporter for name: stdout, otlp, or
// none.
func NewTracingExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.writer()), stdouttrace.WithPrettyPrint())

	case "otlp":
		if otlpEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" {
			return nil, fmt.Errorf("exporters: OTLP endpoint not configured: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		}
		return otlptracegrpc.New(ctx)

	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("exporters: unknown tracing exporter %q", name)
	}
}

// NewMetricsReader creates a metric reader for name: stdout, otlp,
// prometheus, or none.
func NewMetricsReader(ctx context.Context, name string, opts Options) (sdkmetric.Reader, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.writer()))
		if err != nil {
			return nil, fmt.Errorf("exporters: stdout metrics: %w", err)
		}
		return opts.periodic(exp), nil

	case "otlp":
		if otlpEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") == "" {
			return nil, fmt.Errorf("exporters: OTLP metrics endpoint not configured: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("exporters: OTLP metrics: %w", err)
		}
		return opts.periodic(exp), nil

	case "prometheus":
		var promOpts []otelprom.Option
		if opts.Registerer != nil {
			promOpts = append(promOpts, otelprom.WithRegisterer(opts.Registerer))
		}
		if opts.Namespace != "" {
			promOpts = append(promOpts, otelprom.WithNamespace(opts.Namespace))
		}
		exp, err := otelprom.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return exp, nil

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return opts.periodic(exp), nil

	default:
		return nil, fmt.Errorf("exporters: unknown metrics exporter %q", name)
	}
}

// otlpEndpoint returns the shared OTLP endpoint, or the signal-specific one.
func otlpEndpoint(signalEnv string) string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep
	}
	return os.Getenv(signalEnv)
}

// Package exporters provides factory functions for creating OpenTelemetry exporters.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrEndpointNotConfigured indicates an OTLP exporter was requested without
// an endpoint.
var ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

// Options tunes the exporters. The zero value writes stdout exporters to
// os.Stdout, reads OTLP endpoints from the environment and registers
// Prometheus metrics with the default registerer.
type Options struct {
	// Writer receives stdout exporter output.
	// Default: os.Stdout
	Writer io.Writer

	// Endpoint is the OTLP gRPC endpoint (host:port). When empty the
	// standard OTEL_EXPORTER_OTLP_* variables are consulted.
	Endpoint string

	// Insecure disables TLS for OTLP.
	Insecure bool

	// PrometheusNamespace prefixes every Prometheus metric name.
	PrometheusNamespace string

	// Registerer receives Prometheus collectors.
	// Default: the Prometheus default registerer
	Registerer promclient.Registerer

	// Interval is the export interval of periodic metric readers.
	// Default: the SDK default (60s)
	Interval time.Duration
}

func (o Options) writer() io.Writer {
	if o.Writer == nil {
		return os.Stdout
	}
	return o.Writer
}

func (o Options) endpoint(signalVar string) string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		return v
	}
	return os.Getenv(signalVar)
}

func (o Options) periodic(exp sdkmetric.Exporter) sdkmetric.Reader {
	var opts []sdkmetric.PeriodicReaderOption
	if o.Interval > 0 {
		opts = append(opts, sdkmetric.WithInterval(o.Interval))
	}
	return sdkmetric.NewPeriodicReader(exp, opts...)
}

// NewTracingExporter creates a trace span exporter based on the exporter name.
// Supported exporters: stdout, otlp, jaeger, none
//
// jaeger is OTLP pointed at a Jaeger collector, which ingests OTLP natively.
// Its endpoint comes from Options.Endpoint or OTEL_EXPORTER_JAEGER_ENDPOINT.
func NewTracingExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.writer()))

	case "otlp":
		endpoint := opts.endpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ErrEndpointNotConfigured)
		}
		return newOTLPTraceExporter(ctx, opts.Endpoint, opts.Insecure)

	case "jaeger":
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_JAEGER_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_JAEGER_ENDPOINT", ErrEndpointNotConfigured)
		}
		return newOTLPTraceExporter(ctx, endpoint, opts.Insecure)

	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("unknown exporter: %q", name)
	}
}

// newOTLPTraceExporter dials endpoint, which may be host:port or a URL. An
// empty endpoint leaves resolution to the OTLP environment variables.
func newOTLPTraceExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	var grpcOpts []otlptracegrpc.Option
	switch {
	case strings.Contains(endpoint, "://"):
		grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpointURL(endpoint))
	case endpoint != "":
		grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(endpoint))
	}
	if insecure {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, grpcOpts...)
}

// NewMetricsReader creates a metrics reader based on the exporter name.
// Supported exporters: stdout, otlp, prometheus, none
func NewMetricsReader(ctx context.Context, name string, opts Options) (sdkmetric.Reader, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.writer()))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return opts.periodic(exp), nil

	case "otlp":
		endpoint := opts.endpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ErrEndpointNotConfigured)
		}
		grpcOpts := []otlpmetricgrpc.Option{}
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return opts.periodic(exp), nil

	case "prometheus":
		promOpts := []prometheus.Option{}
		if opts.PrometheusNamespace != "" {
			promOpts = append(promOpts, prometheus.WithNamespace(opts.PrometheusNamespace))
		}
		if opts.Registerer != nil {
			promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
		}
		exp, err := prometheus.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return exp, nil

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", name)
	}
}

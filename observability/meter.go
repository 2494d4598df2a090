package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/skillsenselab/gatekit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if log != nil {
		log.Info("meter initialized", logger.Fields(
			logger.FieldService, config.ServiceName,
			"endpoint", config.Endpoint,
			"interval", config.Interval.String(),
		))
	}

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the metric instruments the request pipeline records.
type Metrics struct {
	service string

	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	deniedTotal     metric.Int64Counter
}

// NewMetrics creates the pipeline instruments on the given meter.
// With no meter provider installed, the global no-op provider applies,
// so recording is always safe.
func NewMetrics(meter metric.Meter, service string) (*Metrics, error) {
	requestTotal, err := meter.Int64Counter("gateway.request.total",
		metric.WithDescription("Total number of dispatched requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("gateway.request.duration",
		metric.WithDescription("Duration of dispatched requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.request.duration histogram: %w", err)
	}

	deniedTotal, err := meter.Int64Counter("gateway.request.denied",
		metric.WithDescription("Requests rejected before reaching a handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.request.denied counter: %w", err)
	}

	return &Metrics{
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		deniedTotal:     deniedTotal,
	}, nil
}

// RecordRequest records one completed request. The route label is the
// path template, not the concrete URL, to keep cardinality bounded.
func (m *Metrics) RecordRequest(ctx context.Context, operation, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", m.service),
		attribute.String("operation", operation),
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", m.service),
		attribute.String("operation", operation),
	))

	if status == 401 || status == 403 {
		m.deniedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("service", m.service),
			attribute.String("operation", operation),
			attribute.String("status", strconv.Itoa(status)),
		))
	}
}

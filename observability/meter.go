package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/capdir/logger"
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
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
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

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the directory's metric instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter

	taskEnqueued   metric.Int64Counter
	taskAttempts   metric.Int64Counter
	taskCompleted  metric.Int64Counter
	taskQueueDepth metric.Int64UpDownCounter
	taskDuration   metric.Float64Histogram

	registrations  metric.Int64Counter
	lookups        metric.Int64Counter
	lookupDuration metric.Float64Histogram
	freshnessRuns  metric.Int64Counter
	expiredEntries metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.requestTotal, "http.request.total", "Total number of HTTP requests"},
		{&m.taskEnqueued, "capdir.task.enqueued", "Remote directory tasks enqueued by mode"},
		{&m.taskAttempts, "capdir.task.attempts", "Remote directory call attempts by mode"},
		{&m.taskCompleted, "capdir.task.completed", "Remote directory tasks completed by mode and outcome"},
		{&m.registrations, "capdir.registrations", "Provider add and remove operations by scope and outcome"},
		{&m.lookups, "capdir.lookups", "Lookups by discovery scope and outcome"},
		{&m.freshnessRuns, "capdir.freshness.runs", "Freshness loop runs by kind"},
		{&m.expiredEntries, "capdir.entries.expired", "Entries removed by the expiry sweep by store"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.requestDuration, "http.request.duration", "Duration of HTTP requests in seconds"},
		{&m.taskDuration, "capdir.task.duration", "Time from enqueue to completion of remote directory tasks in seconds"},
		{&m.lookupDuration, "capdir.lookup.duration", "Duration of lookups in seconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("creating %s histogram: %w", h.name, err)
		}
	}

	if m.requestActive, err = meter.Int64UpDownCounter("http.request.active",
		metric.WithDescription("Number of currently active HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("creating http.request.active gauge: %w", err)
	}
	if m.taskQueueDepth, err = meter.Int64UpDownCounter("capdir.task.queue_depth",
		metric.WithDescription("Remote directory tasks waiting or in flight"),
	); err != nil {
		return nil, fmt.Errorf("creating capdir.task.queue_depth gauge: %w", err)
	}

	return m, nil
}

// RecordRequestStart increments the active request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordTaskEnqueued records a task entering the sequencer queue.
func (m *Metrics) RecordTaskEnqueued(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.taskEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	m.taskQueueDepth.Add(ctx, 1)
}

// RecordTaskAttempt records one remote call of a task.
func (m *Metrics) RecordTaskAttempt(ctx context.Context, mode string, attempt int) {
	if m == nil {
		return
	}
	m.taskAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("retry", attempt > 1),
	))
}

// RecordTaskCompleted records a task leaving the sequencer.
func (m *Metrics) RecordTaskCompleted(ctx context.Context, mode, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	m.taskCompleted.Add(ctx, 1, attrs)
	m.taskDuration.Record(ctx, duration.Seconds(), attrs)
	m.taskQueueDepth.Add(ctx, -1)
}

// RecordRegistration records an add or remove request.
func (m *Metrics) RecordRegistration(ctx context.Context, operation, scope, outcome string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

// RecordLookup records a finished lookup.
func (m *Metrics) RecordLookup(ctx context.Context, scope, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	)
	m.lookups.Add(ctx, 1, attrs)
	m.lookupDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFreshnessRun records one run of a freshness loop.
func (m *Metrics) RecordFreshnessRun(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.freshnessRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordExpired records entries removed by the expiry sweep.
func (m *Metrics) RecordExpired(ctx context.Context, store string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.expiredEntries.Add(ctx, int64(n), metric.WithAttributes(attribute.String("store", store)))
}

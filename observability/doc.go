// Package observability wires OpenTelemetry tracing and metrics for the
// directory.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, cfg.TracerConfig("capdir", version, env))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanLookup)
//	defer observability.EndSpan(span, err)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg.MeterConfig("capdir", version, env))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("capdir"))
//	metrics.RecordTaskEnqueued(ctx, "add")
package observability

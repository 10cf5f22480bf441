package mailsort

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/mailsort"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the sorter service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	// Per-item operations
	classifyLatency metric.Float64Histogram
	classifyCount   metric.Int64Counter
	classifyErrors  metric.Int64Counter
	resolveLatency  metric.Float64Histogram
	resolveCount    metric.Int64Counter
	resolveErrors   metric.Int64Counter
	moveLatency     metric.Float64Histogram
	moveCount       metric.Int64Counter
	moveErrors      metric.Int64Counter

	// Taxonomy
	cacheHits      metric.Int64Counter
	foldersCreated metric.Int64Counter
	rulesTripped   metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	// Initialize tracer
	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	// Initialize metrics
	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	// Classify metrics
	o.classifyLatency, err = meter.Float64Histogram(
		"mailsort.classify.duration",
		metric.WithDescription("Duration of oracle classification calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.classifyCount, err = meter.Int64Counter(
		"mailsort.classify.count",
		metric.WithDescription("Number of classification calls"),
	)
	if err != nil {
		return err
	}

	o.classifyErrors, err = meter.Int64Counter(
		"mailsort.classify.errors",
		metric.WithDescription("Number of classification errors"),
	)
	if err != nil {
		return err
	}

	// Resolve metrics
	o.resolveLatency, err = meter.Float64Histogram(
		"mailsort.resolve.duration",
		metric.WithDescription("Duration of folder resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.resolveCount, err = meter.Int64Counter(
		"mailsort.resolve.count",
		metric.WithDescription("Number of folder resolutions"),
	)
	if err != nil {
		return err
	}

	o.resolveErrors, err = meter.Int64Counter(
		"mailsort.resolve.errors",
		metric.WithDescription("Number of folder resolution errors"),
	)
	if err != nil {
		return err
	}

	// Move metrics
	o.moveLatency, err = meter.Float64Histogram(
		"mailsort.move.duration",
		metric.WithDescription("Duration of move operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.moveCount, err = meter.Int64Counter(
		"mailsort.move.count",
		metric.WithDescription("Number of move operations"),
	)
	if err != nil {
		return err
	}

	o.moveErrors, err = meter.Int64Counter(
		"mailsort.move.errors",
		metric.WithDescription("Number of move errors"),
	)
	if err != nil {
		return err
	}

	// Taxonomy metrics
	o.cacheHits, err = meter.Int64Counter(
		"mailsort.cache.hits",
		metric.WithDescription("Number of folder cache substitutions"),
	)
	if err != nil {
		return err
	}

	o.foldersCreated, err = meter.Int64Counter(
		"mailsort.folders.created",
		metric.WithDescription("Number of folders created during resolution"),
	)
	if err != nil {
		return err
	}

	o.rulesTripped, err = meter.Int64Counter(
		"mailsort.rules.tripped",
		metric.WithDescription("Number of suggestions rejected by deny rules"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// Caller should invoke the returned func with the operation error when done.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordClassify records classification metrics.
func (o *otelInstrumentation) recordClassify(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.classifyLatency.Record(ctx, duration.Seconds())
	o.classifyCount.Add(ctx, 1)
	if err != nil {
		o.classifyErrors.Add(ctx, 1)
	}
}

// recordResolve records folder resolution metrics.
func (o *otelInstrumentation) recordResolve(ctx context.Context, duration time.Duration, info *ResolveInfo, err error) {
	if !o.metricsEnabled {
		return
	}

	o.resolveLatency.Record(ctx, duration.Seconds())
	o.resolveCount.Add(ctx, 1)
	if err != nil {
		o.resolveErrors.Add(ctx, 1)
		return
	}
	if info.CacheHit {
		o.cacheHits.Add(ctx, 1)
	}
	if info.Created > 0 {
		o.foldersCreated.Add(ctx, int64(info.Created))
	}
}

// recordMove records move operation metrics.
func (o *otelInstrumentation) recordMove(ctx context.Context, duration time.Duration, toFolder string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("to_folder", toFolder),
	)

	o.moveLatency.Record(ctx, duration.Seconds(), attrs)
	o.moveCount.Add(ctx, 1, attrs)
	if err != nil {
		o.moveErrors.Add(ctx, 1, attrs)
	}
}

// recordRuleTripped records a deny rule rejection.
func (o *otelInstrumentation) recordRuleTripped(ctx context.Context, rule string) {
	if !o.metricsEnabled {
		return
	}

	o.rulesTripped.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}

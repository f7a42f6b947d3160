package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Operation names the engine entry point being measured.
type Operation string

const (
	OperationConvert     Operation = "convert"
	OperationEquivalence Operation = "equivalence"
	OperationCompose     Operation = "compose"
	OperationEquivalents Operation = "find_equivalents"
	OperationToSystem    Operation = "to_system"
)

// Outcome classifies how an operation ended.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeMismatch     Outcome = "dimension_mismatch"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeUnrecognized Outcome = "unrecognized"
)

// Conversion paths reported on convert operations.
const (
	PathIdentity    = "identity"
	PathScale       = "scale"
	PathEquivalency = "equivalency"
	PathProvider    = "provider"
)

var (
	metricsOnce         sync.Once
	metricsInitErr      error
	operationCounter    metric.Int64Counter
	operationLatency    metric.Float64Histogram
	composeResultsHist  metric.Int64Histogram
	composeCacheCounter metric.Int64Counter
	composePruneCounter metric.Int64Counter
)

// OperationMetrics captures the fields needed to record one engine call.
type OperationMetrics struct {
	Operation Operation
	Outcome   Outcome
	// Path is the conversion strategy that succeeded; empty for other operations.
	Path     string
	Duration time.Duration
}

// ComposeMetrics describes one composition search.
type ComposeMetrics struct {
	Results   int
	CacheHits int
	Pruned    int
	MaxDepth  int
}

// RecordOperation emits the call counter and latency histogram.
func RecordOperation(ctx context.Context, m OperationMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("units.operation", string(m.Operation)),
		attribute.String("units.outcome", string(m.Outcome)),
	}
	if m.Path != "" {
		attrs = append(attrs, attribute.String("units.path", m.Path))
	}

	operationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.Duration > 0 {
		operationLatency.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

// RecordCompose emits search-specific counters.
func RecordCompose(ctx context.Context, m ComposeMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Int("units.compose.max_depth", m.MaxDepth))
	composeResultsHist.Record(ctx, int64(m.Results), attrs)
	if m.CacheHits > 0 {
		composeCacheCounter.Add(ctx, int64(m.CacheHits), attrs)
	}
	if m.Pruned > 0 {
		composePruneCounter.Add(ctx, int64(m.Pruned), attrs)
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("units.engine")

		operationCounter, metricsInitErr = meter.Int64Counter(
			"units.operations_total",
			metric.WithDescription("Engine calls partitioned by operation and outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		operationLatency, metricsInitErr = meter.Float64Histogram(
			"units.operation.duration_ms",
			metric.WithDescription("Observed engine call latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		composeResultsHist, metricsInitErr = meter.Int64Histogram(
			"units.compose.results",
			metric.WithDescription("Number of equally simple results returned by a composition search"),
			metric.WithUnit("{unit}"),
		)
		if metricsInitErr != nil {
			return
		}

		composeCacheCounter, metricsInitErr = meter.Int64Counter(
			"units.compose.cache_hits_total",
			metric.WithDescription("Sub-searches answered from the per-search cache"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		composePruneCounter, metricsInitErr = meter.Int64Counter(
			"units.compose.pruned_total",
			metric.WithDescription("Candidate branches dropped because their sub-search failed"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}

// RecordConversionEvent attaches the resolved conversion to the span.
func RecordConversionEvent(span trace.Span, from, to, path string, scale float64) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("units.from", from),
		attribute.String("units.to", to),
		attribute.String("units.path", path),
	}
	if path == PathScale || path == PathIdentity {
		attrs = append(attrs, attribute.Float64("units.scale", scale))
	}

	span.AddEvent("units.conversion", trace.WithAttributes(attrs...))
}

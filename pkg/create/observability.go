package create

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives one observation per orchestrator operation.
type MetricsRecorder interface {
	ObserveOperation(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens spans around orchestrator operations.
type Tracer interface {
	StartSpan(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan finishes one traced operation.
type TraceSpan interface {
	End(err error)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) ObserveOperation(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ExpvarMetricsRecorder publishes per-operation counters and cumulative
// durations under one expvar map.
type ExpvarMetricsRecorder struct {
	root *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under the given expvar name.
// Publishing the same name twice panics, so each process should build the
// recorder once.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	root := expvar.NewMap(name)
	return &ExpvarMetricsRecorder{root: root}
}

func (r *ExpvarMetricsRecorder) ObserveOperation(_ context.Context, operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.root.Add(operation+"_"+outcome+"_total", 1)
	r.root.Add(operation+"_duration_ns", duration.Nanoseconds())
}

// PrometheusMetricsRecorder exports operation counts and latencies through a
// prometheus registry.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the recorder's collectors on the
// registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	recorder := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "publishcore_operations_total",
			Help: "Completed authoring operations by outcome.",
		}, []string{"operation", "success"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "publishcore_operation_duration_seconds",
			Help:    "Latency of authoring operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, collector := range []prometheus.Collector{recorder.operations, recorder.durations} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return recorder, nil
}

func (r *PrometheusMetricsRecorder) ObserveOperation(_ context.Context, operation string, success bool, duration time.Duration) {
	r.operations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// JSONTraceTracer writes one JSON line per finished span.
type JSONTraceTracer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewJSONTraceTracer builds a tracer writing to out.
func NewJSONTraceTracer(out io.Writer) *JSONTraceTracer {
	return &JSONTraceTracer{out: out, now: time.Now}
}

func (t *JSONTraceTracer) StartSpan(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: t.now()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	record := map[string]any{
		"operation":   s.operation,
		"started_at":  s.started.UTC().Format(time.RFC3339Nano),
		"duration_ms": s.tracer.now().Sub(s.started).Milliseconds(),
		"success":     err == nil,
	}
	if err != nil {
		record["error"] = err.Error()
	}
	payload, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		return
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	fmt.Fprintln(s.tracer.out, string(payload))
}

// observe wraps one orchestrator operation with tracing and metrics.
func (c *CreateContext) observe(ctx context.Context, operation OperationKind, fn func(context.Context) error) error {
	spanCtx, span := c.tracer.StartSpan(ctx, string(operation))
	started := time.Now()
	err := fn(spanCtx)
	c.metrics.ObserveOperation(spanCtx, string(operation), err == nil, time.Since(started))
	span.End(err)
	return err
}

package instance

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	executionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instanced",
			Subsystem: "instance",
			Name:      "executions_total",
			Help:      "Total batches executed per instance",
		},
		[]string{"model", "instance", "device"},
	)

	executionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instanced",
			Subsystem: "instance",
			Name:      "execution_failures_total",
			Help:      "Total requests that completed with an error",
		},
		[]string{"model", "instance", "device"},
	)

	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "instanced",
			Subsystem: "instance",
			Name:      "batch_size",
			Help:      "Requests per executed batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"model", "instance", "device"},
	)

	warmupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "instanced",
			Subsystem: "instance",
			Name:      "warmup_duration_seconds",
			Help:      "Duration of the full warm-up pass per instance",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model", "instance", "device"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "instanced",
			Subsystem: "instance",
			Name:      "queue_depth",
			Help:      "Batches waiting on the instance's execution thread",
		},
		[]string{"model", "instance", "device"},
	)
)

func init() {
	prometheus.MustRegister(executionTotal, executionFailures, batchSize, warmupDuration, queueDepth)
}

// MetricReporter reports per-instance execution metrics. Created once per
// instance when metrics are enabled, otherwise absent (nil).
type MetricReporter struct {
	executions prometheus.Counter
	failures   prometheus.Counter
	batches    prometheus.Observer
	warmup     prometheus.Observer
	queue      prometheus.Gauge
}

func newMetricReporter(model, name string, deviceID int) *MetricReporter {
	labels := prometheus.Labels{
		"model":    model,
		"instance": name,
		"device":   strconv.Itoa(deviceID),
	}
	return &MetricReporter{
		executions: executionTotal.With(labels),
		failures:   executionFailures.With(labels),
		batches:    batchSize.With(labels),
		warmup:     warmupDuration.With(labels),
		queue:      queueDepth.With(labels),
	}
}

func (r *MetricReporter) observeExecution(n int, failed int) {
	if r == nil {
		return
	}
	r.executions.Inc()
	r.batches.Observe(float64(n))
	if failed > 0 {
		r.failures.Add(float64(failed))
	}
}

func (r *MetricReporter) observeWarmup(d time.Duration) {
	if r == nil {
		return
	}
	r.warmup.Observe(d.Seconds())
}

func (r *MetricReporter) queueDelta(d int) {
	if r == nil {
		return
	}
	r.queue.Add(float64(d))
}

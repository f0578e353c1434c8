package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for task executions.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the task collectors with registerer, or the default
// registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clubdesk_jobs_total",
		Help: "Task executions by task type and status.",
	}, []string{"task", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clubdesk_job_duration_seconds",
		Help:    "Task execution time by task type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	registerer.MustRegister(runs, duration)
	return &Metrics{runs: runs, duration: duration}
}

// Track returns a stop function recording one run of task.
func (m *Metrics) Track(task string) func(error) error {
	start := time.Now()
	return func(err error) error {
		if m == nil {
			return err
		}
		status := "success"
		if err != nil {
			status = "failure"
		}
		m.runs.WithLabelValues(task, status).Inc()
		m.duration.WithLabelValues(task).Observe(time.Since(start).Seconds())
		return err
	}
}

// wrap instruments h. A nil Metrics leaves h untouched.
func (m *Metrics) wrap(h TaskHandler) TaskHandler {
	if m == nil || h.Handler == nil {
		return h
	}
	next := h.Handler
	return TaskHandler{Type: h.Type, Handler: func(ctx context.Context, t *asynq.Task) error {
		return m.Track(h.Type)(next(ctx, t))
	}}
}

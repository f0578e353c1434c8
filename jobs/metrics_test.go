package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsWrapCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	fail := errors.New("smtp down")
	calls := 0
	h := m.wrap(TaskHandler{Type: TaskTypeSendEmail, Handler: func(context.Context, *asynq.Task) error {
		calls++
		if calls == 2 {
			return fail
		}
		return nil
	}})

	assert.NoError(t, h.Handler(context.Background(), asynq.NewTask(TaskTypeSendEmail, nil)))
	assert.ErrorIs(t, h.Handler(context.Background(), asynq.NewTask(TaskTypeSendEmail, nil)), fail)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(TaskTypeSendEmail, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(TaskTypeSendEmail, "failure")))
}

func TestNilMetricsLeavesHandler(t *testing.T) {
	var m *Metrics
	h := m.wrap(TaskHandler{Type: TaskTypeResetSweep, Handler: func(context.Context, *asynq.Task) error { return nil }})
	assert.Equal(t, TaskTypeResetSweep, h.Type)
	assert.NoError(t, m.Track("x")(nil))
}

package camunda

import (
	"context"
	"sync"
	"testing"
	"time"

	"admissions-workflow/internal/common/config"
	"admissions-workflow/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedJob struct {
	taskType string
	status   string
}

type fakeRecorder struct {
	mu   sync.Mutex
	jobs []recordedJob
}

func (f *fakeRecorder) RecordJob(_ context.Context, taskType, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, recordedJob{taskType: taskType, status: status})
}

type countingHandler struct {
	calls int
}

func (h *countingHandler) Handle(worker.JobClient, entities.Job) {
	h.calls++
}

func TestWorkers_InstrumentRecordsEveryJob(t *testing.T) {
	rec := &fakeRecorder{}
	w := NewWorkers(nil, rec, logger.NewTestLogger(t))
	handler := &countingHandler{}

	wrapped := w.instrument("transition-application-status", handler)
	wrapped(nil, entities.Job{})
	wrapped(nil, entities.Job{})

	assert.Equal(t, 2, handler.calls)
	require.Len(t, rec.jobs, 2)
	assert.Equal(t, recordedJob{taskType: "transition-application-status", status: "handled"}, rec.jobs[0])
}

func TestWorkers_StartSkipsDisabledWorker(t *testing.T) {
	w := NewWorkers(nil, nil, logger.NewTestLogger(t))

	started := w.Start("check-onboarding-readiness", config.WorkerConfig{Enabled: false}, &countingHandler{})

	assert.False(t, started)
	assert.Empty(t, w.Running())
	w.Close()
}

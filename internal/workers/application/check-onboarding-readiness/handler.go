// internal/workers/application/check-onboarding-readiness/handler.go
package checkonboardingreadiness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/metrics"
	"admissions-workflow/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "check-onboarding-readiness"
)

var ErrMissingSubject = apperrors.Sentinel(apperrors.ErrCodeInvalidInput, "subjectId is required")

// Checklist is the onboarding gate as seen by this worker.
type Checklist interface {
	OpenChecklist(ctx context.Context, subjectID string, kind models.RecordType) ([]models.OnboardingItem, error)
	IsReady(ctx context.Context, subjectID string) (models.Readiness, error)
	IsReadyFor(ctx context.Context, subjectID string, kind models.RecordType) (models.Readiness, error)
}

type Handler struct {
	config    *Config
	checklist Checklist
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, checklist Checklist, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		checklist: checklist,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

// Handle completes the job with the readiness verdict. Not being ready is a
// normal outcome the process model branches on, not a job failure.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid job variables", err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	subject := strings.TrimSpace(input.SubjectID)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	var (
		readiness models.Readiness
		err       error
	)
	if input.SubjectKind != "" {
		kind, perr := models.ParseRecordType(input.SubjectKind)
		if perr != nil {
			return nil, perr
		}
		if _, err := h.checklist.OpenChecklist(ctx, subject, kind); err != nil {
			return nil, fmt.Errorf("open checklist: %w", err)
		}
		readiness, err = h.checklist.IsReadyFor(ctx, subject, kind)
	} else {
		readiness, err = h.checklist.IsReady(ctx, subject)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("onboarding readiness evaluated", map[string]interface{}{
		"subjectId":   subject,
		"ready":       readiness.Ready,
		"outstanding": len(readiness.Outstanding),
	})

	return &Output{
		SubjectID:        subject,
		Ready:            readiness.Ready,
		Outstanding:      readiness.Outstanding,
		OutstandingCount: len(readiness.Outstanding),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

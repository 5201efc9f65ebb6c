// internal/workers/application/transition-application-status/handler.go
package transitionapplicationstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/metrics"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "transition-application-status"
)

var ErrInvalidSurface = apperrors.Sentinel(apperrors.ErrCodeInvalidInput, "unknown transition surface")

// Transitioner applies status changes; *workflow.Executor in production.
type Transitioner interface {
	Transition(ctx context.Context, req workflow.TransitionRequest) (*models.Application, error)
}

type Handler struct {
	config       *Config
	transitioner Transitioner
	errors       *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, transitioner Transitioner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		transitioner: transitioner,
		errors:       apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

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
	to, err := models.ParseStatus(input.NewState)
	if err != nil {
		return nil, err
	}
	var recordType models.RecordType
	if input.ApplicationType != "" {
		if recordType, err = models.ParseRecordType(input.ApplicationType); err != nil {
			return nil, err
		}
	}

	actor := models.Actor{ID: input.ActorID, Role: models.Role(input.ActorRole)}
	surface, err := surfaceFor(input.Surface, actor)
	if err != nil {
		return nil, err
	}

	app, err := h.transitioner.Transition(ctx, workflow.TransitionRequest{
		RecordType:    recordType,
		ApplicationID: input.ApplicationID,
		To:            to,
		Actor:         actor,
		Reason:        input.Reason,
		Surface:       surface,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status),
		StatusLabel:       workflow.Display(app.Status).Label,
		StatusUpdatedAt:   app.StatusUpdatedAt.UTC().Format(time.RFC3339),
		Terminal:          app.Status.Terminal(),
	}, nil
}

func surfaceFor(raw string, actor models.Actor) (workflow.Surface, error) {
	switch workflow.Surface(raw) {
	case workflow.SurfaceAdmin, workflow.SurfaceSelfService:
		return workflow.Surface(raw), nil
	case "":
		if workflow.IsAdmin(actor.Role) {
			return workflow.SurfaceAdmin, nil
		}
		return workflow.SurfaceSelfService, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSurface, raw)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

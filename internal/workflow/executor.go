// internal/workflow/executor.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/metrics"
	"admissions-workflow/internal/common/observability"
	"admissions-workflow/internal/common/validation"
	"admissions-workflow/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store persists applications and their audit events.
//
// ApplyTransition must, in one transaction, update the application's status
// from *event.FromState to event.ToState (only if the stored status still
// equals *event.FromState) and insert event. When no row matches it must
// write nothing and return an error wrapping ErrConcurrentModification.
// ListEvents returns events in the order they were written.
type Store interface {
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	HasOpenApplication(ctx context.Context, ownerID string, recordType models.RecordType) (bool, error)
	CreateApplication(ctx context.Context, app models.Application, event models.StateChangeEvent) error
	ApplyTransition(ctx context.Context, event models.StateChangeEvent) error
	ListEvents(ctx context.Context, applicationID string) ([]models.StateChangeEvent, error)
}

// Gate blocks transitions into gated statuses until the onboarding checklist
// of the application's owner is complete.
type Gate interface {
	RequireApplicationReady(ctx context.Context, app models.Application) error
}

// Observer is told about every committed transition. Observers run after the
// commit; their errors are logged and never undo or fail the transition.
type Observer interface {
	TransitionCommitted(ctx context.Context, app models.Application, event models.StateChangeEvent) error
}

// IntakeValidator checks the intake payload of a new application.
type IntakeValidator interface {
	Validate(recordType models.RecordType, intake map[string]interface{}) (*validation.ValidationResult, error)
}

// TransitionRequest asks for one status change. RecordType is optional; when
// set it must match the stored application.
type TransitionRequest struct {
	RecordType    models.RecordType
	ApplicationID string
	To            models.Status
	Actor         models.Actor
	Reason        string
	Surface       Surface
}

// NewApplication asks for a record to be created in the started status.
type NewApplication struct {
	Type    models.RecordType
	OwnerID string
	Intake  map[string]interface{}
	// Submit follows creation with the owner's started -> submitted.
	Submit bool
	Actor  models.Actor
}

type Option func(*Executor)

// WithGate guards transitions into the given statuses with gate.
func WithGate(gate Gate, statuses ...models.Status) Option {
	return func(e *Executor) {
		e.gate = gate
		for _, s := range statuses {
			e.gated[s] = true
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observers = append(e.observers, o) }
}

func WithValidator(v IntakeValidator) Option {
	return func(e *Executor) { e.validator = v }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor is the only writer of application status.
type Executor struct {
	store     Store
	gate      Gate
	gated     map[models.Status]bool
	observers []Observer
	validator IntakeValidator
	logger    logger.Logger
	now       func() time.Time
	newID     func() string
}

func NewExecutor(store Store, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		gated:  map[models.Status]bool{},
		logger: log.WithFields(map[string]interface{}{"component": "workflow.executor"}),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transition validates req against the current stored status and applies it
// atomically with its audit event.
func (e *Executor) Transition(ctx context.Context, req TransitionRequest) (*models.Application, error) {
	ctx, span := observability.Tracer().Start(ctx, "workflow.Transition", trace.WithAttributes(
		attribute.String("application.id", req.ApplicationID),
		attribute.String("transition.to", string(req.To)),
		attribute.String("transition.surface", string(req.Surface)),
	))
	defer span.End()

	app, err := e.transition(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	return app, err
}

func (e *Executor) transition(ctx context.Context, req TransitionRequest) (*models.Application, error) {
	app, err := e.store.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if req.RecordType != "" && req.RecordType != app.Type {
		return nil, fmt.Errorf("%w: %s application %s", ErrNotFound, req.RecordType, req.ApplicationID)
	}

	from := app.Status
	fail := func(err error) (*models.Application, error) {
		metrics.TransitionsTotal.WithLabelValues(string(from), string(req.To), string(apperrors.CodeOf(err))).Inc()
		return nil, err
	}

	if err := e.validate(ctx, *app, req); err != nil {
		return fail(err)
	}

	// history must not run backwards when writers' clocks disagree
	now := e.now().UTC()
	if now.Before(app.StatusUpdatedAt) {
		now = app.StatusUpdatedAt
	}
	event := models.StateChangeEvent{
		ID:            e.newID(),
		ApplicationID: app.ID,
		RecordType:    app.Type,
		FromState:     &from,
		ToState:       req.To,
		ActorID:       req.Actor.ID,
		ActorRole:     req.Actor.Role,
		Reason:        strings.TrimSpace(req.Reason),
		CreatedAt:     now,
	}

	if err := e.store.ApplyTransition(ctx, event); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			err = e.describeConflict(ctx, app.ID, from, err)
		}
		return fail(err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(from), string(req.To), "applied").Inc()

	updated := *app
	updated.Status = req.To
	updated.StatusUpdatedAt = now

	e.logger.Info("application status changed", map[string]interface{}{
		"applicationId": app.ID,
		"from":          string(from),
		"to":            string(req.To),
		"actorId":       req.Actor.ID,
		"actorRole":     string(req.Actor.Role),
		"surface":       string(req.Surface),
	})

	e.notifyObservers(ctx, updated, event)
	return &updated, nil
}

// validate runs the preconditions in their fixed order so callers always see
// the same error for the same request.
func (e *Executor) validate(ctx context.Context, app models.Application, req TransitionRequest) error {
	if !req.To.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, req.To)
	}
	if !AllowedNextStatesFor(app.Type, app.Status).Has(req.To) {
		return fmt.Errorf("%w: %s application %s cannot move from %s to %s",
			ErrInvalidTransition, app.Type, app.ID, app.Status, req.To)
	}
	if err := Authorize(req.Actor, app, req.To, req.Surface); err != nil {
		return err
	}
	if req.Surface == SurfaceAdmin && strings.TrimSpace(req.Reason) == "" {
		return fmt.Errorf("%w: %s -> %s", ErrMissingReason, app.Status, req.To)
	}
	if e.gate != nil && e.gated[req.To] {
		if err := e.gate.RequireApplicationReady(ctx, app); err != nil {
			return err
		}
	}
	return nil
}

// describeConflict re-reads the application so the caller learns which status
// won the race.
func (e *Executor) describeConflict(ctx context.Context, id string, expected models.Status, cause error) error {
	current, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return cause
	}
	return fmt.Errorf("%w: expected %s, found %s", ErrConcurrentModification, expected, current.Status)
}

func (e *Executor) notifyObservers(ctx context.Context, app models.Application, event models.StateChangeEvent) {
	// Observers must not inherit a cancelled request context after commit.
	ctx = context.WithoutCancel(ctx)
	for _, o := range e.observers {
		if err := o.TransitionCommitted(ctx, app, event); err != nil {
			e.logger.Warn("post-commit observer failed", map[string]interface{}{
				"applicationId": app.ID,
				"eventId":       event.ID,
				"observer":      fmt.Sprintf("%T", o),
				"error":         err,
			})
		}
	}
}

// Create inserts a started application together with its creation event and,
// when asked, submits it on the owner's behalf.
func (e *Executor) Create(ctx context.Context, req NewApplication) (*models.Application, error) {
	ctx, span := observability.Tracer().Start(ctx, "workflow.Create", trace.WithAttributes(
		attribute.String("application.type", string(req.Type)),
	))
	defer span.End()

	app, err := e.create(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	return app, err
}

func (e *Executor) create(ctx context.Context, req NewApplication) (*models.Application, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRecordType, req.Type)
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrApplicationValidation)
	}
	if req.Actor.ID != req.OwnerID && !IsAdmin(req.Actor.Role) {
		return nil, fmt.Errorf("%w: %s may not open an application for %s", ErrUnauthorized, req.Actor.ID, req.OwnerID)
	}
	if req.Submit && req.Actor.ID != req.OwnerID {
		return nil, fmt.Errorf("%w: only the owner may submit their application", ErrUnauthorized)
	}

	if e.validator != nil {
		result, err := e.validator.Validate(req.Type, req.Intake)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, fmt.Errorf("%w: %s", ErrApplicationValidation, strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	open, err := e.store.HasOpenApplication(ctx, req.OwnerID, req.Type)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: owner %s already has an open %s application", ErrDuplicateApplication, req.OwnerID, req.Type)
	}

	now := e.now().UTC()
	app := models.Application{
		ID:              e.newID(),
		Type:            req.Type,
		OwnerID:         req.OwnerID,
		Status:          models.StatusStarted,
		StatusUpdatedAt: now,
		Intake:          req.Intake,
		CreatedAt:       now,
	}
	event := models.StateChangeEvent{
		ID:            e.newID(),
		ApplicationID: app.ID,
		RecordType:    app.Type,
		ToState:       models.StatusStarted,
		ActorID:       req.Actor.ID,
		ActorRole:     req.Actor.Role,
		CreatedAt:     now,
	}

	if err := e.store.CreateApplication(ctx, app, event); err != nil {
		return nil, err
	}

	e.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"type":          string(app.Type),
		"ownerId":       app.OwnerID,
	})
	e.notifyObservers(ctx, app, event)

	if !req.Submit {
		return &app, nil
	}
	submitted, err := e.Transition(ctx, TransitionRequest{
		ApplicationID: app.ID,
		To:            models.StatusSubmitted,
		Actor:         req.Actor,
		Surface:       SurfaceSelfService,
	})
	if err != nil {
		return &app, err
	}
	return submitted, nil
}

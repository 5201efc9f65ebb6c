// internal/workers/application/transition-application-status/handler_test.go
package transitionapplicationstatus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

type fakeTransitioner struct {
	requests []workflow.TransitionRequest
	err      error
}

func (f *fakeTransitioner) Transition(_ context.Context, req workflow.TransitionRequest) (*models.Application, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Application{
		ID:              req.ApplicationID,
		Type:            models.RecordTypeStudent,
		Status:          req.To,
		StatusUpdatedAt: testNow,
	}, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeTransitioner) {
	fake := &fakeTransitioner{}
	return NewHandler(&Config{Timeout: 5 * time.Second}, fake, logger.NewTestLogger(t)), fake
}

func createTestInput() *Input {
	return &Input{
		ApplicationID:   "app-1",
		ApplicationType: "student",
		NewState:        "approved",
		ActorID:         "admin-1",
		ActorRole:       "admin",
		Reason:          "all documents verified",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_AdminTransition(t *testing.T) {
	handler, fake := newTestHandler(t)

	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "app-1", output.ApplicationID)
	assert.Equal(t, "approved", output.ApplicationStatus)
	assert.Equal(t, "Approved", output.StatusLabel)
	assert.Equal(t, "2026-03-02T14:30:00Z", output.StatusUpdatedAt)
	assert.True(t, output.Terminal)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, workflow.SurfaceAdmin, req.Surface)
	assert.Equal(t, models.RecordTypeStudent, req.RecordType)
	assert.Equal(t, models.Actor{ID: "admin-1", Role: models.RoleAdmin}, req.Actor)
	assert.Equal(t, "all documents verified", req.Reason)
}

func TestHandler_Execute_OwnerSubmission(t *testing.T) {
	handler, fake := newTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewState:      "submitted",
		ActorID:       "stu-1",
		ActorRole:     "system",
	})

	require.NoError(t, err)
	assert.False(t, output.Terminal)
	assert.Equal(t, workflow.SurfaceSelfService, fake.requests[0].Surface)
	assert.Empty(t, fake.requests[0].RecordType)
}

func TestSurfaceFor(t *testing.T) {
	tests := []struct {
		raw  string
		role models.Role
		want workflow.Surface
	}{
		{"", models.RoleAdmin, workflow.SurfaceAdmin},
		{"", models.RoleSuperAdmin, workflow.SurfaceAdmin},
		{"", models.RoleStudent, workflow.SurfaceSelfService},
		{"", models.RoleSystem, workflow.SurfaceSelfService},
		{"self_service", models.RoleAdmin, workflow.SurfaceSelfService},
		{"admin", models.RoleStaff, workflow.SurfaceAdmin},
	}
	for _, tt := range tests {
		got, err := surfaceFor(tt.raw, models.Actor{ID: "x", Role: tt.role})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%q as %s", tt.raw, tt.role)
	}

	_, err := surfaceFor("kiosk", models.Actor{})
	assert.True(t, errors.Is(err, ErrInvalidSurface))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_RejectsUnknownValues(t *testing.T) {
	handler, fake := newTestHandler(t)

	input := createTestInput()
	input.NewState = "archived"
	_, err := handler.Execute(context.Background(), input)
	assert.True(t, errors.Is(err, models.ErrInvalidStatus))

	input = createTestInput()
	input.ApplicationType = "alumni"
	_, err = handler.Execute(context.Background(), input)
	assert.True(t, errors.Is(err, models.ErrInvalidRecordType))

	assert.Empty(t, fake.requests)
}

func TestHandler_Execute_DomainErrorsBecomeBPMNErrors(t *testing.T) {
	tests := []struct {
		err     error
		code    string
		retries int
	}{
		{fmt.Errorf("%w: approved -> started", workflow.ErrInvalidTransition), "INVALID_TRANSITION", 0},
		{fmt.Errorf("%w: student", workflow.ErrUnauthorized), "UNAUTHORIZED", 0},
		{fmt.Errorf("%w: expected in_review, found approved", workflow.ErrConcurrentModification), "CONCURRENT_MODIFICATION", 1},
		{fmt.Errorf("%w: timeout", workflow.ErrDatabaseInsertFailed), "DATABASE_INSERT_FAILED", 3},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			handler, fake := newTestHandler(t)
			fake.err = tt.err

			_, err := handler.Execute(context.Background(), createTestInput())
			require.Error(t, err)

			bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
			assert.Equal(t, tt.code, bpmn.Code)
			assert.Equal(t, tt.retries, bpmn.Retries)
		})
	}
}

// internal/workers/application/create-application-record/handler_test.go
package createapplicationrecord

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/repository"
	"admissions-workflow/internal/workflow"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

var appColumns = []string{"id", "application_type", "owner_id", "status", "status_updated_at", "intake", "created_at"}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{
		ApplicationType: "partner",
		OwnerID:         "shop-1",
		Intake: map[string]interface{}{
			"shop_name":     "Fade Room",
			"contact_email": "owner@faderoom.example",
		},
	}
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	log := logger.NewTestLogger(t)
	executor := workflow.NewExecutor(repository.New(db), log, workflow.WithClock(func() time.Time { return testNow }))
	return NewHandler(createTestConfig(), executor, log), mock
}

func expectNoOpenApplication(mock sqlmock.Sqlmock, owner, recordType string) {
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(owner, recordType, "approved", "rejected").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
}

func expectCreate(mock sqlmock.Sqlmock, owner, recordType string) {
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs(
			sqlmock.AnyArg(), // application ID (UUID)
			recordType,
			owner,
			"started",
			testNow,
			sqlmock.AnyArg(), // intake JSON
			testNow,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO state_change_events`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), recordType, nil, "started",
			owner, "system", nil, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	handler, mock := newTestHandler(t)
	expectNoOpenApplication(mock, "shop-1", "partner")
	expectCreate(mock, "shop-1", "partner")

	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.NotEmpty(t, output.ApplicationID)
	assert.Equal(t, "started", output.ApplicationStatus)
	assert.Equal(t, "2026-03-02T14:30:00Z", output.CreatedAt)
}

func TestHandler_Execute_CreateAndSubmit(t *testing.T) {
	handler, mock := newTestHandler(t)
	expectNoOpenApplication(mock, "shop-1", "partner")
	expectCreate(mock, "shop-1", "partner")

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE id`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(appColumns).
			AddRow("app-1", "partner", "shop-1", "started", testNow, []byte(`{}`), testNow))
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE applications SET status`).
		WithArgs("submitted", testNow, "app-1", "started").
		WillReturnRows(sqlmock.NewRows([]string{"status_updated_at"}).AddRow(testNow))
	mock.ExpectExec(`INSERT INTO state_change_events`).
		WithArgs(sqlmock.AnyArg(), "app-1", "partner", "started", "submitted",
			"shop-1", "system", nil, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	input := createTestInput()
	input.Submit = true
	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "submitted", output.ApplicationStatus)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_DuplicateApplication(t *testing.T) {
	handler, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("shop-1", "partner", "approved", "rejected").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := handler.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrDuplicateApplication))

	bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
	assert.Equal(t, "DUPLICATE_APPLICATION", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)
}

func TestHandler_Execute_InsertFailureIsRetryable(t *testing.T) {
	handler, mock := newTestHandler(t)
	expectNoOpenApplication(mock, "shop-1", "partner")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO applications`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := handler.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrDatabaseInsertFailed))
	assert.Equal(t, 3, apperrors.ConvertToBPMNError(apperrors.Normalize(err)).Retries)
}

func TestHandler_Execute_InvalidApplicationType(t *testing.T) {
	handler, _ := newTestHandler(t)

	input := createTestInput()
	input.ApplicationType = "alumni"
	_, err := handler.Execute(context.Background(), input)

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidRecordType))
}

func TestHandler_Execute_ActorMayNotOpenForOthers(t *testing.T) {
	handler, _ := newTestHandler(t)

	input := createTestInput()
	input.ActorID = "shop-2"
	input.ActorRole = "partner"
	_, err := handler.Execute(context.Background(), input)

	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrUnauthorized))
}

package main

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/notify"
	"admissions-workflow/internal/workflow"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

const appID = "0b6f1c1e-7a2d-4e58-9c3b-2f8d4a6e5b10"

var (
	appCols   = []string{"id", "application_type", "owner_id", "status", "status_updated_at", "intake", "created_at"}
	eventCols = []string{"seq", "id", "application_id", "application_type", "from_state", "to_state",
		"actor_id", "actor_role", "reason", "created_at"}
)

type harness struct {
	mock  sqlmock.Sqlmock
	redis *miniredis.Miniredis
	out   *bytes.Buffer
	open  opener
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		rdb.Close()
		db.Close()
	})

	h := &harness{mock: mock, redis: mr, out: &bytes.Buffer{}}
	h.open = func(context.Context) (*env, error) {
		return &env{db: db, redis: rdb, log: logger.NewTestLogger(t), out: h.out}, nil
	}
	return h
}

func (h *harness) run(args ...string) error {
	root := newRootCmd(h.open)
	root.SetOut(h.out)
	root.SetErr(h.out)
	root.SetArgs(args)
	return root.Execute()
}

func (h *harness) expectApplication(id string, status models.Status) {
	h.mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appCols).
			AddRow(id, "student", "stu-1", string(status), testNow, []byte(`{}`), testNow))
}

func (h *harness) expectEvents(id string, rows ...[]driver.Value) {
	r := sqlmock.NewRows(eventCols)
	for _, row := range rows {
		r.AddRow(row...)
	}
	h.mock.ExpectQuery(`FROM state_change_events`).WithArgs(id).WillReturnRows(r)
}

func event(seq int64, from any, to string) []driver.Value {
	return []driver.Value{seq, "evt-" + to, appID, "student", from, to, "stu-1", "applicant", nil, testNow}
}

// ==========================
// Command Tests
// ==========================

func TestStatuses_PrintsEveryStatus(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("statuses"))

	for _, s := range models.AllStatuses() {
		assert.Contains(t, h.out.String(), string(s))
	}
	assert.Contains(t, h.out.String(), "NEXT (EMPLOYER)")
}

func TestStatuses_JSON(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("statuses", "--json"))

	var entries []workflow.TableEntry
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &entries))
	assert.Len(t, entries, len(models.AllStatuses()))
}

func TestHistory_ReportsChain(t *testing.T) {
	h := newHarness(t)
	h.expectApplication(appID, models.StatusSubmitted)
	h.expectEvents(appID,
		event(1, nil, "started"),
		event(2, "started", "submitted"),
	)

	require.NoError(t, h.run("history", appID))

	assert.Contains(t, h.out.String(), "submitted")
	assert.Contains(t, h.out.String(), "chain: ok")
}

func TestHistory_BrokenChain(t *testing.T) {
	h := newHarness(t)
	h.expectApplication(appID, models.StatusApproved)
	h.expectEvents(appID,
		event(1, nil, "started"),
		event(2, "in_review", "approved"),
	)

	require.NoError(t, h.run("history", appID, "--json"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	assert.Equal(t, false, out["chain_valid"])
	assert.Contains(t, out["chain_error"], "audit chain broken at event 1")
}

func TestVerify_Consistent(t *testing.T) {
	h := newHarness(t)
	h.expectApplication(appID, models.StatusSubmitted)
	h.expectEvents(appID,
		event(1, nil, "started"),
		event(2, "started", "submitted"),
	)

	require.NoError(t, h.run("verify", appID))
	assert.Contains(t, h.out.String(), appID+": ok (submitted)")
}

func TestVerify_Drift(t *testing.T) {
	h := newHarness(t)
	h.expectApplication(appID, models.StatusApproved)
	h.expectEvents(appID,
		event(1, nil, "started"),
		event(2, "started", "submitted"),
	)

	err := h.run("verify", appID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrStatusDrift))
	assert.Contains(t, h.out.String(), "DRIFT cached=approved history=submitted")
}

func TestVerify_UnknownApplication(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs("9d3e6a2b-1c4f-4b7a-8e95-0a1b2c3d4e5f").
		WillReturnRows(sqlmock.NewRows(appCols))

	err := h.run("verify", "9d3e6a2b-1c4f-4b7a-8e95-0a1b2c3d4e5f")
	assert.True(t, errors.Is(err, workflow.ErrNotFound))

	err = h.run("verify", "missing")
	assert.True(t, errors.Is(err, workflow.ErrNotFound))
}

func TestReadiness_ListsOutstanding(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`FROM onboarding_items WHERE subject_id`).
		WithArgs("shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject_id", "subject_kind", "document_type", "required",
			"storage_key", "file_name", "content_type", "size_bytes", "uploaded_at", "uploaded_by",
			"approved_at", "approved_by", "superseded_at", "superseded_by", "created_at"}).
			AddRow("item-1", "shop-1", "partner", "shop_license", true,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, testNow))

	require.NoError(t, h.run("readiness", "shop-1"))

	assert.Contains(t, h.out.String(), "subject shop-1 ready: false")
	assert.Contains(t, h.out.String(), "Shop license")
}

func TestDeadLetters_ListsNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: h.redis.Addr()})
	defer rdb.Close()
	letters := notify.NewDeadLetters(rdb, defaultDeadLetterKey)
	require.NoError(t, letters.Push(ctx, models.Notification{ID: "n-1", ApplicationID: "app-1", Channel: models.ChannelEmail}))
	require.NoError(t, letters.Push(ctx, models.Notification{ID: "n-2", ApplicationID: "app-2", Channel: models.ChannelSMS}))

	require.NoError(t, h.run("dead-letters", "--limit", "1", "--json"))

	var out []models.Notification
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "n-2", out[0].ID)
}

func TestWorkers_ShowsRetryBudget(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("workers"))

	assert.Contains(t, h.out.String(), "transition-application-status")
	assert.Contains(t, h.out.String(), "CONCURRENT_MODIFICATION (x1)")
	assert.Contains(t, h.out.String(), "DATABASE_QUERY_FAILED (x3)")
}

// internal/repository/applications.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"
)

var _ workflow.Store = (*Repository)(nil)

const applicationColumns = `id, application_type, owner_id, status, status_updated_at, intake, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app                models.Application
		recordType, status string
		intake             []byte
	)
	if err := row.Scan(&app.ID, &recordType, &app.OwnerID, &status, &app.StatusUpdatedAt, &intake, &app.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if app.Type, err = models.ParseRecordType(recordType); err != nil {
		return nil, err
	}
	if app.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	if len(intake) > 0 {
		if err := json.Unmarshal(intake, &app.Intake); err != nil {
			return nil, fmt.Errorf("decode intake of %s: %w", app.ID, err)
		}
	}
	app.StatusUpdatedAt = app.StatusUpdatedAt.UTC()
	app.CreatedAt = app.CreatedAt.UTC()
	return &app, nil
}

func (r *Repository) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	app, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	case isDomainError(err):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: get application %s: %v", workflow.ErrDatabaseQueryFailed, id, err)
	}
	return app, nil
}

// HasOpenApplication reports whether owner has a non-terminal application of
// the given type.
func (r *Repository) HasOpenApplication(ctx context.Context, ownerID string, recordType models.RecordType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM applications
			WHERE owner_id = $1 AND application_type = $2 AND status NOT IN ($3, $4)
		)`, ownerID, string(recordType), string(models.StatusApproved), string(models.StatusRejected)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: duplicate check failed: %v", workflow.ErrDatabaseQueryFailed, err)
	}
	return exists, nil
}

// CreateApplication inserts the record and its creation event together.
func (r *Repository) CreateApplication(ctx context.Context, app models.Application, event models.StateChangeEvent) error {
	intake, err := json.Marshal(app.Intake)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal intake: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	if app.Intake == nil {
		intake = []byte("{}")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: start transaction: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applications (
			id, application_type, owner_id, status, status_updated_at, intake, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID,
		string(app.Type),
		app.OwnerID,
		string(app.Status),
		app.StatusUpdatedAt,
		intake,
		app.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert application: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit application: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	return nil
}

// ApplyTransition moves the cached status and appends the audit event in one
// transaction. The UPDATE only matches while the stored status still equals
// the event's from_state. The event is stamped no earlier than the previous
// status change, so a writer with a lagging clock cannot reorder history.
func (r *Repository) ApplyTransition(ctx context.Context, event models.StateChangeEvent) error {
	if event.FromState == nil {
		return fmt.Errorf("%w: transition event %s has no from_state", workflow.ErrDatabaseInsertFailed, event.ID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: start transaction: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var stamped time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE applications SET status = $1, status_updated_at = GREATEST($2, status_updated_at)
		WHERE id = $3 AND status = $4
		RETURNING status_updated_at`,
		string(event.ToState), event.CreatedAt, event.ApplicationID, string(*event.FromState)).Scan(&stamped)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: application %s is no longer %s", workflow.ErrConcurrentModification, event.ApplicationID, *event.FromState)
	}
	if err != nil {
		return fmt.Errorf("%w: update status: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	event.CreatedAt = stamped.UTC()

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transition: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event models.StateChangeEvent) error {
	var from any
	if event.FromState != nil {
		from = string(*event.FromState)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO state_change_events (
			id, application_id, application_type, from_state, to_state,
			actor_id, actor_role, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID,
		event.ApplicationID,
		string(event.RecordType),
		from,
		string(event.ToState),
		event.ActorID,
		string(event.ActorRole),
		nullable(event.Reason),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert state change event: %v", workflow.ErrDatabaseInsertFailed, err)
	}
	return nil
}

// ListEvents returns the application's events in write order. Transitions on
// one application serialize on its row, so seq is that order.
func (r *Repository) ListEvents(ctx context.Context, applicationID string) ([]models.StateChangeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, application_id, application_type, from_state, to_state,
		       actor_id, actor_role, reason, created_at
		FROM state_change_events
		WHERE application_id = $1
		ORDER BY seq`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", workflow.ErrDatabaseQueryFailed, err)
	}
	defer rows.Close()

	var events []models.StateChangeEvent
	for rows.Next() {
		var (
			ev                   models.StateChangeEvent
			recordType, to, role string
			from, reason         sql.NullString
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.ApplicationID, &recordType, &from, &to,
			&ev.ActorID, &role, &reason, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", workflow.ErrDatabaseQueryFailed, err)
		}
		ev.RecordType = models.RecordType(recordType)
		ev.ActorRole = models.Role(role)
		ev.Reason = reason.String
		ev.CreatedAt = ev.CreatedAt.UTC()
		if ev.ToState, err = models.ParseStatus(to); err != nil {
			return nil, err
		}
		if from.Valid {
			s, err := models.ParseStatus(from.String)
			if err != nil {
				return nil, err
			}
			ev.FromState = &s
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list events: %v", workflow.ErrDatabaseQueryFailed, err)
	}
	return events, nil
}

// ListApplications returns one page of the admin queue, newest first, with
// the per-status and per-type counts over all applications.
func (r *Repository) ListApplications(ctx context.Context, filter models.ApplicationFilter) (*models.ApplicationPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}

	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		where = append(where, fmt.Sprintf("application_type = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	result := &models.ApplicationPage{
		Applications: []models.Application{},
		Page:         page,
		PageSize:     models.QueuePageSize,
		ByStatus:     map[models.Status]int{},
		ByType:       map[models.RecordType]int{},
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`+clause, args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("%w: count applications: %v", workflow.ErrDatabaseQueryFailed, err)
	}

	pageArgs := append(append([]any{}, args...), models.QueuePageSize, (page-1)*models.QueuePageSize)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT `+applicationColumns+` FROM applications%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		clause, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: list applications: %v", workflow.ErrDatabaseQueryFailed, err)
	}
	defer rows.Close()
	for rows.Next() {
		app, err := scanApplication(rows)
		if isDomainError(err) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: scan application: %v", workflow.ErrDatabaseQueryFailed, err)
		}
		result.Applications = append(result.Applications, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list applications: %v", workflow.ErrDatabaseQueryFailed, err)
	}

	if err := r.countBy(ctx, "status", func(k string, n int) { result.ByStatus[models.Status(k)] = n }); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "application_type", func(k string, n int) { result.ByType[models.RecordType(k)] = n }); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) countBy(ctx context.Context, column string, add func(string, int)) error {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM applications GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("%w: count by %s: %v", workflow.ErrDatabaseQueryFailed, column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("%w: count by %s: %v", workflow.ErrDatabaseQueryFailed, column, err)
		}
		add(key, n)
	}
	return rows.Err()
}

// Package repository is the Postgres persistence layer for applications,
// their audit events and onboarding checklists.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "admissions-workflow/internal/common/errors"
)

// Repository implements workflow.Store and onboarding.Store on one *sql.DB.
type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// isDomainError reports whether err already carries an error code, e.g. a
// stored status outside the closed set.
func isDomainError(err error) bool {
	var se *apperrors.StandardError
	return errors.As(err, &se)
}

// validID reports whether id can name a row; ids are UUID columns and
// Postgres rejects any other text with a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// internal/workflow/history.go
package workflow

import (
	"context"
	"fmt"

	"admissions-workflow/internal/models"
)

// EventReader is the read side of Store used for history.
type EventReader interface {
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListEvents(ctx context.Context, applicationID string) ([]models.StateChangeEvent, error)
}

// Reader reconstructs application history from the audit log exactly as it
// was written.
type Reader struct {
	store EventReader
}

func NewReader(store EventReader) *Reader {
	return &Reader{store: store}
}

// History returns the events of an application in write order, which is also
// ascending created_at. Unknown applications are ErrNotFound.
func (r *Reader) History(ctx context.Context, applicationID string) ([]models.StateChangeEvent, error) {
	if _, err := r.store.GetApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return r.store.ListEvents(ctx, applicationID)
}

// VerifyChain checks that events start with the creation event and that every
// later event departs from the status the previous one arrived at.
func VerifyChain(events []models.StateChangeEvent) error {
	for i, ev := range events {
		if i == 0 {
			if ev.FromState != nil {
				return &ChainError{Index: 0, Expected: nil, Got: ev.FromState}
			}
			continue
		}
		prev := events[i-1].ToState
		if ev.FromState == nil || *ev.FromState != prev {
			return &ChainError{Index: i, Expected: &prev, Got: ev.FromState}
		}
	}
	return nil
}

// Fold replays a verified history and returns the status it ends in.
func Fold(events []models.StateChangeEvent) (models.Status, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("%w: no events recorded", ErrAuditChainCorrupted)
	}
	if err := VerifyChain(events); err != nil {
		return "", err
	}
	return events[len(events)-1].ToState, nil
}

// Reconcile folds an application's history and compares the result with its
// cached status.
func (r *Reader) Reconcile(ctx context.Context, applicationID string) (models.Status, error) {
	app, err := r.store.GetApplication(ctx, applicationID)
	if err != nil {
		return "", err
	}
	events, err := r.store.ListEvents(ctx, applicationID)
	if err != nil {
		return "", err
	}
	derived, err := Fold(events)
	if err != nil {
		return "", err
	}
	if derived != app.Status {
		return derived, &DriftError{ApplicationID: app.ID, Cached: app.Status, Derived: derived}
	}
	return derived, nil
}

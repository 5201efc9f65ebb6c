// internal/onboarding/gate.go
package onboarding

import (
	"context"
	"fmt"
	"time"

	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/models"

	"github.com/google/uuid"
)

// Store persists onboarding items. Conditional writes report whether a row
// matched instead of failing, so the gate can tell the caller why.
type Store interface {
	// ListItems returns every item of the subject, superseded ones included,
	// oldest first.
	ListItems(ctx context.Context, subjectID string) ([]models.OnboardingItem, error)
	GetItem(ctx context.Context, itemID string) (*models.OnboardingItem, error)
	// InsertItems skips items whose document type already has a current
	// (non-superseded) item for the subject.
	InsertItems(ctx context.Context, items []models.OnboardingItem) error
	// ApproveItem sets the approval fields of an uploaded, unapproved,
	// current item.
	ApproveItem(ctx context.Context, itemID, approverID string, at time.Time) (bool, error)
	// FillUpload records an upload on a current item that has none yet.
	FillUpload(ctx context.Context, item models.OnboardingItem) (bool, error)
	// SupersedeAndInsert marks previousID superseded by next and inserts next
	// in one transaction.
	SupersedeAndInsert(ctx context.Context, previousID string, next models.OnboardingItem) (bool, error)
}

// Gate aggregates a subject's checklist into a readiness decision.
type Gate struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewGate(store Store, log logger.Logger) *Gate {
	return &Gate{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "onboarding.gate"}),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// OpenChecklist seeds the catalog items for kind. Calling it again only adds
// entries that are missing.
func (g *Gate) OpenChecklist(ctx context.Context, subjectID string, kind models.RecordType) ([]models.OnboardingItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRecordType, kind)
	}

	now := g.now().UTC()
	var items []models.OnboardingItem
	for _, entry := range models.Checklist(kind) {
		items = append(items, models.OnboardingItem{
			ID:           g.newID(),
			SubjectID:    subjectID,
			SubjectKind:  kind,
			DocumentType: entry.DocumentType,
			Required:     entry.Required,
			CreatedAt:    now,
		})
	}
	if err := g.store.InsertItems(ctx, items); err != nil {
		return nil, err
	}
	return g.Items(ctx, subjectID)
}

// Items returns the subject's current items.
func (g *Gate) Items(ctx context.Context, subjectID string) ([]models.OnboardingItem, error) {
	all, err := g.store.ListItems(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return current(all), nil
}

func current(items []models.OnboardingItem) []models.OnboardingItem {
	out := make([]models.OnboardingItem, 0, len(items))
	for _, item := range items {
		if !item.Superseded() {
			out = append(out, item)
		}
	}
	return out
}

// IsReady is true iff every current required item of the subject is approved.
func (g *Gate) IsReady(ctx context.Context, subjectID string) (models.Readiness, error) {
	items, err := g.Items(ctx, subjectID)
	if err != nil {
		return models.Readiness{}, err
	}
	return evaluate(subjectID, items), nil
}

// IsReadyFor is IsReady restricted to the document types in kind's catalog,
// so an owner's checklist for one record type does not gate another.
func (g *Gate) IsReadyFor(ctx context.Context, subjectID string, kind models.RecordType) (models.Readiness, error) {
	if !kind.Valid() {
		return models.Readiness{}, fmt.Errorf("%w: %q", models.ErrInvalidRecordType, kind)
	}
	items, err := g.Items(ctx, subjectID)
	if err != nil {
		return models.Readiness{}, err
	}
	catalog := map[models.DocumentType]bool{}
	for _, entry := range models.Checklist(kind) {
		catalog[entry.DocumentType] = true
	}
	scoped := make([]models.OnboardingItem, 0, len(items))
	for _, item := range items {
		if catalog[item.DocumentType] {
			scoped = append(scoped, item)
		}
	}
	return evaluate(subjectID, scoped), nil
}

func evaluate(subjectID string, items []models.OnboardingItem) models.Readiness {
	r := models.Readiness{SubjectID: subjectID, Outstanding: []models.OutstandingItem{}}
	for _, item := range items {
		if item.Required && !item.Satisfied() {
			r.Outstanding = append(r.Outstanding, models.OutstandingItem{
				ItemID:       item.ID,
				DocumentType: item.DocumentType,
				Label:        item.DocumentType.Label(),
				Uploaded:     item.Uploaded(),
			})
		}
	}
	r.Ready = len(r.Outstanding) == 0
	return r
}

// RequireReady returns an *IncompletePrerequisitesError naming the outstanding
// items when the subject is not ready.
func (g *Gate) RequireReady(ctx context.Context, subjectID string) error {
	r, err := g.IsReady(ctx, subjectID)
	if err != nil {
		return err
	}
	if !r.Ready {
		return &IncompletePrerequisitesError{SubjectID: subjectID, Outstanding: r.Outstanding}
	}
	return nil
}

// RequireApplicationReady gates an application on its owner's checklist for
// the application's record type. The checklist is opened first so an owner
// who never started onboarding is not vacuously ready.
func (g *Gate) RequireApplicationReady(ctx context.Context, app models.Application) error {
	if _, err := g.OpenChecklist(ctx, app.OwnerID, app.Type); err != nil {
		return err
	}
	r, err := g.IsReadyFor(ctx, app.OwnerID, app.Type)
	if err != nil {
		return err
	}
	if !r.Ready {
		return &IncompletePrerequisitesError{SubjectID: app.OwnerID, Outstanding: r.Outstanding}
	}
	return nil
}

// ApproveItem records approverID's approval. Approval is append-once: an
// approved or superseded item cannot be approved again.
func (g *Gate) ApproveItem(ctx context.Context, itemID, approverID string) (*models.OnboardingItem, error) {
	item, err := g.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := approvable(*item); err != nil {
		return nil, err
	}

	now := g.now().UTC()
	ok, err := g.store.ApproveItem(ctx, itemID, approverID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another approval or a re-upload.
		latest, err := g.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if err := approvable(*latest); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: item %s", ErrConcurrentUpload, itemID)
	}

	item.ApprovedAt = &now
	item.ApprovedBy = approverID
	g.logger.Info("onboarding item approved", map[string]interface{}{
		"itemId":       item.ID,
		"subjectId":    item.SubjectID,
		"documentType": string(item.DocumentType),
		"approvedBy":   approverID,
	})
	return item, nil
}

func approvable(item models.OnboardingItem) error {
	switch {
	case item.Superseded():
		return fmt.Errorf("%w: item %s superseded by %s", ErrItemSuperseded, item.ID, item.SupersededBy)
	case item.Satisfied():
		return fmt.Errorf("%w: item %s approved by %s", ErrAlreadyApproved, item.ID, item.ApprovedBy)
	case !item.Uploaded():
		return fmt.Errorf("%w: item %s (%s)", ErrNotUploaded, item.ID, item.DocumentType)
	}
	return nil
}

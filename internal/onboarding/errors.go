// internal/onboarding/errors.go
package onboarding

import (
	"fmt"
	"strings"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/models"
)

var (
	ErrItemNotFound            = apperrors.Sentinel(apperrors.ErrCodeNotFound, "onboarding item not found")
	ErrChecklistNotFound       = apperrors.Sentinel(apperrors.ErrCodeNotFound, "no onboarding checklist for subject")
	ErrIncompletePrerequisites = apperrors.Sentinel(apperrors.ErrCodeIncompletePrerequisites, "required onboarding documents are not approved")
	ErrAlreadyApproved         = apperrors.Sentinel(apperrors.ErrCodeAlreadyApproved, "item is already approved")
	ErrItemSuperseded          = apperrors.Sentinel(apperrors.ErrCodeItemSuperseded, "item was replaced by a newer upload")
	ErrNotUploaded             = apperrors.Sentinel(apperrors.ErrCodeNotUploaded, "nothing has been uploaded for this item")
	ErrInvalidDocument         = apperrors.Sentinel(apperrors.ErrCodeInvalidDocument, "document rejected")
	ErrRateLimited             = apperrors.Sentinel(apperrors.ErrCodeRateLimited, "too many uploads; try again shortly")
	ErrStorageFailed           = apperrors.Sentinel(apperrors.ErrCodeStorageFailed, "document storage failed")
	ErrConcurrentUpload        = apperrors.Sentinel(apperrors.ErrCodeConcurrentModification, "checklist item changed during upload; retry")
	ErrDatabaseQueryFailed     = apperrors.Sentinel(apperrors.ErrCodeDatabaseQueryFailed, "database query failed")
	ErrDatabaseInsertFailed    = apperrors.Sentinel(apperrors.ErrCodeDatabaseInsertFailed, "database write failed")
)

// IncompletePrerequisitesError lists the required items that block a gated
// action.
type IncompletePrerequisitesError struct {
	SubjectID   string
	Outstanding []models.OutstandingItem
}

func (e *IncompletePrerequisitesError) Error() string {
	names := make([]string, len(e.Outstanding))
	for i, o := range e.Outstanding {
		names[i] = string(o.DocumentType)
	}
	return fmt.Sprintf("subject %s has %d outstanding required document(s): %s",
		e.SubjectID, len(e.Outstanding), strings.Join(names, ", "))
}

func (e *IncompletePrerequisitesError) Unwrap() error { return ErrIncompletePrerequisites }

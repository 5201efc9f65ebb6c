// internal/workflow/errors.go
package workflow

import (
	"fmt"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/models"
)

var (
	ErrNotFound               = apperrors.Sentinel(apperrors.ErrCodeNotFound, "application not found")
	ErrInvalidTransition      = apperrors.Sentinel(apperrors.ErrCodeInvalidTransition, "transition not allowed from the current status")
	ErrUnauthorized           = apperrors.Sentinel(apperrors.ErrCodeUnauthorized, "not authorized to apply this transition")
	ErrMissingReason          = apperrors.Sentinel(apperrors.ErrCodeMissingReason, "a reason is required for administrative transitions")
	ErrConcurrentModification = apperrors.Sentinel(apperrors.ErrCodeConcurrentModification, "application status changed; refresh and try again")
	ErrDuplicateApplication   = apperrors.Sentinel(apperrors.ErrCodeDuplicateApplication, "an open application of this type already exists")
	ErrApplicationValidation  = apperrors.Sentinel(apperrors.ErrCodeApplicationValidationFailed, "application intake is invalid")
	ErrAuditChainCorrupted    = apperrors.Sentinel(apperrors.ErrCodeAuditChainCorrupted, "audit history is inconsistent")
	ErrStatusDrift            = apperrors.Sentinel(apperrors.ErrCodeStatusDrift, "cached status disagrees with audit history")
	ErrDatabaseQueryFailed    = apperrors.Sentinel(apperrors.ErrCodeDatabaseQueryFailed, "database query failed")
	ErrDatabaseInsertFailed   = apperrors.Sentinel(apperrors.ErrCodeDatabaseInsertFailed, "database write failed")
)

// ChainError reports the first event whose from_state does not continue the
// chain. Expected is nil when the event should have been the creation event.
type ChainError struct {
	Index    int
	Expected *models.Status
	Got      *models.Status
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at event %d: expected from_state %s, got %s",
		e.Index, statusOrNull(e.Expected), statusOrNull(e.Got))
}

func (e *ChainError) Unwrap() error { return ErrAuditChainCorrupted }

// DriftError reports an application whose cached status differs from the fold
// of its history.
type DriftError struct {
	ApplicationID string
	Cached        models.Status
	Derived       models.Status
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("application %s: cached status %s, history folds to %s",
		e.ApplicationID, e.Cached, e.Derived)
}

func (e *DriftError) Unwrap() error { return ErrStatusDrift }

func statusOrNull(s *models.Status) string {
	if s == nil {
		return "null"
	}
	return string(*s)
}

// internal/workers/application/check-onboarding-readiness/models.go
package checkonboardingreadiness

import "admissions-workflow/internal/models"

type Input struct {
	SubjectID string `json:"subjectId"`
	// SubjectKind, when set, opens the subject's checklist first so a
	// subject with no items is not reported ready.
	SubjectKind string `json:"subjectKind,omitempty"`
}

type Output struct {
	SubjectID        string                   `json:"subjectId"`
	Ready            bool                     `json:"onboardingReady"`
	Outstanding      []models.OutstandingItem `json:"outstandingItems"`
	OutstandingCount int                      `json:"outstandingCount"`
}

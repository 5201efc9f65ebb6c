// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	apperrors "admissions-workflow/internal/common/errors"
)

// LoadRegistry reads a registry exported with `workflowctl workers --json`.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &reg, nil
}

// Validate rejects empty and duplicate task types.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for i, a := range r.Activities {
		if a.TaskType == "" {
			return fmt.Errorf("activity %d has no taskType", i)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate taskType %q", a.TaskType)
		}
		seen[a.TaskType] = true
	}
	return nil
}

// Find returns the activity for taskType.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// Retries returns how often the engine retries a job failing with code.
func Retries(code string) int {
	return apperrors.GetRetryCount(apperrors.ErrorCode(code))
}

func codes(cs ...apperrors.ErrorCode) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Default describes the job workers the workflow server runs.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1",
		Activities: []Activity{
			{
				TaskType:        "create-application-record",
				DisplayName:     "Create application record",
				Description:     "Opens an application in its initial status, optionally submitting it in the same step.",
				InputVariables:  []string{"applicationType", "ownerId", "intake", "submit", "actorId", "actorRole"},
				OutputVariables: []string{"applicationId", "applicationStatus", "createdAt"},
				ErrorCodes: codes(
					apperrors.ErrCodeInvalidRecordType,
					apperrors.ErrCodeApplicationValidationFailed,
					apperrors.ErrCodeDuplicateApplication,
					apperrors.ErrCodeUnauthorized,
					apperrors.ErrCodeDatabaseInsertFailed,
				),
				Timeout: "10s",
			},
			{
				TaskType:        "transition-application-status",
				DisplayName:     "Transition application status",
				Description:     "Moves an application to a new status through the transition executor.",
				InputVariables:  []string{"applicationId", "applicationType", "newState", "actorId", "actorRole", "reason", "surface"},
				OutputVariables: []string{"applicationId", "applicationStatus", "statusLabel", "statusUpdatedAt", "terminal"},
				ErrorCodes: codes(
					apperrors.ErrCodeInvalidStatus,
					apperrors.ErrCodeInvalidTransition,
					apperrors.ErrCodeMissingReason,
					apperrors.ErrCodeUnauthorized,
					apperrors.ErrCodeNotFound,
					apperrors.ErrCodeIncompletePrerequisites,
					apperrors.ErrCodeConcurrentModification,
					apperrors.ErrCodeDatabaseInsertFailed,
				),
				Timeout: "10s",
			},
			{
				TaskType:        "check-onboarding-readiness",
				DisplayName:     "Check onboarding readiness",
				Description:     "Reports whether every required onboarding document of a subject is approved.",
				InputVariables:  []string{"subjectId", "subjectKind"},
				OutputVariables: []string{"subjectId", "onboardingReady", "outstandingItems", "outstandingCount"},
				ErrorCodes: codes(
					apperrors.ErrCodeInvalidInput,
					apperrors.ErrCodeInvalidRecordType,
					apperrors.ErrCodeDatabaseQueryFailed,
				),
				Timeout: "5s",
			},
		},
	}
}

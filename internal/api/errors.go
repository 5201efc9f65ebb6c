// internal/api/errors.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/onboarding"
)

type apiErrorBody struct {
	Code    string         `json:"code" example:"INVALID_TRANSITION"`
	Message string         `json:"message" example:"transition not allowed from the current status"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the {error:{code,message,details}} envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(apperrors.ErrCodeInvalidInput)
	case http.StatusUnauthorized:
		return string(apperrors.ErrCodeUnauthenticated)
	case http.StatusForbidden:
		return string(apperrors.ErrCodeUnauthorized)
	case http.StatusNotFound:
		return string(apperrors.ErrCodeNotFound)
	case http.StatusInternalServerError:
		return string(apperrors.ErrCodeInternal)
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// statusFor maps an error code onto its HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeMissingReason,
		apperrors.ErrCodeInvalidStatus,
		apperrors.ErrCodeInvalidRecordType,
		apperrors.ErrCodeApplicationValidationFailed,
		apperrors.ErrCodeInvalidDocument,
		apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeUnauthorized:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidTransition,
		apperrors.ErrCodeConcurrentModification,
		apperrors.ErrCodeDuplicateApplication,
		apperrors.ErrCodeAlreadyApproved,
		apperrors.ErrCodeItemSuperseded,
		apperrors.ErrCodeNotUploaded:
		return http.StatusConflict
	case apperrors.ErrCodeIncompletePrerequisites:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeStorageFailed, apperrors.ErrCodeSearchQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleError converts a domain error into the envelope. Server-side failures
// are logged and their details withheld from the caller.
func handleError(log logger.Logger, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	se := apperrors.Normalize(err)
	status := statusFor(se.Code)

	details := map[string]any{}
	var incomplete *onboarding.IncompletePrerequisitesError
	if errors.As(err, &incomplete) {
		details["subject_id"] = incomplete.SubjectID
		details["outstanding"] = incomplete.Outstanding
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", map[string]interface{}{
			"errorCode":     string(se.Code),
			"errorCategory": apperrors.GetErrorCategory(se.Code),
			"error":         err,
		})
	} else {
		details["reason"] = err.Error()
	}
	if len(details) == 0 {
		details = nil
	}
	return newAPIError(status, string(se.Code), se.Message, details)
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

// internal/models/status.go
package models

import (
	"fmt"

	apperrors "admissions-workflow/internal/common/errors"
)

var (
	ErrInvalidStatus     = apperrors.Sentinel(apperrors.ErrCodeInvalidStatus, "unknown status")
	ErrInvalidRecordType = apperrors.Sentinel(apperrors.ErrCodeInvalidRecordType, "unknown application type")
)

// Status is the closed set of application states. The zero value is not a
// valid status.
type Status string

const (
	StatusStarted             Status = "started"
	StatusSubmitted           Status = "submitted"
	StatusPending             Status = "pending"
	StatusInReview            Status = "in_review"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusEligibilityComplete Status = "eligibility_complete"
	StatusDocumentsComplete   Status = "documents_complete"
	StatusReviewReady         Status = "review_ready"
)

var allStatuses = []Status{
	StatusStarted,
	StatusEligibilityComplete,
	StatusDocumentsComplete,
	StatusReviewReady,
	StatusSubmitted,
	StatusPending,
	StatusInReview,
	StatusApproved,
	StatusRejected,
}

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusSubmitted, StatusPending, StatusInReview, StatusApproved,
		StatusRejected, StatusEligibilityComplete, StatusDocumentsComplete, StatusReviewReady:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts exactly the wire strings of the closed set.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// RecordType distinguishes the application pipelines.
type RecordType string

const (
	RecordTypeStudent  RecordType = "student"
	RecordTypePartner  RecordType = "partner"
	RecordTypeEmployer RecordType = "employer"
)

// AllRecordTypes returns every record type.
func AllRecordTypes() []RecordType {
	return []RecordType{RecordTypeStudent, RecordTypePartner, RecordTypeEmployer}
}

func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeStudent, RecordTypePartner, RecordTypeEmployer:
		return true
	}
	return false
}

func ParseRecordType(raw string) (RecordType, error) {
	t := RecordType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecordType, raw)
	}
	return t, nil
}

// Role is the role claim carried by the acting user's token.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleStaff      Role = "staff"
	RoleStudent    Role = "student"
	RolePartner    Role = "partner"
	RoleEmployer   Role = "employer"
	// RoleSystem is used by the job workers when a process model drives a
	// self-service submission on the owner's behalf.
	RoleSystem Role = "system"
)

// Actor identifies whoever triggers a change.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

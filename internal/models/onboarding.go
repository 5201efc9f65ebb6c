// internal/models/onboarding.go
package models

import (
	"fmt"
	"time"

	apperrors "admissions-workflow/internal/common/errors"
)

var ErrInvalidDocumentType = apperrors.Sentinel(apperrors.ErrCodeInvalidDocument, "unknown document type")

// DocumentType is a member of the fixed onboarding document catalog.
type DocumentType string

const (
	DocGovernmentID           DocumentType = "government_id"
	DocPhotoID                DocumentType = "photo_id"
	DocProofOfEligibility     DocumentType = "proof_of_eligibility"
	DocResume                 DocumentType = "resume"
	DocSchoolTranscript       DocumentType = "school_transcript"
	DocCertificate            DocumentType = "certificate"
	DocOutOfStateLicense      DocumentType = "out_of_state_license"
	DocShopLicense            DocumentType = "shop_license"
	DocBarberLicense          DocumentType = "barber_license"
	DocEmploymentVerification DocumentType = "employment_verification"
	DocCECertificate          DocumentType = "ce_certificate"
	DocBusinessLicense        DocumentType = "business_license"
	DocW9                     DocumentType = "w9"
	DocOther                  DocumentType = "other"
)

var documentCatalog = map[DocumentType]string{
	DocGovernmentID:           "Government-issued ID",
	DocPhotoID:                "Photo ID",
	DocProofOfEligibility:     "Proof of eligibility",
	DocResume:                 "Resume",
	DocSchoolTranscript:       "School transcript",
	DocCertificate:            "Certificate",
	DocOutOfStateLicense:      "Out-of-state license",
	DocShopLicense:            "Shop license",
	DocBarberLicense:          "Barber license",
	DocEmploymentVerification: "Employment verification",
	DocCECertificate:          "Continuing education certificate",
	DocBusinessLicense:        "Business license",
	DocW9:                     "W-9",
	DocOther:                  "Other",
}

func (d DocumentType) Label() string {
	if label, ok := documentCatalog[d]; ok {
		return label
	}
	return string(d)
}

func ParseDocumentType(raw string) (DocumentType, error) {
	d := DocumentType(raw)
	if _, ok := documentCatalog[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, raw)
	}
	return d, nil
}

// ChecklistEntry is one catalog line seeded into a subject's checklist.
type ChecklistEntry struct {
	DocumentType DocumentType
	Required     bool
}

// Checklist returns the documents a subject of the given kind is asked for.
func Checklist(kind RecordType) []ChecklistEntry {
	switch kind {
	case RecordTypeStudent:
		return []ChecklistEntry{
			{DocumentType: DocGovernmentID, Required: true},
			{DocumentType: DocProofOfEligibility},
			{DocumentType: DocResume},
		}
	case RecordTypePartner:
		return []ChecklistEntry{
			{DocumentType: DocShopLicense, Required: true},
			{DocumentType: DocBarberLicense, Required: true},
		}
	case RecordTypeEmployer:
		return []ChecklistEntry{
			{DocumentType: DocBusinessLicense, Required: true},
			{DocumentType: DocW9, Required: true},
		}
	}
	return nil
}

// OnboardingItem is one document slot of a subject's checklist. An item is
// satisfied iff ApprovedAt is set; superseded items are kept for history but
// no longer count.
type OnboardingItem struct {
	ID           string       `json:"id"`
	SubjectID    string       `json:"subject_id"`
	SubjectKind  RecordType   `json:"subject_kind"`
	DocumentType DocumentType `json:"document_type"`
	Required     bool         `json:"required"`
	StorageKey   string       `json:"storage_key,omitempty"`
	FileName     string       `json:"file_name,omitempty"`
	ContentType  string       `json:"content_type,omitempty"`
	SizeBytes    int64        `json:"size_bytes,omitempty"`
	UploadedAt   *time.Time   `json:"uploaded_at,omitempty"`
	UploadedBy   string       `json:"uploaded_by,omitempty"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty"`
	ApprovedBy   string       `json:"approved_by,omitempty"`
	SupersededAt *time.Time   `json:"superseded_at,omitempty"`
	SupersededBy string       `json:"superseded_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (i OnboardingItem) Satisfied() bool  { return i.ApprovedAt != nil }
func (i OnboardingItem) Uploaded() bool   { return i.UploadedAt != nil }
func (i OnboardingItem) Superseded() bool { return i.SupersededAt != nil }

// OutstandingItem names a required document that is not yet approved.
type OutstandingItem struct {
	ItemID       string       `json:"item_id"`
	DocumentType DocumentType `json:"document_type"`
	Label        string       `json:"label"`
	Uploaded     bool         `json:"uploaded"`
}

// Readiness is the aggregated gate result for a subject.
type Readiness struct {
	SubjectID   string            `json:"subject_id"`
	Ready       bool              `json:"ready"`
	Outstanding []OutstandingItem `json:"outstanding"`
}

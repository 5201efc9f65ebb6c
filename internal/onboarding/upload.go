// internal/onboarding/upload.go
package onboarding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/metrics"
	"admissions-workflow/internal/models"
)

const (
	mimePDF  = "application/pdf"
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
	mimeWebP = "image/webp"
	mimeDOC  = "application/msword"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	DefaultMaxUploadBytes = 10 * 1024 * 1024
	resumeMaxUploadBytes  = 5 * 1024 * 1024
	maxFileNameLength     = 100
)

var extensionsByMIME = map[string][]string{
	mimePDF:  {"pdf"},
	mimeJPEG: {"jpg", "jpeg"},
	mimePNG:  {"png"},
	mimeWebP: {"webp"},
	mimeDOC:  {"doc"},
	mimeDOCX: {"docx"},
}

var signatures = map[string][]byte{
	mimePDF:  {0x25, 0x50, 0x44, 0x46},
	mimeJPEG: {0xFF, 0xD8, 0xFF},
	mimePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	mimeDOC:  {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
	mimeDOCX: {0x50, 0x4B, 0x03, 0x04},
}

// ObjectStore receives the uploaded bytes.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// RateLimiter admits or refuses one event for key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// UploadRequest carries one document. SubjectKind is only consulted when the
// subject has no checklist yet.
type UploadRequest struct {
	SubjectID    string
	SubjectKind  models.RecordType
	DocumentType string
	FileName     string
	ContentType  string
	Content      []byte
	UploadedBy   string
}

// Uploader validates documents, stores them and attaches them to the
// subject's checklist.
type Uploader struct {
	store    Store
	objects  ObjectStore
	limiter  RateLimiter
	maxBytes int64
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewUploader(gate *Gate, objects ObjectStore, limiter RateLimiter, maxBytes int64, log logger.Logger) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Uploader{
		store:    gate.store,
		objects:  objects,
		limiter:  limiter,
		maxBytes: maxBytes,
		logger:   log.WithFields(map[string]interface{}{"component": "onboarding.upload"}),
		now:      gate.now,
		newID:    gate.newID,
	}
}

// Upload stores the document and returns the checklist item it now belongs
// to. A pending placeholder is filled in place; anything already uploaded or
// approved is superseded by a fresh pending item, so an approval never
// carries over to new content.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*models.OnboardingItem, error) {
	item, err := u.upload(ctx, req)
	outcome := "stored"
	if err != nil {
		outcome = "rejected"
	}
	metrics.UploadsTotal.WithLabelValues(req.DocumentType, outcome).Inc()
	return item, err
}

func (u *Uploader) upload(ctx context.Context, req UploadRequest) (*models.OnboardingItem, error) {
	if u.limiter != nil {
		allowed, err := u.limiter.Allow(ctx, "upload:"+req.UploadedBy)
		if err != nil {
			// fail open
			u.logger.Warn("rate limiter unavailable", map[string]interface{}{"error": err})
		} else if !allowed {
			return nil, fmt.Errorf("%w: user %s", ErrRateLimited, req.UploadedBy)
		}
	}

	docType, err := models.ParseDocumentType(req.DocumentType)
	if err != nil {
		return nil, err
	}
	fileName := SanitizeFileName(req.FileName)
	contentType, err := u.validateContent(docType, fileName, req.ContentType, req.Content)
	if err != nil {
		return nil, err
	}

	all, err := u.store.ListItems(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	items := current(all)
	previous, kind := findCurrent(items, docType)
	if kind == "" {
		kind = req.SubjectKind
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrChecklistNotFound, req.SubjectID)
	}

	now := u.now().UTC()
	itemID := u.newID()
	if previous != nil && !previous.Uploaded() {
		itemID = previous.ID
	}

	key := path.Join(req.SubjectID, string(docType), itemID+"."+extension(fileName))
	storedKey, err := u.objects.Put(ctx, key, contentType, bytes.NewReader(req.Content), int64(len(req.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	next := models.OnboardingItem{
		ID:           itemID,
		SubjectID:    req.SubjectID,
		SubjectKind:  kind,
		DocumentType: docType,
		Required:     requiredFor(kind, docType),
		StorageKey:   storedKey,
		FileName:     fileName,
		ContentType:  contentType,
		SizeBytes:    int64(len(req.Content)),
		UploadedAt:   &now,
		UploadedBy:   req.UploadedBy,
		CreatedAt:    now,
	}

	var ok bool
	switch {
	case previous == nil:
		ok, err = true, u.store.InsertItems(ctx, []models.OnboardingItem{next})
	case !previous.Uploaded():
		next.CreatedAt = previous.CreatedAt
		ok, err = u.store.FillUpload(ctx, next)
	default:
		ok, err = u.store.SupersedeAndInsert(ctx, previous.ID, next)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		u.logger.Warn("upload lost a race; stored object is orphaned", map[string]interface{}{
			"storageKey": storedKey,
			"subjectId":  req.SubjectID,
		})
		return nil, fmt.Errorf("%w: %s %s", ErrConcurrentUpload, req.SubjectID, docType)
	}

	fields := map[string]interface{}{
		"itemId":       next.ID,
		"subjectId":    next.SubjectID,
		"documentType": string(docType),
		"sizeBytes":    next.SizeBytes,
	}
	if previous != nil && previous.Uploaded() {
		fields["supersedes"] = previous.ID
	}
	u.logger.Info("onboarding document uploaded", fields)
	return &next, nil
}

func findCurrent(items []models.OnboardingItem, docType models.DocumentType) (*models.OnboardingItem, models.RecordType) {
	var kind models.RecordType
	for i := range items {
		kind = items[i].SubjectKind
		if items[i].DocumentType == docType {
			return &items[i], kind
		}
	}
	return nil, kind
}

func requiredFor(kind models.RecordType, docType models.DocumentType) bool {
	for _, entry := range models.Checklist(kind) {
		if entry.DocumentType == docType {
			return entry.Required
		}
	}
	return false
}

// MaxBytesFor returns the size limit for a document type.
func (u *Uploader) MaxBytesFor(docType models.DocumentType) int64 {
	if docType == models.DocResume && resumeMaxUploadBytes < u.maxBytes {
		return resumeMaxUploadBytes
	}
	return u.maxBytes
}

// validateContent returns the content type the bytes were recognised as.
func (u *Uploader) validateContent(docType models.DocumentType, fileName, declared string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrInvalidDocument)
	}
	if limit := u.MaxBytesFor(docType); int64(len(content)) > limit {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrInvalidDocument, len(content), limit)
	}

	detected := DetectContentType(content)
	if detected == "" || !allowedFor(docType, detected) {
		return "", fmt.Errorf("%w: unsupported file type for %s", ErrInvalidDocument, docType)
	}
	if declared != "" && declared != "application/octet-stream" && declared != detected {
		return "", fmt.Errorf("%w: declared %s but content is %s", ErrInvalidDocument, declared, detected)
	}

	ext := extension(fileName)
	validExt := false
	for _, allowed := range extensionsByMIME[detected] {
		if ext == allowed {
			validExt = true
			break
		}
	}
	if !validExt {
		return "", fmt.Errorf("%w: extension %q does not match %s", ErrInvalidDocument, ext, detected)
	}
	return detected, nil
}

func allowedFor(docType models.DocumentType, contentType string) bool {
	switch contentType {
	case mimePDF, mimeJPEG, mimePNG, mimeWebP:
		return true
	case mimeDOC, mimeDOCX:
		return docType == models.DocResume
	}
	return false
}

// DetectContentType identifies the allowed formats by their leading bytes.
func DetectContentType(content []byte) string {
	for mime, sig := range signatures {
		if bytes.HasPrefix(content, sig) {
			return mime
		}
	}
	if len(content) >= 12 && string(content[0:4]) == "RIFF" && string(content[8:12]) == "WEBP" {
		return mimeWebP
	}
	return ""
}

var (
	unsafeFileChars = regexp.MustCompile(`[/\\:*?"<>|\x00]`)
	dotRuns         = regexp.MustCompile(`\.{2,}`)
)

// SanitizeFileName strips path and shell metacharacters, collapses dot runs,
// drops leading dots and caps the length in characters while keeping the
// extension. The result is always valid UTF-8.
func SanitizeFileName(name string) string {
	s := strings.ToValidUTF8(name, "")
	s = unsafeFileChars.ReplaceAllString(s, "")
	s = dotRuns.ReplaceAllString(s, ".")
	s = strings.TrimLeft(s, ".")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxFileNameLength {
		ext := extension(s)
		base := string([]rune(s)[:90])
		if ext != "" {
			s = base + "." + ext
		} else {
			s = base
		}
	}
	if s == "" {
		return "unnamed"
	}
	return s
}

func extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

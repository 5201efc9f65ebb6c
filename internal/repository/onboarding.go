// internal/repository/onboarding.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"admissions-workflow/internal/models"
	"admissions-workflow/internal/onboarding"
)

var _ onboarding.Store = (*Repository)(nil)

const itemColumns = `id, subject_id, subject_kind, document_type, required, storage_key, file_name,
	content_type, size_bytes, uploaded_at, uploaded_by, approved_at, approved_by,
	superseded_at, superseded_by, created_at`

func scanItem(row rowScanner) (*models.OnboardingItem, error) {
	var (
		item                                 models.OnboardingItem
		kind, docType                        string
		storageKey, fileName, contentType    sql.NullString
		uploadedBy, approvedBy, supersededBy sql.NullString
		size                                 sql.NullInt64
		uploadedAt, approvedAt, supersededAt sql.NullTime
	)
	err := row.Scan(&item.ID, &item.SubjectID, &kind, &docType, &item.Required,
		&storageKey, &fileName, &contentType, &size,
		&uploadedAt, &uploadedBy, &approvedAt, &approvedBy,
		&supersededAt, &supersededBy, &item.CreatedAt)
	if err != nil {
		return nil, err
	}

	item.SubjectKind = models.RecordType(kind)
	item.DocumentType = models.DocumentType(docType)
	item.StorageKey = storageKey.String
	item.FileName = fileName.String
	item.ContentType = contentType.String
	item.SizeBytes = size.Int64
	item.UploadedAt = timePtr(uploadedAt)
	item.UploadedBy = uploadedBy.String
	item.ApprovedAt = timePtr(approvedAt)
	item.ApprovedBy = approvedBy.String
	item.SupersededAt = timePtr(supersededAt)
	item.SupersededBy = supersededBy.String
	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

func (r *Repository) ListItems(ctx context.Context, subjectID string) ([]models.OnboardingItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM onboarding_items WHERE subject_id = $1 ORDER BY seq`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %v", onboarding.ErrDatabaseQueryFailed, err)
	}
	defer rows.Close()

	var items []models.OnboardingItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan item: %v", onboarding.ErrDatabaseQueryFailed, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list items: %v", onboarding.ErrDatabaseQueryFailed, err)
	}
	return items, nil
}

func (r *Repository) GetItem(ctx context.Context, itemID string) (*models.OnboardingItem, error) {
	if !validID(itemID) {
		return nil, fmt.Errorf("%w: %s", onboarding.ErrItemNotFound, itemID)
	}
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM onboarding_items WHERE id = $1`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", onboarding.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get item %s: %v", onboarding.ErrDatabaseQueryFailed, itemID, err)
	}
	return item, nil
}

// InsertItems adds checklist items, leaving any document type that already
// has a current item untouched.
func (r *Repository) InsertItems(ctx context.Context, items []models.OnboardingItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: start transaction: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		if err := insertItem(ctx, tx, item, true); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit items: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, item models.OnboardingItem, skipExisting bool) error {
	query := `
		INSERT INTO onboarding_items (
			id, subject_id, subject_kind, document_type, required, storage_key, file_name,
			content_type, size_bytes, uploaded_at, uploaded_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if skipExisting {
		query += `
		ON CONFLICT (subject_id, document_type) WHERE superseded_at IS NULL DO NOTHING`
	}

	var size any
	if item.SizeBytes > 0 {
		size = item.SizeBytes
	}
	_, err := tx.ExecContext(ctx, query,
		item.ID,
		item.SubjectID,
		string(item.SubjectKind),
		string(item.DocumentType),
		item.Required,
		nullable(item.StorageKey),
		nullable(item.FileName),
		nullable(item.ContentType),
		size,
		nullableTime(item.UploadedAt),
		nullable(item.UploadedBy),
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert item %s: %v", onboarding.ErrDatabaseInsertFailed, item.DocumentType, err)
	}
	return nil
}

func (r *Repository) ApproveItem(ctx context.Context, itemID, approverID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_items SET approved_at = $1, approved_by = $2
		WHERE id = $3 AND uploaded_at IS NOT NULL AND approved_at IS NULL AND superseded_at IS NULL`,
		at, approverID, itemID)
	if err != nil {
		return false, fmt.Errorf("%w: approve item: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	return affectedOne(res)
}

// FillUpload writes the upload fields onto a current item that has none yet.
func (r *Repository) FillUpload(ctx context.Context, item models.OnboardingItem) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_items
		SET storage_key = $1, file_name = $2, content_type = $3, size_bytes = $4,
		    uploaded_at = $5, uploaded_by = $6
		WHERE id = $7 AND uploaded_at IS NULL AND superseded_at IS NULL`,
		item.StorageKey, item.FileName, item.ContentType, item.SizeBytes,
		nullableTime(item.UploadedAt), item.UploadedBy, item.ID)
	if err != nil {
		return false, fmt.Errorf("%w: fill upload: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	return affectedOne(res)
}

// SupersedeAndInsert retires previousID and inserts next in its place. The
// previous item is updated first so the current-item unique index admits next.
func (r *Repository) SupersedeAndInsert(ctx context.Context, previousID string, next models.OnboardingItem) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: start transaction: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	at := next.CreatedAt
	if next.UploadedAt != nil {
		at = *next.UploadedAt
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE onboarding_items SET superseded_at = $1, superseded_by = $2
		WHERE id = $3 AND superseded_at IS NULL`,
		at, next.ID, previousID)
	if err != nil {
		return false, fmt.Errorf("%w: supersede item: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	ok, err := affectedOne(res)
	if err != nil || !ok {
		return false, err
	}

	if err := insertItem(ctx, tx, next, false); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit supersede: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	return true, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", onboarding.ErrDatabaseInsertFailed, err)
	}
	return n > 0, nil
}

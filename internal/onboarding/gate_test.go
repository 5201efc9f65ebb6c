package onboarding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gateNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T, store Store) *Gate {
	t.Helper()
	g := NewGate(store, logger.NewTestLogger(t))
	g.now = func() time.Time { return gateNow }
	seq := 0
	g.newID = func() string {
		seq++
		return fmt.Sprintf("item-%d", seq)
	}
	return g
}

func uploadedItem(id, subject string, doc models.DocumentType, required, approved bool) models.OnboardingItem {
	at := gateNow.Add(-time.Hour)
	item := models.OnboardingItem{
		ID:           id,
		SubjectID:    subject,
		SubjectKind:  models.RecordTypePartner,
		DocumentType: doc,
		Required:     required,
		UploadedAt:   &at,
		UploadedBy:   subject,
		CreatedAt:    at,
	}
	if approved {
		item.ApprovedAt = &at
		item.ApprovedBy = "admin-1"
	}
	return item
}

// ==========================
// Readiness
// ==========================

func TestIsReady_ThreeRequiredTwoApproved(t *testing.T) {
	store := &memStore{items: []models.OnboardingItem{
		uploadedItem("a", "shop-1", models.DocShopLicense, true, true),
		uploadedItem("b", "shop-1", models.DocBarberLicense, true, true),
		uploadedItem("c", "shop-1", models.DocW9, true, false),
		uploadedItem("d", "shop-1", models.DocOther, false, false),
	}}
	gate := newTestGate(t, store)

	r, err := gate.IsReady(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.False(t, r.Ready)
	require.Len(t, r.Outstanding, 1)
	assert.Equal(t, "c", r.Outstanding[0].ItemID)
	assert.Equal(t, models.DocW9, r.Outstanding[0].DocumentType)
	assert.True(t, r.Outstanding[0].Uploaded)

	_, err = gate.ApproveItem(context.Background(), "c", "admin-1")
	require.NoError(t, err)

	r, err = gate.IsReady(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.True(t, r.Ready)
	assert.Empty(t, r.Outstanding)
}

func TestIsReady_AllCombinations(t *testing.T) {
	docs := []models.DocumentType{models.DocShopLicense, models.DocBarberLicense, models.DocW9}
	// two bits per item: required, approved
	for mask := 0; mask < 1<<(2*len(docs)); mask++ {
		store := &memStore{}
		wantReady := true
		for i, doc := range docs {
			required := mask&(1<<(2*i)) != 0
			approved := mask&(1<<(2*i+1)) != 0
			store.items = append(store.items, uploadedItem(fmt.Sprintf("i%d", i), "s", doc, required, approved))
			if required && !approved {
				wantReady = false
			}
		}

		r, err := newTestGate(t, store).IsReady(context.Background(), "s")
		require.NoError(t, err)
		assert.Equal(t, wantReady, r.Ready, "mask %06b", mask)
	}
}

func TestIsReady_IgnoresSupersededItems(t *testing.T) {
	old := uploadedItem("old", "s", models.DocShopLicense, true, true)
	replaced := gateNow
	old.SupersededAt = &replaced
	old.SupersededBy = "new"
	store := &memStore{items: []models.OnboardingItem{
		old,
		uploadedItem("new", "s", models.DocShopLicense, true, false),
	}}

	r, err := newTestGate(t, store).IsReady(context.Background(), "s")
	require.NoError(t, err)
	assert.False(t, r.Ready)
	require.Len(t, r.Outstanding, 1)
	assert.Equal(t, "new", r.Outstanding[0].ItemID)
}

func TestRequireReady(t *testing.T) {
	store := &memStore{items: []models.OnboardingItem{
		uploadedItem("a", "s", models.DocShopLicense, true, false),
	}}
	gate := newTestGate(t, store)

	err := gate.RequireReady(context.Background(), "s")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompletePrerequisites))

	var incomplete *IncompletePrerequisitesError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, "s", incomplete.SubjectID)
	require.Len(t, incomplete.Outstanding, 1)
	assert.Contains(t, err.Error(), "shop_license")
}

func TestRequireApplicationReady_OpensChecklist(t *testing.T) {
	store := &memStore{}
	gate := newTestGate(t, store)
	app := models.Application{ID: "app-1", Type: models.RecordTypeEmployer, OwnerID: "emp-1"}

	err := gate.RequireApplicationReady(context.Background(), app)
	var incomplete *IncompletePrerequisitesError
	require.True(t, errors.As(err, &incomplete))
	assert.Len(t, incomplete.Outstanding, 2)

	items, _ := gate.Items(context.Background(), "emp-1")
	assert.Len(t, items, 2)
}

func TestRequireApplicationReady_ScopedToRecordType(t *testing.T) {
	store := &memStore{}
	gate := newTestGate(t, store)
	ctx := context.Background()

	_, err := gate.OpenChecklist(ctx, "owner-1", models.RecordTypeStudent)
	require.NoError(t, err)
	partnerItems, err := gate.OpenChecklist(ctx, "owner-1", models.RecordTypePartner)
	require.NoError(t, err)

	for _, item := range partnerItems {
		if item.DocumentType == models.DocShopLicense || item.DocumentType == models.DocBarberLicense {
			at := gateNow.Add(-time.Hour)
			item.UploadedAt = &at
			item.UploadedBy = "owner-1"
			ok, err := store.FillUpload(ctx, item)
			require.NoError(t, err)
			require.True(t, ok)
			_, err = gate.ApproveItem(ctx, item.ID, "admin-1")
			require.NoError(t, err)
		}
	}

	partner := models.Application{ID: "app-2", Type: models.RecordTypePartner, OwnerID: "owner-1"}
	assert.NoError(t, gate.RequireApplicationReady(ctx, partner))

	student := models.Application{ID: "app-1", Type: models.RecordTypeStudent, OwnerID: "owner-1"}
	err = gate.RequireApplicationReady(ctx, student)
	var incomplete *IncompletePrerequisitesError
	require.True(t, errors.As(err, &incomplete))
	require.Len(t, incomplete.Outstanding, 1)
	assert.Equal(t, models.DocGovernmentID, incomplete.Outstanding[0].DocumentType)

	overall, err := gate.IsReady(ctx, "owner-1")
	require.NoError(t, err)
	assert.False(t, overall.Ready)
}

// ==========================
// Checklist
// ==========================

func TestOpenChecklist_Idempotent(t *testing.T) {
	store := &memStore{}
	gate := newTestGate(t, store)

	items, err := gate.OpenChecklist(context.Background(), "student-1", models.RecordTypeStudent)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, models.DocGovernmentID, items[0].DocumentType)
	assert.True(t, items[0].Required)
	assert.False(t, items[1].Required)

	again, err := gate.OpenChecklist(context.Background(), "student-1", models.RecordTypeStudent)
	require.NoError(t, err)
	assert.Equal(t, items, again)

	_, err = gate.OpenChecklist(context.Background(), "x", models.RecordType("vendor"))
	assert.True(t, errors.Is(err, models.ErrInvalidRecordType))
}

// ==========================
// Approval
// ==========================

func TestApproveItem_Errors(t *testing.T) {
	superseded := uploadedItem("old", "s", models.DocShopLicense, true, false)
	at := gateNow
	superseded.SupersededAt = &at
	superseded.SupersededBy = "new"
	pending := models.OnboardingItem{ID: "pending", SubjectID: "s", DocumentType: models.DocW9, Required: true}

	store := &memStore{items: []models.OnboardingItem{
		uploadedItem("done", "s", models.DocBarberLicense, true, true),
		superseded,
		pending,
	}}
	gate := newTestGate(t, store)

	tests := []struct {
		itemID string
		want   error
	}{
		{"done", ErrAlreadyApproved},
		{"old", ErrItemSuperseded},
		{"pending", ErrNotUploaded},
		{"missing", ErrItemNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.itemID, func(t *testing.T) {
			_, err := gate.ApproveItem(context.Background(), tt.itemID, "admin-1")
			assert.True(t, errors.Is(err, tt.want), "%v", err)
		})
	}

	// the original approval is untouched
	done, _ := store.GetItem(context.Background(), "done")
	assert.Equal(t, "admin-1", done.ApprovedBy)
}

func TestApproveItem_SetsApprovalFields(t *testing.T) {
	store := &memStore{items: []models.OnboardingItem{
		uploadedItem("a", "s", models.DocShopLicense, true, false),
	}}
	gate := newTestGate(t, store)

	item, err := gate.ApproveItem(context.Background(), "a", "admin-7")
	require.NoError(t, err)
	require.NotNil(t, item.ApprovedAt)
	assert.Equal(t, gateNow, *item.ApprovedAt)
	assert.Equal(t, "admin-7", item.ApprovedBy)

	stored, _ := store.GetItem(context.Background(), "a")
	assert.True(t, stored.Satisfied())
}

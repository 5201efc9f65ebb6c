package onboarding

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"admissions-workflow/internal/models"
)

type memStore struct {
	mu    sync.Mutex
	items []models.OnboardingItem
}

func (s *memStore) ListItems(ctx context.Context, subjectID string) ([]models.OnboardingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OnboardingItem
	for _, item := range s.items {
		if item.SubjectID == subjectID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore) GetItem(ctx context.Context, itemID string) (*models.OnboardingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == itemID {
			return &item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

func (s *memStore) InsertItems(ctx context.Context, items []models.OnboardingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		exists := false
		for _, have := range s.items {
			if have.SubjectID == item.SubjectID && have.DocumentType == item.DocumentType && !have.Superseded() {
				exists = true
				break
			}
		}
		if !exists {
			s.items = append(s.items, item)
		}
	}
	return nil
}

func (s *memStore) ApproveItem(ctx context.Context, itemID, approverID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		item := &s.items[i]
		if item.ID == itemID && item.Uploaded() && !item.Satisfied() && !item.Superseded() {
			item.ApprovedAt = &at
			item.ApprovedBy = approverID
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) FillUpload(ctx context.Context, next models.OnboardingItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == next.ID && !s.items[i].Uploaded() && !s.items[i].Superseded() {
			s.items[i] = next
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) SupersedeAndInsert(ctx context.Context, previousID string, next models.OnboardingItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == previousID && !s.items[i].Superseded() {
			at := *next.UploadedAt
			s.items[i].SupersededAt = &at
			s.items[i].SupersededBy = next.ID
			s.items = append(s.items, next)
			return true, nil
		}
	}
	return false, nil
}

type fakeObjects struct {
	keys []string
	body []byte
	err  error
}

func (f *fakeObjects) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.body, _ = io.ReadAll(body)
	full := "onboarding/" + key
	f.keys = append(f.keys, full)
	return full, nil
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

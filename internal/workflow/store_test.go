package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"admissions-workflow/internal/models"
)

// memStore is an in-memory Store with the same conditional-update contract as
// the Postgres repository.
type memStore struct {
	mu     sync.Mutex
	apps   map[string]models.Application
	events map[string][]models.StateChangeEvent
	seq    int64

	// afterRead runs outside the lock after every GetApplication.
	afterRead func()
	applyErr  error
}

func newMemStore() *memStore {
	return &memStore{
		apps:   map[string]models.Application{},
		events: map[string][]models.StateChangeEvent{},
	}
}

func (s *memStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	app, ok := s.apps[id]
	s.mu.Unlock()

	if s.afterRead != nil {
		s.afterRead()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &app, nil
}

func (s *memStore) HasOpenApplication(ctx context.Context, ownerID string, recordType models.RecordType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.apps {
		if app.OwnerID == ownerID && app.Type == recordType && !app.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateApplication(ctx context.Context, app models.Application, event models.StateChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app
	s.appendLocked(event)
	return nil
}

func (s *memStore) ApplyTransition(ctx context.Context, event models.StateChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	app, ok := s.apps[event.ApplicationID]
	if !ok || app.Status != *event.FromState {
		return fmt.Errorf("%w: application %s", ErrConcurrentModification, event.ApplicationID)
	}
	app.Status = event.ToState
	app.StatusUpdatedAt = event.CreatedAt
	s.apps[app.ID] = app
	s.appendLocked(event)
	return nil
}

func (s *memStore) appendLocked(event models.StateChangeEvent) {
	s.seq++
	event.Seq = s.seq
	s.events[event.ApplicationID] = append(s.events[event.ApplicationID], event)
}

func (s *memStore) ListEvents(ctx context.Context, applicationID string) ([]models.StateChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.StateChangeEvent(nil), s.events[applicationID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// seed stores app in status with a consistent history leading to it.
func (s *memStore) seed(app models.Application, path ...models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app
	s.appendLocked(models.StateChangeEvent{
		ID:            app.ID + "-created",
		ApplicationID: app.ID,
		RecordType:    app.Type,
		ToState:       models.StatusStarted,
		ActorID:       app.OwnerID,
		CreatedAt:     app.CreatedAt,
	})
	prev := models.StatusStarted
	for i, to := range path {
		from := prev
		s.appendLocked(models.StateChangeEvent{
			ID:            fmt.Sprintf("%s-%d", app.ID, i),
			ApplicationID: app.ID,
			RecordType:    app.Type,
			FromState:     &from,
			ToState:       to,
			ActorID:       "seed",
			ActorRole:     models.RoleAdmin,
			Reason:        "seed",
			CreatedAt:     app.CreatedAt,
		})
		prev = to
	}
}

type fakeGate struct {
	err   error
	calls []string
}

func (g *fakeGate) RequireApplicationReady(ctx context.Context, app models.Application) error {
	g.calls = append(g.calls, app.OwnerID)
	return g.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []models.StateChangeEvent
	err    error
}

func (o *recordingObserver) TransitionCommitted(ctx context.Context, app models.Application, event models.StateChangeEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return o.err
}

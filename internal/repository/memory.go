package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"pms-assistant/internal/models"
)

// MemoryStore keeps sessions and messages in process memory. It backs
// STORE_BACKEND=memory and the service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	sessions map[uuid.UUID]models.Session
	messages map[uuid.UUID][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[uuid.UUID]models.Session),
		messages: make(map[uuid.UUID][]models.Message),
	}
}

// WithClock replaces the timestamp source, mainly for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.ID = uuid.New()
	sess.CreatedAt = s.now()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) ListActiveSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID && sess.Active {
			out = append(out, &sess)
		}
	}
	slices.SortFunc(out, func(a, b *models.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) error {
	return s.updateSession(id, func(sess *models.Session) { sess.Title = title })
}

func (s *MemoryStore) DeactivateSession(ctx context.Context, id uuid.UUID) error {
	return s.updateSession(id, func(sess *models.Session) { sess.Active = false })
}

func (s *MemoryStore) updateSession(id uuid.UUID, fn func(*models.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	fn(&sess)
	s.sessions[id] = sess
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = newMessageID()
	m.CreatedAt = s.now()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	return nil
}

// ListMessages returns messages in creation order. Equal timestamps keep
// insertion order because the slice is append-only and sorted stably.
func (s *MemoryStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	stored := s.messages[sessionID]
	out := make([]*models.Message, len(stored))
	for i := range stored {
		m := stored[i]
		out[i] = &m
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b *models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

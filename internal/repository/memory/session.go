package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]model.Session
	now      func() time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[uuid.UUID]model.Session),
		now:      time.Now,
	}
}

func (r *SessionRepository) Create(_ context.Context, session model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return model.ErrAlreadyExists
	}
	r.sessions[session.ID] = clone(session)
	return nil
}

func (r *SessionRepository) GetByID(_ context.Context, id uuid.UUID) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return model.Session{}, model.ErrNotFound
	}
	return clone(session), nil
}

func (r *SessionRepository) Rotate(_ context.Context, oldID uuid.UUID, next model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.sessions[oldID]
	if !ok {
		return model.ErrNotFound
	}
	if old.Revoked() {
		return model.ErrTokenRevoked
	}
	if _, ok := r.sessions[next.ID]; ok {
		return model.ErrAlreadyExists
	}

	r.revokeLocked(oldID)
	r.sessions[next.ID] = clone(next)
	return nil
}

func (r *SessionRepository) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revokeLocked(id)
	return nil
}

func (r *SessionRepository) RevokeAllByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.UserID == userID {
			r.revokeLocked(id)
		}
	}
	return nil
}

// Active returns the IDs of the user's sessions that are not revoked.
func (r *SessionRepository) Active(userID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for id, s := range r.sessions {
		if s.UserID == userID && !s.Revoked() {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids
}

func (r *SessionRepository) Ping(context.Context) error {
	return nil
}

func (r *SessionRepository) revokeLocked(id uuid.UUID) {
	s, ok := r.sessions[id]
	if !ok || s.Revoked() {
		return
	}
	now := r.now()
	s.RevokedAt = &now
	s.UpdatedAt = now
	r.sessions[id] = s
}

func clone(s model.Session) model.Session {
	s.TokenHash = slices.Clone(s.TokenHash)
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		s.RevokedAt = &t
	}
	if s.RotatedFrom != nil {
		id := *s.RotatedFrom
		s.RotatedFrom = &id
	}
	return s
}

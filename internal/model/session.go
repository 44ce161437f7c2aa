package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists refresh sessions. One session backs exactly one live
// refresh token; rotation replaces it with a new session.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id uuid.UUID) (Session, error)
	// Rotate revokes the session oldID and stores next in one step. It returns
	// ErrTokenRevoked when oldID was already revoked.
	Rotate(ctx context.Context, oldID uuid.UUID, next Session) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) error
}

// Session is a refresh session issued to one device.
type Session struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	TokenHash   []byte
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	RotatedFrom *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Revoked reports whether the session was revoked.
func (s Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

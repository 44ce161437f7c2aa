package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

const (
	msgInvalidRefreshToken = "Invalid refresh token."
	msgTokenReuse          = "Refresh token reuse detected."
)

// SessionsOptions configures session lifetimes and policy.
type SessionsOptions struct {
	RefreshTTL time.Duration
	// SingleActive revokes every other session of a user when a new one is opened.
	SingleActive bool
}

// Sessions provides high-level operations for opening, rotating and revoking
// refresh sessions. It composes the TokenManager and SessionStore.
type Sessions struct {
	manager      model.TokenManager
	store        model.SessionStore
	logger       *logger.Logger
	refreshTTL   time.Duration
	singleActive bool
	now          func() time.Time
}

func NewSessions(manager model.TokenManager, store model.SessionStore, logger *logger.Logger, opts SessionsOptions) *Sessions {
	return &Sessions{
		manager:      manager,
		store:        store,
		logger:       logger,
		refreshTTL:   opts.RefreshTTL,
		singleActive: opts.SingleActive,
		now:          time.Now,
	}
}

// Open starts a new session for user and returns its token pair.
func (s *Sessions) Open(ctx context.Context, user model.User) (model.TokenPair, error) {
	if s.singleActive {
		if err := s.store.RevokeAllByUser(ctx, user.ID); err != nil {
			return model.TokenPair{}, apierror.Store("revoking user sessions", err)
		}
	}

	sessionID := uuid.New()
	pair, err := s.manager.IssuePair(user, sessionID)
	if err != nil {
		return model.TokenPair{}, apierror.Unexpected(fmt.Errorf("issue tokens: %w", err))
	}

	if err := s.store.Create(ctx, s.newSession(sessionID, user.ID, pair.RefreshToken, nil)); err != nil {
		return model.TokenPair{}, apierror.Store("saving user session", err)
	}

	s.logger.Debug("Sessions: session opened",
		"user_id", user.ID,
		"session_id", sessionID)

	return pair, nil
}

// Resolve loads the session a decoded refresh token points at and checks
// that the presented token is its current, unexpired token. Replaying a
// revoked token closes every session of the user.
func (s *Sessions) Resolve(ctx context.Context, claims model.TokenClaims, presented string) (model.Session, error) {
	session, err := s.store.GetByID(ctx, claims.SessionID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, apierror.Validation(msgInvalidRefreshToken, "The session of this token does not exist.")
	}
	if err != nil {
		return model.Session{}, apierror.Store("fetching user session", err)
	}

	if session.UserID != claims.UserID || !equalBytes(session.TokenHash, hashRefresh(presented)) {
		return model.Session{}, apierror.Validation(msgInvalidRefreshToken, "The provided token does not match its session.")
	}

	if session.Revoked() {
		return model.Session{}, s.reuseDetected(ctx, session.UserID, session.ID)
	}

	now := s.now()
	if !now.Before(claims.ExpiresAt) || session.Expired(now) {
		return model.Session{}, apierror.Unauthorized("Refresh token expired.", "Please log in again.")
	}

	return session, nil
}

// Rotate revokes old and opens its successor for user in one store operation.
func (s *Sessions) Rotate(ctx context.Context, old model.Session, user model.User) (model.TokenPair, error) {
	sessionID := uuid.New()
	pair, err := s.manager.IssuePair(user, sessionID)
	if err != nil {
		return model.TokenPair{}, apierror.Unexpected(fmt.Errorf("issue tokens: %w", err))
	}

	next := s.newSession(sessionID, user.ID, pair.RefreshToken, &old.ID)
	err = s.store.Rotate(ctx, old.ID, next)
	if errors.Is(err, model.ErrTokenRevoked) {
		return model.TokenPair{}, s.reuseDetected(ctx, user.ID, old.ID)
	}
	if err != nil {
		return model.TokenPair{}, apierror.Store("rotating user session", err)
	}

	s.logger.Debug("Sessions: session rotated",
		"user_id", user.ID,
		"from_session_id", old.ID,
		"session_id", sessionID)

	return pair, nil
}

// Revoke closes the caller's session. Unknown sessions are ignored.
func (s *Sessions) Revoke(ctx context.Context, identity model.Identity) error {
	session, err := s.store.GetByID(ctx, identity.SessionID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apierror.Store("fetching user session", err)
	}

	if session.UserID != identity.UserID {
		return apierror.Forbidden("Session belongs to another user.")
	}
	if session.Revoked() {
		return nil
	}

	if err := s.store.Revoke(ctx, session.ID); err != nil {
		return apierror.Store("revoking user session", err)
	}
	return nil
}

// RevokeAll closes every session of userID.
func (s *Sessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.RevokeAllByUser(ctx, userID); err != nil {
		return apierror.Store("revoking user sessions", err)
	}
	return nil
}

// Authenticate resolves the caller identity from an access token.
func (s *Sessions) Authenticate(_ context.Context, accessToken string) (model.Identity, error) {
	return s.manager.ParseAccessToken(accessToken)
}

func (s *Sessions) reuseDetected(ctx context.Context, userID, sessionID uuid.UUID) error {
	s.logger.Warn("Sessions: refresh token reuse detected, revoking all sessions",
		"user_id", userID,
		"session_id", sessionID)

	if err := s.store.RevokeAllByUser(ctx, userID); err != nil {
		return apierror.Store("revoking user sessions", err)
	}
	return apierror.Unauthorized(msgTokenReuse, "All sessions of this user were closed.")
}

func (s *Sessions) newSession(id, userID uuid.UUID, refreshToken string, rotatedFrom *uuid.UUID) model.Session {
	now := s.now()
	return model.Session{
		ID:          id,
		UserID:      userID,
		TokenHash:   hashRefresh(refreshToken),
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.refreshTTL),
		RotatedFrom: rotatedFrom,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func equalBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

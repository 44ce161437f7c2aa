package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	db *Connection
}

func NewSessionRepository(db *Connection) *SessionRepository {
	return &SessionRepository{db: db}
}

const insertSession = `
        INSERT INTO sessions (
            id, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
    `

func (r *SessionRepository) Create(ctx context.Context, session model.Session) error {
	_, err := r.db.Exec(ctx, insertSession,
		session.ID, session.UserID, session.TokenHash, session.IssuedAt, session.ExpiresAt,
		session.RevokedAt, session.RotatedFrom,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	const query = `
        SELECT id, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from, created_at, updated_at
        FROM sessions WHERE id = $1
    `
	var s model.Session
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.IssuedAt, &s.ExpiresAt,
		&s.RevokedAt, &s.RotatedFrom, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("failed to get session by id: %w", err)
	}
	return s, nil
}

// Rotate revokes oldID and inserts next in one transaction. The revoke only
// matches a live row, so concurrent rotations of the same session have a
// single winner.
func (r *SessionRepository) Rotate(ctx context.Context, oldID uuid.UUID, next model.Session) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const revoke = `
            UPDATE sessions SET revoked_at = NOW(), updated_at = NOW()
            WHERE id = $1 AND revoked_at IS NULL
        `
		cmd, err := tx.Exec(ctx, revoke, oldID)
		if err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, oldID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check session: %w", err)
			}
			if exists {
				return model.ErrTokenRevoked
			}
			return model.ErrNotFound
		}

		_, err = tx.Exec(ctx, insertSession,
			next.ID, next.UserID, next.TokenHash, next.IssuedAt, next.ExpiresAt,
			next.RevokedAt, next.RotatedFrom,
		)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	const query = `
        UPDATE sessions SET revoked_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND revoked_at IS NULL
    `
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `
        UPDATE sessions SET revoked_at = NOW(), updated_at = NOW()
        WHERE user_id = $1 AND revoked_at IS NULL
    `
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions by user: %w", err)
	}
	return nil
}

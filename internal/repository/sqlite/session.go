package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) Create(ctx context.Context, session model.Session) error {
	return r.insert(ctx, r.db, session)
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from, created_at, updated_at
		 FROM sessions WHERE id = ?`, id.String())

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("failed to get session by id: %w", err)
	}
	return session, nil
}

// Rotate revokes oldID and inserts next in one transaction.
func (r *SessionRepository) Rotate(ctx context.Context, oldID uuid.UUID, next model.Session) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := toMillis(r.now())
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE id = ? AND revoked_at IS NULL`,
		now, now, oldID.String())
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if affected == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, oldID.String()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if exists > 0 {
			return model.ErrTokenRevoked
		}
		return model.ErrNotFound
	}

	if err = r.insert(ctx, tx, next); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}
	return nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	now := toMillis(r.now())
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE id = ? AND revoked_at IS NULL`,
		now, now, id.String())
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	now := toMillis(r.now())
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		now, now, userID.String())
	if err != nil {
		return fmt.Errorf("failed to revoke sessions by user: %w", err)
	}
	return nil
}

func (r *SessionRepository) insert(ctx context.Context, db execer, s model.Session) error {
	var revokedAt sql.NullInt64
	if s.RevokedAt != nil {
		revokedAt = sql.NullInt64{Int64: toMillis(*s.RevokedAt), Valid: true}
	}
	var rotatedFrom sql.NullString
	if s.RotatedFrom != nil {
		rotatedFrom = sql.NullString{String: s.RotatedFrom.String(), Valid: true}
	}
	now := toMillis(r.now())

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.UserID.String(), s.TokenHash, toMillis(s.IssuedAt), toMillis(s.ExpiresAt),
		revokedAt, rotatedFrom, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func scanSession(row *sql.Row) (model.Session, error) {
	var (
		s                    model.Session
		id, userID           string
		issuedAt, expiresAt  int64
		createdAt, updatedAt int64
		revokedAt            sql.NullInt64
		rotatedFrom          sql.NullString
	)
	err := row.Scan(&id, &userID, &s.TokenHash, &issuedAt, &expiresAt, &revokedAt, &rotatedFrom, &createdAt, &updatedAt)
	if err != nil {
		return model.Session{}, err
	}

	if s.ID, err = parseID(id); err != nil {
		return model.Session{}, err
	}
	if s.UserID, err = parseID(userID); err != nil {
		return model.Session{}, err
	}
	if revokedAt.Valid {
		t := fromMillis(revokedAt.Int64)
		s.RevokedAt = &t
	}
	if rotatedFrom.Valid {
		from, err := parseID(rotatedFrom.String)
		if err != nil {
			return model.Session{}, err
		}
		s.RotatedFrom = &from
	}
	s.IssuedAt = fromMillis(issuedAt)
	s.ExpiresAt = fromMillis(expiresAt)
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	return s, nil
}

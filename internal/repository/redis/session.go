// Package redis provides a Redis-backed session store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

// minTTL keeps already expired sessions around long enough to be rejected
// as expired rather than unknown.
const minTTL = time.Minute

const maxRevokeAttempts = 3

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

type sessionRecord struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	TokenHash   []byte     `json:"tokenHash"`
	IssuedAt    time.Time  `json:"issuedAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	RotatedFrom *uuid.UUID `json:"rotatedFrom,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewSessionRepository(client goredis.UniversalClient, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix, now: time.Now}
}

// NewClient builds a client for addr.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *SessionRepository) Create(ctx context.Context, session model.Session) error {
	now := r.now()
	session.CreatedAt, session.UpdatedAt = now, now

	data, err := encode(session)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.sessionKey(session.ID), data, r.ttl(session.ExpiresAt)).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return model.ErrAlreadyExists
	}

	if err := r.client.SAdd(ctx, r.userKey(session.UserID), session.ID.String()).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	return r.get(ctx, r.client, id)
}

// Rotate revokes oldID and stores next inside a WATCH transaction. A
// concurrent change to oldID aborts the transaction and counts as reuse.
func (r *SessionRepository) Rotate(ctx context.Context, oldID uuid.UUID, next model.Session) error {
	oldKey := r.sessionKey(oldID)

	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		old, err := r.get(ctx, tx, oldID)
		if err != nil {
			return err
		}
		if old.Revoked() {
			return model.ErrTokenRevoked
		}

		now := r.now()
		old.RevokedAt = &now
		old.UpdatedAt = now
		next.CreatedAt, next.UpdatedAt = now, now

		oldData, err := encode(old)
		if err != nil {
			return err
		}
		nextData, err := encode(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SetArgs(ctx, oldKey, oldData, goredis.SetArgs{KeepTTL: true})
			pipe.Set(ctx, r.sessionKey(next.ID), nextData, r.ttl(next.ExpiresAt))
			pipe.SAdd(ctx, r.userKey(next.UserID), next.ID.String())
			return nil
		})
		return err
	}, oldKey)

	if errors.Is(err, goredis.TxFailedErr) {
		return model.ErrTokenRevoked
	}
	if err != nil && !errors.Is(err, model.ErrTokenRevoked) && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	return err
}

func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	key := r.sessionKey(id)

	revoke := func(tx *goredis.Tx) error {
		session, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if session.Revoked() {
			return nil
		}

		now := r.now()
		session.RevokedAt = &now
		session.UpdatedAt = now
		data, err := encode(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, goredis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	var err error
	for range maxRevokeAttempts {
		err = r.client.Watch(ctx, revoke, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}

	if err == nil || errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to revoke session: %w", err)
}

func (r *SessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	userKey := r.userKey(userID)

	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	var stale []any
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			stale = append(stale, raw)
			continue
		}

		exists, err := r.client.Exists(ctx, r.sessionKey(id)).Result()
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if exists == 0 {
			stale = append(stale, raw)
			continue
		}

		if err := r.Revoke(ctx, id); err != nil {
			return err
		}
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, userKey, stale...).Err(); err != nil {
			return fmt.Errorf("failed to prune user sessions: %w", err)
		}
	}
	return nil
}

func (r *SessionRepository) get(ctx context.Context, c getter, id uuid.UUID) (model.Session, error) {
	data, err := c.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("failed to get session by id: %w", err)
	}
	return decode(data)
}

func (r *SessionRepository) sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *SessionRepository) userKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s:sessions", r.prefix, userID)
}

func (r *SessionRepository) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(r.now())
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

func encode(s model.Session) ([]byte, error) {
	data, err := json.Marshal(sessionRecord(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (model.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return model.Session(rec), nil
}

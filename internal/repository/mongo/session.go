package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type sessionDocument struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"userId"`
	TokenHash   []byte     `bson:"tokenHash"`
	IssuedAt    time.Time  `bson:"issuedAt"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
	RevokedAt   *time.Time `bson:"revokedAt"`
	RotatedFrom *string    `bson:"rotatedFrom,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

type SessionRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewSessionRepository returns a repository over collection and ensures the
// per-user index exists.
func NewSessionRepository(ctx context.Context, db *mongo.Database, collection string) (*SessionRepository, error) {
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "revokedAt", Value: 1}},
		Options: options.Index().SetName("sessions_user_id_idx"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions index: %w", err)
	}
	return &SessionRepository{coll: coll, now: time.Now}, nil
}

func (r *SessionRepository) Create(ctx context.Context, session model.Session) error {
	if _, err := r.coll.InsertOne(ctx, r.toDocument(session)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	var doc sessionDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("failed to get session by id: %w", err)
	}
	return doc.toModel()
}

// Rotate revokes oldID with a conditional update and then inserts next. Only
// the caller whose update matched a live document inserts a successor.
func (r *SessionRepository) Rotate(ctx context.Context, oldID uuid.UUID, next model.Session) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oldID.String()}, {Key: "revokedAt", Value: nil}},
		r.revokeUpdate(),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oldID.String()}})
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if n > 0 {
			return model.ErrTokenRevoked
		}
		return model.ErrNotFound
	}

	return r.Create(ctx, next)
}

func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "revokedAt", Value: nil}},
		r.revokeUpdate(),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "userId", Value: userID.String()}, {Key: "revokedAt", Value: nil}},
		r.revokeUpdate(),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions by user: %w", err)
	}
	return nil
}

func (r *SessionRepository) revokeUpdate() bson.D {
	now := r.now().UTC()
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "revokedAt", Value: now},
		{Key: "updatedAt", Value: now},
	}}}
}

func (r *SessionRepository) toDocument(s model.Session) sessionDocument {
	now := r.now().UTC()
	doc := sessionDocument{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		TokenHash: s.TokenHash,
		IssuedAt:  s.IssuedAt.UTC(),
		ExpiresAt: s.ExpiresAt.UTC(),
		RevokedAt: s.RevokedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.RotatedFrom != nil {
		from := s.RotatedFrom.String()
		doc.RotatedFrom = &from
	}
	return doc
}

func (d sessionDocument) toModel() (model.Session, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to parse session id: %w", err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to parse session user id: %w", err)
	}

	s := model.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: d.TokenHash,
		IssuedAt:  d.IssuedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.RevokedAt != nil {
		t := d.RevokedAt.UTC()
		s.RevokedAt = &t
	}
	if d.RotatedFrom != nil {
		from, err := uuid.Parse(*d.RotatedFrom)
		if err != nil {
			return model.Session{}, fmt.Errorf("failed to parse rotated session id: %w", err)
		}
		s.RotatedFrom = &from
	}
	return s, nil
}

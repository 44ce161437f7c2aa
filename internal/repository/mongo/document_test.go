package mongo

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dtroode/authkeeper-server/internal/model"
)

func TestUserDocument_Roundtrip(t *testing.T) {
	now := time.Now()
	u := model.User{
		ID:           uuid.New(),
		Name:         "Alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
		Role:         model.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	raw, err := bson.Marshal(toUserDocument(u))
	require.NoError(t, err)

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))

	got, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.True(t, got.CreatedAt.Equal(now.Truncate(time.Millisecond)))
}

func TestSessionDocument_Conversion(t *testing.T) {
	r := &SessionRepository{now: time.Now}
	from := uuid.New()
	s := model.Session{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		TokenHash:   []byte{9, 8, 7},
		IssuedAt:    time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
		RotatedFrom: &from,
	}

	doc := r.toDocument(s)
	assert.Nil(t, doc.RevokedAt)
	require.NotNil(t, doc.RotatedFrom)
	assert.Equal(t, from.String(), *doc.RotatedFrom)

	got, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, s.TokenHash, got.TokenHash)
	require.NotNil(t, got.RotatedFrom)
	assert.Equal(t, from, *got.RotatedFrom)
	assert.False(t, got.Revoked())
}

func TestSessionDocument_BadIDs(t *testing.T) {
	_, err := sessionDocument{ID: "x", UserID: uuid.NewString()}.toModel()
	assert.Error(t, err)

	_, err = sessionDocument{ID: uuid.NewString(), UserID: "x"}.toModel()
	assert.Error(t, err)

	_, err = userDocument{ID: "x"}.toModel()
	assert.Error(t, err)
}

func TestRevokeUpdate(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &SessionRepository{now: func() time.Time { return fixed }}

	update := r.revokeUpdate()
	require.Len(t, update, 1)
	assert.Equal(t, "$set", update[0].Key)
	assert.Equal(t, bson.D{
		{Key: "revokedAt", Value: fixed},
		{Key: "updatedAt", Value: fixed},
	}, update[0].Value)
}

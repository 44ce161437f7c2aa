package redis

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authkeeper-server/internal/model"
)

func TestEncodeDecode(t *testing.T) {
	now := time.Now().UTC()
	from := uuid.New()
	s := model.Session{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		TokenHash:   []byte{1, 2, 3},
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
		RevokedAt:   &now,
		RotatedFrom: &from,
	}

	data, err := encode(s)
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.TokenHash, got.TokenHash)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(now))
	require.NotNil(t, got.RotatedFrom)
	assert.Equal(t, from, *got.RotatedFrom)

	_, err = decode([]byte("{"))
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	r := NewSessionRepository(nil, "authkeeper")
	id := uuid.MustParse("6f1c1f0e-4a55-4d57-9a53-7a8c2f6d5e01")

	assert.Equal(t, "authkeeper:session:6f1c1f0e-4a55-4d57-9a53-7a8c2f6d5e01", r.sessionKey(id))
	assert.Equal(t, "authkeeper:user:6f1c1f0e-4a55-4d57-9a53-7a8c2f6d5e01:sessions", r.userKey(id))
}

func TestTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewSessionRepository(nil, "p")
	r.now = func() time.Time { return now }

	assert.Equal(t, time.Hour, r.ttl(now.Add(time.Hour)))
	assert.Equal(t, minTTL, r.ttl(now.Add(time.Second)))
	assert.Equal(t, minTTL, r.ttl(now.Add(-time.Hour)))
}

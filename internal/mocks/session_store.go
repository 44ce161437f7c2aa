package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/authkeeper-server/internal/model"
)

// SessionStore is a mock type for the model.SessionStore type.
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Create(ctx context.Context, session model.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(model.Session), ret.Error(1)
}

func (m *SessionStore) Rotate(ctx context.Context, oldID uuid.UUID, next model.Session) error {
	return m.Called(ctx, oldID, next).Error(0)
}

func (m *SessionStore) Revoke(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *SessionStore) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// NewSessionStore creates a new instance of SessionStore. It also registers a
// cleanup function to assert the mocks expectations.
func NewSessionStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *SessionStore {
	m := &SessionStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

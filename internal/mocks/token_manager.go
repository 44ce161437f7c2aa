package mocks

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/authkeeper-server/internal/model"
)

// TokenManager is a mock type for the model.TokenManager type.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) IssuePair(user model.User, sessionID uuid.UUID) (model.TokenPair, error) {
	ret := m.Called(user, sessionID)
	return ret.Get(0).(model.TokenPair), ret.Error(1)
}

func (m *TokenManager) ParseAccessToken(token string) (model.Identity, error) {
	ret := m.Called(token)
	return ret.Get(0).(model.Identity), ret.Error(1)
}

func (m *TokenManager) DecodeIgnoringExpiry(token string) (model.TokenClaims, bool) {
	ret := m.Called(token)
	return ret.Get(0).(model.TokenClaims), ret.Bool(1)
}

// NewTokenManager creates a new instance of TokenManager. It also registers a
// cleanup function to assert the mocks expectations.
func NewTokenManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenManager {
	m := &TokenManager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/authkeeper-server/internal/model"
)

// AuthService is a mock type for the handler.AuthService type.
type AuthService struct {
	mock.Mock
}

func (m *AuthService) Register(ctx context.Context, params model.RegisterParams) (model.SessionResult, error) {
	ret := m.Called(ctx, params)
	return ret.Get(0).(model.SessionResult), ret.Error(1)
}

func (m *AuthService) Login(ctx context.Context, params model.LoginParams) (model.SessionResult, error) {
	ret := m.Called(ctx, params)
	return ret.Get(0).(model.SessionResult), ret.Error(1)
}

func (m *AuthService) Refresh(ctx context.Context, refreshToken string) (model.SessionResult, error) {
	ret := m.Called(ctx, refreshToken)
	return ret.Get(0).(model.SessionResult), ret.Error(1)
}

func (m *AuthService) Logout(ctx context.Context, identity model.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *AuthService) LogoutAll(ctx context.Context, identity model.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	ret := m.Called(ctx, userID)
	return ret.Get(0).(model.Profile), ret.Error(1)
}

// NewAuthService creates a new instance of AuthService. It also registers a
// cleanup function to assert the mocks expectations.
func NewAuthService(t interface {
	mock.TestingT
	Cleanup(func())
}) *AuthService {
	m := &AuthService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// TokenService is a mock type for the middleware.TokenService type.
type TokenService struct {
	mock.Mock
}

func (m *TokenService) Authenticate(ctx context.Context, accessToken string) (model.Identity, error) {
	ret := m.Called(ctx, accessToken)
	return ret.Get(0).(model.Identity), ret.Error(1)
}

// NewTokenService creates a new instance of TokenService. It also registers a
// cleanup function to assert the mocks expectations.
func NewTokenService(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenService {
	m := &TokenService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

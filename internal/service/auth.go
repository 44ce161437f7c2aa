package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/hasher"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

const minPasswordLength = 6

// Auth registers and authenticates users and manages their sessions.
type Auth struct {
	userStore model.UserStore
	hasher    model.PasswordHasher
	tokens    model.TokenManager
	sessions  *Sessions
	logger    *logger.Logger
	now       func() time.Time
}

func NewAuth(
	userStore model.UserStore,
	hasher model.PasswordHasher,
	tokens model.TokenManager,
	sessions *Sessions,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore: userStore,
		hasher:    hasher,
		tokens:    tokens,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a user and opens its first session.
func (a *Auth) Register(ctx context.Context, params model.RegisterParams) (model.SessionResult, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	if params.Role == "" {
		params.Role = model.RoleUser
	}

	a.logger.Debug("Auth service: starting user registration",
		"email", params.Email)

	if errs := validateRegistration(params); len(errs) > 0 {
		return model.SessionResult{}, apierror.Validation("Validation failed.", errs...)
	}

	_, err := a.userStore.GetByEmail(ctx, params.Email)
	if err == nil {
		a.logger.Info("Auth service: user already exists",
			"email", params.Email)
		return model.SessionResult{}, apierror.Validation("User already exists.", "User already exists.")
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.SessionResult{}, apierror.Store("fetching user by email", err)
	}

	passwordHash, err := a.hasher.Hash(params.Password)
	if err != nil {
		return model.SessionResult{}, apierror.Unexpected(err)
	}

	now := a.now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: passwordHash,
		Role:         params.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrAlreadyExists) {
		return model.SessionResult{}, apierror.Validation("User already exists.", "User already exists.")
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", params.Email,
			"error", err.Error())
		return model.SessionResult{}, apierror.Store("creating user", err)
	}

	pair, err := a.sessions.Open(ctx, user)
	if err != nil {
		return model.SessionResult{}, err
	}

	a.logger.Info("Auth service: user registration completed successfully",
		"user_id", user.ID)

	return sessionResult(user.ID, pair), nil
}

// Login verifies credentials and opens a new session.
func (a *Auth) Login(ctx context.Context, params model.LoginParams) (model.SessionResult, error) {
	params.Email = strings.TrimSpace(params.Email)

	var errs []string
	if params.Email == "" {
		errs = append(errs, "Email is required")
	} else if !validEmail(params.Email) {
		errs = append(errs, "Invalid email address")
	}
	if params.Password == "" {
		errs = append(errs, "Password is required")
	}
	if len(errs) > 0 {
		return model.SessionResult{}, apierror.Validation("Validation failed.", errs...)
	}

	user, err := a.userStore.GetByEmail(ctx, params.Email)
	if errors.Is(err, model.ErrNotFound) {
		return model.SessionResult{}, apierror.NotFound("User not found.", "User not found.")
	}
	if err != nil {
		return model.SessionResult{}, apierror.Store("fetching user by email", err)
	}

	if !a.hasher.Verify(user.PasswordHash, params.Password) {
		a.logger.Info("Auth service: invalid password",
			"user_id", user.ID)
		return model.SessionResult{}, apierror.Validation("Invalid password.", "The password provided is incorrect.")
	}

	pair, err := a.sessions.Open(ctx, user)
	if err != nil {
		return model.SessionResult{}, err
	}

	a.logger.Info("Auth service: user logged in",
		"user_id", user.ID)

	return sessionResult(user.ID, pair), nil
}

// Refresh exchanges a refresh token for a new pair and retires the old one.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (model.SessionResult, error) {
	claims, ok := a.tokens.DecodeIgnoringExpiry(refreshToken)
	if !ok {
		return model.SessionResult{}, apierror.Validation(msgInvalidRefreshToken, "The provided token is invalid.")
	}
	if claims.Type != model.TokenTypeRefresh {
		return model.SessionResult{}, apierror.Validation(msgInvalidRefreshToken, "The provided token is not a refresh token.")
	}

	session, err := a.sessions.Resolve(ctx, claims, refreshToken)
	if err != nil {
		return model.SessionResult{}, err
	}

	user, err := a.userStore.GetByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return model.SessionResult{}, apierror.NotFound("User not found.", "User not found.")
	}
	if err != nil {
		return model.SessionResult{}, apierror.Store("fetching user by id", err)
	}

	pair, err := a.sessions.Rotate(ctx, session, user)
	if err != nil {
		return model.SessionResult{}, err
	}

	return sessionResult(user.ID, pair), nil
}

// Logout closes the session the caller's access token belongs to. An
// identity without a session closes every session of the user.
func (a *Auth) Logout(ctx context.Context, identity model.Identity) error {
	if identity.UserID == uuid.Nil {
		return apierror.Validation("Invalid user.", "User ID not found in token.")
	}

	if identity.SessionID == uuid.Nil {
		return a.sessions.RevokeAll(ctx, identity.UserID)
	}

	if err := a.sessions.Revoke(ctx, identity); err != nil {
		return err
	}

	a.logger.Info("Auth service: user logged out",
		"user_id", identity.UserID,
		"session_id", identity.SessionID)

	return nil
}

// LogoutAll closes every session of the caller.
func (a *Auth) LogoutAll(ctx context.Context, identity model.Identity) error {
	if identity.UserID == uuid.Nil {
		return apierror.Validation("Invalid user.", "User ID not found in token.")
	}

	if err := a.sessions.RevokeAll(ctx, identity.UserID); err != nil {
		return err
	}

	a.logger.Info("Auth service: all user sessions closed",
		"user_id", identity.UserID)

	return nil
}

// GetProfile returns the user without secret fields.
func (a *Auth) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	if userID == uuid.Nil {
		return model.Profile{}, apierror.Unauthorized("Invalid user.", "User ID not found in token.")
	}

	user, err := a.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Profile{}, apierror.NotFound("User not found.", "User not found.")
	}
	if err != nil {
		return model.Profile{}, apierror.Store("fetching user by id", err)
	}

	return user.Profile(), nil
}

func validateRegistration(params model.RegisterParams) []string {
	var errs []string

	if params.Name == "" {
		errs = append(errs, "Name is required")
	}

	if params.Email == "" {
		errs = append(errs, "Email is required")
	} else if !validEmail(params.Email) {
		errs = append(errs, "Invalid email address")
	}

	if !params.Role.Valid() {
		errs = append(errs, "Invalid role")
	}

	switch {
	case params.Password == "":
		errs = append(errs, "Password is required")
	case len(params.Password) < minPasswordLength:
		errs = append(errs, "Password must be at least 6 characters long")
	case len(params.Password) > hasher.MaxPasswordBytes:
		errs = append(errs, "Password must be at most 72 bytes long")
	}

	return errs
}

func sessionResult(userID uuid.UUID, pair model.TokenPair) model.SessionResult {
	return model.SessionResult{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
}

// validEmail accepts a bare address only, without display name or brackets.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

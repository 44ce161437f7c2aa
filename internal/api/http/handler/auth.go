package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/api/http/route"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

const (
	maxBodyBytes    = 1 << 20
	msgAuthRequired = "Authentication required."
)

// AuthService defines registration, login and session operations.
type AuthService interface {
	Register(ctx context.Context, params model.RegisterParams) (model.SessionResult, error)
	Login(ctx context.Context, params model.LoginParams) (model.SessionResult, error)
	Refresh(ctx context.Context, refreshToken string) (model.SessionResult, error)
	Logout(ctx context.Context, identity model.Identity) error
	LogoutAll(ctx context.Context, identity model.Identity) error
	GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID           string `json:"id"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Auth handles HTTP endpoints for authentication.
type Auth struct {
	authService    AuthService
	contextManager model.ContextManager
	errors         *ErrorWriter
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, contextManager model.ContextManager, errorWriter *ErrorWriter, logger *logger.Logger) *Auth {
	return &Auth{
		authService:    authService,
		contextManager: contextManager,
		errors:         errorWriter,
		logger:         logger,
	}
}

// Register creates an account and returns its first token pair.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.logger.Debug("Auth handler: processing registration request",
		"email", req.Email)

	res, err := h.authService.Register(detached(r), model.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Role:     model.Role(req.Role),
		Password: req.Password,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.writeSuccess(w, r, toSessionResponse(res), "User registered successfully.")
}

// Login verifies credentials and returns a new token pair.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	res, err := h.authService.Login(detached(r), model.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.writeSuccess(w, r, toSessionResponse(res), "User logged in successfully.")
}

// Refresh rotates the refresh token given in the path.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.authService.Refresh(detached(r), mux.Vars(r)["token"])
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.writeSuccess(w, r, toSessionResponse(res), "Token refreshed successfully.")
}

// Logout closes the caller's session.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, apierror.Unauthorized(msgAuthRequired))
		return
	}

	if err := h.authService.Logout(detached(r), identity); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.writeSuccess(w, r, nil, "User logged out successfully.")
}

// LogoutAll closes every session of the caller.
func (h *Auth) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, apierror.Unauthorized(msgAuthRequired))
		return
	}

	if err := h.authService.LogoutAll(detached(r), identity); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.writeSuccess(w, r, nil, "All sessions closed successfully.")
}

// Me returns the caller's profile.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, apierror.Unauthorized(msgAuthRequired))
		return
	}

	profile, err := h.authService.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	h.writeSuccess(w, r, profile, "User details retrieved successfully.")
}

func (h *Auth) writeSuccess(w http.ResponseWriter, r *http.Request, data any, message string) {
	if err := response.WriteJSON(w, http.StatusOK, response.Success(data, message)); err != nil {
		h.logger.Error("Auth handler: failed to write response",
			"path", route.Name(r),
			"error", err.Error())
	}
}

// detached returns the request context without its cancellation so that a
// client disconnect never aborts a store write halfway.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apierror.Validation("Validation failed.", "Request body is required.")
		case errors.As(err, &maxErr):
			return apierror.Generic(http.StatusRequestEntityTooLarge, "Request body too large.")
		default:
			return apierror.Validation("Validation failed.", "Request body must be valid JSON.")
		}
	}
	return nil
}

func toSessionResponse(res model.SessionResult) sessionResponse {
	return sessionResponse{
		ID:           res.UserID.String(),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
}

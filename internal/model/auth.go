package model

import "github.com/google/uuid"

// RegisterParams carries a registration request.
type RegisterParams struct {
	Name     string
	Email    string
	Role     Role
	Password string
}

// LoginParams carries a login request.
type LoginParams struct {
	Email    string
	Password string
}

// SessionResult is returned by every operation that opens or rotates a session.
type SessionResult struct {
	UserID       uuid.UUID
	AccessToken  string
	RefreshToken string
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Token type discriminators.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenManager generates and validates signed tokens. Implementations are
// pure and never touch storage.
type TokenManager interface {
	IssuePair(user User, sessionID uuid.UUID) (TokenPair, error)
	ParseAccessToken(token string) (Identity, error)
	DecodeIgnoringExpiry(token string) (TokenClaims, bool)
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenClaims are the decoded claims of a token.
type TokenClaims struct {
	ID        string
	UserID    uuid.UUID
	SessionID uuid.UUID
	Role      Role
	Type      string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity is the authenticated caller resolved from an access token.
type Identity struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Role      Role
}

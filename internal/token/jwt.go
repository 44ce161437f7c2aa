package token

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

// Claims represents JWT claims with token type, role and session ID.
type Claims struct {
	jwt.RegisteredClaims
	Role      model.Role `json:"role"`
	TokenType string     `json:"type"`
	SessionID string     `json:"sid"`
}

// Options configures a JWT token manager.
type Options struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWT implements TokenManager backed by symmetric HMAC. Access and refresh
// tokens share one key and one claim schema and differ by type and expiry.
type JWT struct {
	secretKey  []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a new JWT token manager.
func NewJWT(opts Options) *JWT {
	return &JWT{
		secretKey:  []byte(opts.Secret),
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        time.Now,
	}
}

// RefreshTTL returns the lifetime of refresh tokens.
func (j *JWT) RefreshTTL() time.Duration {
	return j.refreshTTL
}

// IssuePair creates an access and a refresh token for user bound to sessionID.
func (j *JWT) IssuePair(user model.User, sessionID uuid.UUID) (model.TokenPair, error) {
	now := j.now()

	access, err := j.sign(user, sessionID, model.TokenTypeAccess, now, j.accessTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := j.sign(user, sessionID, model.TokenTypeRefresh, now, j.refreshTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (j *JWT) sign(user model.User, sessionID uuid.UUID, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      user.Role,
		TokenType: tokenType,
		SessionID: sessionID.String(),
	})

	return token.SignedString(j.secretKey)
}

func (j *JWT) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
	}
	return j.secretKey, nil
}

// ParseAccessToken fully validates an access token and returns the caller identity.
func (j *JWT) ParseAccessToken(tokenString string) (model.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, j.keyFunc,
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if !token.Valid {
		return model.Identity{}, errors.New("access token is invalid")
	}
	if claims.TokenType != model.TokenTypeAccess {
		return model.Identity{}, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}

	decoded, err := toModel(claims)
	if err != nil {
		return model.Identity{}, err
	}

	return model.Identity{
		UserID:    decoded.UserID,
		SessionID: decoded.SessionID,
		Role:      decoded.Role,
	}, nil
}

// DecodeIgnoringExpiry validates signature, issuer and audience but not
// expiry. It reports false on any failure and never returns an error; the
// caller decides what an expired token means.
func (j *JWT) DecodeIgnoringExpiry(tokenString string) (model.TokenClaims, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, j.keyFunc,
		jwt.WithoutClaimsValidation(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return model.TokenClaims{}, false
	}
	if claims.Issuer != j.issuer || !slices.Contains(claims.Audience, j.audience) {
		return model.TokenClaims{}, false
	}

	decoded, err := toModel(claims)
	if err != nil {
		return model.TokenClaims{}, false
	}
	return decoded, true
}

func toModel(claims *Claims) (model.TokenClaims, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("invalid subject: %w", err)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("invalid session id: %w", err)
	}

	out := model.TokenClaims{
		ID:        claims.ID,
		UserID:    userID,
		SessionID: sessionID,
		Role:      claims.Role,
		Type:      claims.TokenType,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

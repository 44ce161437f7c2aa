package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dtroode/authkeeper-server/internal/api/http/route"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// TokenService resolves the caller identity from bearer tokens.
type TokenService interface {
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
}

// ErrorWriter renders a failure as the response of r.
type ErrorWriter interface {
	Write(w http.ResponseWriter, r *http.Request, err error)
}

// Authenticate validates bearer tokens and injects the identity into context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	errors         ErrorWriter
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, errorWriter ErrorWriter, logger *logger.Logger) *Authenticate {
	return &Authenticate{
		tokenService:   tokenService,
		contextManager: contextManager,
		errors:         errorWriter,
		logger:         logger,
	}
}

// Handler rejects requests without a valid access token.
func (m *Authenticate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			m.errors.Write(w, r, apierror.Unauthorized("Authentication required."))
			return
		}

		identity, err := m.tokenService.Authenticate(r.Context(), tokenString)
		if err != nil {
			m.logger.Debug("Authenticate middleware: token rejected",
				"path", route.Name(r),
				"error", err.Error())
			m.errors.Write(w, r, apierror.Unauthorized("Invalid or expired token.", err.Error()))
			return
		}

		ctx := m.contextManager.SetIdentityToContext(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

package router

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dtroode/authkeeper-server/internal/api/http/handler"
	"github.com/dtroode/authkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/authkeeper-server/internal/api/http/route"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// Router wires HTTP handlers and middleware for the authentication API.
type Router struct {
	authService    handler.AuthService
	tokenService   middleware.TokenService
	healthChecker  handler.HealthChecker
	contextManager model.ContextManager
	logger         *logger.Logger
	basePath       string
	diagnostic     bool
}

// New creates a new HTTP Router instance. Diagnostic enables cause details in
// 5xx responses.
func New(
	authService handler.AuthService,
	tokenService middleware.TokenService,
	healthChecker handler.HealthChecker,
	contextManager model.ContextManager,
	logger *logger.Logger,
	basePath string,
	diagnostic bool,
) *Router {
	return &Router{
		authService:    authService,
		tokenService:   tokenService,
		healthChecker:  healthChecker,
		contextManager: contextManager,
		logger:         logger,
		basePath:       "/" + strings.Trim(basePath, "/"),
		diagnostic:     diagnostic,
	}
}

// Register builds the HTTP handler tree.
func (r *Router) Register() http.Handler {
	errorWriter := handler.NewErrorWriter(r.logger, r.diagnostic)
	logging := middleware.NewLogging(r.logger)
	recoverer := middleware.NewRecover(errorWriter, r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, errorWriter, r.logger)

	authHandler := handler.NewAuth(r.authService, r.contextManager, errorWriter, r.logger)
	healthHandler := handler.NewHealth(r.healthChecker, r.logger)

	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		errorWriter.Write(w, req, apierror.NotFound("Resource not found."))
	})
	m.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		errorWriter.Write(w, req, apierror.Generic(http.StatusMethodNotAllowed, "Method not allowed."))
	})

	// Routes live on the root router with full paths: a subrouter would turn
	// method mismatches into 404.
	m.HandleFunc("/healthz", healthHandler.Check).Methods(http.MethodGet)
	m.HandleFunc(r.path("/register"), authHandler.Register).Methods(http.MethodPost)
	m.HandleFunc(r.path("/login"), authHandler.Login).Methods(http.MethodPost)
	m.HandleFunc(r.path("/refresh/{token}"), authHandler.Refresh).Methods(http.MethodPost)
	m.Handle(r.path("/logout"), authenticate.Handler(http.HandlerFunc(authHandler.Logout))).Methods(http.MethodPost)
	m.Handle(r.path("/logout/all"), authenticate.Handler(http.HandlerFunc(authHandler.LogoutAll))).Methods(http.MethodPost)
	m.Handle(r.path("/me"), authenticate.Handler(http.HandlerFunc(authHandler.Me))).Methods(http.MethodGet)

	traced := otelhttp.NewHandler(recoverer.Handler(logging.Handler(m)), "authkeeper.http",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + route.Name(req)
		}),
	)
	return route.Middleware(m)(traced)
}

// path joins p to the base path. A root base path adds nothing.
func (r *Router) path(p string) string {
	if r.basePath == "/" {
		return p
	}
	return r.basePath + p
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dtroode/authkeeper-server/internal/api/grpc/health"
	grpcrouter "github.com/dtroode/authkeeper-server/internal/api/grpc/router"
	grpcserver "github.com/dtroode/authkeeper-server/internal/api/grpc/server"
	httpcontext "github.com/dtroode/authkeeper-server/internal/api/http/context"
	httprouter "github.com/dtroode/authkeeper-server/internal/api/http/router"
	httpserver "github.com/dtroode/authkeeper-server/internal/api/http/server"
	"github.com/dtroode/authkeeper-server/internal/config"
	"github.com/dtroode/authkeeper-server/internal/hasher"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/server"
	"github.com/dtroode/authkeeper-server/internal/service"
	"github.com/dtroode/authkeeper-server/internal/telemetry"
	"github.com/dtroode/authkeeper-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to initialize tracing", "error", err)
	}

	stores := newBackends(cfg, logger)
	userStore, usersPinger, err := stores.userStore(ctx)
	if err != nil {
		logger.Fatal("failed to initialize user store", "driver", cfg.Database.Driver, "error", err)
	}
	sessionStore, sessionsPinger, err := stores.sessionStore(ctx)
	if err != nil {
		logger.Fatal("failed to initialize session store", "driver", cfg.SessionDriver(), "error", err)
	}

	tokenManager := token.NewJWT(token.Options{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	sessions := service.NewSessions(tokenManager, sessionStore, logger, service.SessionsOptions{
		RefreshTTL:   tokenManager.RefreshTTL(),
		SingleActive: cfg.Sessions.SingleActive,
	})
	authService := service.NewAuth(userStore, hasher.NewBcrypt(cfg.Bcrypt.Cost), tokenManager, sessions, logger)

	checker := health.NewChecker(map[string]model.Pinger{
		"users":    usersPinger,
		"sessions": sessionsPinger,
	}, logger)

	httpRouter := httprouter.New(authService, sessions, checker, httpcontext.NewManager(), logger, cfg.HTTP.BasePath, cfg.Diagnostic())
	servers := []model.Server{
		httpserver.NewHTTPServer(httpRouter.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port), cfg.HTTP.ReadHeaderTimeout),
	}
	if cfg.GRPC.Enabled {
		go checker.Run(ctx, cfg.GRPC.HealthCheckInterval)
		grpcRouter := grpcrouter.New(checker.Server(), logger)
		servers = append(servers, grpcserver.NewGRPCServer(grpcRouter.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port)))
	}

	sl := server.NewSecurityLayer(cfg.HTTP)

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}
	wg.Wait()

	stores.Close(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

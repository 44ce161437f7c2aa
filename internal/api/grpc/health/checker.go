// Package health tracks backing store availability and publishes it through
// the gRPC health service.
package health

import (
	"context"
	"sync"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// ServiceName is the health service name of the authentication API.
const ServiceName = "authkeeper.Auth"

const pingTimeout = 2 * time.Second

// Checker pings named stores and mirrors the result into a gRPC health server.
type Checker struct {
	pingers map[string]model.Pinger
	server  *grpchealth.Server
	logger  *logger.Logger
}

func NewChecker(pingers map[string]model.Pinger, logger *logger.Logger) *Checker {
	return &Checker{
		pingers: pingers,
		server:  grpchealth.NewServer(),
		logger:  logger,
	}
}

// Server returns the gRPC health server fed by Update.
func (c *Checker) Server() *grpchealth.Server {
	return c.server
}

// Check pings every store concurrently. A nil entry means the store is reachable.
func (c *Checker) Check(ctx context.Context) map[string]error {
	results := make(map[string]error, len(c.pingers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, pinger := range c.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			err := pinger.Ping(pingCtx)

			mu.Lock()
			results[name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}

// Update runs Check and sets the serving status of the server and ServiceName.
func (c *Checker) Update(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, err := range c.Check(ctx) {
		if err != nil {
			c.logger.Warn("Health checker: store unavailable",
				"store", name,
				"error", err.Error())
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
}

// Run calls Update now and then every interval until ctx is done, after
// which the server reports NOT_SERVING for good.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Update(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Update(ctx)
		}
	}
}

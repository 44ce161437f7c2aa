package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/logger"
)

// HealthChecker reports the state of every backing store by name.
type HealthChecker interface {
	Check(ctx context.Context) map[string]error
}

type healthResponse struct {
	Checks map[string]string `json:"checks"`
}

// Health serves the liveness endpoint.
type Health struct {
	checker HealthChecker
	logger  *logger.Logger
}

func NewHealth(checker HealthChecker, logger *logger.Logger) *Health {
	return &Health{checker: checker, logger: logger}
}

func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	results := h.checker.Check(r.Context())

	checks := make(map[string]string, len(results))
	var failed []string
	for name, err := range results {
		if err != nil {
			checks[name] = "unavailable"
			failed = append(failed, name+": "+err.Error())
			continue
		}
		checks[name] = "ok"
	}
	sort.Strings(failed)

	status := http.StatusOK
	env := response.Success(healthResponse{Checks: checks}, "Service is healthy.")
	if len(failed) > 0 {
		h.logger.Warn("Health handler: dependency check failed",
			"failed", failed)
		status = http.StatusServiceUnavailable
		env = response.Error("Service is unavailable.", failed)
		env.Data = healthResponse{Checks: checks}
	}

	if err := response.WriteJSON(w, status, env); err != nil {
		h.logger.Error("Health handler: failed to write response",
			"error", err.Error())
	}
}

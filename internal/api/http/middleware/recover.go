package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dtroode/authkeeper-server/internal/api/http/route"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
)

// Recover turns handler panics into unexpected-error responses.
type Recover struct {
	errors ErrorWriter
	logger *logger.Logger
}

func NewRecover(errorWriter ErrorWriter, logger *logger.Logger) *Recover {
	return &Recover{errors: errorWriter, logger: logger}
}

func (m *Recover) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			m.logger.Error("Recover middleware: handler panicked",
				"method", r.Method,
				"path", route.Name(r),
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			m.errors.Write(w, r, apierror.Unexpected(fmt.Errorf("panic: %v", rec)))
		}()

		next.ServeHTTP(w, r)
	})
}

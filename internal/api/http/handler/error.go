package handler

import (
	"net/http"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/api/http/route"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
)

const (
	msgDatabaseError   = "Database error occurred."
	msgUnexpectedError = "An unexpected error occurred."
)

// mapError turns err into a status code and envelope. Store and unexpected
// failures expose their cause only when diagnostic is set.
func mapError(err error, diagnostic bool) (int, response.Envelope) {
	apiErr := apierror.From(err)
	status := apiErr.StatusCode()

	switch apiErr.Kind {
	case apierror.KindUnauthorized, apierror.KindNotFound, apierror.KindValidation,
		apierror.KindForbidden, apierror.KindGeneric:
		return status, response.Error(apiErr.Message, apiErr.Errors)
	case apierror.KindStore:
		if diagnostic {
			return status, response.Error(apiErr.Message, causeOf(apiErr))
		}
		return status, response.Error(msgDatabaseError, nil)
	case apierror.KindUnexpected:
		if diagnostic {
			return status, response.Error(msgUnexpectedError, causeOf(apiErr))
		}
		return status, response.Error(msgUnexpectedError, nil)
	default:
		panic("handler: unhandled error kind " + apiErr.Kind.String())
	}
}

func causeOf(apiErr *apierror.Error) []string {
	if cause := apiErr.Cause(); cause != nil {
		return []string{cause.Error()}
	}
	return nil
}

// ErrorWriter renders failures through mapError and logs them.
type ErrorWriter struct {
	logger     *logger.Logger
	diagnostic bool
}

func NewErrorWriter(logger *logger.Logger, diagnostic bool) *ErrorWriter {
	return &ErrorWriter{logger: logger, diagnostic: diagnostic}
}

// Write renders err as the response of r.
func (e *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, env := mapError(err, e.diagnostic)

	args := []any{
		"kind", apierror.From(err).Kind.String(),
		"method", r.Method,
		"path", route.Name(r),
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		e.logger.Error("HTTP handler: request failed", args...)
	} else {
		e.logger.Warn("HTTP handler: request rejected", args...)
	}

	if writeErr := response.WriteJSON(w, status, env); writeErr != nil {
		e.logger.Error("HTTP handler: failed to write response",
			"path", route.Name(r),
			"error", writeErr.Error())
	}
}

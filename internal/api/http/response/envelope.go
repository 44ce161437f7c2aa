// Package response renders the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every response body. Errors is null on success and an array,
// possibly empty, on failure.
type Envelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Data    any      `json:"data"`
	Errors  []string `json:"errors"`
}

func Success(data any, message string) Envelope {
	return Envelope{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}

func Error(message string, errs []string) Envelope {
	if errs == nil {
		errs = []string{}
	}
	return Envelope{
		Status:  StatusError,
		Message: message,
		Errors:  errs,
	}
}

// WriteJSON writes env with the given status code.
func WriteJSON(w http.ResponseWriter, status int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}

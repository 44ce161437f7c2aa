package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		env      Envelope
		wantBody string
	}{
		{
			name:     "success has null errors",
			status:   http.StatusOK,
			env:      Success(map[string]string{"id": "1"}, "ok"),
			wantBody: `{"status":"success","message":"ok","data":{"id":"1"},"errors":null}`,
		},
		{
			name:     "success without data",
			status:   http.StatusOK,
			env:      Success(nil, "done"),
			wantBody: `{"status":"success","message":"done","data":null,"errors":null}`,
		},
		{
			name:     "error has empty array",
			status:   http.StatusInternalServerError,
			env:      Error("boom", nil),
			wantBody: `{"status":"error","message":"boom","data":null,"errors":[]}`,
		},
		{
			name:     "error keeps details",
			status:   http.StatusBadRequest,
			env:      Error("Validation failed.", []string{"Name is required"}),
			wantBody: `{"status":"error","message":"Validation failed.","data":null,"errors":["Name is required"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, WriteJSON(rec, tt.status, tt.env))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

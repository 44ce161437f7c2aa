package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authkeeper-server/internal/testutil"
)

type staticChecker map[string]error

func (c staticChecker) Check(context.Context) map[string]error {
	return c
}

func TestHealth_Check(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealth(staticChecker{"users": nil, "sessions": nil}, testutil.MakeNoopLogger())
		rec := httptest.NewRecorder()
		h.Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"status":"success","message":"Service is healthy.","data":{"checks":{"users":"ok","sessions":"ok"}},"errors":null}`,
			rec.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		h := NewHealth(staticChecker{"users": nil, "sessions": assert.AnError}, testutil.MakeNoopLogger())
		rec := httptest.NewRecorder()
		h.Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, []string{"sessions: " + assert.AnError.Error()}, env.Errors)
		assert.JSONEq(t, `{"checks":{"users":"ok","sessions":"unavailable"}}`, string(env.Data))
	})
}

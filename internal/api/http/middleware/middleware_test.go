package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpcontext "github.com/dtroode/authkeeper-server/internal/api/http/context"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/mocks"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/testutil"
)

// recordingWriter captures the error passed to it and answers with its status.
type recordingWriter struct {
	err error
}

func (r *recordingWriter) Write(w http.ResponseWriter, _ *http.Request, err error) {
	r.err = err
	w.WriteHeader(apierror.From(err).StatusCode())
}

func TestAuthenticate_Handler(t *testing.T) {
	identity := model.Identity{UserID: uuid.New(), SessionID: uuid.New(), Role: model.RoleUser}

	tests := []struct {
		name       string
		header     string
		setup      func(m *mocks.TokenService)
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication required.",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication required.",
		},
		{
			name:       "empty token",
			header:     "Bearer   ",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication required.",
		},
		{
			name:   "rejected token",
			header: "Bearer bad",
			setup: func(m *mocks.TokenService) {
				m.On("Authenticate", mock.Anything, "bad").Return(model.Identity{}, errors.New("token is expired")).Once()
			},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid or expired token.",
		},
		{
			name:   "valid token",
			header: "bearer good",
			setup: func(m *mocks.TokenService) {
				m.On("Authenticate", mock.Anything, "good").Return(identity, nil).Once()
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := mocks.NewTokenService(t)
			if tt.setup != nil {
				tt.setup(tokens)
			}
			writer := &recordingWriter{}
			contextManager := httpcontext.NewManager()
			mw := NewAuthenticate(tokens, contextManager, writer, testutil.MakeNoopLogger())

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok := contextManager.GetIdentityFromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, identity, got)
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.Handler(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				require.Error(t, writer.err)
				assert.True(t, apierror.IsKind(writer.err, apierror.KindUnauthorized))
				assert.Equal(t, tt.wantMsg, apierror.From(writer.err).Message)
			}
		})
	}
}

func TestRecover_Handler(t *testing.T) {
	writer := &recordingWriter{}
	mw := NewRecover(writer, testutil.MakeNoopLogger())

	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, apierror.IsKind(writer.err, apierror.KindUnexpected))
	assert.ErrorContains(t, writer.err, "boom")
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	mw := NewRecover(&recordingWriter{}, testutil.MakeNoopLogger())

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		mw.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLogging_Handler(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLogging(logger.NewWithWriter(&buf, 0, "json"))

	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/api/login", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, 5, entry["bytes"])
}

func TestLogging_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLogging(logger.NewWithWriter(&buf, 0, "json"))

	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

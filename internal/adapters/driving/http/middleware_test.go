package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"valid bearer token", "Bearer abc123", "abc123"},
		{"extra spaces", "Bearer   token-with-spaces   ", "token-with-spaces"},
		{"lowercase scheme", "bearer token123", "token123"},
		{"empty header", "", ""},
		{"no scheme", "token123", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, extractBearerToken(req))
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	assert.Nil(t, GetAuthContext(context.Background()))

	ctx := WithAuthContext(context.Background(), &domain.AuthContext{UserID: "coach-1", ClubID: "club-1"})
	authCtx := GetAuthContext(ctx)
	require.NotNil(t, authCtx)
	assert.Equal(t, "coach-1", authCtx.UserID)
	assert.Equal(t, "club-1", authCtx.ClubID)
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	auth := &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			switch token {
			case "valid-token":
				return &domain.AuthContext{UserID: "coach-1", ClubID: "club-1"}, nil
			case "expired-token":
				return nil, domain.ErrTokenExpired
			default:
				return nil, errors.New("signature is invalid")
			}
		},
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"missing token", "", http.StatusUnauthorized, "missing authorization token"},
		{"expired token", "Bearer expired-token", http.StatusUnauthorized, "token expired"},
		{"invalid token", "Bearer forged", http.StatusUnauthorized, "invalid token"},
		{"valid token", "Bearer valid-token", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *domain.AuthContext
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetAuthContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			NewAuthMiddleware(auth).Authenticate(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				var resp ErrorResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, tt.wantError, resp.Error)
				assert.Nil(t, seen, "handler must not run")
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, "club-1", seen.ClubID)
		})
	}
}

func TestLoggingMiddleware_RequestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	auth := &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			return &domain.AuthContext{UserID: "coach-1", ClubID: "club-1"}, nil
		},
	}
	inner := NewAuthMiddleware(auth).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, RequestID(r.Context()))
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	NewLoggingMiddleware(logger).Handler(inner).ServeHTTP(rr, req)

	id := rr.Header().Get(requestIDHeader)
	require.NotEmpty(t, id)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, id, entry["request_id"])
	assert.Equal(t, "club-1", entry["club_id"])
	assert.Equal(t, "coach-1", entry["user_id"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
	assert.EqualValues(t, 5, entry["bytes"])
}

func TestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "upstream-42")
	rr := httptest.NewRecorder()

	var seen string
	NewLoggingMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		})).ServeHTTP(rr, req)

	assert.Equal(t, "upstream-42", seen)
	assert.Equal(t, "upstream-42", rr.Header().Get(requestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("chunk index out of range")
	})
	handler := NewLoggingMiddleware(logger).Handler(NewRecoveryMiddleware(logger).Handler(panicking))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	logs := buf.String()
	assert.Contains(t, logs, "panic recovered")
	assert.Contains(t, logs, "request_id="+rr.Header().Get(requestIDHeader))
	assert.True(t, strings.Contains(logs, "level=ERROR") && strings.Contains(logs, "status=500"))
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		req.Header.Set("Origin", "https://club.example.com")
		rr := httptest.NewRecorder()
		NewCORSMiddleware([]string{"https://club.example.com"}).Handler(next).ServeHTTP(rr, req)

		assert.Equal(t, "https://club.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, requestIDHeader, rr.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
		req.Header.Set("Origin", "https://club.example.com")
		rr := httptest.NewRecorder()
		NewCORSMiddleware([]string{"*"}).Handler(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		NewCORSMiddleware([]string{"https://club.example.com"}).Handler(next).ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

func newTestOpenAI(t *testing.T, url string, dims int) *OpenAIEmbedding {
	t.Helper()
	svc, err := NewOpenAIEmbedding(Config{
		APIKey:     "sk-test",
		Model:      "text-embedding-3-small",
		BaseURL:    url,
		Dimensions: dims,
		Timeout:    2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestNewOpenAIEmbedding_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedding(Config{Model: "text-embedding-3-small"}); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNewOpenAIEmbedding_Defaults(t *testing.T) {
	svc, err := NewOpenAIEmbedding(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Model() != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", svc.Model())
	}
	if svc.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", svc.baseURL)
	}
	if svc.Dimensions() != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", svc.Dimensions())
	}
}

func TestOpenAIEmbedding_Dimensions(t *testing.T) {
	testCases := []struct {
		model      string
		override   int
		dimensions int
	}{
		{"text-embedding-3-small", 0, 1536},
		{"text-embedding-3-large", 0, 3072},
		{"text-embedding-ada-002", 0, 1536},
		{"custom-model", 0, 1536},
		{"text-embedding-3-small", 384, 384},
	}

	for _, tc := range testCases {
		svc, err := NewOpenAIEmbedding(Config{APIKey: "sk-test", Model: tc.model, Dimensions: tc.override})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.Dimensions() != tc.dimensions {
			t.Errorf("model %s: expected %d dimensions, got %d", tc.model, tc.dimensions, svc.Dimensions())
		}
	}
}

func TestOpenAIEmbedding_ShortenOnlyForVariableModels(t *testing.T) {
	testCases := []struct {
		model    string
		override int
		shorten  bool
	}{
		{"text-embedding-3-small", 0, false},
		{"text-embedding-3-small", 1536, false},
		{"text-embedding-3-large", 1024, true},
		{"text-embedding-ada-002", 768, false},
		{"custom-model", 768, false},
	}

	for _, tc := range testCases {
		svc, err := NewOpenAIEmbedding(Config{APIKey: "sk-test", Model: tc.model, Dimensions: tc.override})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.shorten != tc.shorten {
			t.Errorf("model %s/%d: expected shorten=%v", tc.model, tc.override, tc.shorten)
		}
	}
}

func TestOpenAIEmbedding_Embed_EmptyInput(t *testing.T) {
	svc := newTestOpenAI(t, "http://unused", 3)
	result, err := svc.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("expected nil result for empty input")
	}
}

func TestOpenAIEmbedding_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected Authorization header")
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}
		if req.Dimensions != 3 {
			t.Errorf("expected shortened dimensions 3, got %d", req.Dimensions)
		}

		// Out of order on purpose
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.4,0.5,0.6]},
			{"index":0,"embedding":[0.1,0.2,0.3]}
		],"model":"text-embedding-3-small"}`))
	}))
	defer server.Close()

	svc := newTestOpenAI(t, server.URL, 3)
	result, err := svc.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(result))
	}
	if result[0][0] != 0.1 || result[1][0] != 0.4 {
		t.Errorf("embeddings not ordered by index: %v", result)
	}
}

func TestOpenAIEmbedding_Embed_ErrorClassification(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		kind      domain.ErrorKind
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"message":"maximum context length exceeded"}}`, domain.ErrorKindEmbeddingRejected, false},
		{"too large", http.StatusRequestEntityTooLarge, `{}`, domain.ErrorKindEmbeddingRejected, false},
		{"unavailable", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`, domain.ErrorKindEmbeddingService, true},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, domain.ErrorKindEmbeddingService, true},
		{"gateway timeout", http.StatusGatewayTimeout, ``, domain.ErrorKindEmbeddingTimeout, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestOpenAI(t, server.URL, 3).Embed(context.Background(), []string{"text"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.KindOf(err); got != tc.kind {
				t.Errorf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
			if domain.IsRetryable(err) != tc.retryable {
				t.Errorf("expected retryable=%v for %v", tc.retryable, err)
			}
		})
	}
}

func TestOpenAIEmbedding_Embed_UpstreamMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"input too long"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL, 3).Embed(context.Background(), []string{"text"})
	if err == nil || !strings.Contains(err.Error(), "input too long") {
		t.Errorf("expected upstream message in error, got %v", err)
	}
}

func TestOpenAIEmbedding_Embed_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL, 3).Embed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Errorf("expected embedding service error, got %v", err)
	}
}

func TestOpenAIEmbedding_Embed_MissingVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL, 3).Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Errorf("expected embedding service error, got %v", err)
	}
}

func TestOpenAIEmbedding_Embed_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL, 3).Embed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Errorf("expected embedding service error, got %v", err)
	}
}

func TestOpenAIEmbedding_Embed_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestOpenAI(t, server.URL, 3).Embed(ctx, []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingTimeout) {
		t.Errorf("expected embedding timeout, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("timeouts should be retryable")
	}
}

func TestOpenAIEmbedding_Embed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOpenAI(t, "http://127.0.0.1:1", 3).Embed(ctx, []string{"text"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if domain.IsRetryable(err) {
		t.Error("cancellation must not be retryable")
	}
}

func TestOpenAIEmbedding_Embed_NetworkError(t *testing.T) {
	_, err := newTestOpenAI(t, "http://127.0.0.1:1", 3).Embed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Errorf("expected embedding service error, got %v", err)
	}
}

func TestOpenAIEmbedding_RetryAfterDelaysNextRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	svc := newTestOpenAI(t, server.URL, 3)
	_, err := svc.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected service error for 429, got %v", err)
	}

	start := time.Now()
	if _, err := svc.Embed(context.Background(), []string{"text"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("expected the client to honour Retry-After, waited %v", elapsed)
	}
}

func TestOpenAIEmbedding_RateLimitExceedsDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding(Config{
		APIKey:     "sk-test",
		BaseURL:    server.URL,
		Dimensions: 3,
		RateLimit:  RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Embed(context.Background(), []string{"first"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = svc.Embed(ctx, []string{"second"})
	if !errors.Is(err, domain.ErrEmbeddingTimeout) {
		t.Errorf("expected embedding timeout from the limiter, got %v", err)
	}
}

func TestOpenAIEmbedding_EmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	svc := newTestOpenAI(t, server.URL, 3)
	result, err := svc.EmbedQuery(context.Background(), "test query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(result))
	}
	if err := svc.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

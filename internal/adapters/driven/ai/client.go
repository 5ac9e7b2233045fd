package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// RateLimitConfig holds the request rate allowed against an embedding API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit. Zero disables limiting.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// apiClient performs rate-limited JSON calls and classifies failures into
// the embedding error kinds.
type apiClient struct {
	provider string
	http     *http.Client
	limiter  *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

func newAPIClient(provider string, timeout time.Duration, rl RateLimitConfig) *apiClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &apiClient{
		provider: provider,
		http:     &http.Client{Timeout: timeout},
	}
	if rl.RequestsPerSecond > 0 {
		burst := rl.BurstSize
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	}
	return c
}

// wait blocks until a request may be sent, honoring any Retry-After
// window set by a previous 429.
func (c *apiClient) wait(ctx context.Context) error {
	c.mu.Lock()
	retryAt := c.retryAt
	c.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The limiter refuses waits that would outlive the deadline
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

func (c *apiClient) backOffUntil(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.retryAt) {
		c.retryAt = t
	}
}

// postJSON sends body to url and decodes a 200 response into out.
func (c *apiClient) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	const op = "embed"

	if err := c.wait(ctx); err != nil {
		return c.classifyTransport(op, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.NewPipelineError(domain.ErrorKindEmbeddingRejected, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.NewPipelineError(domain.ErrorKindEmbeddingService, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.classifyTransport(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.classifyTransport(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				c.backOffUntil(time.Now().Add(time.Duration(secs) * time.Second))
			}
		}
		return classifyStatus(op, c.provider, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewPipelineError(domain.ErrorKindEmbeddingService, op, fmt.Errorf("parse %s response: %w", c.provider, err))
	}
	return nil
}

func (c *apiClient) close() {
	c.http.CloseIdleConnections()
}

// classifyTransport maps a failure that produced no HTTP response.
// Cancellation is passed through unclassified: it is the caller stopping,
// not the upstream failing.
func (c *apiClient) classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewPipelineError(domain.ErrorKindEmbeddingTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewPipelineError(domain.ErrorKindEmbeddingTimeout, op, err)
	}
	return domain.NewPipelineError(domain.ErrorKindEmbeddingService, op, fmt.Errorf("%s request failed: %w", c.provider, err))
}

// classifyStatus maps a non-200 response. Input problems are rejected and
// must not be retried; everything else is an upstream failure.
func classifyStatus(op, provider string, status int, body []byte) error {
	msg := upstreamMessage(body)
	err := fmt.Errorf("%s returned status %d: %s", provider, status, msg)

	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return domain.NewPipelineError(domain.ErrorKindEmbeddingRejected, op, err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.NewPipelineError(domain.ErrorKindEmbeddingTimeout, op, err)
	default:
		return domain.NewPipelineError(domain.ErrorKindEmbeddingService, op, err)
	}
}

// upstreamMessage pulls a human readable message out of an error body.
// OpenAI nests it under error.message, Ollama uses a top-level error.
func upstreamMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(bytes.TrimSpace(body))
}

// checkVectors enforces one vector per input with the configured dimension.
func checkVectors(provider string, vectors [][]float32, inputs, dimensions int) error {
	if len(vectors) != inputs {
		return domain.NewPipelineError(domain.ErrorKindEmbeddingService, "embed",
			fmt.Errorf("%s returned %d embeddings for %d inputs", provider, len(vectors), inputs))
	}
	for i, v := range vectors {
		if dimensions > 0 && len(v) != dimensions {
			return domain.NewPipelineError(domain.ErrorKindEmbeddingService, "embed",
				fmt.Errorf("%s returned %d dimensions for input %d, want %d", provider, len(v), i, dimensions))
		}
	}
	return nil
}

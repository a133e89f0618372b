package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// ErrNoChoices is returned when the service answers without any completion.
var ErrNoChoices = errors.New("response contained no choices")

// client wraps the HTTP client for chat completion calls.
type client struct {
	apiKey     string
	baseURL    string
	referer    string
	title      string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// chatCompletion sends a chat completion request, retrying rate limits,
// server errors and network failures with exponential backoff.
func (c *client) chatCompletion(ctx context.Context, requestID string, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	log := c.logger.With(zap.String("request_id", requestID), zap.String("model", req.Model))

	return retry.DoWithData(
		func() (*chatCompletionResponse, error) {
			return c.send(ctx, requestID, body)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTemporary),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying chat completion",
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
}

// send performs a single HTTP round trip.
func (c *client) send(ctx context.Context, requestID string, body []byte) (*chatCompletionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Request-Id", requestID)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.Error != nil {
		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			Message:    resp.Error.Message,
			Type:       resp.Error.Type,
			Code:       resp.Error.code(),
		}
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	return &resp, nil
}

// parseError parses an error response from the API.
func parseError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{
			StatusCode: statusCode,
			Message:    string(body),
		}
	}

	return &APIError{
		StatusCode: statusCode,
		Message:    errResp.Error.Message,
		Type:       errResp.Error.Type,
		Code:       errResp.Error.code(),
	}
}

// APIError represents an error reported by the chat completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code of the failed call.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Temporary reports whether the call may succeed if repeated.
func (e *APIError) Temporary() bool {
	if temporaryStatus(e.StatusCode) {
		return true
	}
	switch e.Code {
	case "overloaded", "rate_limit_exceeded":
		return true
	}
	if n, err := strconv.Atoi(e.Code); err == nil {
		return temporaryStatus(n)
	}
	return false
}

func temporaryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// isTemporary decides whether a failed round trip is retried.
// Anything that is not an API error or a cancelled context is a network
// failure and is retried.
func isTemporary(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

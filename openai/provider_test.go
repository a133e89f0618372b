package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/structex/provider"
)

const okBody = `{
  "id": "gen-1",
  "model": "amazon/nova-pro-v1",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"name\":\"Harry Potter\"}"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func newTestProvider(t *testing.T, url string, opts ...Option) *Provider {
	t.Helper()
	opts = append([]Option{
		WithAPIKey("test-key"),
		WithBaseURL(url),
		WithRetryDelay(time.Millisecond),
	}, opts...)
	p, err := NewOpenRouter(opts...)
	require.NoError(t, err)
	return p
}

func TestProvider_Call(t *testing.T) {
	var got chatCompletionRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, WithReferer("https://example.com"), WithTitle("structex"))
	temp := 0.2
	resp, err := p.Call(context.Background(), &provider.Request{
		Model:       "amazon/nova-pro-v1",
		Messages:    []provider.Message{provider.SystemMessage("be precise"), provider.UserMessage("who?")},
		Temperature: &temp,
		RequestID:   "req-123",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"name":"Harry Potter"}`, resp.Content)
	assert.Equal(t, provider.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, "gen-1", resp.ID)
	assert.Equal(t, provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, "amazon/nova-pro-v1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "who?", got.Messages[1].Content)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
	assert.Nil(t, got.ResponseFormat)

	assert.Equal(t, "Bearer test-key", headers.Get("Authorization"))
	assert.Equal(t, "req-123", headers.Get("X-Request-Id"))
	assert.Equal(t, "https://example.com", headers.Get("HTTP-Referer"))
	assert.Equal(t, "structex", headers.Get("X-Title"))
}

func TestProvider_Call_JSONSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Call(context.Background(), &provider.Request{
		Model:    "m",
		Messages: []provider.Message{provider.UserMessage("x")},
		JSONSchema: &provider.JSONSchema{
			Name:   "Person",
			Strict: true,
			Schema: json.RawMessage(`{"type":"object"}`),
		},
	})
	require.NoError(t, err)

	rf, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]any)
	assert.Equal(t, "Person", js["name"])
	assert.Equal(t, true, js["strict"])
	assert.Equal(t, map[string]any{"type": "object"}, js["schema"])
}

func TestProvider_Call_GeneratesRequestID(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-Id"))
		if len(ids) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Call(context.Background(), &provider.Request{Model: "m"})
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1], "retries reuse the request id")
}

func TestProvider_Call_Retries(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		maxRetries int
		wantCalls  int32
		wantErr    bool
		wantStatus int
	}{
		{
			name:       "rate limited then ok",
			status:     http.StatusTooManyRequests,
			maxRetries: 2,
			wantCalls:  2,
		},
		{
			name:       "server error exhausts retries",
			status:     http.StatusInternalServerError,
			maxRetries: 2,
			wantCalls:  3,
			wantErr:    true,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "bad request is not retried",
			status:     http.StatusBadRequest,
			body:       `{"error":{"message":"invalid model","type":"invalid_request_error","code":"model_not_found"}}`,
			maxRetries: 2,
			wantCalls:  1,
			wantErr:    true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unauthorized is not retried",
			status:     http.StatusUnauthorized,
			body:       `{"error":{"message":"No auth credentials found","code":401}}`,
			maxRetries: 2,
			wantCalls:  1,
			wantErr:    true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "retries disabled",
			status:     http.StatusBadGateway,
			maxRetries: 0,
			wantCalls:  1,
			wantErr:    true,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				// Rate limit only the first call so that a retry can succeed.
				if tt.status == http.StatusTooManyRequests && n > 1 {
					_, _ = io.WriteString(w, okBody)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := newTestProvider(t, srv.URL, WithMaxRetries(tt.maxRetries))
			_, err := p.Call(context.Background(), &provider.Request{Model: "m"})

			assert.Equal(t, tt.wantCalls, calls.Load())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.HTTPStatus())
		})
	}
}

func TestProvider_Call_ErrorInOKBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCalls int32
		wantCode  string
	}{
		{
			name:      "overloaded upstream is retried",
			body:      `{"error":{"message":"Provider returned error","code":502}}`,
			wantCalls: 3,
			wantCode:  "502",
		},
		{
			name:      "moderation is final",
			body:      `{"error":{"message":"flagged","code":403}}`,
			wantCalls: 1,
			wantCode:  "403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := newTestProvider(t, srv.URL, WithMaxRetries(2))
			_, err := p.Call(context.Background(), &provider.Request{Model: "m"})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestProvider_Call_NoChoices(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"id":"x","choices":[]}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, WithMaxRetries(1))
	_, err := p.Call(context.Background(), &provider.Request{Model: "m"})
	assert.ErrorIs(t, err, ErrNoChoices)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProvider_Call_ContextCanceled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProvider(t, srv.URL, WithMaxRetries(5))
	_, err := p.Call(ctx, &provider.Request{Model: "m"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, calls.Load())
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewOpenRouter()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNew_IgnoresEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	_, err := New()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewOpenRouter()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewOpenRouter_Defaults(t *testing.T) {
	p, err := NewOpenRouter(WithAPIKey("k"))
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, "k", p.client.apiKey)
	assert.Equal(t, OpenRouterBaseURL, p.client.baseURL)
}

func TestRegistered(t *testing.T) {
	assert.True(t, provider.IsRegistered("openai"))
	assert.True(t, provider.IsRegistered("openrouter"))

	p, err := provider.Get("openai", provider.Settings{APIKey: "k", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	op := p.(*Provider)
	assert.Equal(t, "http://localhost:1", op.client.baseURL)
}

func TestAPIError_Temporary(t *testing.T) {
	tests := []struct {
		err  APIError
		want bool
	}{
		{APIError{StatusCode: 429}, true},
		{APIError{StatusCode: 500}, true},
		{APIError{StatusCode: 503}, true},
		{APIError{StatusCode: 400}, false},
		{APIError{StatusCode: 404}, false},
		{APIError{StatusCode: 200, Code: "overloaded"}, true},
		{APIError{StatusCode: 200, Code: "rate_limit_exceeded"}, true},
		{APIError{StatusCode: 200, Code: "524"}, true},
		{APIError{StatusCode: 200, Code: "content_filter"}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Temporary(), "%+v", tt.err)
	}
}

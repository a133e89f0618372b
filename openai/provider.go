// Package openai provides a provider for OpenAI-compatible chat completion
// services. Importing it registers two providers: "openai" and
// "openrouter".
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i2y/structex/provider"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key was configured.
var ErrMissingAPIKey = errors.New("API key required")

func init() {
	provider.Register("openai", func(s provider.Settings) (provider.Provider, error) {
		return New(fromSettings(s)...)
	})
	provider.Register("openrouter", func(s provider.Settings) (provider.Provider, error) {
		return NewOpenRouter(fromSettings(s)...)
	})
}

// Provider implements provider.Provider over the chat completions API.
type Provider struct {
	name   string
	client *client
}

// Option configures the provider.
type Option func(*providerConfig)

type providerConfig struct {
	apiKey     string
	baseURL    string
	referer    string
	title      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *providerConfig) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *providerConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client. It takes precedence over WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *providerConfig) {
		c.httpClient = client
	}
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *providerConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets how many times a transient transport failure is
// retried. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *providerConfig) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the base backoff delay between transport retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *providerConfig) {
		c.retryDelay = d
	}
}

// WithReferer sets the HTTP-Referer attribution header.
func WithReferer(referer string) Option {
	return func(c *providerConfig) {
		c.referer = referer
	}
}

// WithTitle sets the X-Title attribution header.
func WithTitle(title string) Option {
	return func(c *providerConfig) {
		c.title = title
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *providerConfig) {
		c.logger = logger
	}
}

func fromSettings(s provider.Settings) []Option {
	opts := []Option{
		WithAPIKey(s.APIKey),
		WithReferer(s.Referer),
		WithTitle(s.Title),
		WithMaxRetries(s.MaxRetries),
	}
	if s.BaseURL != "" {
		opts = append(opts, WithBaseURL(s.BaseURL))
	}
	if s.Timeout > 0 {
		opts = append(opts, WithTimeout(s.Timeout))
	}
	if s.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(s.HTTPClient))
	}
	if s.Logger != nil {
		opts = append(opts, WithLogger(s.Logger))
	}
	return opts
}

// New creates a provider for the OpenAI API. WithAPIKey is required.
func New(opts ...Option) (*Provider, error) {
	return newProvider("openai", OpenAIBaseURL, opts)
}

// NewOpenRouter creates a provider for the OpenRouter API.
// WithAPIKey is required.
func NewOpenRouter(opts ...Option) (*Provider, error) {
	return newProvider("openrouter", OpenRouterBaseURL, opts)
}

func newProvider(name, baseURL string, opts []Option) (*Provider, error) {
	cfg := &providerConfig{
		baseURL:    baseURL,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
	}
	if cfg.maxRetries < 0 {
		cfg.maxRetries = 0
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	return &Provider{
		name: name,
		client: &client{
			apiKey:     cfg.apiKey,
			baseURL:    cfg.baseURL,
			referer:    cfg.referer,
			title:      cfg.title,
			maxRetries: cfg.maxRetries,
			retryDelay: cfg.retryDelay,
			httpClient: cfg.httpClient,
			logger:     cfg.logger.Named(name),
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call implements provider.Provider.
func (p *Provider) Call(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	apiResp, err := p.client.chatCompletion(ctx, requestID, buildRequest(req))
	if err != nil {
		return nil, err
	}

	return convertResponse(apiResp), nil
}

// buildRequest converts a provider.Request to an API request.
func buildRequest(req *provider.Request) *chatCompletionRequest {
	apiReq := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]message, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	if req.JSONSchema != nil {
		apiReq.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   req.JSONSchema.Name,
				Strict: req.JSONSchema.Strict,
				Schema: req.JSONSchema.Schema,
			},
		}
	}

	return apiReq
}

// convertResponse converts an API response to a provider.Response.
func convertResponse(resp *chatCompletionResponse) *provider.Response {
	result := &provider.Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return result
	}

	choice := resp.Choices[0]
	result.Content = choice.Message.Content
	result.FinishReason = convertFinishReason(choice.FinishReason)
	return result
}

func convertFinishReason(reason string) provider.FinishReason {
	if reason == "length" {
		return provider.FinishReasonLength
	}
	return provider.FinishReasonStop
}

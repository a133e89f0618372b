package extract

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i2y/structex/provider"
)

// DefaultMaxAttempts is the total number of generation attempts per
// extraction: the first try plus two repairs.
const DefaultMaxAttempts = 3

// Mode selects how the schema is conveyed to the generation service.
type Mode string

const (
	// ModeMarkdownJSON describes the schema in the prompt and asks for a
	// fenced JSON answer. Works with any chat model.
	ModeMarkdownJSON Mode = "md_json"

	// ModeJSONSchema additionally requests native structured output
	// (response_format json_schema, strict).
	ModeJSONSchema Mode = "json_schema"
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMarkdownJSON, ModeJSONSchema:
		return m, nil
	case "":
		return ModeMarkdownJSON, nil
	}
	return "", fmt.Errorf("unknown mode %q: want %s or %s", s, ModeMarkdownJSON, ModeJSONSchema)
}

// Option configures an Extractor.
type Option func(*options)

type options struct {
	maxAttempts int
	mode        Mode
	temperature *float64
	maxTokens   *int
	provider    provider.Provider
	httpClient  *http.Client
	logger      *zap.Logger
}

func newOptions() *options {
	return &options{
		maxAttempts: DefaultMaxAttempts,
		mode:        ModeMarkdownJSON,
		logger:      zap.NewNop(),
	}
}

func (o *options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithMaxAttempts sets the total number of attempts. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithMode sets how the schema is conveyed. An empty mode means
// ModeMarkdownJSON; any other unknown mode makes Extract fail with a
// *ConfigurationError.
func WithMode(m Mode) Option {
	return func(o *options) {
		if m == "" {
			m = ModeMarkdownJSON
		}
		o.mode = m
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = &t
	}
}

// WithMaxTokens sets the maximum tokens in each reply.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = &n
	}
}

// WithProvider uses p instead of looking Config.Provider up in the registry.
// The configuration is still validated.
func WithProvider(p provider.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithHTTPClient sets the HTTP client handed to registry-built providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

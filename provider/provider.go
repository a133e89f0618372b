// Package provider defines the interface for text-generation services.
package provider

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Provider is the core abstraction for generation services.
// All provider implementations must satisfy this interface.
type Provider interface {
	// Name returns the provider identifier (e.g., "openrouter", "openai").
	Name() string

	// Call executes a single completion request.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// Settings carries the connection parameters a registered factory needs
// to build a Provider.
type Settings struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Referer and Title are sent as attribution headers when set.
	Referer    string
	Title      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

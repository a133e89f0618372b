// Package extract asks a text-generation service for a record of a declared
// shape and returns it validated.
//
// Example:
//
//	ex := extract.New(extract.Config{APIKey: key, BaseURL: "https://openrouter.ai/api/v1"})
//	res, err := ex.ExtractPrompt(ctx, "Can you tell me about Harry Potter's profile?",
//	    person, "amazon/nova-pro-v1")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Record.String("occupation"))
//
// Output that does not conform to the schema is sent back to the model with
// the validation problem, up to a bounded number of attempts.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i2y/structex/provider"
	"github.com/i2y/structex/schema"
)

// Extractor turns prompts into validated records. It holds only immutable
// configuration and is safe for concurrent use.
type Extractor struct {
	cfg  Config
	opts *options
}

// New creates an Extractor. The configuration is validated on every
// extraction, before anything is sent.
func New(cfg Config, opts ...Option) *Extractor {
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	o := newOptions()
	o.apply(opts...)
	return &Extractor{cfg: cfg, opts: o}
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// MaxAttempts returns the total number of attempts per extraction.
func (e *Extractor) MaxAttempts() int {
	return e.opts.maxAttempts
}

// ExtractPrompt is shorthand for Extract(ctx, NewRequest(prompt, rs, model)).
func (e *Extractor) ExtractPrompt(ctx context.Context, prompt string, rs *schema.RecordSchema, model string) (*Result, error) {
	return e.Extract(ctx, NewRequest(prompt, rs, model))
}

// Extract sends the request to the generation service and returns the first
// reply that conforms to the schema.
//
// Errors:
//   - ErrEmptyPrompt, ErrSchemaRequired, ErrModelRequired or a schema error for bad input
//   - *ConfigurationError when the connection settings are unusable
//   - *TransportError when the service fails; it is not retried here
//   - *SchemaValidationError when every attempt produced nonconforming output
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	p, err := e.resolveProvider()
	if err != nil {
		return nil, err
	}

	v, err := schema.NewValidator(req.schema)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	doc, err := req.schema.JSON()
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := e.opts.logger.With(
		zap.String("request_id", requestID),
		zap.String("provider", p.Name()),
		zap.String("model", req.model),
		zap.String("schema", req.schema.Name()),
	)

	messages := []provider.Message{
		provider.SystemMessage(systemPrompt(req.schema, doc, e.opts.mode)),
		provider.UserMessage(req.prompt),
	}

	var (
		usage   provider.Usage
		lastRaw string
		lastErr error
	)
	for attempt := 1; attempt <= e.opts.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Provider: p.Name(), Cause: err}
		}

		log.Debug("requesting completion", zap.Int("attempt", attempt))
		resp, err := p.Call(ctx, e.buildRequest(req, messages, requestID, doc))
		if err != nil {
			log.Warn("completion failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, transportError(p.Name(), err)
		}
		usage.Add(resp.Usage)

		rec, verr := v.Validate(resp.Content)
		if verr == nil {
			log.Debug("output accepted", zap.Int("attempt", attempt))
			model := resp.Model
			if model == "" {
				model = req.model
			}
			return &Result{
				Record:    rec,
				Raw:       resp.Content,
				Attempts:  attempt,
				Model:     model,
				RequestID: requestID,
				Usage:     usage,
			}, nil
		}

		log.Warn("output rejected",
			zap.Int("attempt", attempt),
			zap.String("finish_reason", string(resp.FinishReason)),
			zap.Error(verr),
		)
		lastRaw, lastErr = resp.Content, verr
		messages = append(messages,
			provider.AssistantMessage(resp.Content),
			provider.UserMessage(repairPrompt(verr, resp.FinishReason)),
		)
	}

	return nil, &SchemaValidationError{
		Schema:   req.schema.Name(),
		Attempts: e.opts.maxAttempts,
		Raw:      lastRaw,
		Reason:   lastErr,
	}
}

// resolveProvider validates the configuration, then returns the injected
// provider or builds one from the registry.
func (e *Extractor) resolveProvider() (provider.Provider, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(e.opts.mode)); err != nil {
		return nil, &ConfigurationError{Field: "Mode", Reason: err.Error(), Cause: err}
	}
	if e.opts.provider != nil {
		return e.opts.provider, nil
	}

	if !provider.IsRegistered(e.cfg.Provider) {
		return nil, &ConfigurationError{
			Field:  "Provider",
			Reason: fmt.Sprintf("%q is not registered (available: %v)", e.cfg.Provider, provider.Available()),
		}
	}
	p, err := provider.Get(e.cfg.Provider, provider.Settings{
		APIKey:     e.cfg.APIKey,
		BaseURL:    e.cfg.BaseURL,
		Timeout:    e.cfg.Timeout,
		MaxRetries: e.cfg.MaxRetries,
		Referer:    e.cfg.Referer,
		Title:      e.cfg.Title,
		HTTPClient: e.opts.httpClient,
		Logger:     e.opts.logger,
	})
	if err != nil {
		return nil, &ConfigurationError{Field: "Provider", Reason: err.Error(), Cause: err}
	}
	return p, nil
}

func (e *Extractor) buildRequest(req Request, messages []provider.Message, requestID string, doc []byte) *provider.Request {
	preq := &provider.Request{
		Model:       req.model,
		Messages:    append([]provider.Message(nil), messages...),
		Temperature: e.opts.temperature,
		MaxTokens:   e.opts.maxTokens,
		RequestID:   requestID,
	}
	if e.opts.mode == ModeJSONSchema {
		preq.JSONSchema = &provider.JSONSchema{
			Name:   req.schema.Name(),
			Strict: true,
			Schema: doc,
		}
	}
	return preq
}

func transportError(providerName string, err error) error {
	te := &TransportError{Provider: providerName, Cause: err}
	var sc provider.StatusCoder
	if errors.As(err, &sc) {
		te.StatusCode = sc.HTTPStatus()
	}
	return te
}

package extract

import (
	"strings"

	"github.com/i2y/structex/provider"
	"github.com/i2y/structex/schema"
)

// Request is a single extraction: what to ask, what shape to fill and
// which model to ask. It is immutable once built.
type Request struct {
	prompt string
	schema *schema.RecordSchema
	model  string
}

// NewRequest builds a Request. Inputs are checked when it is extracted.
func NewRequest(prompt string, rs *schema.RecordSchema, model string) Request {
	return Request{prompt: prompt, schema: rs, model: model}
}

func (r Request) Prompt() string { return r.prompt }
func (r Request) Schema() *schema.RecordSchema { return r.schema }
func (r Request) Model() string { return r.model }

func (r Request) validate() error {
	if strings.TrimSpace(r.prompt) == "" {
		return ErrEmptyPrompt
	}
	if r.schema == nil {
		return ErrSchemaRequired
	}
	if err := r.schema.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.model) == "" {
		return ErrModelRequired
	}
	return nil
}

// Result is a validated extraction.
type Result struct {
	// Record maps every schema field to its coerced value.
	Record schema.Record
	// Raw is the text of the accepted reply.
	Raw string
	// Attempts is the number of generation calls made, including the accepted one.
	Attempts int
	// Model is the model that served the accepted reply, as reported by the service.
	Model     string
	RequestID string
	// Usage sums token usage over all attempts.
	Usage provider.Usage
}

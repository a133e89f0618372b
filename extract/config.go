package extract

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultProvider is used when Config.Provider is empty.
const DefaultProvider = "openrouter"

// Config holds the connection settings of the generation service.
type Config struct {
	// Provider is a registered provider name, e.g. "openrouter" or "openai".
	Provider string `validate:"required"`
	APIKey   string `validate:"required"`
	// BaseURL is the endpoint, e.g. https://openrouter.ai/api/v1.
	BaseURL    string        `validate:"required,url"`
	Timeout    time.Duration `validate:"gte=0"`
	MaxRetries int           `validate:"gte=0,lte=10"`
	// Referer and Title are sent as attribution headers.
	Referer string `validate:"omitempty,url"`
	Title   string
}

var validate = validator.New()

// Validate checks the configuration and returns a *ConfigurationError
// naming the first offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{
			Field:  fe.Field(),
			Reason: describeTag(fe),
			Cause:  err,
		}
	}
	return &ConfigurationError{Reason: err.Error(), Cause: err}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "url":
		return "must be an absolute URL"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// Package config loads structex settings from defaults, an optional YAML
// file, an optional .env file, the environment and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/i2y/structex/extract"
	"github.com/i2y/structex/openai"
)

// DefaultEnvFile is read when present and no other .env file was requested.
const DefaultEnvFile = ".env"

// Config is the full set of structex settings.
type Config struct {
	Provider    string        `mapstructure:"provider" validate:"required"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model       string        `mapstructure:"model" validate:"required"`
	Mode        string        `mapstructure:"mode" validate:"oneof=md_json json_schema"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Referer     string        `mapstructure:"referer" validate:"omitempty,url"`
	Title       string        `mapstructure:"title"`
	LogLevel    string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	// SchemaGlob locates YAML schema definitions, e.g. "schemas/**/*.yaml".
	SchemaGlob string `mapstructure:"schema_glob"`
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is a YAML file. When empty, structex.yaml is looked up in
	// the working directory and $HOME/.config/structex, and is optional.
	ConfigFile string
	// EnvFile is a dotenv file. When empty, DefaultEnvFile is read if present.
	EnvFile string
	// Flags, when set, override every other source for keys whose flag was
	// given on the command line. Flag names are keys with "-" for "_".
	Flags *pflag.FlagSet
}

var defaults = map[string]any{
	"provider":     extract.DefaultProvider,
	"api_key":      "",
	"base_url":     "",
	"model":        "amazon/nova-pro-v1",
	"mode":         string(extract.ModeMarkdownJSON),
	"max_attempts": extract.DefaultMaxAttempts,
	"max_retries":  2,
	"timeout":      60 * time.Second,
	"referer":      "",
	"title":        "structex",
	"log_level":    "info",
	"schema_glob":  "",
}

// defaultBaseURLs fills base_url when no source sets it.
var defaultBaseURLs = map[string]string{
	"openrouter": openai.OpenRouterBaseURL,
	"openai":     openai.OpenAIBaseURL,
}

// envNames lists the variables consulted for a key, first match wins.
// Keys not listed use STRUCTEX_<KEY>.
var envNames = map[string][]string{
	"api_key":  {"STRUCTEX_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"},
	"base_url": {"STRUCTEX_BASE_URL", "OPENROUTER_BASE_URL"},
}

func envNamesFor(key string) []string {
	if names, ok := envNames[key]; ok {
		return names
	}
	return []string{"STRUCTEX_" + strings.ToUpper(key)}
}

var validate = validator.New()

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
		if err := v.BindEnv(append([]string{key}, envNamesFor(key)...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		for key := range defaults {
			f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", f.Name, err)
			}
		}
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}
	if err := mergeEnvFile(v, opts.EnvFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURLs[cfg.Provider]
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("structex")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/structex")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// mergeEnvFile layers dotenv values over the config file. Real environment
// variables still win because they are bound with BindEnv.
func mergeEnvFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}

	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading env file: %w", err)
	}

	overrides := make(map[string]any)
	for key := range defaults {
		for _, name := range envNamesFor(key) {
			if val := dv.GetString(name); val != "" {
				overrides[key] = val
				break
			}
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	return v.MergeConfigMap(overrides)
}

// Extract returns the connection settings for extract.New.
func (c *Config) Extract() extract.Config {
	return extract.Config{
		Provider:   c.Provider,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		Referer:    c.Referer,
		Title:      c.Title,
	}
}

// ExtractOptions returns the extractor options implied by the settings.
func (c *Config) ExtractOptions() []extract.Option {
	return []extract.Option{
		extract.WithMode(extract.Mode(c.Mode)),
		extract.WithMaxAttempts(c.MaxAttempts),
	}
}

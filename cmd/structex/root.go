package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i2y/structex/config"
	"github.com/i2y/structex/extract"
	"github.com/i2y/structex/schema"
)

const defaultPrompt = "Can you tell me about Harry Potter's profile?"

type rootFlags struct {
	configFile string
	envFile    string
	verbose    bool
	prompt     string
	schemaFile string
	schemaName string
	output     string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "structex",
		Short: "Extract schema-validated records from a text-generation service",
		Long: `structex sends a prompt to an OpenAI-compatible chat completion service
(OpenRouter by default), asks for a reply shaped like a declared record
schema, validates the reply and prints the fields.

Replies that do not conform are sent back with the validation problem, up
to --max-attempts times in total.

Configuration is read from structex.yaml, a .env file and the environment
(OPENROUTER_API_KEY, OPENROUTER_BASE_URL or STRUCTEX_*); flags win.

Examples:
  structex                                   # Harry Potter's profile as a Person
  structex -p "Who wrote Dune?" -o json
  structex --schema-file book.yaml --schema-name Book -p "Dune"
  structex --schema-glob "schemas/**/*.yaml" --schema-name Spell -p "Expelliarmus"`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (default: ./structex.yaml or ~/.config/structex/structex.yaml)")
	pf.StringVar(&f.envFile, "env-file", "", "dotenv file (default: ./.env when present)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log every attempt")
	pf.String("model", "", "model identifier (default: amazon/nova-pro-v1)")
	pf.String("schema-glob", "", `YAML schema definitions to load, e.g. "schemas/**/*.yaml"`)
	pf.String("mode", "", "schema steering: md_json or json_schema (default: md_json)")
	pf.Int("max-attempts", 0, "total generation attempts per extraction (default: 3)")

	fl := cmd.Flags()
	fl.StringVarP(&f.prompt, "prompt", "p", defaultPrompt, "what to ask")
	fl.StringVar(&f.schemaFile, "schema-file", "", "YAML file defining the record schema")
	fl.StringVar(&f.schemaName, "schema-name", "", "schema to use from --schema-file or --schema-glob")
	fl.StringVarP(&f.output, "output", "o", outputText, "output format: text, json or yaml")

	cmd.AddCommand(newMCPCmd(f), newVersionCmd())
	return cmd
}

// loadSettings reads the configuration and builds the logger.
func loadSettings(cmd *cobra.Command, f *rootFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: f.configFile,
		EnvFile:    f.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, nil, err
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newExtractor(cfg *config.Config, logger *zap.Logger) *extract.Extractor {
	opts := append(cfg.ExtractOptions(), extract.WithLogger(logger))
	return extract.New(cfg.Extract(), opts...)
}

func runExtract(cmd *cobra.Command, f *rootFlags) error {
	switch f.output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q: want text, json or yaml", f.output)
	}

	cfg, logger, err := loadSettings(cmd, f)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rs, err := resolveSchema(f.schemaFile, f.schemaName, cfg.SchemaGlob)
	if err != nil {
		return err
	}

	res, err := newExtractor(cfg, logger).ExtractPrompt(cmd.Context(), f.prompt, rs, cfg.Model)
	if err != nil {
		return err
	}
	logger.Debug("extraction complete",
		zap.String("request_id", res.RequestID),
		zap.Int("attempts", res.Attempts),
		zap.Int("total_tokens", res.Usage.TotalTokens),
	)

	return render(cmd.OutOrStdout(), f.output, rs, res.Record)
}

// resolveSchema picks the record schema. Without a file or name it is Person.
func resolveSchema(file, name, glob string) (*schema.RecordSchema, error) {
	if file != "" {
		schemas, err := schema.LoadFile(file)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return schemas[0], nil
		}
		for _, s := range schemas {
			if s.Name() == name {
				return s, nil
			}
		}
		return nil, fmt.Errorf("schema %q not found in %s", name, file)
	}

	if name == "" {
		return personSchema, nil
	}
	catalog, err := loadCatalog(glob)
	if err != nil {
		return nil, err
	}
	rs, ok := catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (available: %s)", name, strings.Join(catalog.Names(), ", "))
	}
	return rs, nil
}

// loadCatalog loads the schemas matching glob, relative to the working
// directory. Person is included unless a definition replaces it.
func loadCatalog(glob string) (*schema.Catalog, error) {
	catalog, err := schema.NewCatalog()
	if err != nil {
		return nil, err
	}
	if glob != "" {
		catalog, err = schema.LoadGlob(os.DirFS("."), glob)
		if err != nil {
			return nil, fmt.Errorf("loading schemas: %w", err)
		}
	}
	if _, ok := catalog.Get(personSchema.Name()); !ok {
		if err := catalog.Add(personSchema); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

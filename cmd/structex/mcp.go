package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i2y/structex/mcp"
)

func newMCPCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the extractor as MCP tools over stdio",
		Long: `Serve the extractor over the Model Context Protocol on stdin/stdout.

Tools:
  extract  - fill in a catalogued schema from a prompt
  schemas  - list the catalogue

The catalogue holds Person plus every definition matched by --schema-glob.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadSettings(cmd, f)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			catalog, err := loadCatalog(cfg.SchemaGlob)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(newExtractor(cfg, logger), catalog,
				mcp.WithDefaultModel(cfg.Model),
				mcp.WithVersion(version),
				mcp.WithLogger(logger),
			)
			logger.Info("serving MCP over stdio", zap.Strings("schemas", catalog.Names()))
			return srv.Run(cmd.Context())
		},
	}
}

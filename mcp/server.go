// Package mcp serves the extractor over the Model Context Protocol (MCP),
// so that agents can request validated records from a schema catalogue.
//
// Tools:
//   - extract: fill in a named schema from a prompt
//   - schemas: list the catalogue with field descriptions
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/i2y/structex/extract"
	"github.com/i2y/structex/schema"
)

// Server exposes an Extractor and a schema catalogue as MCP tools.
type Server struct {
	extractor *extract.Extractor
	catalog   *schema.Catalog
	model     string
	logger    *zap.Logger
	server    *mcp.Server
}

// Option configures the server.
type Option func(*serverConfig)

type serverConfig struct {
	model   string
	version string
	logger  *zap.Logger
}

// WithDefaultModel sets the model used when a call names none.
func WithDefaultModel(model string) Option {
	return func(c *serverConfig) {
		c.model = model
	}
}

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(c *serverConfig) {
		c.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *serverConfig) {
		c.logger = l
	}
}

// ExtractInput is the argument of the extract tool.
type ExtractInput struct {
	Prompt string `json:"prompt" jsonschema:"the request describing what to extract"`
	Schema string `json:"schema" jsonschema:"name of a schema from the catalogue"`
	Model  string `json:"model,omitempty" jsonschema:"model identifier; the server default is used when empty"`
}

// ExtractOutput is the structured result of the extract tool.
type ExtractOutput struct {
	Schema   string         `json:"schema"`
	Record   map[string]any `json:"record"`
	Attempts int            `json:"attempts"`
	Model    string         `json:"model"`
}

type listInput struct{}

// NewServer builds the MCP server and registers its tools.
func NewServer(ex *extract.Extractor, catalog *schema.Catalog, opts ...Option) *Server {
	cfg := &serverConfig{
		version: "dev",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		extractor: ex,
		catalog:   catalog,
		model:     cfg.model,
		logger:    cfg.logger.Named("mcp"),
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "structex",
			Version: cfg.version,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract",
		Description: "Extract a record of a catalogued schema from a natural-language request. Every field of the schema is returned, validated and typed.",
	}, s.handleExtract)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "schemas",
		Description: "List the schemas the extract tool accepts, with their fields.",
	}, s.handleList)

	return s
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) handleExtract(ctx context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, any, error) {
	rs, ok := s.catalog.Get(in.Schema)
	if !ok {
		return errorResult(fmt.Errorf("unknown schema %q (available: %s)", in.Schema, strings.Join(s.catalog.Names(), ", "))), nil, nil
	}
	model := in.Model
	if model == "" {
		model = s.model
	}

	res, err := s.extractor.ExtractPrompt(ctx, in.Prompt, rs, model)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("schema", in.Schema), zap.Error(err))
		return errorResult(err), nil, nil
	}

	out := ExtractOutput{
		Schema:   rs.Name(),
		Record:   res.Record.Plain(rs),
		Attempts: res.Attempts,
		Model:    res.Model,
	}
	text, err := json.Marshal(out)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: out,
	}, nil, nil
}

func (s *Server) handleList(_ context.Context, _ *mcp.CallToolRequest, _ listInput) (*mcp.CallToolResult, any, error) {
	var b strings.Builder
	for _, name := range s.catalog.Names() {
		rs, _ := s.catalog.Get(name)
		b.WriteString(name)
		if d := rs.Description(); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
		b.WriteByte('\n')
		b.WriteString(rs.Instructions())
		b.WriteByte('\n')
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: strings.TrimSpace(b.String())}},
	}, nil, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

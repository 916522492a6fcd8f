// Package config loads pagefly settings from an HCL file.
//
//	database          = "pages.db"
//	log_level         = "debug"
//	log_format        = "json"
//	query_concurrency = 8
//	templates         = true
//	lint_queries      = false
//
//	mcp {
//	  name    = "pagefly"
//	  version = "0.1.0"
//	}
package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

const (
	DefaultDatabase         = "pagefly.db"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultQueryConcurrency = 4
	DefaultMCPName          = "pagefly"
	DefaultMCPVersion       = "0.1.0"
)

// Config is the resolved configuration. Every field is set after Load.
type Config struct {
	Database         string
	LogLevel         string
	LogFormat        string
	QueryConcurrency int
	Templates        bool
	LintQueries      bool
	MCP              MCP
}

type MCP struct {
	Name    string
	Version string
}

// hclFile mirrors the file layout for decoding. Pointers tell an absent
// attribute from an explicit zero.
type hclFile struct {
	Database         *string `hcl:"database,optional"`
	LogLevel         *string `hcl:"log_level,optional"`
	LogFormat        *string `hcl:"log_format,optional"`
	QueryConcurrency *int    `hcl:"query_concurrency,optional"`
	Templates        *bool   `hcl:"templates,optional"`
	LintQueries      *bool   `hcl:"lint_queries,optional"`
	MCP              *hclMCP `hcl:"mcp,block"`
}

type hclMCP struct {
	Name    *string `hcl:"name,optional"`
	Version *string `hcl:"version,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database:         DefaultDatabase,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		QueryConcurrency: DefaultQueryConcurrency,
		Templates:        true,
		MCP:              MCP{Name: DefaultMCPName, Version: DefaultMCPVersion},
	}
}

// Load reads the HCL file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}
	var raw hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, diags)
	}
	return raw.resolve(path)
}

// Parse decodes HCL source held in memory; filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	var raw hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}
	return raw.resolve(filename)
}

func (h *hclFile) resolve(filename string) (*Config, error) {
	cfg := Default()
	if h.Database != nil {
		cfg.Database = *h.Database
	}
	if h.LogLevel != nil {
		cfg.LogLevel = *h.LogLevel
	}
	if h.LogFormat != nil {
		cfg.LogFormat = *h.LogFormat
	}
	if h.QueryConcurrency != nil {
		cfg.QueryConcurrency = *h.QueryConcurrency
	}
	if h.Templates != nil {
		cfg.Templates = *h.Templates
	}
	if h.LintQueries != nil {
		cfg.LintQueries = *h.LintQueries
	}
	if h.MCP != nil {
		if h.MCP.Name != nil {
			cfg.MCP.Name = *h.MCP.Name
		}
		if h.MCP.Version != nil {
			cfg.MCP.Version = *h.MCP.Version
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config %s: unknown log_level %q", filename, cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("config %s: unknown log_format %q", filename, cfg.LogFormat)
	}
	if cfg.QueryConcurrency < 1 {
		return nil, fmt.Errorf("config %s: query_concurrency must be at least 1, got %d", filename, cfg.QueryConcurrency)
	}
	return cfg, nil
}

// NewLogger builds a logger from a level and format name. It does not set
// the global logger.
func NewLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}

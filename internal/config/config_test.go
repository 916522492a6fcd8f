package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Templates)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagefly.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
database          = "/var/lib/pages.db"
log_level         = "debug"
log_format        = "json"
query_concurrency = 8
templates         = false
lint_queries      = true

mcp {
  name = "pages"
}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pages.db", cfg.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8, cfg.QueryConcurrency)
	assert.False(t, cfg.Templates)
	assert.True(t, cfg.LintQueries)
	assert.Equal(t, "pages", cfg.MCP.Name)
	assert.Equal(t, DefaultMCPVersion, cfg.MCP.Version)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`log_level = "warn"`), "inline.hcl")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultQueryConcurrency, cfg.QueryConcurrency)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `database = `},
		{"unknown attribute", `colour = "blue"`},
		{"bad level", `log_level = "loud"`},
		{"bad format", `log_format = "xml"`},
		{"bad concurrency", `query_concurrency = 0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "page", "/a")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"page":"/a"`)

	buf.Reset()
	NewLogger("nonsense", "text", &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

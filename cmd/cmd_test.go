package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/ingest"
	"github.com/agentic-research/pagefly/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDB(t *testing.T, pages ...api.Page) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.db")
	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	for _, p := range pages {
		require.NoError(t, s.PutPage(ctx, p))
	}
	require.NoError(t, s.Reindex(ctx))
	require.NoError(t, s.Close())
	return path
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, dbPath, logLevel = "", "", ""
	composeJSON, depsReindex = false, false
	exportPrefix = "/"
	importSelector = ingest.DefaultSelector

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestComposeCommand(t *testing.T) {
	db := seedDB(t,
		api.Page{Name: "/lib/greet", Text: "hello"},
		api.Page{Name: "/home", Text: `{{include "/lib/greet"}} {{query "n" "SELECT count(*) FROM page"}}{{result "n"}}`},
	)

	out, err := run(t, "--db", db, "--log-level", "error", "compose", "/home")
	require.NoError(t, err)
	assert.Equal(t, "hello 2\n", out)

	out, err = run(t, "--db", db, "--log-level", "error", "compose", "--json", "/missing")
	require.Error(t, err)
	assert.Contains(t, out, `"kind": "MissingPage"`)
}

func TestTreeAndDepsCommands(t *testing.T) {
	db := seedDB(t,
		api.Page{Name: "/docs/header", Text: "H"},
		api.Page{Name: "/docs/a", Text: `{{include "header"}}`},
	)

	out, err := run(t, "--db", db, "--log-level", "error", "tree", "/docs")
	require.NoError(t, err)
	assert.Equal(t, "/docs\n  a\n  header\n", out)

	out, err = run(t, "--db", db, "--log-level", "error", "deps", "/docs/header")
	require.NoError(t, err)
	assert.Equal(t, "/docs/a\n", out)
}

func TestLintCommand(t *testing.T) {
	db := seedDB(t,
		api.Page{Name: "/ok", Text: `{{query "n" "SELECT name FROM page"}}`},
		api.Page{Name: "/bad", Text: `{{query "n" "SELECT FROM WHERE ))) ,,"}}`},
	)

	_, err := run(t, "--db", db, "--log-level", "error", "lint", "/ok")
	assert.NoError(t, err)

	out, err := run(t, "--db", db, "--log-level", "error", "lint", "/bad")
	assert.Error(t, err)
	assert.Contains(t, out, "n: line 1")
}

func TestImportExportCommands(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "docs", "intro.md"), []byte("intro"), 0o644))
	db := filepath.Join(t.TempDir(), "pages.db")

	out, err := run(t, "--db", db, "--log-level", "error", "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 pages")

	dst := t.TempDir()
	out, err = run(t, "--db", db, "--log-level", "error", "export", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 pages")
	b, err := os.ReadFile(filepath.Join(dst, "docs", "intro.md"))
	require.NoError(t, err)
	assert.Equal(t, "intro", string(b))
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentic-research/pagefly/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s interface {
	PutPage(context.Context, api.Page) error
}, pages ...api.Page) {
	t.Helper()
	for _, p := range pages {
		require.NoError(t, s.PutPage(context.Background(), p))
	}
}

func TestSQLiteStore_FetchPage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s, api.Page{Name: "/a", Text: "hello", Kind: api.Script})

	p, err := s.FetchPage(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, api.Page{Name: "/a", Text: "hello", Kind: api.Script}, p)

	_, err = s.FetchPage(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestSQLiteStore_PutPageReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s,
		api.Page{Name: "/a", Text: "one"},
		api.Page{Name: "/a", Text: "two", Kind: api.Directory},
	)
	p, err := s.FetchPage(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "two", p.Text)
	assert.Equal(t, api.Directory, p.Kind)
}

func TestSQLiteStore_FetchPages(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, api.Page{Name: "/a", Text: "A"}, api.Page{Name: "/b", Text: "B"})

	pages, err := s.FetchPages(context.Background(), []string{"/a", "/b", "/nope"})
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	pages, err = s.FetchPages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestSQLiteStore_ListNames(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s,
		api.Page{Name: "/docs"},
		api.Page{Name: "/docs/intro"},
		api.Page{Name: "/docs/intro/setup"},
		api.Page{Name: "/docs-old"},
		api.Page{Name: "/docs0"},
		api.Page{Name: "/other"},
	)

	names, err := s.ListNames(ctx, "/docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs", "/docs/intro", "/docs/intro/setup"}, names)

	names, err = s.ListNames(ctx, "/docs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs", "/docs/intro", "/docs/intro/setup"}, names)

	all, err := s.ListNames(ctx, "/")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestSQLiteStore_Execute(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s, api.Page{Name: "/a", Text: "A"}, api.Page{Name: "/b", Text: "B"})

	rows, err := s.Execute(ctx, "SELECT count(*) AS n FROM page")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["n"])

	rows, err = s.Execute(ctx, "SELECT name, text FROM page ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, []api.Row{{"name": "/a", "text": "A"}, {"name": "/b", "text": "B"}}, rows)

	t.Run("queries cannot write", func(t *testing.T) {
		_, err := s.Execute(ctx, "DELETE FROM page")
		require.Error(t, err)
		names, err := s.ListNames(ctx, "/")
		require.NoError(t, err)
		assert.Len(t, names, 2)
	})

	t.Run("bad sql is an error", func(t *testing.T) {
		_, err := s.Execute(ctx, "SELECT * FROM nope")
		assert.Error(t, err)
	})
}

func TestSQLiteStore_Templates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.PutTemplate(ctx, PageTemplate{Regex: "^/blog/.*", TemplatePage: "/tpl/blog"}))
	require.NoError(t, s.PutTemplate(ctx, PageTemplate{Regex: ".*", TemplatePage: "/tpl/default"}))

	tpls, err := s.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, tpls, 2)
	assert.Equal(t, "/tpl/blog", tpls[0].TemplatePage)
}

func TestSQLiteStore_Dependents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s,
		api.Page{Name: "/docs/header", Text: "H"},
		api.Page{Name: "/docs/a", Text: `{{include "header"}} a`},
		api.Page{Name: "/docs/b", Text: `{{include "/docs/header"}} b {{include "header"}}`},
		api.Page{Name: "/blog/c", Text: `{{include "header"}}`},
	)
	require.NoError(t, s.Reindex(ctx))

	deps, err := s.Dependents(ctx, "/docs/header")
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a", "/docs/b"}, deps)

	deps, err = s.Dependents(ctx, "/blog/header")
	require.NoError(t, err)
	assert.Equal(t, []string{"/blog/c"}, deps)

	deps, err = s.Dependents(ctx, "/docs/a")
	require.NoError(t, err)
	assert.Empty(t, deps)

	t.Run("reindex drops stale refs", func(t *testing.T) {
		seed(t, s, api.Page{Name: "/blog/c", Text: "no includes"})
		require.NoError(t, s.Reindex(ctx))
		deps, err := s.Dependents(ctx, "/blog/header")
		require.NoError(t, err)
		assert.Empty(t, deps)
	})
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "pages.db"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSQLiteStore_DependentsTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)
	seed(t, s,
		api.Page{Name: "/lib/header", Text: "H"},
		api.Page{Name: "/a", Text: `{{include "/lib/header"}}`},
		api.Page{Name: "/b", Text: `{{include "/lib/header"}}{{include "/lib/footer"}}`},
	)
	require.NoError(t, s.Reindex(ctx))

	rows, err := s.Execute(ctx, "SELECT page FROM page_dependents WHERE target = '/lib/header' ORDER BY page")
	require.NoError(t, err)
	assert.Equal(t, []api.Row{{"page": "/a"}, {"page": "/b"}}, rows)

	rows, err = s.Execute(ctx, "SELECT count(*) AS n FROM page_dependents")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows[0]["n"])
	require.NoError(t, s.Close())

	t.Run("reopened", func(t *testing.T) {
		s, err := Open(ctx, path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		rows, err := s.Execute(ctx, "SELECT target FROM page_dependents WHERE target LIKE '/lib/f%'")
		require.NoError(t, err)
		assert.Equal(t, []api.Row{{"target": "/lib/footer"}}, rows)
	})
}

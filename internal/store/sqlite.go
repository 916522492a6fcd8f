package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/refsvtab"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps pages in a SQLite database. Author queries run on a
// second connection pool opened with query_only, so a page can read any
// table but never modify one.
type SQLiteStore struct {
	db      *sql.DB
	queryDB *sql.DB
	path    string
	vtabID  string
}

// Open opens (creating if needed) the database at path and applies Schema.
// It also creates the page_dependents virtual table, which lets page queries
// read the include index.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	// The module must be registered before the first connection is made.
	refsMod, err := refsvtab.Register()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("%w: init schema %s: %w", ErrUnavailable, path, err)
	}

	queryDB, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("%w: open query connection %s: %w", ErrUnavailable, path, err)
	}
	queryDB.SetMaxOpenConns(4)

	// Virtual table lookups run on db, never on the query pool that is
	// waiting for them.
	id := vtabID(path)
	refsMod.RegisterDB(id, db)
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS page_dependents USING %s(%s)", refsvtab.ModuleName, id)); err != nil {
		refsMod.UnregisterDB(id)
		_ = queryDB.Close() // ignore error
		_ = db.Close()      // ignore error
		return nil, fmt.Errorf("%w: create page_dependents %s: %w", ErrUnavailable, path, err)
	}

	return &SQLiteStore{db: db, queryDB: queryDB, path: path, vtabID: id}, nil
}

// vtabID derives the virtual table argument from the database location. It
// is stored in the schema, so it must be the same every time the file is
// opened.
func vtabID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return fmt.Sprintf("db_%016x", h.Sum64())
}

func (s *SQLiteStore) Path() string { return s.path }

// FetchPage returns the page called name, or ErrNotFound.
func (s *SQLiteStore) FetchPage(ctx context.Context, name string) (api.Page, error) {
	var p api.Page
	var kind string
	err := s.db.QueryRowContext(ctx, "SELECT name, text, kind FROM page WHERE name = ?", name).
		Scan(&p.Name, &p.Text, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Page{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return api.Page{}, fmt.Errorf("%w: fetch page %s: %w", ErrUnavailable, name, err)
	}
	p.Kind = api.ParseKind(kind)
	return p, nil
}

// FetchPages returns the pages among names that exist, in no particular order.
func (s *SQLiteStore) FetchPages(ctx context.Context, names []string) ([]api.Page, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := make([]any, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		args[i] = n
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("SELECT name, text, kind FROM page WHERE name IN (%s)", strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch pages: %w", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var pages []api.Page
	for rows.Next() {
		var p api.Page
		var kind string
		if err := rows.Scan(&p.Name, &p.Text, &kind); err != nil {
			return nil, fmt.Errorf("%w: scan page: %w", ErrUnavailable, err)
		}
		p.Kind = api.ParseKind(kind)
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fetch pages: %w", ErrUnavailable, err)
	}
	return pages, nil
}

// ListNames returns the names equal to prefix or below it, sorted.
// A prefix of "/" lists every page.
func (s *SQLiteStore) ListNames(ctx context.Context, prefix string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if prefix == "" || prefix == "/" {
		rows, err = s.db.QueryContext(ctx, "SELECT name FROM page ORDER BY name")
	} else {
		lo, hi := prefixRange(prefix)
		rows, err = s.db.QueryContext(ctx,
			"SELECT name FROM page WHERE name = ? OR (name >= ? AND name < ?) ORDER BY name",
			strings.TrimSuffix(prefix, "/"), lo, hi)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, prefix, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: scan name: %w", ErrUnavailable, err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, prefix, err)
	}
	return names, nil
}

// Execute runs an author query on the read-only connection. BLOB and TEXT
// columns both come back as strings.
func (s *SQLiteStore) Execute(ctx context.Context, query string) ([]api.Row, error) {
	rows, err := s.queryDB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []api.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(api.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Templates returns the page templates in insertion order.
func (s *SQLiteStore) Templates(ctx context.Context) ([]PageTemplate, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT regex, template_page FROM page_template ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("%w: templates: %w", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []PageTemplate
	for rows.Next() {
		var t PageTemplate
		if err := rows.Scan(&t.Regex, &t.TemplatePage); err != nil {
			return nil, fmt.Errorf("%w: scan template: %w", ErrUnavailable, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PutPage inserts p or replaces the text and kind of the page with its name.
func (s *SQLiteStore) PutPage(ctx context.Context, p api.Page) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page (name, text, kind) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET text = excluded.text, kind = excluded.kind`,
		p.Name, p.Text, p.Kind.String())
	if err != nil {
		return fmt.Errorf("%w: put page %s: %w", ErrUnavailable, p.Name, err)
	}
	return nil
}

// PutTemplate appends a page template.
func (s *SQLiteStore) PutTemplate(ctx context.Context, t PageTemplate) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO page_template (regex, template_page) VALUES (?, ?)", t.Regex, t.TemplatePage)
	if err != nil {
		return fmt.Errorf("%w: put template %s: %w", ErrUnavailable, t.Regex, err)
	}
	return nil
}

// Close closes both connection pools.
func (s *SQLiteStore) Close() error {
	if mod, err := refsvtab.Register(); err == nil && mod != nil {
		mod.UnregisterDB(s.vtabID)
	}
	err := s.queryDB.Close()
	if err2 := s.db.Close(); err == nil {
		err = err2
	}
	return err
}

// Package refsvtab exposes the include back-reference index to page queries
// as a SQLite virtual table:
//
//	SELECT page FROM page_dependents WHERE target = '/lib/header'
//
// Each page_refs row holds a roaring bitmap of page rowids; the table
// expands it into one (target, page) row per including page.
package refsvtab

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING.
const ModuleName = "pagefly_refs"

var (
	once      sync.Once
	singleton *Module
	initErr   error
)

// Module implements vtab.Module. modernc.org/sqlite registers modules for
// the whole driver, so there is one per process and each store registers
// its database under an ID.
type Module struct {
	mu  sync.RWMutex
	dbs map[string]*sql.DB
}

// Register registers the module with the SQLite driver on first call and
// returns it. Connections opened afterwards can use it.
func Register() (*Module, error) {
	once.Do(func() {
		singleton = &Module{dbs: make(map[string]*sql.DB)}
		if err := vtab.RegisterModule(nil, ModuleName, singleton); err != nil {
			initErr = fmt.Errorf("refsvtab: register module: %w", err)
			singleton = nil
		}
	})
	return singleton, initErr
}

// RegisterDB makes db the source of page_refs for tables created with id.
func (m *Module) RegisterDB(id string, db *sql.DB) {
	m.mu.Lock()
	m.dbs[id] = db
	m.mu.Unlock()
}

func (m *Module) UnregisterDB(id string) {
	m.mu.Lock()
	delete(m.dbs, id)
	m.mu.Unlock()
}

// Create expects USING pagefly_refs(id). args holds the module, database
// and table names before the arguments.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, errors.New("pagefly_refs: missing DB ID argument (expected USING pagefly_refs(id))")
	}
	id := strings.Trim(args[3], `'" `)

	m.mu.RLock()
	db, ok := m.dbs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pagefly_refs: unknown DB ID %q", id)
	}

	if err := ctx.Declare("CREATE TABLE x(target TEXT, page TEXT)"); err != nil {
		return nil, err
	}
	return &table{db: db}, nil
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type table struct {
	db *sql.DB
}

const (
	idxScan = iota
	idxEqual
	idxLike
)

func (t *table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != 0 {
			continue
		}
		switch c.Op {
		case vtab.OpEQ:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = idxEqual
			info.EstimatedCost = 1
			info.EstimatedRows = 10
			return nil
		case vtab.OpLIKE:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = idxLike
			info.EstimatedCost = 100
			info.EstimatedRows = 100
			return nil
		}
	}
	info.IdxNum = idxScan
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *table) Open() (vtab.Cursor, error) {
	return &cursor{db: t.db}, nil
}

func (t *table) Disconnect() error { return nil }
func (t *table) Destroy() error    { return nil }

type row struct {
	target string
	page   string
}

type cursor struct {
	db   *sql.DB
	rows []row
	pos  int
}

func (c *cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0

	switch idxNum {
	case idxEqual:
		target, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.load("SELECT target, bitmap FROM page_refs WHERE target = ?", target)
	case idxLike:
		pattern, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.load("SELECT target, bitmap FROM page_refs WHERE target LIKE ?", pattern)
	default:
		return c.load("SELECT target, bitmap FROM page_refs")
	}
}

// load materializes the matching bitmaps before expanding them, so the
// scan's connection is released before the rowid lookups need one.
func (c *cursor) load(query string, args ...any) error {
	type entry struct {
		target string
		blob   []byte
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("refsvtab: scan page_refs: %w", err)
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.target, &e.blob); err != nil {
			_ = rows.Close() // safe to ignore
			return fmt.Errorf("refsvtab: scan page_refs row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close() // safe to ignore
		return fmt.Errorf("refsvtab: scan page_refs rows: %w", err)
	}
	_ = rows.Close() // safe to ignore

	for _, e := range entries {
		if err := c.expand(e.target, e.blob); err != nil {
			return err
		}
	}
	return nil
}

// expand resolves the page rowids in blob to names.
func (c *cursor) expand(target string, blob []byte) error {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(blob); err != nil {
		return fmt.Errorf("refsvtab: unmarshal bitmap for %q: %w", target, err)
	}
	if bm.IsEmpty() {
		return nil
	}

	ids := bm.ToArray()
	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("SELECT name FROM page WHERE rowid IN (%s) ORDER BY name", strings.Join(placeholders, ","))
	rows, err := c.db.Query(q, args...)
	if err != nil {
		return fmt.Errorf("refsvtab: resolve page rowids: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("refsvtab: scan page name: %w", err)
		}
		c.rows = append(c.rows, row{target: target, page: name})
	}
	return rows.Err()
}

func (c *cursor) Next() error {
	c.pos++
	return nil
}

func (c *cursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *cursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	switch col {
	case 0:
		return c.rows[c.pos].target, nil
	case 1:
		return c.rows[c.pos].page, nil
	default:
		return nil, nil
	}
}

func (c *cursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *cursor) Close() error {
	c.rows = nil
	return nil
}

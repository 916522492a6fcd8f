package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/include"
)

// Reindex rebuilds page_refs from scratch: for every include target, one
// bitmap of the rowids of pages that include it directly.
func (s *SQLiteStore) Reindex(ctx context.Context) error {
	refs, err := s.collectRefs(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin reindex: %w", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore

	if _, err := tx.ExecContext(ctx, "DELETE FROM page_refs"); err != nil {
		return fmt.Errorf("%w: clear refs: %w", ErrUnavailable, err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO page_refs (target, bitmap) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare refs insert: %w", ErrUnavailable, err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	var buf bytes.Buffer
	for target, bm := range refs {
		buf.Reset()
		bm.RunOptimize()
		if _, err := bm.WriteTo(&buf); err != nil {
			return fmt.Errorf("serialize bitmap for %s: %w", target, err)
		}
		if _, err := stmt.ExecContext(ctx, target, buf.Bytes()); err != nil {
			return fmt.Errorf("%w: insert ref %s: %w", ErrUnavailable, target, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reindex: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) collectRefs(ctx context.Context) (map[string]*roaring.Bitmap, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT rowid, name, text, kind FROM page")
	if err != nil {
		return nil, fmt.Errorf("%w: scan pages: %w", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	refs := make(map[string]*roaring.Bitmap)
	for rows.Next() {
		var (
			id               uint32
			name, text, kind string
		)
		if err := rows.Scan(&id, &name, &text, &kind); err != nil {
			return nil, fmt.Errorf("%w: scan page: %w", ErrUnavailable, err)
		}
		// Script pages never include; directive-like text in them is not a ref.
		if api.ParseKind(kind) == api.Script {
			continue
		}
		for _, t := range include.Scan(text) {
			target := include.ResolveTarget(name, t)
			bm, ok := refs[target]
			if !ok {
				bm = roaring.New()
				refs[target] = bm
			}
			bm.Add(id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan pages: %w", ErrUnavailable, err)
	}
	return refs, nil
}

// Dependents returns the sorted names of pages that include name directly,
// as of the last Reindex.
func (s *SQLiteStore) Dependents(ctx context.Context, name string) ([]string, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT bitmap FROM page_refs WHERE target = ?", name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dependents of %s: %w", ErrUnavailable, name, err)
	}

	rb := roaring.New()
	if err := rb.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("unmarshal bitmap: %w", err)
	}
	ids := rb.ToArray()
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("SELECT name FROM page WHERE rowid IN (%s) ORDER BY name", strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: dependents of %s: %w", ErrUnavailable, name, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: scan dependent: %w", ErrUnavailable, err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

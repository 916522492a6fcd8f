package ingest

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SourceTable is the table read from a SQLite import source. Its rows need
// name and text columns, and a kind or language column.
const SourceTable = "page"

// StreamSQLite runs query against the database at dbPath and calls fn with
// each row as a column-keyed record. Only one record is alive at a time.
func StreamSQLite(ctx context.Context, dbPath, query string, fn func(record map[string]any) error) error {
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %s: %w", dbPath, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		record := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				record[c] = string(b)
				continue
			}
			record[c] = vals[i]
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

// importSQLite copies every row of SourceTable in another pagefly (or
// compatible) database.
func (im *Importer) importSQLite(ctx context.Context, dbPath string) (int, error) {
	n := 0
	err := StreamSQLite(ctx, dbPath, "SELECT * FROM "+SourceTable, func(record map[string]any) error {
		page, err := pageFromRecord(record)
		if err != nil {
			return err
		}
		if err := im.put(ctx, page); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

package ingest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// createSourceDB builds a page table in the layout older exports use:
// a language column instead of kind, plus an owner nobody reads.
func createSourceDB(t *testing.T, rows [][3]string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "source.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec("CREATE TABLE page (name TEXT PRIMARY KEY, owner TEXT, text TEXT, language TEXT)")
	require.NoError(t, err)
	for _, r := range rows {
		_, err = db.Exec("INSERT INTO page (name, owner, text, language) VALUES (?, 'admin', ?, ?)", r[0], r[1], r[2])
		require.NoError(t, err)
	}
	return dbPath
}

func TestStreamSQLite(t *testing.T) {
	dbPath := createSourceDB(t, [][3]string{
		{"/a", "A", ""},
		{"/b", "B", "js"},
	})

	var records []map[string]any
	err := StreamSQLite(context.Background(), dbPath, "SELECT name, text FROM page ORDER BY name", func(r map[string]any) error {
		records = append(records, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"name": "/a", "text": "A"},
		{"name": "/b", "text": "B"},
	}, records)

	t.Run("missing table", func(t *testing.T) {
		err := StreamSQLite(context.Background(), dbPath, "SELECT * FROM results", func(map[string]any) error { return nil })
		require.Error(t, err)
	})
}

package ingest

import (
	"encoding/json"
	"testing"

	"github.com/agentic-research/pagefly/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonWalker(t *testing.T) {
	input := `
{
  "pages": [
    {"name": "/a", "text": "A", "kind": "script"},
    {"name": "b/c", "text": "C", "language": "DIR"}
  ],
  "meta": {
    "version": "1.0"
  }
}
`
	var data any
	require.NoError(t, json.Unmarshal([]byte(input), &data))

	w := NewJsonWalker()

	t.Run("select list of objects", func(t *testing.T) {
		matches, err := w.Query(data, DefaultSelector)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "/a", matches[0].Values()["name"])
	})

	t.Run("select primitive", func(t *testing.T) {
		matches, err := w.Query(data, "$.meta.version")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, map[string]any{"value": "1.0"}, matches[0].Values())
	})

	t.Run("bad selector", func(t *testing.T) {
		_, err := w.Query(data, "$.pages[")
		assert.Error(t, err)
	})
}

func TestPageFromRecord(t *testing.T) {
	p, err := pageFromRecord(map[string]any{"name": "/a", "text": "A", "kind": "script"})
	require.NoError(t, err)
	assert.Equal(t, api.Page{Name: "/a", Text: "A", Kind: api.Script}, p)

	p, err = pageFromRecord(map[string]any{"name": "b/c/", "language": "DIR"})
	require.NoError(t, err)
	assert.Equal(t, api.Page{Name: "/b/c", Kind: api.Directory}, p)

	_, err = pageFromRecord(map[string]any{"text": "orphan"})
	assert.Error(t, err)
}

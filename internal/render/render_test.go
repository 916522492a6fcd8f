package render

import (
	"testing"

	"github.com/agentic-research/pagefly/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	t.Run("records declared queries", func(t *testing.T) {
		queries, err := Collect("/p", `Hello {{query "users" "select * from users"}}{{query "n" "select count(*) from users"}}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"users": "select * from users",
			"n":     "select count(*) from users",
		}, queries)
	})

	t.Run("last declaration wins", func(t *testing.T) {
		queries, err := Collect("/p", `{{query "a" "select 1"}}{{query "a" "select 2"}}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "select 2"}, queries)
	})

	t.Run("other constructs still run", func(t *testing.T) {
		queries, err := Collect("/p", `{{$x := printf "%d" 3}}{{if and .Collecting (eq $x "3")}}{{query "c" "select 1"}}{{end}}`)
		require.NoError(t, err)
		assert.Contains(t, queries, "c")
	})

	t.Run("layout declarations are inert", func(t *testing.T) {
		queries, err := Collect("/p", `{{tile 1 1 "x"}}{{menu true}}{{placeholder 2 2}}`)
		require.NoError(t, err)
		assert.Empty(t, queries)
	})

	t.Run("parse error is a collect error", func(t *testing.T) {
		_, err := Collect("/p", `{{if}}`)
		require.Error(t, err)
		var re *Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, PhaseCollect, re.Phase)
	})
}

func TestRender(t *testing.T) {
	t.Run("interpolates results", func(t *testing.T) {
		results := map[string]any{
			"n":    int64(5),
			"rows": []any{map[string]any{"x": 1}, map[string]any{"x": 2}},
		}
		res, err := Render("/p", `{{query "n" "ignored"}}count={{result "n"}} {{range result "rows"}}[{{.x}}]{{end}} {{.Results.n}}`, results)
		require.NoError(t, err)
		assert.Equal(t, "count=5 [1][2] 5", res.Output)
	})

	t.Run("collects tiles in order", func(t *testing.T) {
		res, err := Render("/p", `{{tile 6 2 "intro" "Welcome"}}{{chart 6 4 "Sales" "select * from sales"}}{{placeholder 12 6}}{{relation 12 4 "film" "editable" true}}`, nil)
		require.NoError(t, err)
		require.Len(t, res.Tiles, 4)
		assert.Equal(t, api.Tile{Cols: 6, Rows: 2, Title: "Welcome", Widget: api.StaticContent{Content: "intro"}}, res.Tiles[0])
		assert.Equal(t, api.ChartQuery{Query: "select * from sales", Title: "Sales"}, res.Tiles[1].Widget)
		assert.Equal(t, api.Placeholder{}, res.Tiles[2].Widget)
		assert.Equal(t, api.Relation{Name: "film", Props: map[string]any{"editable": true}}, res.Tiles[3].Widget)
	})

	t.Run("menu flag is unset by default", func(t *testing.T) {
		res, err := Render("/p", `plain`, nil)
		require.NoError(t, err)
		assert.Nil(t, res.DisplayMenu)

		res, err = Render("/p", `{{menu false}}`, nil)
		require.NoError(t, err)
		require.NotNil(t, res.DisplayMenu)
		assert.False(t, *res.DisplayMenu)
	})

	t.Run("jsonpath over results", func(t *testing.T) {
		results := map[string]any{"users": []any{
			map[string]any{"name": "ann"},
			map[string]any{"name": "bob"},
		}}
		res, err := Render("/p", `{{range jp "$[*].name" (result "users")}}{{.}};{{end}}`, results)
		require.NoError(t, err)
		assert.Equal(t, "ann;bob;", res.Output)
	})

	t.Run("odd relation properties fail", func(t *testing.T) {
		_, err := Render("/p", `{{relation 1 1 "film" "dangling"}}`, nil)
		var re *Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, PhaseRender, re.Phase)
	})

	t.Run("dynamic include fails", func(t *testing.T) {
		_, err := Render("/p", `{{include .Page}}`, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errUnresolvedInclude)
	})
}

func TestWrapScript(t *testing.T) {
	script := `
// count the users
query "n" "select count(*) from users"
$n := result "n"
if $n
  $n
end
`
	wrapped := WrapScript(script)
	assert.NotContains(t, wrapped, "count the users")

	queries, err := Collect("/s", wrapped)
	require.NoError(t, err)
	assert.Equal(t, "select count(*) from users", queries["n"])

	res, err := Render("/s", wrapped, map[string]any{"n": int64(7)})
	require.NoError(t, err)
	assert.Equal(t, "7", res.Output)
}

func TestWrapScript_MultiLineRawString(t *testing.T) {
	script := "query \"n\" `SELECT count(*)\n  FROM page\n  WHERE kind = \"markup\"`\n" +
		"query \"m\" \"select `x`\"\n" +
		"result \"n\"\n"
	wrapped := WrapScript(script)

	queries, err := Collect("/s", wrapped)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"n": "SELECT count(*)\n  FROM page\n  WHERE kind = \"markup\"",
		"m": "select `x`",
	}, queries)

	res, err := Render("/s", wrapped, map[string]any{"n": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, "3", res.Output)
}

func TestWrapScript_UnterminatedRawString(t *testing.T) {
	wrapped := WrapScript("query \"n\" `SELECT 1\nFROM page\n")
	_, err := Collect("/s", wrapped)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, PhaseCollect, re.Phase)
}

func TestWrapScript_KeepsSurroundingText(t *testing.T) {
	text := "Hello " + WrapScript("query \"n\" \"select 1\"\nmenu true\n") + " world"
	res, err := Render("/p", text, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello  world", res.Output)

	assert.Empty(t, WrapScript("\n// only a comment\n"))
}

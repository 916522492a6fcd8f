package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/template"

	"github.com/agentic-research/pagefly/api"
	"github.com/ohler55/ojg/jp"
)

var errUnresolvedInclude = errors.New("include must name a page with a literal string")

// funcs builds the author-facing function set for one pass.
func (st *state) funcs() template.FuncMap {
	return template.FuncMap{
		"query":       st.query,
		"result":      st.result,
		"tile":        st.tile,
		"chart":       st.chart,
		"placeholder": st.placeholder,
		"relation":    st.relation,
		"menu":        st.setMenu,
		"include": func(target any) (string, error) {
			return "", fmt.Errorf("include %v: %w", target, errUnresolvedInclude)
		},
		"json":  toJSON,
		"first": first,
		"jp":    jsonPath,
	}
}

func (st *state) query(name, text string) string {
	if st.collecting() {
		st.queries[name] = text
	}
	return ""
}

func (st *state) result(name string) any {
	if st.collecting() {
		return nil
	}
	return st.results[name]
}

func (st *state) tile(cols, rows int, content string, title ...string) string {
	st.addTile(cols, rows, firstOr(title), api.StaticContent{Content: content})
	return ""
}

func (st *state) chart(cols, rows int, title, query string) string {
	st.addTile(cols, rows, "", api.ChartQuery{Query: query, Title: title})
	return ""
}

func (st *state) placeholder(cols, rows int) string {
	st.addTile(cols, rows, "", api.Placeholder{})
	return ""
}

// relation takes the relation name followed by key/value pairs of widget properties.
func (st *state) relation(cols, rows int, name string, kv ...any) (string, error) {
	if len(kv)%2 != 0 {
		return "", fmt.Errorf("relation %s: properties must be key/value pairs", name)
	}
	var props map[string]any
	if len(kv) > 0 {
		props = make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				return "", fmt.Errorf("relation %s: property key %v is not a string", name, kv[i])
			}
			props[key] = kv[i+1]
		}
	}
	st.addTile(cols, rows, "", api.Relation{Name: name, Props: props})
	return "", nil
}

func (st *state) setMenu(show bool) string {
	if !st.collecting() {
		st.menu = &show
	}
	return ""
}

func (st *state) addTile(cols, rows int, title string, w api.Widget) {
	if st.collecting() {
		return
	}
	st.tiles = append(st.tiles, api.Tile{Cols: cols, Rows: rows, Title: title, Widget: w})
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<json error: %v>", err)
	}
	return string(b)
}

func first(v any) any {
	switch s := v.(type) {
	case []any:
		if len(s) > 0 {
			return s[0]
		}
	}
	return nil
}

// jsonPath evaluates a JSONPath expression against a query result.
func jsonPath(expr string, v any) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	if v == nil {
		return []any{}, nil
	}
	return x.Get(v), nil
}

func firstOr(s []string) string {
	if len(s) > 0 {
		return s[0]
	}
	return ""
}

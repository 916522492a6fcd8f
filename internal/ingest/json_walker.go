package ingest

import (
	"fmt"

	"github.com/agentic-research/pagefly/api"
	"github.com/ohler55/ojg/jp"
)

// DefaultSelector picks the page records of a JSON export.
const DefaultSelector = "$.pages[*]"

// JsonWalker implements Walker for JSON-like data.
type JsonWalker struct{}

func NewJsonWalker() *JsonWalker {
	return &JsonWalker{}
}

// Query implements Walker.
func (w *JsonWalker) Query(root any, selector string) ([]Match, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	results := x.Get(root)
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = &jsonMatch{value: r}
	}
	return matches, nil
}

type jsonMatch struct {
	value any
}

// Values implements Match.
func (m *jsonMatch) Values() map[string]any {
	switch v := m.value.(type) {
	case map[string]any:
		return v
	default:
		return map[string]any{"value": v}
	}
}

// pageFromRecord builds a page from an exported record. The kind is read
// from "kind", falling back to "language".
func pageFromRecord(values map[string]any) (api.Page, error) {
	name, ok := values["name"].(string)
	if !ok || name == "" {
		return api.Page{}, fmt.Errorf("record has no name: %v", values)
	}
	text, _ := values["text"].(string)
	kind, ok := values["kind"].(string)
	if !ok {
		kind, _ = values["language"].(string)
	}
	return api.Page{Name: normalizeName(name), Text: text, Kind: api.ParseKind(kind)}, nil
}

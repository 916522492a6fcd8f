package api

import (
	"encoding/json"
	"fmt"
)

// ComposedOutput is the result of composing one page. Ownership passes to the
// caller. When Error is set, OutputText is empty and Tiles is nil.
type ComposedOutput struct {
	OutputText  string     `json:"output"`
	Tiles       []Tile     `json:"tiles,omitempty"`
	DisplayMenu *bool      `json:"displayMenu,omitempty"` // nil when the page never set it
	Error       *ErrorInfo `json:"error,omitempty"`
}

// ErrorKind classifies composition failures.
type ErrorKind string

const (
	ErrMissingPage      ErrorKind = "MissingPage"
	ErrCyclicInclude    ErrorKind = "CyclicInclude"
	ErrRender           ErrorKind = "RenderError"
	ErrQuery            ErrorKind = "QueryError"
	ErrStoreUnavailable ErrorKind = "StoreUnavailable"
)

// ErrorInfo is the structured failure reported in ComposedOutput.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Name    string    `json:"name,omitempty"`  // page or query name
	Phase   string    `json:"phase,omitempty"` // render errors only
	Stack   []string  `json:"stack,omitempty"` // include errors only
}

func (e *ErrorInfo) String() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Tile is one widget of the composed layout.
type Tile struct {
	Cols   int
	Rows   int
	Title  string
	Widget Widget
}

// Widget is the closed set of tile payloads.
type Widget interface {
	WidgetKind() string
	isWidget()
}

// StaticContent is markup shown as-is in a tile.
type StaticContent struct {
	Content string `json:"content"`
}

// ChartQuery asks the surface to chart the rows of Query.
type ChartQuery struct {
	Query string `json:"chartQuery"`
	Title string `json:"chartTitle,omitempty"`
}

// TreeWidget shows a navigable page tree.
type TreeWidget struct {
	Data []*DirNode `json:"data"`
}

// Placeholder marks where a page wrapped by a template goes.
// Page is empty until the engine knows which page is being wrapped.
type Placeholder struct {
	Page string `json:"placeHolder"`
}

// Relation shows a result-set widget over a table or view.
type Relation struct {
	Name  string         `json:"relation"`
	Props map[string]any `json:"relProps,omitempty"`
}

func (StaticContent) WidgetKind() string { return "content" }
func (ChartQuery) WidgetKind() string    { return "chart" }
func (TreeWidget) WidgetKind() string    { return "tree" }
func (Placeholder) WidgetKind() string   { return "placeholder" }
func (Relation) WidgetKind() string      { return "relation" }

func (StaticContent) isWidget() {}
func (ChartQuery) isWidget()    {}
func (TreeWidget) isWidget()    {}
func (Placeholder) isWidget()   {}
func (Relation) isWidget()      {}

// MarshalJSON flattens the widget payload next to the layout fields.
func (t Tile) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"cols": t.Cols,
		"rows": t.Rows,
	}
	if t.Title != "" {
		out["title"] = t.Title
	}
	if t.Widget == nil {
		return json.Marshal(out)
	}
	out["kind"] = t.Widget.WidgetKind()
	payload, err := json.Marshal(t.Widget)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// DirNode is one node of a directory tree built from page names.
type DirNode struct {
	DisplayName string     `json:"name"`
	FullName    string     `json:"fullName"`
	URL         string     `json:"url"`
	Children    []*DirNode `json:"children"`
}

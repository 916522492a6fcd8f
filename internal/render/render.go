// Package render evaluates a flattened page template with Go text/template.
//
// A page is evaluated twice. The collection pass records the queries the page
// declares and throws its output away. The render pass runs with the query
// results in place and produces the output text, the tiles and the menu flag.
// The evaluator cannot wait on the store mid-template, so the queries run in
// between the two passes.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/agentic-research/pagefly/api"
)

// Phase names an evaluation pass.
type Phase string

const (
	PhaseCollect Phase = "collect"
	PhaseRender  Phase = "render"
)

// Error reports a template failure in either pass.
type Error struct {
	Phase   Phase
	Page    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s pass of %s: %s", e.Phase, e.Page, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Data is the dot value seen by page templates.
type Data struct {
	Page       string
	Collecting bool
	Results    map[string]any
}

// Result is the output of the render pass.
type Result struct {
	Output      string
	Tiles       []api.Tile
	DisplayMenu *bool
}

// Collect runs the collection pass over text and returns the declared
// queries by name. A name declared twice keeps its last text.
func Collect(page, text string) (map[string]string, error) {
	st := &state{phase: PhaseCollect, page: page, queries: map[string]string{}}
	data := Data{Page: page, Collecting: true, Results: map[string]any{}}
	if _, err := st.evaluate(text, data); err != nil {
		return nil, err
	}
	return st.queries, nil
}

// Render runs the render pass over text with the executed query results.
func Render(page, text string, results map[string]any) (*Result, error) {
	if results == nil {
		results = map[string]any{}
	}
	st := &state{phase: PhaseRender, page: page, results: results}
	out, err := st.evaluate(text, Data{Page: page, Results: results})
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Tiles: st.tiles, DisplayMenu: st.menu}, nil
}

// WrapScript turns the text of a script page into one block of template
// actions. Each statement becomes its own action; a statement is a
// non-blank line that is not a // comment, extended over following lines
// while a backtick raw string is open, so multi-line SQL reaches the store
// as written. Actions between statements trim the newlines that separate
// them, but the block leaves the text around it alone. An unterminated raw
// string is left for the template parser to reject.
func WrapScript(text string) string {
	stmts := scriptStatements(text)
	if len(stmts) == 0 {
		return ""
	}
	var b strings.Builder
	for i, stmt := range stmts {
		if i == 0 {
			b.WriteString("{{ ")
		} else {
			b.WriteString("{{- ")
		}
		b.WriteString(stmt)
		if i == len(stmts)-1 {
			b.WriteString(" }}")
		} else {
			b.WriteString(" -}}\n")
		}
	}
	return b.String()
}

func scriptStatements(text string) []string {
	var (
		stmts []string
		cur   strings.Builder
		inRaw bool
	)
	for _, line := range strings.Split(text, "\n") {
		if inRaw {
			cur.WriteByte('\n')
			cur.WriteString(line)
		} else {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "//") {
				continue
			}
			cur.WriteString(line)
		}
		inRaw = rawOpenAfter(line, inRaw)
		if !inRaw {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		stmts = append(stmts, cur.String())
	}
	return stmts
}

// rawOpenAfter reports whether a backtick raw string is still open at the
// end of line, given whether one was open at its start. Backticks inside
// double-quoted strings do not count.
func rawOpenAfter(line string, inRaw bool) bool {
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inRaw:
			if c == '`' {
				inRaw = false
			}
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '`':
			inRaw = true
		}
	}
	return inRaw
}

// state is the mutable context of one pass. The template functions close
// over it; nothing is shared between passes or calls.
type state struct {
	phase   Phase
	page    string
	queries map[string]string
	results map[string]any
	tiles   []api.Tile
	menu    *bool
}

func (st *state) evaluate(text string, data Data) (string, error) {
	t, err := template.New(st.page).Funcs(st.funcs()).Parse(text)
	if err != nil {
		return "", &Error{Phase: st.phase, Page: st.page, Message: err.Error(), Err: err}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", &Error{Phase: st.phase, Page: st.page, Message: err.Error(), Err: err}
	}
	return buf.String(), nil
}

func (st *state) collecting() bool { return st.phase == PhaseCollect }

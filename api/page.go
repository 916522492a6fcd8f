// Package api holds the public data types of pagefly: stored pages and the
// composed output handed to a rendering surface.
package api

import "strings"

// Kind declares how a page's text is interpreted.
type Kind int

const (
	// Markup pages mix literal text with template actions and includes.
	Markup Kind = iota
	// Script pages are pure template logic with no surrounding markup.
	Script
	// Directory pages are markers; composing one yields a tree of the pages under it.
	Directory
)

func (k Kind) String() string {
	switch k {
	case Script:
		return "script"
	case Directory:
		return "dir"
	default:
		return "markup"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// ParseKind maps a stored kind string to a Kind. Unknown values are Markup.
// The legacy spellings "js" and "DIR" are accepted.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "script", "js", "javascript":
		return Script
	case "dir", "directory":
		return Directory
	default:
		return Markup
	}
}

// Page is a named, stored unit of content, template or script.
// Name is a slash-delimited path such as /docs/intro; "/" is the tree root.
type Page struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
}

// Row is one record returned by a query: column name to value.
type Row = map[string]any

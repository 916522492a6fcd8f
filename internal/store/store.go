// Package store holds pages, page templates and the include back-reference
// index, and executes author queries against the same database.
package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by FetchPage when no page has the requested name.
	ErrNotFound = errors.New("page not found")
	// ErrUnavailable wraps every failure of the underlying storage other than
	// a missing page.
	ErrUnavailable = errors.New("page store unavailable")
)

// PageTemplate maps page names matching Regex to the page that wraps them.
type PageTemplate struct {
	Regex        string `json:"regex"`
	TemplatePage string `json:"template_page"`
}

// Schema is the DDL applied by Open. Pages keep their implicit rowid, which
// the back-reference bitmaps use as page identity.
const Schema = `
CREATE TABLE IF NOT EXISTS page (
	name TEXT PRIMARY KEY,
	text TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT 'markup'
);
CREATE TABLE IF NOT EXISTS page_template (
	regex TEXT NOT NULL,
	template_page TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS page_refs (
	target TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
);
`

// prefixRange returns the half-open key range [lo, hi) of names strictly
// below prefix. '0' sorts immediately after '/'.
func prefixRange(prefix string) (lo, hi string) {
	base := strings.TrimSuffix(prefix, "/")
	return base + "/", base + "0"
}

// underPrefix reports whether name is prefix itself or lies below it.
func underPrefix(name, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	base := strings.TrimSuffix(prefix, "/")
	return name == base || strings.HasPrefix(name, base+"/")
}

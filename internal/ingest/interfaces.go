package ingest

import (
	"context"

	"github.com/agentic-research/pagefly/api"
)

// Target receives imported pages. Reindex runs once after an import so the
// include back-reference index reflects the new pages.
type Target interface {
	PutPage(ctx context.Context, p api.Page) error
	Reindex(ctx context.Context) error
}

// Source is what Export reads pages from.
type Source interface {
	ListNames(ctx context.Context, prefix string) ([]string, error)
	FetchPages(ctx context.Context, names []string) ([]api.Page, error)
}

// Walker selects page records out of a decoded document.
type Walker interface {
	Query(root any, selector string) ([]Match, error)
}

// Match is one selected record.
type Match interface {
	// Values returns the record's fields. A primitive match is returned
	// under the key "value".
	Values() map[string]any
}

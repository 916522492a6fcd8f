// Package query runs the queries a page declared during its collection pass.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/linter"
	"golang.org/x/sync/errgroup"
)

// Executor runs one query against the backing store.
type Executor interface {
	Execute(ctx context.Context, query string) ([]api.Row, error)
}

// Error reports the declared query that failed.
type Error struct {
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("query %q: %s", e.Name, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Options tunes a Run.
type Options struct {
	// Concurrency bounds the number of queries in flight. Values below 1 mean 1.
	Concurrency int
	// Lint runs the SQL linter over each query and logs its findings.
	Lint   bool
	Logger *slog.Logger
}

// Run executes every query once and returns the collapsed results keyed by
// the same names. The first failure cancels the rest. If ctx ends first,
// its error is returned as is.
func Run(ctx context.Context, exec Executor, queries map[string]string, opts Options) (map[string]any, error) {
	results := make(map[string]any, len(queries))
	if len(queries) == 0 {
		return results, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, name := range names {
		text := queries[name]
		g.Go(func() error {
			if opts.Lint {
				lint(gctx, logger, name, text)
			}
			rows, err := exec.Execute(gctx, text)
			if err != nil {
				return &Error{Name: name, Message: err.Error(), Err: err}
			}
			mu.Lock()
			results[name] = Collapse(rows)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Cancellation by the caller is not a failure of any one query.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var qe *Error
		if errors.As(err, &qe) {
			return nil, qe
		}
		return nil, err
	}
	return results, nil
}

// Collapse reduces a result with exactly one row of exactly one column to
// that column's value. Anything else stays an ordered list of rows.
func Collapse(rows []api.Row) any {
	if len(rows) == 1 && len(rows[0]) == 1 {
		for _, v := range rows[0] {
			return v
		}
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any(r)
	}
	return out
}

func lint(ctx context.Context, logger *slog.Logger, name, text string) {
	diags, err := linter.LintQuery(ctx, text)
	if err != nil {
		logger.Debug("query lint skipped", "query", name, "error", err)
		return
	}
	for _, d := range diags {
		logger.Warn("query lint", "query", name, "diagnostic", d.String())
	}
}

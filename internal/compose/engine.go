// Package compose turns a stored page into its composed output.
//
// Composition runs in stages, each complete before the next starts:
// includes are flattened, the collection pass records the page's queries,
// the queries run, and the render pass produces the output. Directory pages
// skip all of that and compose to a tree of the pages below them.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/dir"
	"github.com/agentic-research/pagefly/internal/include"
	"github.com/agentic-research/pagefly/internal/query"
	"github.com/agentic-research/pagefly/internal/render"
	"github.com/agentic-research/pagefly/internal/store"
)

// Gateway is everything the engine needs from a page store.
type Gateway interface {
	FetchPage(ctx context.Context, name string) (api.Page, error)
	FetchPages(ctx context.Context, names []string) ([]api.Page, error)
	ListNames(ctx context.Context, prefix string) ([]string, error)
	Execute(ctx context.Context, query string) ([]api.Row, error)
}

// TemplateSource is implemented by gateways that store page templates.
type TemplateSource interface {
	Templates(ctx context.Context) ([]store.PageTemplate, error)
}

// TemplateNotice replaces the placeholder tiles of a template page that is
// composed on its own.
const TemplateNotice = "This is a template. The actual content goes in here when the template is applied to a page."

// Options configures an Engine.
type Options struct {
	Logger           *slog.Logger
	QueryConcurrency int
	// Lint logs SQL syntax findings for every executed query.
	Lint bool
	// Templates enables page template lookup in Compose.
	Templates bool
}

// Engine composes pages. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	gw       Gateway
	resolver *include.Resolver
	logger   *slog.Logger
	opts     Options
}

func New(gw Gateway, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueryConcurrency < 1 {
		opts.QueryConcurrency = 4
	}
	return &Engine{
		gw:       gw,
		resolver: include.NewResolver(gw),
		logger:   logger,
		opts:     opts,
	}
}

// Compose composes name, applying the first page template whose regex
// matches it.
//
// On failure the returned output carries the structured error and the typed
// error is returned alongside it. Failures outside the error taxonomy, such
// as cancellation, return a nil output.
func (e *Engine) Compose(ctx context.Context, name string) (*api.ComposedOutput, error) {
	tpl, err := e.matchTemplate(ctx, name)
	if err != nil {
		return finish(name, err)
	}
	if tpl == nil {
		return e.ComposePage(ctx, name)
	}

	e.logger.Debug("applying page template", "page", name, "template", tpl.TemplatePage)
	out, err := e.ComposePage(ctx, tpl.TemplatePage)
	if err != nil {
		return out, err
	}
	for i, t := range out.Tiles {
		if _, ok := t.Widget.(api.Placeholder); !ok {
			continue
		}
		if tpl.TemplatePage == name {
			out.Tiles[i].Widget = api.StaticContent{Content: TemplateNotice}
		} else {
			out.Tiles[i].Widget = api.Placeholder{Page: name}
		}
	}
	return out, nil
}

// ComposePage composes name without template lookup.
func (e *Engine) ComposePage(ctx context.Context, name string) (*api.ComposedOutput, error) {
	out, err := e.compose(ctx, name)
	if err != nil {
		return finish(name, err)
	}
	return out, nil
}

// Queries returns the queries name declares, without running them.
// Directory pages declare none.
func (e *Engine) Queries(ctx context.Context, name string) (map[string]string, error) {
	page, err := e.gw.FetchPage(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("queries of %s: %w", name, err)
	}
	switch page.Kind {
	case api.Directory:
		return map[string]string{}, nil
	case api.Script:
		return render.Collect(name, render.WrapScript(page.Text))
	}
	text, err := e.resolver.Flatten(ctx, name, page.Text)
	if err != nil {
		return nil, err
	}
	return render.Collect(name, text)
}

func (e *Engine) compose(ctx context.Context, name string) (*api.ComposedOutput, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := e.gw.FetchPage(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("compose %s: %w", name, err)
	}

	var text string
	switch page.Kind {
	case api.Directory:
		root, err := dir.Compose(ctx, e.gw, name)
		if err != nil {
			return nil, fmt.Errorf("compose %s: %w", name, err)
		}
		e.logger.Debug("composed directory", "page", name, "elapsed", time.Since(start))
		return &api.ComposedOutput{Tiles: []api.Tile{dir.Tile(root)}}, nil
	case api.Script:
		text = render.WrapScript(page.Text)
	default:
		text, err = e.resolver.Flatten(ctx, name, page.Text)
		if err != nil {
			return nil, err
		}
	}
	e.logger.Debug("includes resolved", "page", name, "elapsed", time.Since(start))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queries, err := render.Collect(name, text)
	if err != nil {
		return nil, err
	}

	results, err := query.Run(ctx, e.gw, queries, query.Options{
		Concurrency: e.opts.QueryConcurrency,
		Lint:        e.opts.Lint,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("queries executed", "page", name, "count", len(queries), "elapsed", time.Since(start))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := render.Render(name, text, results)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("page composed", "page", name, "tiles", len(res.Tiles), "elapsed", time.Since(start))
	return &api.ComposedOutput{
		OutputText:  res.Output,
		Tiles:       res.Tiles,
		DisplayMenu: res.DisplayMenu,
	}, nil
}

func (e *Engine) matchTemplate(ctx context.Context, name string) (*store.PageTemplate, error) {
	if !e.opts.Templates {
		return nil, nil
	}
	src, ok := e.gw.(TemplateSource)
	if !ok {
		return nil, nil
	}
	tpls, err := src.Templates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tpls {
		re, err := regexp.Compile(tpls[i].Regex)
		if err != nil {
			e.logger.Warn("skipping page template", "regex", tpls[i].Regex, "error", err)
			continue
		}
		if re.MatchString(name) {
			return &tpls[i], nil
		}
	}
	return nil, nil
}

// finish pairs err with the output that reports it. Errors that do not name
// a page are attributed to the page being composed.
func finish(name string, err error) (*api.ComposedOutput, error) {
	info := Classify(err)
	if info == nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = name
	}
	return &api.ComposedOutput{Error: info}, err
}

// Classify maps err onto the error taxonomy. It returns nil for errors that
// have no kind, such as cancellation or an internal invariant failure.
func Classify(err error) *api.ErrorInfo {
	var (
		ie *include.Error
		qe *query.Error
		re *render.Error
	)
	switch {
	case errors.As(err, &ie):
		kind := api.ErrMissingPage
		if ie.Kind == include.CyclicInclude {
			kind = api.ErrCyclicInclude
		}
		return &api.ErrorInfo{Kind: kind, Message: ie.Error(), Name: ie.Name, Stack: ie.Stack}
	case errors.As(err, &qe):
		return &api.ErrorInfo{Kind: api.ErrQuery, Message: qe.Error(), Name: qe.Name}
	case errors.As(err, &re):
		return &api.ErrorInfo{Kind: api.ErrRender, Message: re.Error(), Name: re.Page, Phase: string(re.Phase)}
	case errors.Is(err, store.ErrNotFound):
		return &api.ErrorInfo{Kind: api.ErrMissingPage, Message: err.Error()}
	case errors.Is(err, store.ErrUnavailable):
		return &api.ErrorInfo{Kind: api.ErrStoreUnavailable, Message: err.Error()}
	}
	return nil
}

// Package include flattens a page by inlining the pages it includes.
//
// An include directive is written {{include "target"}} (the trim markers
// {{- and -}} are accepted and have no effect). A relative target resolves
// against the directory of the including page, so /a/b including "c" reads
// /a/c. Includes are resolved recursively; a page that is already being
// resolved further up the chain is a cycle and fails the whole composition.
package include

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/render"
)

// directiveRe matches one include directive and captures its raw target.
var directiveRe = regexp.MustCompile(`\{\{-?\s*include\s+"([^"\n]+)"\s*-?\}\}`)

// Fetcher loads a batch of pages by absolute name. Missing names are simply
// absent from the result.
type Fetcher interface {
	FetchPages(ctx context.Context, names []string) ([]api.Page, error)
}

// ErrorKind distinguishes include failures.
type ErrorKind int

const (
	MissingPage ErrorKind = iota + 1
	CyclicInclude
)

func (k ErrorKind) String() string {
	if k == CyclicInclude {
		return "cyclic include"
	}
	return "missing page"
}

// Error is returned when an include cannot be resolved.
type Error struct {
	Kind  ErrorKind
	Name  string   // absolute name of the offending include
	Stack []string // inclusion stack at the moment of failure
}

func (e *Error) Error() string {
	switch e.Kind {
	case CyclicInclude:
		return fmt.Sprintf("page %q is included recursively (include stack: %s)", e.Name, strings.Join(e.Stack, " -> "))
	default:
		return fmt.Sprintf("included page %q does not exist (include stack: %s)", e.Name, strings.Join(e.Stack, " -> "))
	}
}

// Resolved pairs an include target as written with its absolute page name.
type Resolved struct {
	Original string
	Full     string
}

// Scan returns the distinct raw include targets of text in order of first use.
func Scan(text string) []string {
	matches := directiveRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	targets := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			targets = append(targets, m[1])
		}
	}
	return targets
}

// ResolveTarget returns the absolute page name of target as included from pageName.
func ResolveTarget(pageName, target string) string {
	if path.IsAbs(target) {
		return path.Clean(target)
	}
	return path.Join(path.Dir(pageName), target)
}

// ResolvePaths resolves every raw target against pageName, keeping the
// written form of each so substitution can find it again.
func ResolvePaths(targets []string, pageName string) []Resolved {
	out := make([]Resolved, 0, len(targets))
	for _, t := range targets {
		out = append(out, Resolved{Original: t, Full: ResolveTarget(pageName, t)})
	}
	return out
}

// Resolver flattens include directives using a Fetcher.
type Resolver struct {
	fetcher Fetcher
}

func NewResolver(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Flatten resolves all includes of the top-level page name with a fresh
// inclusion stack holding only that page.
func (r *Resolver) Flatten(ctx context.Context, name, text string) (string, error) {
	stack := NewStack()
	flat, err := r.descend(ctx, name, text, stack)
	if stack.Len() != 0 {
		return "", fmt.Errorf("include stack not empty after resolving %s: %v", name, stack.Names())
	}
	return flat, err
}

// Resolve inlines the includes of text, which belongs to pageName. Pages on
// stack are being resolved by a caller; including one of them is a cycle.
func (r *Resolver) Resolve(ctx context.Context, pageName, text string, stack *Stack) (string, error) {
	targets := Scan(text)
	if len(targets) == 0 {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resolved := ResolvePaths(targets, pageName)
	names := make([]string, 0, len(resolved))
	seen := make(map[string]bool, len(resolved))
	for _, inc := range resolved {
		if !seen[inc.Full] {
			seen[inc.Full] = true
			names = append(names, inc.Full)
		}
	}

	pages, err := r.fetcher.FetchPages(ctx, names)
	if err != nil {
		return "", fmt.Errorf("fetch includes of %s: %w", pageName, err)
	}
	bodies := make(map[string]string, len(pages))
	scripts := make(map[string]bool)
	for _, p := range pages {
		if p.Kind == api.Script {
			bodies[p.Name] = render.WrapScript(p.Text)
			scripts[p.Name] = true
			continue
		}
		bodies[p.Name] = p.Text
	}

	for _, name := range names {
		body, ok := bodies[name]
		if !ok {
			return "", &Error{Kind: MissingPage, Name: name, Stack: stack.Names()}
		}
		if stack.Contains(name) {
			return "", &Error{Kind: CyclicInclude, Name: name, Stack: stack.Names()}
		}
		// scripts cannot include
		if scripts[name] {
			continue
		}
		flat, err := r.descend(ctx, name, body, stack)
		if err != nil {
			return "", err
		}
		bodies[name] = flat
	}

	byOriginal := make(map[string]string, len(resolved))
	for _, inc := range resolved {
		byOriginal[inc.Original] = bodies[inc.Full]
	}
	return substitute(text, byOriginal), nil
}

// descend holds name on the stack while its own includes are resolved.
func (r *Resolver) descend(ctx context.Context, name, text string, stack *Stack) (string, error) {
	pop := stack.Push(name)
	defer pop()
	return r.Resolve(ctx, name, text, stack)
}

func substitute(text string, byOriginal map[string]string) string {
	return directiveRe.ReplaceAllStringFunc(text, func(directive string) string {
		m := directiveRe.FindStringSubmatch(directive)
		return byOriginal[m[1]]
	})
}

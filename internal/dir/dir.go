// Package dir builds the page tree shown for a directory page.
package dir

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/pagefly/api"
)

// Lister returns the names equal to prefix or below it.
type Lister interface {
	ListNames(ctx context.Context, prefix string) ([]string, error)
}

// URLPrefix is prepended to a page's full name to form its link.
const URLPrefix = "/page"

// Compose returns the tree of pages under prefix. The root carries the
// prefix as its display name; a page whose parent is not itself a page is
// attached to the root.
func Compose(ctx context.Context, lister Lister, prefix string) (*api.DirNode, error) {
	prefix = normalize(prefix)
	names, err := lister.ListNames(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return Build(prefix, names), nil
}

// Build arranges names, which must all be equal to or below prefix, into a tree.
func Build(prefix string, names []string) *api.DirNode {
	prefix = normalize(prefix)
	root := &api.DirNode{
		DisplayName: prefix,
		FullName:    prefix,
		URL:         URLPrefix + prefix,
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	byRel := map[string]*api.DirNode{"": root}
	for _, full := range sorted {
		rel := relative(prefix, full)
		if rel == "" {
			continue
		}
		parentPath, segment := "", rel
		if i := strings.LastIndex(rel, "/"); i >= 0 {
			parentPath, segment = rel[:i], rel[i+1:]
		}
		node := &api.DirNode{
			DisplayName: segment,
			FullName:    full,
			URL:         URLPrefix + full,
		}
		byRel[rel] = node

		parent, ok := byRel[parentPath]
		if !ok {
			parent = root
		}
		parent.Children = append(parent.Children, node)
	}
	return root
}

// Tile wraps a tree in the single widget a directory page composes to.
func Tile(root *api.DirNode) api.Tile {
	return api.Tile{Cols: 12, Rows: 4, Widget: api.TreeWidget{Data: []*api.DirNode{root}}}
}

func normalize(prefix string) string {
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return strings.TrimSuffix(prefix, "/")
}

// relative strips prefix and the separating slash from name.
func relative(prefix, name string) string {
	if prefix == "/" {
		return strings.TrimPrefix(name, "/")
	}
	if name == prefix {
		return ""
	}
	return strings.TrimPrefix(name, prefix+"/")
}

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/pagefly/api"
)

// Export extensions by page kind. Import maps them back.
const (
	MarkupExt = ".md"
	ScriptExt = ".js"
)

// Export writes every page below prefix into dir so it can be edited with
// ordinary tools and imported again. Files that already exist are left
// alone. It returns the number of pages written.
func Export(ctx context.Context, src Source, prefix, dir string) (int, error) {
	names, err := src.ListNames(ctx, prefix)
	if err != nil {
		return 0, err
	}
	pages, err := src.FetchPages(ctx, names)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, p := range pages {
		rel := strings.TrimPrefix(p.Name, "/")
		target := filepath.Join(dir, filepath.FromSlash(rel))

		if p.Kind == api.Directory {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return n, err
			}
			marker := filepath.Join(target, DirMarker)
			if _, err := os.Stat(marker); err == nil {
				continue
			}
			if err := os.WriteFile(marker, nil, 0o644); err != nil {
				return n, err
			}
			n++
			continue
		}
		if rel == "" {
			return n, fmt.Errorf("cannot export root page of kind %s", p.Kind)
		}

		ext := MarkupExt
		if p.Kind == api.Script {
			ext = ScriptExt
		}
		file := target + ext
		if _, err := os.Stat(file); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return n, err
		}
		if err := os.WriteFile(file, []byte(p.Text), 0o644); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

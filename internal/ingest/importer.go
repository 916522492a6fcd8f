package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/agentic-research/pagefly/api"
)

// DirMarker is the file whose presence turns a directory into a directory page.
const DirMarker = ".dir"

// scriptExts are the file extensions imported as script pages.
var scriptExts = map[string]bool{".js": true, ".script": true}

// Importer loads pages into a Target from a directory tree, a JSON export
// or another SQLite database.
type Importer struct {
	Target Target
	// Selector picks page records out of a JSON export.
	Selector string
	Logger   *slog.Logger
}

func NewImporter(target Target, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{Target: target, Selector: DefaultSelector, Logger: logger}
}

// Import loads src, which may be a directory, a .json export or a .db file,
// then rebuilds the back-reference index. It returns the number of pages
// written.
func (im *Importer) Import(ctx context.Context, src string) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	var n int
	switch {
	case info.IsDir():
		n, err = im.importDir(ctx, src)
	case filepath.Ext(src) == ".json":
		n, err = im.importJSON(ctx, src)
	case filepath.Ext(src) == ".db":
		n, err = im.importSQLite(ctx, src)
	default:
		return 0, fmt.Errorf("unsupported import source %s", src)
	}
	if err != nil {
		return n, err
	}
	if err := im.Target.Reindex(ctx); err != nil {
		return n, fmt.Errorf("reindex after import: %w", err)
	}
	im.Logger.Info("import complete", "source", src, "pages", n)
	return n, nil
}

// importDir walks root. Every regular file becomes a page named by its path
// relative to root without extension; every directory holding a DirMarker
// becomes a directory page. Other dotfiles are skipped.
func (im *Importer) importDir(ctx context.Context, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(p, DirMarker)); err == nil {
				if err := im.put(ctx, api.Page{Name: normalizeName(rel), Kind: api.Directory}); err != nil {
					return err
				}
				n++
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		ext := path.Ext(rel)
		kind := api.Markup
		if scriptExts[ext] {
			kind = api.Script
		}
		page := api.Page{Name: normalizeName(strings.TrimSuffix(rel, ext)), Text: string(content), Kind: kind}
		if err := im.put(ctx, page); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func (im *Importer) importJSON(ctx context.Context, file string) (int, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	return im.ImportJSON(ctx, content)
}

// ImportJSON loads the records selected by im.Selector from a JSON document.
// It does not reindex.
func (im *Importer) ImportJSON(ctx context.Context, content []byte) (int, error) {
	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		return 0, fmt.Errorf("failed to parse json: %w", err)
	}
	selector := im.Selector
	if selector == "" {
		selector = DefaultSelector
	}
	matches, err := NewJsonWalker().Query(data, selector)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range matches {
		page, err := pageFromRecord(m.Values())
		if err != nil {
			return n, err
		}
		if err := im.put(ctx, page); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (im *Importer) put(ctx context.Context, p api.Page) error {
	im.Logger.Debug("importing page", "page", p.Name, "kind", p.Kind.String())
	if err := im.Target.PutPage(ctx, p); err != nil {
		return fmt.Errorf("import %s: %w", p.Name, err)
	}
	return nil
}

// normalizeName turns a relative slash path into an absolute page name.
func normalizeName(rel string) string {
	if rel == "" || rel == "." {
		return "/"
	}
	return path.Clean("/" + rel)
}

// Package nfsmount serves the composed page tree over NFS.
//
// PageFS adapts the page store and the composition engine to
// billy.Filesystem for use with willscott/go-nfs. A page without children is
// a file holding its composed output; a page with children is a directory
// whose _index file holds it. Names below a missing page still show up as
// directories so the whole tree stays reachable.
package nfsmount

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/dir"
)

// IndexFile holds the composed output of a page that also has children.
const IndexFile = "_index"

// TreeFile is the virtual file at the root listing the whole page tree.
const TreeFile = "_tree.json"

var errReadOnly = fmt.Errorf("read-only filesystem")

// Composer produces the output shown for a page.
type Composer interface {
	Compose(ctx context.Context, name string) (*api.ComposedOutput, error)
}

// Lister returns the names equal to prefix or below it.
type Lister interface {
	ListNames(ctx context.Context, prefix string) ([]string, error)
}

// PageFS is a read-only billy.Filesystem over composed pages.
type PageFS struct {
	pages     Lister
	composer  Composer
	ctx       context.Context
	mountTime time.Time
}

// NewPageFS creates a billy.Filesystem backed by pages and composer. ctx
// bounds every store call made on behalf of NFS requests.
func NewPageFS(ctx context.Context, pages Lister, composer Composer) *PageFS {
	return &PageFS{
		pages:     pages,
		composer:  composer,
		ctx:       ctx,
		mountTime: time.Now(),
	}
}

// entry is what a path resolves to.
type entry struct {
	page   string // page whose output the file holds; empty for directories
	isDir  bool
	exists bool // the directory is itself a page
}

// --- billy.Basic ---

func (fs *PageFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *PageFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *PageFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}

	if filename == "/"+TreeFile {
		data, err := fs.treeJSON()
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: filename, Err: err}
		}
		return &bytesFile{name: TreeFile, data: data}, nil
	}

	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if e.isDir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	return &bytesFile{name: filepath.Base(filename), data: fs.content(e.page)}, nil
}

func (fs *PageFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *PageFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *PageFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *PageFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *PageFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *PageFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	e, err := fs.resolve(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
	}
	if !e.isDir {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
	}

	names, err := fs.pages.ListNames(fs.ctx, path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
	}

	var infos []os.FileInfo
	if path == "/" {
		data, err := fs.treeJSON()
		if err == nil {
			infos = append(infos, fs.fileInfo(TreeFile, int64(len(data))))
		}
	}
	if e.exists {
		infos = append(infos, fs.fileInfo(IndexFile, int64(len(fs.content(path)))))
	}

	children := childSegments(path, names)
	segs := make([]string, 0, len(children))
	for seg := range children {
		segs = append(segs, seg)
	}
	sort.Strings(segs)
	for _, seg := range segs {
		full := joinName(path, seg)
		if children[seg] {
			infos = append(infos, fs.dirInfo(seg))
			continue
		}
		infos = append(infos, fs.fileInfo(seg, int64(len(fs.content(full)))))
	}
	return infos, nil
}

func (fs *PageFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *PageFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return fs.dirInfo("/"), nil
	}
	if filename == "/"+TreeFile {
		data, err := fs.treeJSON()
		if err != nil {
			return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
		}
		return fs.fileInfo(TreeFile, int64(len(data))), nil
	}

	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
	}
	if e.isDir {
		return fs.dirInfo(filepath.Base(filename)), nil
	}
	return fs.fileInfo(filepath.Base(filename), int64(len(fs.content(e.page)))), nil
}

func (fs *PageFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *PageFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *PageFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *PageFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *PageFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

// resolve maps a clean path onto a page file or a directory.
func (fs *PageFS) resolve(path string) (entry, error) {
	if base := filepath.Base(path); base == IndexFile {
		parent := filepath.Dir(path)
		e, err := fs.resolve(parent)
		if err != nil {
			return entry{}, err
		}
		if !e.isDir || !e.exists {
			return entry{}, os.ErrNotExist
		}
		return entry{page: parent}, nil
	}

	names, err := fs.pages.ListNames(fs.ctx, path)
	if err != nil {
		return entry{}, err
	}
	if path == "/" {
		return entry{isDir: true, exists: contains(names, "/")}, nil
	}
	if len(names) == 0 {
		return entry{}, os.ErrNotExist
	}
	self := contains(names, path)
	hasChildren := len(names) > 1 || !self
	if hasChildren {
		return entry{isDir: true, exists: self}, nil
	}
	return entry{page: path}, nil
}

// content is the file body for a page. Composition failures are shown as
// the error message so they can be read through the mount.
func (fs *PageFS) content(page string) []byte {
	out, err := fs.composer.Compose(fs.ctx, page)
	if err != nil {
		if out != nil && out.Error != nil {
			return []byte("error: " + out.Error.String() + "\n")
		}
		return []byte("error: " + err.Error() + "\n")
	}
	return renderOutput(out)
}

func (fs *PageFS) treeJSON() ([]byte, error) {
	root, err := dir.Compose(fs.ctx, fs.pages, "/")
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (fs *PageFS) fileInfo(name string, size int64) os.FileInfo {
	return &staticFileInfo{name: name, size: size, mode: 0o444, modTime: fs.mountTime}
}

func (fs *PageFS) dirInfo(name string) os.FileInfo {
	return &staticFileInfo{name: name, mode: os.ModeDir | 0o555, modTime: fs.mountTime}
}

// renderOutput is the text form of a composed page: the output text, then
// the tiles as indented JSON when there are any.
func renderOutput(out *api.ComposedOutput) []byte {
	var b strings.Builder
	b.WriteString(out.OutputText)
	if len(out.Tiles) > 0 {
		tiles, err := json.MarshalIndent(out.Tiles, "", "  ")
		if err == nil {
			if out.OutputText != "" && !strings.HasSuffix(out.OutputText, "\n") {
				b.WriteByte('\n')
			}
			b.Write(tiles)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// childSegments returns the direct child segments of path among names,
// each flagged true when it has children of its own.
func childSegments(path string, names []string) map[string]bool {
	base := strings.TrimSuffix(path, "/")
	out := make(map[string]bool)
	for _, n := range names {
		rel := strings.TrimPrefix(n, base+"/")
		if rel == n || rel == "" {
			continue
		}
		seg, rest, nested := strings.Cut(rel, "/")
		if nested && rest != "" {
			out[seg] = true
			continue
		}
		if _, ok := out[seg]; !ok {
			out[seg] = false
		}
	}
	return out
}

func joinName(parent, seg string) string {
	if parent == "/" {
		return "/" + seg
	}
	return parent + "/" + seg
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*PageFS)(nil)
	_ billy.Capable    = (*PageFS)(nil)
	_ billy.File       = (*bytesFile)(nil)
)

package dir

import (
	"context"
	"errors"
	"testing"

	"github.com/agentic-research/pagefly/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	names []string
	err   error
}

func (l staticLister) ListNames(context.Context, string) ([]string, error) {
	return l.names, l.err
}

func childNames(n *api.DirNode) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, c.DisplayName)
	}
	return out
}

func TestCompose_Nested(t *testing.T) {
	root, err := Compose(context.Background(), staticLister{names: []string{
		"/docs/intro/setup", "/docs", "/docs/intro", "/docs/faq",
	}}, "/docs")
	require.NoError(t, err)

	assert.Equal(t, "/docs", root.DisplayName)
	assert.Equal(t, []string{"faq", "intro"}, childNames(root))

	intro := root.Children[1]
	assert.Equal(t, "/docs/intro", intro.FullName)
	assert.Equal(t, "/page/docs/intro", intro.URL)
	require.Len(t, intro.Children, 1)
	setup := intro.Children[0]
	assert.Equal(t, "setup", setup.DisplayName)
	assert.Equal(t, "/docs/intro/setup", setup.FullName)
	assert.Equal(t, "/page/docs/intro/setup", setup.URL)
}

func TestCompose_OrphanAttachesToRoot(t *testing.T) {
	root, err := Compose(context.Background(), staticLister{names: []string{"/docs/a/b"}}, "/docs/")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "b", root.Children[0].DisplayName)
	assert.Equal(t, "/docs/a/b", root.Children[0].FullName)
}

func TestCompose_InputOrderIrrelevant(t *testing.T) {
	a := Build("/x", []string{"/x/b", "/x/a", "/x/a/c"})
	b := Build("/x", []string{"/x/a/c", "/x/b", "/x/a"})
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"a", "b"}, childNames(a))
}

func TestCompose_Root(t *testing.T) {
	root := Build("/", []string{"/a", "/a/b", "/c"})
	assert.Equal(t, "/", root.DisplayName)
	assert.Equal(t, []string{"a", "c"}, childNames(root))
	assert.Equal(t, "/page/a/b", root.Children[0].Children[0].URL)
}

func TestCompose_StoreFailure(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := Compose(context.Background(), staticLister{err: boom}, "/docs")
	assert.ErrorIs(t, err, boom)
}

func TestTile(t *testing.T) {
	tile := Tile(&api.DirNode{DisplayName: "/"})
	assert.Equal(t, 12, tile.Cols)
	assert.Equal(t, 4, tile.Rows)
	assert.IsType(t, api.TreeWidget{}, tile.Widget)
}

package ostree_test

import (
	"testing"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/object"
	"github.com/stretchr/testify/require"
)

// TestTreeBuilderNestedDirectories exercises the intermediate-directory
// creation §4.2/§4.3 call for: inserting "a/b/c" must transparently
// create dirtree/dirmeta objects for "a" and "a/b" too.
func TestTreeBuilderNestedDirectories(t *testing.T) {
	r := newTestRepo(t)
	tb := r.NewTreeBuilder()

	_, err := tb.InsertFile("a/b/c", []byte("content"), 0, 0, 0o644, nil)
	require.NoError(t, err)

	rootTree, rootMeta, err := tb.Write()
	require.NoError(t, err)
	require.False(t, rootTree.IsZero())
	require.False(t, rootMeta.IsZero())

	data, err := r.Store().ReadRaw(rootTree, object.KindDirTree)
	require.NoError(t, err)
	dt, err := object.ParseDirTree(data)
	require.NoError(t, err)
	require.Len(t, dt.Files, 0)
	require.Len(t, dt.Dirs, 1)
	require.Equal(t, "a", dt.Dirs[0].Name)

	aData, err := r.Store().ReadRaw(dt.Dirs[0].TreeChecksum, object.KindDirTree)
	require.NoError(t, err)
	aTree, err := object.ParseDirTree(aData)
	require.NoError(t, err)
	require.Len(t, aTree.Dirs, 1)
	require.Equal(t, "b", aTree.Dirs[0].Name)

	bData, err := r.Store().ReadRaw(aTree.Dirs[0].TreeChecksum, object.KindDirTree)
	require.NoError(t, err)
	bTree, err := object.ParseDirTree(bData)
	require.NoError(t, err)
	require.Len(t, bTree.Files, 1)
	require.Equal(t, "c", bTree.Files[0].Name)
}

func TestTreeBuilderMkdirOverridesMode(t *testing.T) {
	r := newTestRepo(t)
	tb := r.NewTreeBuilder()

	require.NoError(t, tb.Mkdir("etc", 0, 0, 0o700, nil))
	_, err := tb.InsertFile("etc/passwd", []byte("root:x:0:0\n"), 0, 0, 0o600, nil)
	require.NoError(t, err)

	rootTree, _, err := tb.Write()
	require.NoError(t, err)

	data, err := r.Store().ReadRaw(rootTree, object.KindDirTree)
	require.NoError(t, err)
	dt, err := object.ParseDirTree(data)
	require.NoError(t, err)
	require.Len(t, dt.Dirs, 1)

	metaData, err := r.Store().ReadRaw(dt.Dirs[0].MetaChecksum, object.KindDirMeta)
	require.NoError(t, err)
	dm, err := object.ParseDirMeta(metaData)
	require.NoError(t, err)
	require.Equal(t, uint32(0o700), dm.Mode&0o777)
}

func TestTreeBuilderRemove(t *testing.T) {
	r := newTestRepo(t)
	tb := r.NewTreeBuilder()

	_, err := tb.InsertFile("a", []byte("x"), 0, 0, 0o644, nil)
	require.NoError(t, err)
	_, err = tb.InsertFile("b", []byte("y"), 0, 0, 0o644, nil)
	require.NoError(t, err)
	require.NoError(t, tb.Remove("a"))

	rootTree, _, err := tb.Write()
	require.NoError(t, err)

	data, err := r.Store().ReadRaw(rootTree, object.KindDirTree)
	require.NoError(t, err)
	dt, err := object.ParseDirTree(data)
	require.NoError(t, err)
	require.Len(t, dt.Files, 1)
	require.Equal(t, "b", dt.Files[0].Name)
}

func TestTreeBuilderRejectsInvalidFilename(t *testing.T) {
	r := newTestRepo(t)
	tb := r.NewTreeBuilder()

	_, err := tb.InsertFile("..", []byte("x"), 0, 0, 0o644, nil)
	require.ErrorIs(t, err, object.ErrInvalidFilename)
}

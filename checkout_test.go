package ostree_test

import (
	"testing"

	ostree "github.com/ostreego/ostree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestCheckoutWritesFilesAndDirs(t *testing.T) {
	r := newTestRepo(t)

	tb := r.NewTreeBuilder()
	_, err := tb.InsertFile("etc/motd", []byte("welcome\n"), 0, 0, 0o644, nil)
	require.NoError(t, err)
	_, err = tb.InsertSymlink("latest", "etc/motd", 0, 0)
	require.NoError(t, err)
	rootTree, rootMeta, err := tb.Write()
	require.NoError(t, err)

	c, err := r.Commit(rootTree, rootMeta, ostree.CommitOptions{Subject: "seed", Timestamp: 1_700_000_000})
	require.NoError(t, err)

	dest := afero.NewMemMapFs()
	require.NoError(t, r.Checkout(c, dest, "/out"))

	data, err := afero.ReadFile(dest, "/out/etc/motd")
	require.NoError(t, err)
	require.Equal(t, "welcome\n", string(data))
}

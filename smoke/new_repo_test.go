package smoke_test

import (
	"path/filepath"
	"testing"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/delta"
	"github.com/ostreego/ostree/merkle"
	"github.com/ostreego/ostree/prune"
	"github.com/stretchr/testify/require"
)

// TestWorkingOnNewRepo builds a repository from nothing: a tree, a
// commit, a branch ref, a second commit derived from the first, a
// prune pass, and a generate/apply delta round trip against a second,
// empty repository — end to end, against the real filesystem.
func TestWorkingOnNewRepo(t *testing.T) {
	t.Parallel()

	repoPath := filepath.Join(t.TempDir(), "repo")
	r, err := ostree.Init(repoPath, ostree.InitOptions{})
	require.NoError(t, err, "failed creating a repo")

	tb := r.NewTreeBuilder()
	_, err = tb.InsertFile("README.md", []byte("# hello\n"), 0, 0, 0o644, nil)
	require.NoError(t, err, "failed inserting the readme")
	rootTree, rootMeta, err := tb.Write()
	require.NoError(t, err, "failed writing the tree")

	headCommit, err := r.Commit(rootTree, rootMeta, ostree.CommitOptions{
		Subject:   "initial import",
		Timestamp: 1_700_000_000,
	})
	require.NoError(t, err, "failed creating the initial commit")
	require.NoError(t, r.SetRef("heads/main", headCommit), "failed pointing main at the initial commit")

	// Update the readme and commit again, as a child of the first commit.
	tb2 := r.NewTreeBuilder()
	_, err = tb2.InsertFile("README.md", []byte("# hello\n\nHello World\n"), 0, 0, 0o644, nil)
	require.NoError(t, err, "failed adding the updated readme to the tree")
	newTree, newMeta, err := tb2.Write()
	require.NoError(t, err, "failed creating the updated tree")

	fixCommit, err := r.Commit(newTree, newMeta, ostree.CommitOptions{
		Parent:    headCommit,
		HasParent: true,
		Subject:   "docs(readme): fix typo",
		Timestamp: 1_700_000_100,
	})
	require.NoError(t, err, "failed creating the commit with the updated readme")
	require.NoError(t, r.SetRef("heads/main", fixCommit), "failed fast-forwarding main")

	mainCommit, err := r.ResolveRef("heads/main")
	require.NoError(t, err, "couldn't resolve main")
	require.Equal(t, fixCommit, mainCommit, "main should point at the fix commit")

	reach, err := r.Reachable([]checksum.Checksum{fixCommit}, merkle.Options{})
	require.NoError(t, err, "failed computing reachability")
	require.Contains(t, reach.Objects, fixCommit)

	// Nothing is prunable yet: the only ref points at the tip commit.
	totals, err := prune.Run(r.Store(), r.Refs(), r.Store(), prune.Flags{})
	require.NoError(t, err, "prune should succeed on a healthy repo")
	require.Zero(t, totals.ObjectsPruned, "nothing should be collected yet")

	// Replicate the repo via a static delta into a fresh, empty repo.
	dstPath := filepath.Join(t.TempDir(), "mirror")
	dst, err := ostree.Init(dstPath, ostree.InitOptions{})
	require.NoError(t, err, "failed creating the mirror repo")

	sb, partData, err := r.GenerateDelta(checksum.Zero, fixCommit, delta.GenOptions{})
	require.NoError(t, err, "failed generating a delta")
	require.NoError(t, dst.ApplyDelta(sb, [][]byte{partData}, delta.ExecOptions{}), "failed applying the delta")

	mirrored, err := dst.ReadCommit(fixCommit)
	require.NoError(t, err, "the mirror should now have the commit")
	require.Equal(t, newTree, mirrored.RootTree)
}

package smoke_test

import (
	"path/filepath"
	"testing"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/stretchr/testify/require"
)

// TestWorkingOnExistingRepo opens a previously-initialized repository,
// reads its current README off the main branch, amends it, and lands
// the fix as a new commit on main — end to end, against the real
// filesystem.
func TestWorkingOnExistingRepo(t *testing.T) {
	t.Parallel()

	repoPath := filepath.Join(t.TempDir(), "repo")
	seed, err := ostree.Init(repoPath, ostree.InitOptions{})
	require.NoError(t, err, "failed seeding a repo")

	seedTB := seed.NewTreeBuilder()
	_, err = seedTB.InsertFile("README.md", []byte("Hello Wrld\n"), 0, 0, 0o644, nil)
	require.NoError(t, err, "failed seeding the readme")
	seedTree, seedMeta, err := seedTB.Write()
	require.NoError(t, err, "failed writing the seed tree")
	seedCommit, err := seed.Commit(seedTree, seedMeta, ostree.CommitOptions{
		Subject:   "initial import",
		Timestamp: 1_700_000_000,
	})
	require.NoError(t, err, "failed creating the seed commit")
	require.NoError(t, seed.SetRef("heads/main", seedCommit), "failed setting main")

	// Reopen it as if it were handed to us by someone else.
	r, err := ostree.Open(repoPath, ostree.OpenOptions{})
	require.NoError(t, err, "failed opening a repo")

	headCommitCsum, err := r.ResolveRef("heads/main")
	require.NoError(t, err, "couldn't resolve main")
	headCommit, err := r.ReadCommit(headCommitCsum)
	require.NoError(t, err, "couldn't get the head commit")

	// Find the readme in the head commit's tree.
	treeData, err := r.Store().ReadRaw(headCommit.RootTree, checksum.TypeDirTree)
	require.NoError(t, err, "couldn't read the head commit's tree")
	rootTree, err := object.ParseDirTree(treeData)
	require.NoError(t, err, "couldn't parse the head commit's tree")

	var readmeCsum checksum.Checksum
	for _, f := range rootTree.Files {
		if f.Name == "README.md" {
			readmeCsum = f.Checksum
			break
		}
	}
	require.False(t, readmeCsum.IsZero(), "couldn't find the readme in the tree")

	readme, err := r.Store().ReadFileObject(readmeCsum)
	require.NoError(t, err, "failed finding the readme object from its checksum")

	// Fix the typo and land it as a new commit on main.
	tb := r.NewTreeBuilder()
	fixedContent := append(append([]byte{}, readme.Content...), []byte("\nHello World\n")...)
	_, err = tb.InsertFile("README.md", fixedContent, readme.Header.UID, readme.Header.GID, readme.Header.Mode&0o777, readme.Header.Xattrs)
	require.NoError(t, err, "failed adding the fixed readme to the tree")

	newTree, newMeta, err := tb.Write()
	require.NoError(t, err, "failed creating the new tree")

	fixCommit, err := r.Commit(newTree, newMeta, ostree.CommitOptions{
		Parent:    headCommitCsum,
		HasParent: true,
		Subject:   "docs(readme): fix typo",
		Timestamp: 1_700_000_200,
	})
	require.NoError(t, err, "failed creating the commit with the fix")
	require.NoError(t, r.SetRef("heads/main", fixCommit), "failed landing the fix on main")

	mainCommit, err := r.ResolveRef("heads/main")
	require.NoError(t, err, "couldn't get the main branch")
	require.Equal(t, fixCommit, mainCommit, "the fix didn't land")
}

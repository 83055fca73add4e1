package merkle_test

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/merkle"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture builds: commit -> dirtree{file "a", subdir "sub"} -> sub dirtree{file "b"}.
func buildFixture(t *testing.T, s *store.Store) (commitCsum checksum.Checksum) {
	t.Helper()

	fileA := object.FileObject{Header: object.FileHeader{Mode: 0o100644}, Content: []byte("a")}
	aCsum, err := s.WriteFileObject(fileA)
	require.NoError(t, err)

	fileB := object.FileObject{Header: object.FileHeader{Mode: 0o100644}, Content: []byte("b")}
	bCsum, err := s.WriteFileObject(fileB)
	require.NoError(t, err)

	subMeta := object.DirMeta{Mode: 0o40755}
	subMetaData, err := subMeta.Marshal()
	require.NoError(t, err)
	subMetaCsum := checksum.Sum(subMetaData)
	require.NoError(t, s.WriteRaw(subMetaCsum, checksum.TypeDirMeta, subMetaData))

	subTree := object.DirTree{Files: []object.FileEntry{{Name: "b", Checksum: bCsum}}}
	subTreeData, err := subTree.Marshal()
	require.NoError(t, err)
	subTreeCsum := checksum.Sum(subTreeData)
	require.NoError(t, s.WriteRaw(subTreeCsum, checksum.TypeDirTree, subTreeData))

	rootMeta := object.DirMeta{Mode: 0o40755}
	rootMetaData, err := rootMeta.Marshal()
	require.NoError(t, err)
	rootMetaCsum := checksum.Sum(rootMetaData)
	require.NoError(t, s.WriteRaw(rootMetaCsum, checksum.TypeDirMeta, rootMetaData))

	rootTree := object.DirTree{
		Files: []object.FileEntry{{Name: "a", Checksum: aCsum}},
		Dirs:  []object.DirEntry{{Name: "sub", TreeChecksum: subTreeCsum, MetaChecksum: subMetaCsum}},
	}
	rootTreeData, err := rootTree.Marshal()
	require.NoError(t, err)
	rootTreeCsum := checksum.Sum(rootTreeData)
	require.NoError(t, s.WriteRaw(rootTreeCsum, checksum.TypeDirTree, rootTreeData))

	commit := object.Commit{
		Subject:      "fixture",
		Timestamp:    1700000000,
		RootTree:     rootTreeCsum,
		RootTreeMeta: rootMetaCsum,
	}
	commitData, err := commit.Marshal()
	require.NoError(t, err)
	cCsum := checksum.Sum(commitData)
	require.NoError(t, s.WriteRaw(cCsum, checksum.TypeCommit, commitData))

	return cCsum
}

func TestReachableCollectsWholeTree(t *testing.T) {
	s := store.New(afero.NewMemMapFs(), "/repo", store.ModeBare)
	require.NoError(t, s.Init())
	root := buildFixture(t, s)

	result, err := merkle.Reachable(s, []checksum.Checksum{root}, merkle.Options{MaxDepth: -1})
	require.NoError(t, err)

	// 1 commit + 2 dirtree + 1 dirmeta (root and sub share identical
	// metadata, hence one checksum) + 2 files = 6 objects
	assert.Len(t, result.Objects, 6)
	assert.Equal(t, checksum.TypeCommit, result.Objects[root])
}

func TestReachableCommitOnly(t *testing.T) {
	s := store.New(afero.NewMemMapFs(), "/repo", store.ModeBare)
	require.NoError(t, s.Init())
	root := buildFixture(t, s)

	result, err := merkle.Reachable(s, []checksum.Checksum{root}, merkle.Options{MaxDepth: -1, CommitOnly: true})
	require.NoError(t, err)
	assert.Len(t, result.Objects, 1)
}

func TestReachableMissingRootCommitIsSkipped(t *testing.T) {
	s := store.New(afero.NewMemMapFs(), "/repo", store.ModeBare)
	require.NoError(t, s.Init())

	result, err := merkle.Reachable(s, []checksum.Checksum{checksum.Sum([]byte("nope"))}, merkle.Options{MaxDepth: -1})
	require.NoError(t, err)
	assert.Empty(t, result.Objects)
}

func TestReachableProvenance(t *testing.T) {
	s := store.New(afero.NewMemMapFs(), "/repo", store.ModeBare)
	require.NoError(t, s.Init())
	root := buildFixture(t, s)

	result, err := merkle.Reachable(s, []checksum.Checksum{root}, merkle.Options{MaxDepth: -1, RecordProvenance: true})
	require.NoError(t, err)
	require.Contains(t, result.Provenance, root)
	assert.Contains(t, result.Provenance[root], root)
}

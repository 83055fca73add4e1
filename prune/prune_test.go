package prune_test

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/delta"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/prune"
	"github.com/ostreego/ostree/refs"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCommit(t *testing.T, s *store.Store, subject string, parent checksum.Checksum, hasParent bool) checksum.Checksum {
	t.Helper()
	meta := object.DirMeta{Mode: 0o40755}
	metaData, err := meta.Marshal()
	require.NoError(t, err)
	metaCsum := checksum.Sum(metaData)
	require.NoError(t, s.WriteRaw(metaCsum, checksum.TypeDirMeta, metaData))

	tree := object.DirTree{}
	treeData, err := tree.Marshal()
	require.NoError(t, err)
	treeCsum := checksum.Sum(treeData)
	require.NoError(t, s.WriteRaw(treeCsum, checksum.TypeDirTree, treeData))

	c := object.Commit{
		Subject:      subject,
		Timestamp:    1700000000,
		Parent:       parent,
		HasParent:    hasParent,
		RootTree:     treeCsum,
		RootTreeMeta: metaCsum,
	}
	data, err := c.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)
	require.NoError(t, s.WriteRaw(csum, checksum.TypeCommit, data))
	return csum
}

func TestPruneUnreferencedCommit(t *testing.T) {
	s := store.New(afero.NewMemMapFs(), "/repo", store.ModeBare)
	require.NoError(t, s.Init())
	r := refs.New(afero.NewMemMapFs(), "/repo")

	kept := writeCommit(t, s, "kept", checksum.Zero, false)
	orphan := writeCommit(t, s, "orphan", checksum.Zero, false)
	require.NoError(t, r.Set("main", kept))

	totals, err := prune.Run(s, r, s, prune.Flags{RefsOnly: true})
	require.NoError(t, err)
	assert.True(t, totals.ObjectsPruned > 0)

	has, err := s.HasObject(orphan, checksum.TypeCommit)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.HasObject(kept, checksum.TypeCommit)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPruneDryRun(t *testing.T) {
	s := store.New(afero.NewMemMapFs(), "/repo", store.ModeBare)
	require.NoError(t, s.Init())
	r := refs.New(afero.NewMemMapFs(), "/repo")

	orphan := writeCommit(t, s, "orphan", checksum.Zero, false)

	totals, err := prune.Run(s, r, s, prune.Flags{RefsOnly: true, NoPrune: true})
	require.NoError(t, err)
	assert.True(t, totals.ObjectsPruned > 0)

	has, err := s.HasObject(orphan, checksum.TypeCommit)
	require.NoError(t, err)
	assert.True(t, has, "dry run must not delete")
}

func TestPruneSweepsStaleDeltas(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := store.New(fs, "/repo", store.ModeBare)
	require.NoError(t, s.Init())
	r := refs.New(fs, "/repo")

	kept := writeCommit(t, s, "kept", checksum.Zero, false)
	orphan := writeCommit(t, s, "orphan", checksum.Zero, false)
	require.NoError(t, r.Set("main", kept))

	sb, part, err := delta.Generate(s, nil, mustCommit(t, s, orphan), orphan, mustRaw(t, s, orphan), delta.GenOptions{})
	require.NoError(t, err)
	require.NoError(t, delta.WriteToRepo(fs, "/repo", sb, [][]byte{part}))

	froms, err := delta.ListDeltas(fs, "/repo", orphan)
	require.NoError(t, err)
	require.Len(t, froms, 1)

	totals, err := prune.Run(s, r, s, prune.Flags{RefsOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, totals.DeltasPruned)

	froms, err = delta.ListDeltas(fs, "/repo", orphan)
	require.NoError(t, err)
	assert.Empty(t, froms, "delta to a pruned commit should be swept")
}

func mustCommit(t *testing.T, s *store.Store, csum checksum.Checksum) object.Commit {
	t.Helper()
	data, err := s.ReadRaw(csum, checksum.TypeCommit)
	require.NoError(t, err)
	c, err := object.ParseCommit(data)
	require.NoError(t, err)
	return c
}

func mustRaw(t *testing.T, s *store.Store, csum checksum.Checksum) []byte {
	t.Helper()
	data, err := s.ReadRaw(csum, checksum.TypeCommit)
	require.NoError(t, err)
	return data
}

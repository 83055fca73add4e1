package delta_test

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/delta"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitWithFile(t *testing.T, s *store.Store, name, content string) (object.Commit, checksum.Checksum, []byte) {
	t.Helper()

	f := object.FileObject{
		Header:  object.FileHeader{Mode: 0o100644},
		Content: []byte(content),
	}
	fileCsum, err := s.WriteFileObject(f)
	require.NoError(t, err)

	tree := object.DirTree{Files: []object.FileEntry{{Name: name, Checksum: fileCsum}}}
	tree.Sort()
	treeData, err := tree.Marshal()
	require.NoError(t, err)
	treeCsum := checksum.Sum(treeData)
	require.NoError(t, s.WriteRaw(treeCsum, checksum.TypeDirTree, treeData))

	meta := object.DirMeta{Mode: 0o40755}
	metaData, err := meta.Marshal()
	require.NoError(t, err)
	metaCsum := checksum.Sum(metaData)
	require.NoError(t, s.WriteRaw(metaCsum, checksum.TypeDirMeta, metaData))

	c := object.Commit{
		Subject:      "add " + name,
		Timestamp:    1700000000,
		RootTree:     treeCsum,
		RootTreeMeta: metaCsum,
	}
	data, err := c.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)
	require.NoError(t, s.WriteRaw(csum, checksum.TypeCommit, data))
	return c, csum, data
}

func TestGenerateAndApplyFromScratch(t *testing.T) {
	t.Parallel()

	src := store.New(afero.NewMemMapFs(), "/src", store.ModeBare)
	require.NoError(t, src.Init())

	toCommit, toCsum, toData := commitWithFile(t, src, "hello.txt", "hello world")

	sb, partData, err := delta.Generate(src, nil, toCommit, toCsum, toData, delta.GenOptions{})
	require.NoError(t, err)
	require.Len(t, sb.Parts, 1)

	dst := store.New(afero.NewMemMapFs(), "/dst", store.ModeBare)
	require.NoError(t, dst.Init())

	require.NoError(t, delta.ApplyPart(dst, sb.Parts[0], partData, delta.ExecOptions{}))
	require.NoError(t, dst.WriteRaw(sb.To, checksum.TypeCommit, sb.ToCommit))

	has, err := dst.HasObject(toCsum, checksum.TypeCommit)
	require.NoError(t, err)
	assert.True(t, has)

	gotCommitData, err := dst.ReadRaw(toCsum, checksum.TypeCommit)
	require.NoError(t, err)
	assert.Equal(t, toData, gotCommitData)

	gotTree, err := dst.ReadRaw(toCommit.RootTree, checksum.TypeDirTree)
	require.NoError(t, err)
	tree, err := object.ParseDirTree(gotTree)
	require.NoError(t, err)
	require.Len(t, tree.Files, 1)

	gotFile, err := dst.ReadFileObject(tree.Files[0].Checksum)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(gotFile.Content))
}

func TestGenerateIncrementalReusesUnchangedObjects(t *testing.T) {
	t.Parallel()

	src := store.New(afero.NewMemMapFs(), "/src", store.ModeBare)
	require.NoError(t, src.Init())

	fromCommit, fromCsum, fromData := commitWithFile(t, src, "hello.txt", "hello world, this is the original content of the file")
	_ = fromCsum
	_ = fromData

	f2 := object.FileObject{Header: object.FileHeader{Mode: 0o100644}, Content: []byte("hello world, this is the UPDATED content of the file")}
	f2Csum, err := src.WriteFileObject(f2)
	require.NoError(t, err)
	tree2 := object.DirTree{Files: []object.FileEntry{{Name: "hello.txt", Checksum: f2Csum}}}
	tree2.Sort()
	tree2Data, err := tree2.Marshal()
	require.NoError(t, err)
	tree2Csum := checksum.Sum(tree2Data)
	require.NoError(t, src.WriteRaw(tree2Csum, checksum.TypeDirTree, tree2Data))

	meta := object.DirMeta{Mode: 0o40755}
	metaData, _ := meta.Marshal()
	metaCsum := checksum.Sum(metaData)
	require.NoError(t, src.WriteRaw(metaCsum, checksum.TypeDirMeta, metaData))

	toCommit := object.Commit{
		Subject:      "update hello.txt",
		Timestamp:    1700000100,
		Parent:       fromCsum,
		HasParent:    true,
		RootTree:     tree2Csum,
		RootTreeMeta: metaCsum,
	}
	toData, err := toCommit.Marshal()
	require.NoError(t, err)
	toCsum := checksum.Sum(toData)
	require.NoError(t, src.WriteRaw(toCsum, checksum.TypeCommit, toData))

	sb, partData, err := delta.Generate(src, &fromCommit, toCommit, toCsum, toData, delta.GenOptions{})
	require.NoError(t, err)
	require.Len(t, sb.Parts, 1)
	assert.True(t, sb.HasFrom)

	dst := store.New(afero.NewMemMapFs(), "/dst", store.ModeBare)
	require.NoError(t, dst.Init())
	require.NoError(t, dst.WriteRaw(fromCsum, checksum.TypeCommit, fromData))

	// seed dst with every object reachable from the "from" commit, as a
	// real peer applying an incremental delta would already have.
	seedTree, err := src.ReadRaw(fromCommit.RootTree, checksum.TypeDirTree)
	require.NoError(t, err)
	require.NoError(t, dst.WriteRaw(fromCommit.RootTree, checksum.TypeDirTree, seedTree))
	seedMeta, err := src.ReadRaw(fromCommit.RootTreeMeta, checksum.TypeDirMeta)
	require.NoError(t, err)
	require.NoError(t, dst.WriteRaw(fromCommit.RootTreeMeta, checksum.TypeDirMeta, seedMeta))
	parsedFromTree, err := object.ParseDirTree(seedTree)
	require.NoError(t, err)
	oldFile, err := src.ReadFileObject(parsedFromTree.Files[0].Checksum)
	require.NoError(t, err)
	_, err = dst.WriteFileObject(oldFile)
	require.NoError(t, err)

	require.NoError(t, delta.ApplyPart(dst, sb.Parts[0], partData, delta.ExecOptions{}))
	require.NoError(t, dst.WriteRaw(sb.To, checksum.TypeCommit, sb.ToCommit))

	gotTree, err := dst.ReadRaw(tree2Csum, checksum.TypeDirTree)
	require.NoError(t, err)
	parsed, err := object.ParseDirTree(gotTree)
	require.NoError(t, err)
	gotFile, err := dst.ReadFileObject(parsed.Files[0].Checksum)
	require.NoError(t, err)
	assert.Equal(t, "hello world, this is the UPDATED content of the file", string(gotFile.Content))
}

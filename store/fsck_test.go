package store_test

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFsckHealthyRepo(t *testing.T) {
	s := newTestStore(t, store.ModeBare)

	f := object.FileObject{
		Header:  object.FileHeader{Mode: 0o100644},
		Content: []byte("hello\n"),
	}
	_, err := s.WriteFileObject(f)
	require.NoError(t, err)

	dt := object.DirTree{}
	data, err := dt.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)
	require.NoError(t, s.WriteRaw(csum, checksum.TypeDirTree, data))

	report, err := s.Fsck()
	require.NoError(t, err)
	require.Equal(t, 2, report.ObjectsChecked)
	require.Empty(t, report.Issues)
}

func TestFsckDetectsCorruption(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := store.New(fs, "/repo", store.ModeBare)
	require.NoError(t, s.Init())

	dt := object.DirTree{}
	data, err := dt.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)
	require.NoError(t, s.WriteRaw(csum, checksum.TypeDirTree, data))

	// Corrupt the object on disk directly, bypassing the store so the
	// in-memory cache still holds the original, valid bytes.
	path := "/repo/objects/" + csum.String()[:2] + "/" + csum.String()[2:] + ".dirtree"
	require.NoError(t, afero.WriteFile(fs, path, []byte("corrupted"), 0o444))

	report, err := s.Fsck()
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	require.Equal(t, csum, report.Issues[0].Checksum)
}

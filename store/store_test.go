package store_test

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, mode store.Mode) *store.Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := store.New(fs, "/repo", mode)
	require.NoError(t, s.Init())
	return s
}

func TestStoreInit(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	reopened, err := store.Open(afero.NewMemMapFs(), "/repo")
	_ = reopened
	assert.Error(t, err, "reopening against a different empty fs should fail")
	assert.Equal(t, store.ModeBare, s.Mode())
}

func TestWriteReadDirMeta(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	dm := object.DirMeta{UID: 0, GID: 0, Mode: 0o40755}
	data, err := dm.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)

	require.NoError(t, s.WriteRaw(csum, checksum.TypeDirMeta, data))

	has, err := s.HasObject(csum, checksum.TypeDirMeta)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := s.ReadRaw(csum, checksum.TypeDirMeta)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteRawChecksumMismatch(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	err := s.WriteRaw(checksum.Zero, checksum.TypeDirMeta, []byte("not zero's content"))
	assert.ErrorIs(t, err, store.ErrChecksumMismatch)
}

func TestReadMissingObject(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	_, err := s.ReadRaw(checksum.Sum([]byte("nope")), checksum.TypeCommit)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWriteReadFileObjectBare(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	f := object.FileObject{
		Header:  object.FileHeader{UID: 1000, GID: 1000, Mode: 0o100644},
		Content: []byte("hello world"),
	}
	csum, err := s.WriteFileObject(f)
	require.NoError(t, err)

	got, err := s.ReadFileObject(csum)
	require.NoError(t, err)
	assert.Equal(t, f.Content, got.Content)
}

func TestWriteReadFileObjectArchive(t *testing.T) {
	s := newTestStore(t, store.ModeArchive)
	f := object.FileObject{
		Header:  object.FileHeader{UID: 0, GID: 0, Mode: 0o100644},
		Content: []byte("compress me please, many times over many times over"),
	}
	csum, err := s.WriteFileObject(f)
	require.NoError(t, err)

	got, err := s.ReadFileObject(csum)
	require.NoError(t, err)
	assert.Equal(t, f.Content, got.Content)
}

func TestFileObjectChecksumModeIndependent(t *testing.T) {
	f := object.FileObject{
		Header:  object.FileHeader{UID: 0, GID: 0, Mode: 0o100644},
		Content: []byte("same content, any mode"),
	}
	bareStore := newTestStore(t, store.ModeBare)
	archiveStore := newTestStore(t, store.ModeArchive)

	bareCsum, err := bareStore.WriteFileObject(f)
	require.NoError(t, err)
	archiveCsum, err := archiveStore.WriteFileObject(f)
	require.NoError(t, err)
	assert.Equal(t, bareCsum, archiveCsum)
}

func TestWalkObjects(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	dm := object.DirMeta{UID: 0, GID: 0, Mode: 0o40755}
	data, err := dm.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)
	require.NoError(t, s.WriteRaw(csum, checksum.TypeDirMeta, data))

	var found []checksum.Checksum
	err = s.WalkObjects(func(c checksum.Checksum, typ checksum.Type) error {
		found = append(found, c)
		assert.Equal(t, checksum.TypeDirMeta, typ)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, csum, found[0])
}

func TestDeleteObject(t *testing.T) {
	s := newTestStore(t, store.ModeBare)
	dm := object.DirMeta{UID: 0, GID: 0, Mode: 0o40755}
	data, err := dm.Marshal()
	require.NoError(t, err)
	csum := checksum.Sum(data)
	require.NoError(t, s.WriteRaw(csum, checksum.TypeDirMeta, data))

	require.NoError(t, s.DeleteObject(csum, checksum.TypeDirMeta))
	has, err := s.HasObject(csum, checksum.TypeDirMeta)
	require.NoError(t, err)
	assert.False(t, has)
}

package store

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/ostreego/ostree/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// ErrChecksumMismatch is returned when the bytes handed to a write
// function do not hash to the checksum the caller claims they belong to
// (§7: "ChecksumMismatch — computed digest of written/streamed data does
// not equal the claimed object name").
var ErrChecksumMismatch = xerrors.New("store: checksum mismatch")

// ErrNotFound is returned when an object does not exist in the store
// (§7).
var ErrNotFound = xerrors.New("store: object not found")

// HasObject reports whether an object of the given checksum and type
// already exists in the store. Safe for concurrent use.
func (s *Store) HasObject(csum checksum.Checksum, typ checksum.Type) (bool, error) {
	s.objectMu.RLockObject(csum)
	defer s.objectMu.RUnlockObject(csum)
	return s.hasObjectUnsafe(csum, typ)
}

func (s *Store) hasObjectUnsafe(csum checksum.Checksum, typ checksum.Type) (bool, error) {
	p := s.objectPath(csum, typ)
	_, err := s.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, xerrors.Errorf("could not stat object: %w", err)
}

func (s *Store) objectPath(csum checksum.Checksum, typ checksum.Type) string {
	var ext string
	if typ == checksum.TypeFile {
		ext = layout.ExtForFile(s.mode.Archived())
	} else {
		ext = layout.ExtForType(typ)
	}
	return filepath.Join(s.root, layout.ObjectPath(csum, ext))
}

// WriteRaw persists an already-encoded dirmeta, dirtree or commit
// record. The checksum is verified against the record's own content
// before anything touches disk, the contract §7 calls "checksum
// verification during streaming write". Writing an object that already
// exists is a silent no-op (content-addressed objects are immutable).
func (s *Store) WriteRaw(csum checksum.Checksum, typ checksum.Type, data []byte) error {
	if typ == checksum.TypeFile {
		return xerrors.Errorf("WriteRaw does not support file objects, use WriteFileObject: %w", ErrUnknownMode)
	}
	if got := checksum.Sum(data); got != csum {
		return xerrors.Errorf("claimed %s, computed %s: %w", csum, got, ErrChecksumMismatch)
	}

	s.objectMu.LockObject(csum)
	defer s.objectMu.UnlockObject(csum)

	if found, err := s.hasObjectUnsafe(csum, typ); err != nil {
		return err
	} else if found {
		return nil
	}

	p := s.objectPath(csum, typ)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Errorf("could not create object directory: %w", err)
	}
	if err := s.writeAtomic(p, data, 0o444); err != nil {
		return xerrors.Errorf("could not persist object %s: %w", csum, err)
	}
	s.cache.Add(cacheKey{csum, typ}, data)
	return nil
}

// WriteFileObject encodes and persists a file content object under this
// store's mode, returning its checksum. The checksum is always computed
// over the mode-independent canonical header (see object.FileObject.Checksum),
// so the same content yields the same checksum regardless of store mode.
func (s *Store) WriteFileObject(f object.FileObject) (checksum.Checksum, error) {
	csum := f.Checksum()
	s.objectMu.LockObject(csum)
	defer s.objectMu.UnlockObject(csum)

	if found, err := s.hasObjectUnsafe(csum, checksum.TypeFile); err != nil {
		return checksum.Zero, err
	} else if found {
		return csum, nil
	}

	encoded, err := object.EncodeFileObject(f, object.Archive(s.mode.Archived()))
	if err != nil {
		return checksum.Zero, xerrors.Errorf("could not encode file object: %w", err)
	}

	p := s.objectPath(csum, checksum.TypeFile)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return checksum.Zero, xerrors.Errorf("could not create object directory: %w", err)
	}
	if err := s.writeAtomic(p, encoded, 0o444); err != nil {
		return checksum.Zero, xerrors.Errorf("could not persist object %s: %w", csum, err)
	}
	s.cache.Add(cacheKey{csum, checksum.TypeFile}, encoded)
	return csum, nil
}

type cacheKey struct {
	csum checksum.Checksum
	typ  checksum.Type
}

// ReadRaw returns the raw bytes of a dirmeta, dirtree or commit object.
func (s *Store) ReadRaw(csum checksum.Checksum, typ checksum.Type) ([]byte, error) {
	s.objectMu.RLockObject(csum)
	defer s.objectMu.RUnlockObject(csum)

	if cached, ok := s.cache.Get(cacheKey{csum, typ}); ok {
		return cached.([]byte), nil
	}

	p := s.objectPath(csum, typ)
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Errorf("%s (%s): %w", csum, typ, ErrNotFound)
		}
		return nil, xerrors.Errorf("could not read object %s: %w", csum, err)
	}
	s.cache.Add(cacheKey{csum, typ}, data)
	return data, nil
}

// ReadFileObject decodes the file content object addressed by csum.
func (s *Store) ReadFileObject(csum checksum.Checksum) (object.FileObject, error) {
	s.objectMu.RLockObject(csum)
	p := s.objectPath(csum, checksum.TypeFile)
	data, err := afero.ReadFile(s.fs, p)
	s.objectMu.RUnlockObject(csum)
	if err != nil {
		if os.IsNotExist(err) {
			return object.FileObject{}, xerrors.Errorf("%s (file): %w", csum, ErrNotFound)
		}
		return object.FileObject{}, xerrors.Errorf("could not read object %s: %w", csum, err)
	}
	f, err := object.DecodeFileObject(data, object.Archive(s.mode.Archived()))
	if err != nil {
		return object.FileObject{}, err
	}
	if got := f.Checksum(); got != csum {
		return object.FileObject{}, xerrors.Errorf("object at %s actually hashes to %s: %w", csum, got, ErrChecksumMismatch)
	}
	return f, nil
}

// ObjectSize returns the on-disk size in bytes of a loose object,
// queried by the prune engine before unlinking for accounting (§4.5).
func (s *Store) ObjectSize(csum checksum.Checksum, typ checksum.Type) (int64, error) {
	p := s.objectPath(csum, typ)
	info, err := s.fs.Stat(p)
	if err != nil {
		return 0, xerrors.Errorf("could not stat object %s: %w", csum, err)
	}
	return info.Size(), nil
}

// DeleteObject removes a loose object from disk. Used by the prune
// package once an object is confirmed unreachable.
func (s *Store) DeleteObject(csum checksum.Checksum, typ checksum.Type) error {
	s.objectMu.LockObject(csum)
	defer s.objectMu.UnlockObject(csum)

	p := s.objectPath(csum, typ)
	if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("could not remove object %s: %w", csum, err)
	}
	s.cache.Remove(cacheKey{csum, typ})
	return nil
}

// WalkFunc is applied to every loose object found by WalkObjects.
type WalkFunc func(csum checksum.Checksum, typ checksum.Type) error

// WalkStop is a sentinel WalkFunc can return to stop iteration early
// without it being reported as an error, mirroring backend.WalkStop.
var WalkStop = xerrors.New("store: stop walking")

// WalkObjects visits every loose object in the store.
func (s *Store) WalkObjects(f WalkFunc) error {
	root := filepath.Join(s.root, layout.ObjectsPath)
	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		csum, typ, ok := parseObjectFilename(root, p)
		if !ok {
			return nil
		}
		if walkErr := f(csum, typ); walkErr != nil {
			return walkErr
		}
		return nil
	})
	if err == WalkStop {
		return nil
	}
	return err
}

func parseObjectFilename(root, p string) (checksum.Checksum, checksum.Type, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return checksum.Zero, 0, false
	}
	dir := filepath.Dir(rel)
	base := filepath.Base(rel)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	if len(dir) != 2 {
		return checksum.Zero, 0, false
	}
	csum, err := checksum.FromHex(dir + name)
	if err != nil {
		return checksum.Zero, 0, false
	}
	var typ checksum.Type
	switch ext {
	case layout.ExtFile, layout.ExtFilezBare:
		typ = checksum.TypeFile
	case layout.ExtDirTree:
		typ = checksum.TypeDirTree
	case layout.ExtDirMeta:
		typ = checksum.TypeDirMeta
	case layout.ExtCommit:
		typ = checksum.TypeCommit
	default:
		return checksum.Zero, 0, false
	}
	return csum, typ, true
}

// writeAtomic writes data to path via a tmp-file-then-rename sequence
// so a reader never observes a partially written object (§7). On the
// real OS filesystem this defers to renameio, which additionally fsyncs
// the containing directory; on in-memory/test filesystems it falls back
// to a plain afero tmp+Rename, since renameio only operates on *os.File.
func (s *Store) writeAtomic(path string, data []byte, perm os.FileMode) error {
	if _, ok := s.fs.(*afero.OsFs); ok {
		return writeAtomicOS(path, data, perm)
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+strconv.Itoa(rand.Int())+filepath.Base(path))
	if err := afero.WriteFile(s.fs, tmp, data, perm); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path)
}

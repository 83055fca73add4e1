package object

import (
	"sort"
	"unicode/utf8"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/gvariant"
	"golang.org/x/xerrors"
)

// ErrInvalidFilename is returned when a dirtree entry name violates the
// §3 invariant (empty, contains '/' or NUL, is "." or "..", or is not
// valid UTF-8).
var ErrInvalidFilename = xerrors.New("object: invalid filename")

// ErrUnsorted is returned when a dirtree's file or subdir arrays are not
// in strictly ascending byte order by name (§6).
var ErrUnsorted = xerrors.New("object: dirtree entries not sorted")

// FileEntry is one (name, content checksum) pair inside a dirtree.
type FileEntry struct {
	Name     string
	Checksum checksum.Checksum
}

// DirEntry is one (name, subtree checksum, subtree metadata checksum)
// triple inside a dirtree.
type DirEntry struct {
	Name         string
	TreeChecksum checksum.Checksum
	MetaChecksum checksum.Checksum
}

// DirTree is the '(a(say), a(sayay))' record describing one directory's
// children (§3, §6).
type DirTree struct {
	Files []FileEntry
	Dirs  []DirEntry
}

// ValidFilename reports whether name satisfies the §3 invariant.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if !utf8.ValidString(name) {
		return false
	}
	for _, r := range name {
		if r == '/' || r == 0 {
			return false
		}
	}
	return true
}

// Sort orders Files and Dirs by ascending byte order of name, the
// canonical order required by §6.
func (t *DirTree) Sort() {
	sort.Slice(t.Files, func(i, j int) bool { return t.Files[i].Name < t.Files[j].Name })
	sort.Slice(t.Dirs, func(i, j int) bool { return t.Dirs[i].Name < t.Dirs[j].Name })
}

func (t DirTree) validate() error {
	for _, f := range t.Files {
		if !ValidFilename(f.Name) {
			return xerrors.Errorf("%q: %w", checksumSafe(f.Name), ErrInvalidFilename)
		}
	}
	for _, d := range t.Dirs {
		if !ValidFilename(d.Name) {
			return xerrors.Errorf("%q: %w", checksumSafe(d.Name), ErrInvalidFilename)
		}
	}
	for i := 1; i < len(t.Files); i++ {
		if t.Files[i-1].Name >= t.Files[i].Name {
			return ErrUnsorted
		}
	}
	for i := 1; i < len(t.Dirs); i++ {
		if t.Dirs[i-1].Name >= t.Dirs[i].Name {
			return ErrUnsorted
		}
	}
	return nil
}

func checksumSafe(s string) string {
	return checksum.Truncate(s, 64)
}

// Marshal returns the canonical dirtree record. The caller must have
// already sorted the entries (via Sort); Marshal validates but does not
// reorder, so that accidental unsorted input is caught rather than
// silently fixed.
func (t DirTree) Marshal() ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	fileElems := make([][]byte, len(t.Files))
	for i, f := range t.Files {
		w := gvariant.NewWriter()
		w.PutBytes([]byte(f.Name))
		w.PutRaw(f.Checksum.Bytes())
		fileElems[i] = w.Bytes()
	}
	dirElems := make([][]byte, len(t.Dirs))
	for i, d := range t.Dirs {
		w := gvariant.NewWriter()
		w.PutBytes([]byte(d.Name))
		w.PutRaw(d.TreeChecksum.Bytes())
		w.PutRaw(d.MetaChecksum.Bytes())
		dirElems[i] = w.Bytes()
	}

	w := gvariant.NewWriter()
	w.PutArray(fileElems)
	w.PutArray(dirElems)
	return w.Bytes(), nil
}

// Checksum returns SHA-256 of the canonical dirtree record.
func (t DirTree) Checksum() (checksum.Checksum, error) {
	data, err := t.Marshal()
	if err != nil {
		return checksum.Zero, err
	}
	return checksum.Sum(data), nil
}

// ParseDirTree parses a raw dirtree record produced by Marshal.
func ParseDirTree(data []byte) (DirTree, error) {
	r := gvariant.NewReader(data)

	nFiles, err := r.ArrayCount()
	if err != nil {
		return DirTree{}, xerrors.Errorf("files array: %w", err)
	}
	files := make([]FileEntry, 0, nFiles)
	for i := 0; i < nFiles; i++ {
		name, err := r.Bytes()
		if err != nil {
			return DirTree{}, xerrors.Errorf("file %d name: %w", i, err)
		}
		nameCopy := string(append([]byte(nil), name...))
		csumBytes, err := readFixed(r, checksum.Size)
		if err != nil {
			return DirTree{}, xerrors.Errorf("file %d checksum: %w", i, err)
		}
		csum, err := checksum.FromBytes(csumBytes)
		if err != nil {
			return DirTree{}, xerrors.Errorf("file %d: %w", i, ErrCorrupted)
		}
		files = append(files, FileEntry{Name: nameCopy, Checksum: csum})
	}

	nDirs, err := r.ArrayCount()
	if err != nil {
		return DirTree{}, xerrors.Errorf("dirs array: %w", err)
	}
	dirs := make([]DirEntry, 0, nDirs)
	for i := 0; i < nDirs; i++ {
		name, err := r.Bytes()
		if err != nil {
			return DirTree{}, xerrors.Errorf("dir %d name: %w", i, err)
		}
		nameCopy := string(append([]byte(nil), name...))
		treeBytes, err := readFixed(r, checksum.Size)
		if err != nil {
			return DirTree{}, xerrors.Errorf("dir %d tree checksum: %w", i, err)
		}
		treeCsum, err := checksum.FromBytes(treeBytes)
		if err != nil {
			return DirTree{}, xerrors.Errorf("dir %d: %w", i, ErrCorrupted)
		}
		metaBytes, err := readFixed(r, checksum.Size)
		if err != nil {
			return DirTree{}, xerrors.Errorf("dir %d meta checksum: %w", i, err)
		}
		metaCsum, err := checksum.FromBytes(metaBytes)
		if err != nil {
			return DirTree{}, xerrors.Errorf("dir %d: %w", i, ErrCorrupted)
		}
		dirs = append(dirs, DirEntry{Name: nameCopy, TreeChecksum: treeCsum, MetaChecksum: metaCsum})
	}

	if r.Remaining() != 0 {
		return DirTree{}, xerrors.Errorf("trailing bytes: %w", ErrCorrupted)
	}

	t := DirTree{Files: files, Dirs: dirs}
	if err := t.validate(); err != nil {
		return DirTree{}, err
	}
	return t, nil
}

// readFixed reads exactly n raw bytes (used for the fixed-size checksum
// fields embedded in dirtree/commit records, which are written via
// PutRaw and therefore carry no length prefix of their own).
func readFixed(r *gvariant.Reader, n int) ([]byte, error) {
	return r.ReadRaw(n)
}

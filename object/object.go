// Package object implements the canonical serialization, hashing and
// parsing of the four object kinds (§3, §4.2): file content objects,
// dirmeta, dirtree and commit. The per-kind Marshal/Parse split, and the
// "parsing fails with a typed, object-identifying error on corruption"
// policy, mirrors ginternals/object.Object.AsTree/AsCommit/AsTag in the
// teacher, generalized from git's 4 object kinds to ostree's 4.
package object

import (
	"sort"

	"github.com/ostreego/ostree/checksum"
	"golang.org/x/xerrors"
)

// Sentinel errors, one per object kind plus the shared corruption/size
// errors — mirrors ErrTreeInvalid/ErrCommitInvalid/ErrTagInvalid in the
// teacher's ginternals/object package.
var (
	// ErrCorrupted is returned when an object parses structurally but
	// violates an invariant from spec.md §3 (bad mode, non-zero rdev,
	// wrong child-checksum length, invalid filename, …).
	ErrCorrupted = xerrors.New("object: corrupted")
	// ErrUnknownType is returned for an object-type tag outside {1,2,3,4}.
	ErrUnknownType = xerrors.New("object: unknown type")
)

// Xattr is a single extended attribute.
type Xattr struct {
	Name  string
	Value []byte
}

// sortXattrs sorts xattrs by name for canonical serialization; mirrors
// the sort.Slice call in the ostree_checksum.go reference port.
func sortXattrs(xs []Xattr) []Xattr {
	out := make([]Xattr, len(xs))
	copy(out, xs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// validPermBits checks that a regular-file-or-symlink mode contains only the
// POSIX permission bits plus the sticky/setuid/setgid bits (§3 invariant).
func validPermBits(mode uint32) bool {
	const allowed = 0o7777 // rwxrwxrwx + suid/sgid/sticky
	return mode&^allowed == 0
}

// Kind re-exports checksum.Type for readability within this package.
type Kind = checksum.Type

const (
	KindFile    = checksum.TypeFile
	KindDirTree = checksum.TypeDirTree
	KindDirMeta = checksum.TypeDirMeta
	KindCommit  = checksum.TypeCommit
)

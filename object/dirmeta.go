package object

import (
	"syscall"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/gvariant"
	"golang.org/x/xerrors"
)

// ErrBadDirMode is returned when a dirmeta's mode does not have the
// directory bit set, or carries permission bits outside the allowed set
// (§3 invariant).
var ErrBadDirMode = xerrors.New("object: dirmeta mode must be a directory with valid perm bits")

// DirMeta holds a single directory's permission metadata (§3): the
// '(uuu a(ayay))' record.
type DirMeta struct {
	UID    uint32
	GID    uint32
	Mode   uint32
	Xattrs []Xattr
}

func (m DirMeta) validate() error {
	if m.Mode&syscall.S_IFMT != syscall.S_IFDIR {
		return ErrBadDirMode
	}
	const allowed = syscall.S_IFDIR | 0o7777
	if m.Mode&^uint32(allowed) != 0 {
		return ErrBadDirMode
	}
	return nil
}

// Marshal returns the canonical '(uuu a(ayay))' record. This is also the
// full on-disk encoding (§4.2: metadata objects carry no outer framing).
func (m DirMeta) Marshal() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	w := gvariant.NewWriter()
	w.PutU32(m.UID)
	w.PutU32(m.GID)
	w.PutU32(m.Mode)
	w.PutRaw(marshalXattrs(m.Xattrs))
	return w.Bytes(), nil
}

// Checksum returns SHA-256 of the canonical dirmeta record (§4.2: "the
// checksum of the file [for directories] is instead computed as SHA-256
// of the canonical dirmeta record alone").
func (m DirMeta) Checksum() (checksum.Checksum, error) {
	data, err := m.Marshal()
	if err != nil {
		return checksum.Zero, err
	}
	return checksum.Sum(data), nil
}

// ParseDirMeta parses a raw dirmeta record produced by Marshal.
func ParseDirMeta(data []byte) (DirMeta, error) {
	r := gvariant.NewReader(data)
	uid, err := r.U32()
	if err != nil {
		return DirMeta{}, xerrors.Errorf("uid: %w", err)
	}
	gid, err := r.U32()
	if err != nil {
		return DirMeta{}, xerrors.Errorf("gid: %w", err)
	}
	mode, err := r.U32()
	if err != nil {
		return DirMeta{}, xerrors.Errorf("mode: %w", err)
	}
	xattrs, err := unmarshalXattrs(r)
	if err != nil {
		return DirMeta{}, xerrors.Errorf("xattrs: %w", err)
	}
	if r.Remaining() != 0 {
		return DirMeta{}, xerrors.Errorf("trailing bytes: %w", ErrCorrupted)
	}
	m := DirMeta{UID: uid, GID: gid, Mode: mode, Xattrs: xattrs}
	if err := m.validate(); err != nil {
		return DirMeta{}, err
	}
	return m, nil
}

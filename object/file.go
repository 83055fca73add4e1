package object

import (
	"bytes"
	"encoding/binary"
	"io"
	"syscall"

	"github.com/klauspost/compress/zlib"
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/gvariant"
	"golang.org/x/xerrors"
)

// ErrBadRdev is returned when a parsed file header carries a non-zero
// rdev field — §4.2 requires rdev always be 0; a non-zero value on read
// means corruption (it implies the object once described a device node,
// which file content objects may never represent, §3).
var ErrBadRdev = xerrors.New("object: non-zero rdev")

// ErrBadFileMode is returned when a file header's mode is neither a
// regular file nor a symlink (§3 invariant).
var ErrBadFileMode = xerrors.New("object: file object mode must be regular or symlink")

// FileHeader is the metadata carried by a file content object (§3, §4.2).
type FileHeader struct {
	UID           uint32
	GID           uint32
	Mode          uint32
	SymlinkTarget string
	Xattrs        []Xattr
}

// IsSymlink reports whether the header describes a symlink.
func (h FileHeader) IsSymlink() bool {
	return h.Mode&syscall.S_IFMT == syscall.S_IFLNK
}

// IsRegular reports whether the header describes a regular file.
func (h FileHeader) IsRegular() bool {
	return h.Mode&syscall.S_IFMT == syscall.S_IFREG
}

// validate checks the §3 invariants shared by bare and archive headers.
func (h FileHeader) validate() error {
	if !h.IsRegular() && !h.IsSymlink() {
		return ErrBadFileMode
	}
	if h.IsSymlink() && h.SymlinkTarget == "" {
		return xerrors.Errorf("symlink with empty target: %w", ErrCorrupted)
	}
	if h.IsRegular() && h.SymlinkTarget != "" {
		return xerrors.Errorf("regular file with symlink target: %w", ErrCorrupted)
	}
	return nil
}

// canonicalRecord returns the mode-independent "(uuuu s a(ayay))" record
// used as the hashing input for every file object, regardless of whether
// it is stored bare or archive-compressed on disk (see DESIGN.md: object
// identity must not depend on storage mode, matching real ostree).
func (h FileHeader) canonicalRecord() []byte {
	w := gvariant.NewWriter()
	w.PutU32(h.UID)
	w.PutU32(h.GID)
	w.PutU32(h.Mode)
	w.PutU32(0) // rdev, always 0
	w.PutBytes([]byte(h.SymlinkTarget))
	w.PutRaw(marshalXattrs(h.Xattrs))
	return w.Bytes()
}

// archiveRecord returns the "(t uuuu s a(ayay))" record used on disk for
// archive-mode objects: the canonical record prefixed with the
// uncompressed payload size.
func (h FileHeader) archiveRecord(uncompressedSize uint64) []byte {
	w := gvariant.NewWriter()
	w.PutU64(uncompressedSize)
	w.PutRaw(h.canonicalRecord())
	return w.Bytes()
}

func parseFileHeader(r *gvariant.Reader) (FileHeader, error) {
	uid, err := r.U32()
	if err != nil {
		return FileHeader{}, xerrors.Errorf("uid: %w", err)
	}
	gid, err := r.U32()
	if err != nil {
		return FileHeader{}, xerrors.Errorf("gid: %w", err)
	}
	mode, err := r.U32()
	if err != nil {
		return FileHeader{}, xerrors.Errorf("mode: %w", err)
	}
	rdev, err := r.U32()
	if err != nil {
		return FileHeader{}, xerrors.Errorf("rdev: %w", err)
	}
	if rdev != 0 {
		return FileHeader{}, ErrBadRdev
	}
	target, err := r.Bytes()
	if err != nil {
		return FileHeader{}, xerrors.Errorf("symlink target: %w", err)
	}
	xattrs, err := unmarshalXattrs(r)
	if err != nil {
		return FileHeader{}, xerrors.Errorf("xattrs: %w", err)
	}
	h := FileHeader{UID: uid, GID: gid, Mode: mode, SymlinkTarget: string(target), Xattrs: xattrs}
	if err := h.validate(); err != nil {
		return FileHeader{}, err
	}
	return h, nil
}

// FileObject is a fully materialized file content object: its header
// plus the raw (uncompressed) payload bytes.
type FileObject struct {
	Header  FileHeader
	Content []byte
}

// Checksum returns the content address of the object: SHA-256 of the
// mode-independent header record concatenated with the raw bytes (§4.2).
func (f FileObject) Checksum() checksum.Checksum {
	buf := make([]byte, 0, len(f.Header.canonicalRecord())+len(f.Content))
	buf = append(buf, f.Header.canonicalRecord()...)
	buf = append(buf, f.Content...)
	return checksum.Sum(buf)
}

// Archive controls which on-disk encoding EncodeFileObject produces.
type Archive bool

// The two file-object wire encodings (§4.2, §4.3 objects/ "file" vs
// "filez" extensions).
const (
	Bare    Archive = false
	Archived Archive = true
)

// EncodeFileObject transmits f using the framing from §4.2/§6: a 4-byte
// big-endian header length, 4 zero padding bytes, the header record,
// then the payload (raw for bare, zlib-raw-compressed for archive).
func EncodeFileObject(f FileObject, mode Archive) ([]byte, error) {
	if err := f.Header.validate(); err != nil {
		return nil, err
	}

	var headerRecord []byte
	var payload []byte
	if mode == Archived {
		headerRecord = f.Header.archiveRecord(uint64(len(f.Content)))
		compressed, err := compressZlib(f.Content)
		if err != nil {
			return nil, xerrors.Errorf("compressing payload: %w", err)
		}
		payload = compressed
	} else {
		headerRecord = f.Header.canonicalRecord()
		payload = f.Content
	}

	out := make([]byte, 0, 8+len(headerRecord)+len(payload))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerRecord)))
	out = append(out, lenBuf[:]...)
	out = append(out, 0, 0, 0, 0)
	out = append(out, headerRecord...)
	out = append(out, payload...)
	return out, nil
}

// DecodeFileObject parses the wire encoding produced by EncodeFileObject.
// mode tells whether the payload is stored zlib-compressed (archive) or
// raw.
func DecodeFileObject(data []byte, mode Archive) (FileObject, error) {
	if len(data) < 8 {
		return FileObject{}, xerrors.Errorf("truncated file object header: %w", ErrCorrupted)
	}
	headerLen := binary.BigEndian.Uint32(data[0:4])
	if data[4] != 0 || data[5] != 0 || data[6] != 0 || data[7] != 0 {
		return FileObject{}, xerrors.Errorf("non-zero header padding: %w", ErrCorrupted)
	}
	rest := data[8:]
	if uint64(len(rest)) < uint64(headerLen) {
		return FileObject{}, xerrors.Errorf("header length %d exceeds object size: %w", headerLen, ErrCorrupted)
	}
	headerRecord := rest[:headerLen]
	payload := rest[headerLen:]

	r := gvariant.NewReader(headerRecord)
	var header FileHeader
	var uncompressedSize uint64
	if mode == Archived {
		size, err := r.U64()
		if err != nil {
			return FileObject{}, xerrors.Errorf("archive size: %w", err)
		}
		uncompressedSize = size
		header, err = parseFileHeader(r)
		if err != nil {
			return FileObject{}, err
		}
	} else {
		var err error
		header, err = parseFileHeader(r)
		if err != nil {
			return FileObject{}, err
		}
	}

	var content []byte
	if mode == Archived {
		decompressed, err := decompressZlib(payload)
		if err != nil {
			return FileObject{}, xerrors.Errorf("decompressing payload: %w", err)
		}
		if uint64(len(decompressed)) != uncompressedSize {
			return FileObject{}, xerrors.Errorf("declared size %d, got %d: %w", uncompressedSize, len(decompressed), ErrCorrupted)
		}
		content = decompressed
	} else {
		content = payload
	}

	return FileObject{Header: header, Content: content}, nil
}

// compressZlib produces a zlib-raw stream the way the archive-mode
// payload codec requires. klauspost/compress's zlib writer is used for
// the same reason distri reaches for klauspost/compress in its build
// pipeline: faster than stdlib on the payload sizes a tree store moves.
func compressZlib(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close() //nolint:errcheck // already failed
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZlib(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close() //nolint:errcheck // read-only decode
	return io.ReadAll(zr)
}

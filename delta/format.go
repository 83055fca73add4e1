// Package delta implements the binary static-delta transport format
// (§4.6), its executor (§4.7), and its generator (§4.8): an efficient
// way to ship the object difference between two commits as a superblock
// plus a stream of parts, each built from interned mode/xattr tables, a
// payload blob, and an opcode stream interpreted by a small state
// machine — the same shape as the OFS/REF delta base-and-copy/insert
// interpreter in ginternals/packfile/packfile.go, generalized from
// git's single-base delta to ostree's richer SET_READ_SOURCE/BSPATCH
// opcode set.
package delta

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/gvariant"
	"golang.org/x/xerrors"
)

// Opcode identifies one static-delta part instruction (§4.6). Values
// are fixed for wire compatibility.
type Opcode byte

const (
	OpOpenSpliceAndClose Opcode = 1
	OpOpen               Opcode = 2
	OpWrite              Opcode = 3
	OpSetReadSource       Opcode = 4
	OpUnsetReadSource     Opcode = 5
	OpClose               Opcode = 6
	OpBspatch             Opcode = 7
)

// String names an opcode for error messages and verbose reporting.
func (o Opcode) String() string {
	switch o {
	case OpOpenSpliceAndClose:
		return "OPEN_SPLICE_AND_CLOSE"
	case OpOpen:
		return "OPEN"
	case OpWrite:
		return "WRITE"
	case OpSetReadSource:
		return "SET_READ_SOURCE"
	case OpUnsetReadSource:
		return "UNSET_READ_SOURCE"
	case OpClose:
		return "CLOSE"
	case OpBspatch:
		return "BSPATCH"
	default:
		return "UNKNOWN"
	}
}

// CompressionTag is the single byte prefixing a part body (§4.6).
type CompressionTag byte

const (
	CompressionXz    CompressionTag = 'x'
	CompressionGzip  CompressionTag = 'g'
	CompressionNone  CompressionTag = '0'
)

// ModeEntry is one interned (uid, gid, mode) tuple, plus the symlink
// target when Mode is a symlink — a regular file's content travels
// through the payload/opcode stream, but a symlink has no content, so
// its target is carried here instead (§4.2, §4.6).
type ModeEntry struct {
	UID           uint32
	GID           uint32
	Mode          uint32
	SymlinkTarget string
}

// PartHeader describes one part file (§4.6).
type PartHeader struct {
	Version          uint32
	Checksum         checksum.Checksum
	CompressedSize   uint64
	UncompressedSize uint64
	// Objects lists, in emission order, the (type, checksum) of every
	// object this part produces; the executor consumes it as a cursor
	// advanced once per opcode sequence.
	Objects []checksum.ObjectName
}

// FallbackEntry names an object the delta cannot express compactly
// (§4.6): it must be fetched by other means.
type FallbackEntry struct {
	Type             checksum.Type
	Checksum         checksum.Checksum
	CompressedSize   uint64
	UncompressedSize uint64
}

// Superblock is the delta's single top-level record (§4.6).
type Superblock struct {
	Timestamp      uint64
	HasFrom        bool
	From           checksum.Checksum
	To             checksum.Checksum
	ToCommit       []byte // the full serialized T commit object
	DetachedMeta   []byte
	Parts          []PartHeader
	Fallbacks      []FallbackEntry
}

// marshalPartHeader / parsePartHeader use gvariant framing consistent
// with every other record in this module, rather than the raw C struct
// packing real ostree uses — §9 asks for a single hand-written codec
// throughout, and the static-delta wire format is explicitly in scope
// for that replacement alongside the object records.

func marshalPartHeader(h PartHeader) []byte {
	w := gvariant.NewWriter()
	w.PutU32(h.Version)
	w.PutRaw(h.Checksum.Bytes())
	w.PutU64(h.CompressedSize)
	w.PutU64(h.UncompressedSize)
	objs := make([][]byte, len(h.Objects))
	for i, o := range h.Objects {
		ow := gvariant.NewWriter()
		ow.PutRaw([]byte{byte(o.Type)})
		ow.PutRaw(o.Checksum.Bytes())
		objs[i] = ow.Bytes()
	}
	w.PutArray(objs)
	return w.Bytes()
}

func parsePartHeader(r *gvariant.Reader) (PartHeader, error) {
	version, err := r.U32()
	if err != nil {
		return PartHeader{}, xerrors.Errorf("version: %w", err)
	}
	csumBytes, err := r.ReadRaw(checksum.Size)
	if err != nil {
		return PartHeader{}, xerrors.Errorf("checksum: %w", err)
	}
	csum, err := checksum.FromBytes(csumBytes)
	if err != nil {
		return PartHeader{}, err
	}
	compSize, err := r.U64()
	if err != nil {
		return PartHeader{}, xerrors.Errorf("compressed size: %w", err)
	}
	uncompSize, err := r.U64()
	if err != nil {
		return PartHeader{}, xerrors.Errorf("uncompressed size: %w", err)
	}
	n, err := r.ArrayCount()
	if err != nil {
		return PartHeader{}, xerrors.Errorf("objects array: %w", err)
	}
	objs := make([]checksum.ObjectName, 0, n)
	for i := 0; i < n; i++ {
		typByte, err := r.ReadRaw(1)
		if err != nil {
			return PartHeader{}, xerrors.Errorf("object %d type: %w", i, err)
		}
		objCsumBytes, err := r.ReadRaw(checksum.Size)
		if err != nil {
			return PartHeader{}, xerrors.Errorf("object %d checksum: %w", i, err)
		}
		objCsum, err := checksum.FromBytes(objCsumBytes)
		if err != nil {
			return PartHeader{}, err
		}
		objs = append(objs, checksum.ObjectName{Checksum: objCsum, Type: checksum.Type(typByte[0])})
	}
	return PartHeader{Version: version, Checksum: csum, CompressedSize: compSize, UncompressedSize: uncompSize, Objects: objs}, nil
}

func marshalFallback(f FallbackEntry) []byte {
	w := gvariant.NewWriter()
	w.PutRaw([]byte{byte(f.Type)})
	w.PutRaw(f.Checksum.Bytes())
	w.PutU64(f.CompressedSize)
	w.PutU64(f.UncompressedSize)
	return w.Bytes()
}

func parseFallback(r *gvariant.Reader) (FallbackEntry, error) {
	typByte, err := r.ReadRaw(1)
	if err != nil {
		return FallbackEntry{}, xerrors.Errorf("type: %w", err)
	}
	csumBytes, err := r.ReadRaw(checksum.Size)
	if err != nil {
		return FallbackEntry{}, xerrors.Errorf("checksum: %w", err)
	}
	csum, err := checksum.FromBytes(csumBytes)
	if err != nil {
		return FallbackEntry{}, err
	}
	compSize, err := r.U64()
	if err != nil {
		return FallbackEntry{}, xerrors.Errorf("compressed size: %w", err)
	}
	uncompSize, err := r.U64()
	if err != nil {
		return FallbackEntry{}, xerrors.Errorf("uncompressed size: %w", err)
	}
	return FallbackEntry{Type: checksum.Type(typByte[0]), Checksum: csum, CompressedSize: compSize, UncompressedSize: uncompSize}, nil
}

// Marshal returns the canonical superblock record.
func (sb Superblock) Marshal() ([]byte, error) {
	w := gvariant.NewWriter()
	w.PutU64(sb.Timestamp)
	if sb.HasFrom {
		w.PutBytes(sb.From.Bytes())
	} else {
		w.PutBytes(nil)
	}
	w.PutBytes(sb.To.Bytes())
	w.PutBytes(sb.ToCommit)
	w.PutBytes(sb.DetachedMeta)

	parts := make([][]byte, len(sb.Parts))
	for i, p := range sb.Parts {
		parts[i] = marshalPartHeader(p)
	}
	w.PutArray(parts)

	fallbacks := make([][]byte, len(sb.Fallbacks))
	for i, f := range sb.Fallbacks {
		fallbacks[i] = marshalFallback(f)
	}
	w.PutArray(fallbacks)

	return w.Bytes(), nil
}

// ParseSuperblock parses a raw superblock record produced by Marshal.
func ParseSuperblock(data []byte) (Superblock, error) {
	r := gvariant.NewReader(data)
	ts, err := r.U64()
	if err != nil {
		return Superblock{}, xerrors.Errorf("timestamp: %w", err)
	}
	fromBytes, err := r.Bytes()
	if err != nil {
		return Superblock{}, xerrors.Errorf("from: %w", err)
	}
	var from checksum.Checksum
	hasFrom := len(fromBytes) > 0
	if hasFrom {
		from, err = checksum.FromBytes(fromBytes)
		if err != nil {
			return Superblock{}, xerrors.Errorf("from: %w", err)
		}
	}
	toBytes, err := r.Bytes()
	if err != nil {
		return Superblock{}, xerrors.Errorf("to: %w", err)
	}
	to, err := checksum.FromBytes(toBytes)
	if err != nil {
		return Superblock{}, xerrors.Errorf("to: %w", err)
	}
	toCommit, err := r.Bytes()
	if err != nil {
		return Superblock{}, xerrors.Errorf("to commit: %w", err)
	}
	detached, err := r.Bytes()
	if err != nil {
		return Superblock{}, xerrors.Errorf("detached metadata: %w", err)
	}

	nParts, err := r.ArrayCount()
	if err != nil {
		return Superblock{}, xerrors.Errorf("parts array: %w", err)
	}
	parts := make([]PartHeader, 0, nParts)
	for i := 0; i < nParts; i++ {
		p, err := parsePartHeader(r)
		if err != nil {
			return Superblock{}, xerrors.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, p)
	}

	nFallbacks, err := r.ArrayCount()
	if err != nil {
		return Superblock{}, xerrors.Errorf("fallbacks array: %w", err)
	}
	fallbacks := make([]FallbackEntry, 0, nFallbacks)
	for i := 0; i < nFallbacks; i++ {
		f, err := parseFallback(r)
		if err != nil {
			return Superblock{}, xerrors.Errorf("fallback %d: %w", i, err)
		}
		fallbacks = append(fallbacks, f)
	}

	return Superblock{
		Timestamp:    ts,
		HasFrom:      hasFrom,
		From:         from,
		To:           to,
		ToCommit:     append([]byte(nil), toCommit...),
		DetachedMeta: append([]byte(nil), detached...),
		Parts:        parts,
		Fallbacks:    fallbacks,
	}, nil
}

package delta

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/internal/varint"
	"github.com/ostreego/ostree/object"
	"golang.org/x/xerrors"
)

// ErrInvalidDelta is returned for any malformed opcode stream: an
// opcode out of range, an argument reading past the payload, or a part
// whose cursor runs past its objtype_csum_array (§4.7). A reconstructed
// object whose checksum does not match what the part header declared is
// reported as ErrChecksumMismatch instead.
var ErrInvalidDelta = xerrors.New("delta: invalid delta")

// Sink is where reconstructed objects are written. store.Store
// satisfies it.
//
//go:generate mockgen -package mocksink -destination ../internal/mocks/mocksink/sink.go github.com/ostreego/ostree/delta Sink
type Sink interface {
	WriteRaw(csum checksum.Checksum, typ checksum.Type, data []byte) error
	WriteFileObject(f object.FileObject) (checksum.Checksum, error)
	ReadFileObject(csum checksum.Checksum) (object.FileObject, error)
}

// ExecOptions controls one part application.
type ExecOptions struct {
	// StatsOnly interprets the opcode stream to completion, validating
	// bounds and checksums, without writing anything to sink (§4.7:
	// "a stats-only mode that validates without committing").
	StatsOnly bool
}

// applyState is the per-part state machine (§4.7): a cursor over the
// part header's objtype_csum_array, an optional currently-open object
// under construction, and an optional read source for SET_READ_SOURCE/
// BSPATCH.
type applyState struct {
	header  PartHeader
	cursor  int
	modes   []ModeEntry
	xattrs  [][]object.Xattr
	payload []byte

	openMode   int
	openXattr  int
	openBuf    []byte
	open       bool
	readSource []byte
	haveSource bool
}

// ApplyPart interprets one part's opcode stream against sink, advancing
// the cursor once per object produced and verifying each object's
// checksum against the part header's objtype_csum_array entry before
// it is considered complete. A failure part-way through leaves sink
// untouched for any object not yet closed, but objects already closed
// earlier in the same part remain written — matching §4.7's "failure
// isolation is per-part, not per-opcode" rule.
func ApplyPart(sink Sink, header PartHeader, rawBody []byte, opts ExecOptions) error {
	body, err := decodePart(rawBody)
	if err != nil {
		return xerrors.Errorf("decoding part body: %w", err)
	}

	st := &applyState{
		header:  header,
		modes:   body.Modes,
		xattrs:  body.Xattrs,
		payload: body.Payload,
	}

	off := 0
	for off < len(body.Opcodes) {
		if off >= len(body.Opcodes) {
			break
		}
		op := Opcode(body.Opcodes[off])
		off++
		var err error
		off, err = st.step(sink, op, body.Opcodes, off, opts)
		if err != nil {
			return xerrors.Errorf("opcode %s at offset %d: %w", op, off, err)
		}
	}

	if st.open {
		return xerrors.Errorf("part ended with an object still open: %w", ErrInvalidDelta)
	}
	if st.cursor != len(header.Objects) {
		return xerrors.Errorf("part produced %d objects, header declared %d: %w", st.cursor, len(header.Objects), ErrInvalidDelta)
	}
	return nil
}

func (st *applyState) step(sink Sink, op Opcode, stream []byte, off int, opts ExecOptions) (int, error) {
	switch op {
	case OpOpen:
		modeIdx, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		xattrIdx, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		if int(modeIdx) >= len(st.modes) || int(xattrIdx) >= len(st.xattrs) {
			return off, xerrors.Errorf("mode/xattr index out of range: %w", ErrInvalidDelta)
		}
		st.openMode = int(modeIdx)
		st.openXattr = int(xattrIdx)
		st.openBuf = st.openBuf[:0]
		st.open = true
		return off, nil

	case OpWrite:
		srcOff, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		length, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		if !st.open {
			return off, xerrors.Errorf("WRITE with no object open: %w", ErrInvalidDelta)
		}
		var chunk []byte
		if st.haveSource {
			chunk, err = readSpan(st.readSource, srcOff, length)
		} else {
			chunk, err = st.readPayload(srcOff, length)
		}
		if err != nil {
			return off, err
		}
		st.openBuf = append(st.openBuf, chunk...)
		return off, nil

	case OpSetReadSource:
		idx, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		if int(idx) >= len(st.header.Objects) {
			return off, xerrors.Errorf("read-source object index out of range: %w", ErrInvalidDelta)
		}
		name := st.header.Objects[idx]
		f, err := sink.ReadFileObject(name.Checksum)
		if err != nil {
			return off, xerrors.Errorf("loading read source %s: %w", name.Checksum, err)
		}
		st.readSource = f.Content
		st.haveSource = true
		return off, nil

	case OpUnsetReadSource:
		st.readSource = nil
		st.haveSource = false
		return off, nil

	case OpBspatch:
		srcOff, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		length, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		if !st.open {
			return off, xerrors.Errorf("BSPATCH with no object open: %w", ErrInvalidDelta)
		}
		if !st.haveSource {
			return off, xerrors.Errorf("BSPATCH with no read source set: %w", ErrInvalidDelta)
		}
		patch, err := st.readPayload(srcOff, length)
		if err != nil {
			return off, err
		}
		out, err := bspatch(st.readSource, patch)
		if err != nil {
			return off, xerrors.Errorf("applying patch: %w", err)
		}
		st.openBuf = append(st.openBuf, out...)
		return off, nil

	case OpClose:
		if !st.open {
			return off, xerrors.Errorf("CLOSE with no object open: %w", ErrInvalidDelta)
		}
		if err := st.finishObject(sink, opts); err != nil {
			return off, err
		}
		return off, nil

	case OpOpenSpliceAndClose:
		modeIdx, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		xattrIdx, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		srcOff, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		length, n, err := readArg(stream, off)
		if err != nil {
			return off, err
		}
		off = n
		if int(modeIdx) >= len(st.modes) || int(xattrIdx) >= len(st.xattrs) {
			return off, xerrors.Errorf("mode/xattr index out of range: %w", ErrInvalidDelta)
		}
		content, err := st.readPayload(srcOff, length)
		if err != nil {
			return off, err
		}
		st.openMode = int(modeIdx)
		st.openXattr = int(xattrIdx)
		st.openBuf = append([]byte(nil), content...)
		st.open = true
		if err := st.finishObject(sink, opts); err != nil {
			return off, err
		}
		return off, nil

	default:
		return off, xerrors.Errorf("opcode %d: %w", byte(op), ErrInvalidDelta)
	}
}

func (st *applyState) readPayload(offset, length uint64) ([]byte, error) {
	return readSpan(st.payload, offset, length)
}

// readSpan slices buf[offset:offset+length], used for both the payload
// blob (WRITE with no read source) and the active read source (WRITE
// while SET_READ_SOURCE is in effect).
func readSpan(buf []byte, offset, length uint64) ([]byte, error) {
	end := offset + length
	if end > uint64(len(buf)) || end < offset {
		return nil, xerrors.Errorf("span [%d,%d) out of range: %w", offset, end, ErrInvalidDelta)
	}
	return buf[offset:end], nil
}

func (st *applyState) finishObject(sink Sink, opts ExecOptions) error {
	if st.cursor >= len(st.header.Objects) {
		return xerrors.Errorf("more objects closed than the part declared: %w", ErrInvalidDelta)
	}
	name := st.header.Objects[st.cursor]

	mode := st.modes[st.openMode]
	xattrs := st.xattrs[st.openXattr]
	content := append([]byte(nil), st.openBuf...)

	var got checksum.Checksum
	if name.Type == checksum.TypeFile {
		header := object.FileHeader{UID: mode.UID, GID: mode.GID, Mode: mode.Mode, SymlinkTarget: mode.SymlinkTarget, Xattrs: xattrs}
		f := object.FileObject{Header: header, Content: content}
		got = f.Checksum()
		if got != name.Checksum {
			return xerrors.Errorf("object %d: computed %s, header declared %s: %w", st.cursor, got, name.Checksum, ErrChecksumMismatch)
		}
		if !opts.StatsOnly {
			if _, err := sink.WriteFileObject(f); err != nil {
				return err
			}
		}
	} else {
		got = checksum.Sum(content)
		if got != name.Checksum {
			return xerrors.Errorf("object %d: computed %s, header declared %s: %w", st.cursor, got, name.Checksum, ErrChecksumMismatch)
		}
		if !opts.StatsOnly {
			if err := sink.WriteRaw(name.Checksum, name.Type, content); err != nil {
				return err
			}
		}
	}

	st.cursor++
	st.open = false
	st.openBuf = nil
	return nil
}

func readArg(stream []byte, off int) (uint64, int, error) {
	v, next, err := varint.ReadUvarint(stream, off)
	if err != nil {
		return 0, off, xerrors.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	return v, next, nil
}

// ErrChecksumMismatch mirrors store.ErrChecksumMismatch for delta object
// verification, kept local so this package does not need to depend on
// store for a single sentinel.
var ErrChecksumMismatch = xerrors.New("delta: reconstructed object checksum mismatch")

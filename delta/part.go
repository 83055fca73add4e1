package delta

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/ostreego/ostree/gvariant"
	"github.com/ostreego/ostree/object"
	"golang.org/x/xerrors"
)

// ErrBadCompressionTag is returned when a part body's leading byte is
// not one of the three recognized compression tags.
var ErrBadCompressionTag = xerrors.New("delta: unrecognized compression tag")

// partBody is the decoded contents of one part file: the interned
// mode/xattr tables, the raw payload blob opcodes read spans out of,
// and the opcode stream itself (§4.6).
type partBody struct {
	Modes   []ModeEntry
	Xattrs  [][]object.Xattr
	Payload []byte
	Opcodes []byte
}

func marshalModeEntry(m ModeEntry) []byte {
	w := gvariant.NewWriter()
	w.PutU32(m.UID)
	w.PutU32(m.GID)
	w.PutU32(m.Mode)
	w.PutBytes([]byte(m.SymlinkTarget))
	return w.Bytes()
}

func parseModeEntry(r *gvariant.Reader) (ModeEntry, error) {
	uid, err := r.U32()
	if err != nil {
		return ModeEntry{}, err
	}
	gid, err := r.U32()
	if err != nil {
		return ModeEntry{}, err
	}
	mode, err := r.U32()
	if err != nil {
		return ModeEntry{}, err
	}
	target, err := r.Bytes()
	if err != nil {
		return ModeEntry{}, err
	}
	return ModeEntry{UID: uid, GID: gid, Mode: mode, SymlinkTarget: string(target)}, nil
}

func marshalXattrSet(xs []object.Xattr) []byte {
	w := gvariant.NewWriter()
	elems := make([][]byte, len(xs))
	for i, x := range xs {
		xw := gvariant.NewWriter()
		xw.PutBytes([]byte(x.Name))
		xw.PutBytes(x.Value)
		elems[i] = xw.Bytes()
	}
	w.PutArray(elems)
	return w.Bytes()
}

func parseXattrSet(r *gvariant.Reader) ([]object.Xattr, error) {
	n, err := r.ArrayCount()
	if err != nil {
		return nil, err
	}
	out := make([]object.Xattr, 0, n)
	for i := 0; i < n; i++ {
		name, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		val, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		out = append(out, object.Xattr{Name: string(name), Value: append([]byte(nil), val...)})
	}
	return out, nil
}

// marshal returns the uncompressed part body record.
func (b partBody) marshal() []byte {
	w := gvariant.NewWriter()
	modeElems := make([][]byte, len(b.Modes))
	for i, m := range b.Modes {
		modeElems[i] = marshalModeEntry(m)
	}
	w.PutArray(modeElems)

	xattrElems := make([][]byte, len(b.Xattrs))
	for i, x := range b.Xattrs {
		xattrElems[i] = marshalXattrSet(x)
	}
	w.PutArray(xattrElems)

	w.PutBytes(b.Payload)
	w.PutBytes(b.Opcodes)
	return w.Bytes()
}

func parsePartBody(data []byte) (partBody, error) {
	r := gvariant.NewReader(data)
	nModes, err := r.ArrayCount()
	if err != nil {
		return partBody{}, xerrors.Errorf("mode table: %w", err)
	}
	modes := make([]ModeEntry, 0, nModes)
	for i := 0; i < nModes; i++ {
		m, err := parseModeEntry(r)
		if err != nil {
			return partBody{}, xerrors.Errorf("mode entry %d: %w", i, err)
		}
		modes = append(modes, m)
	}

	nXattrs, err := r.ArrayCount()
	if err != nil {
		return partBody{}, xerrors.Errorf("xattr table: %w", err)
	}
	xattrs := make([][]object.Xattr, 0, nXattrs)
	for i := 0; i < nXattrs; i++ {
		xs, err := parseXattrSet(r)
		if err != nil {
			return partBody{}, xerrors.Errorf("xattr set %d: %w", i, err)
		}
		xattrs = append(xattrs, xs)
	}

	payload, err := r.Bytes()
	if err != nil {
		return partBody{}, xerrors.Errorf("payload: %w", err)
	}
	opcodes, err := r.Bytes()
	if err != nil {
		return partBody{}, xerrors.Errorf("opcodes: %w", err)
	}
	return partBody{
		Modes:   modes,
		Xattrs:  xattrs,
		Payload: append([]byte(nil), payload...),
		Opcodes: append([]byte(nil), opcodes...),
	}, nil
}

// encodePart compresses body per tag and prefixes the compression byte,
// producing the on-disk part file contents (§4.6).
func encodePart(body partBody, tag CompressionTag) ([]byte, error) {
	raw := body.marshal()
	var compressed []byte
	switch tag {
	case CompressionNone:
		compressed = raw
	case CompressionGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		compressed = buf.Bytes()
	case CompressionXz:
		// No xz/lzma library exists anywhere in the retrieved corpus;
		// zlib is substituted for the 'x' tag rather than hand-rolling
		// an LZMA encoder (see DESIGN.md).
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		compressed = buf.Bytes()
	default:
		return nil, ErrBadCompressionTag
	}
	out := make([]byte, 0, len(compressed)+1)
	out = append(out, byte(tag))
	out = append(out, compressed...)
	return out, nil
}

// decodePart reverses encodePart.
func decodePart(data []byte) (partBody, error) {
	if len(data) == 0 {
		return partBody{}, xerrors.Errorf("empty part: %w", ErrBadCompressionTag)
	}
	tag := CompressionTag(data[0])
	body := data[1:]
	var raw []byte
	switch tag {
	case CompressionNone:
		raw = body
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return partBody{}, err
		}
		defer gr.Close() //nolint:errcheck // read-only decode
		raw, err = io.ReadAll(gr)
		if err != nil {
			return partBody{}, err
		}
	case CompressionXz:
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return partBody{}, err
		}
		defer zr.Close() //nolint:errcheck // read-only decode
		raw, err = io.ReadAll(zr)
		if err != nil {
			return partBody{}, err
		}
	default:
		return partBody{}, ErrBadCompressionTag
	}
	return parsePartBody(raw)
}

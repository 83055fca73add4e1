// Package gvariant implements the canonical, self-describing typed-record
// encoding used for every serialized object (§3, §6). Real GVariant (the
// library the teacher's upstream, ostree-core.c, leans on) resolves
// variable-length container offsets by scanning backwards from the end of
// a buffer; spec.md §9 explicitly flags that as a pattern needing
// re-architecture ("a generated or hand-written codec with a tagged sum
// type per object kind, and a streaming parser that validates invariants
// as it decodes"). This package is that replacement: fixed big-endian
// integers for scalar fields, and explicit varint-length framing for
// variable-size fields/arrays, rather than GVariant's trailing offset
// table. It stays GVariant-*equivalent* (same type grammar, same
// information content, same determinism guarantees) without depending on
// glib's dynamic container format, which §6 only requires at the single
// wire boundary (the file-object header's 4-byte length + 4-byte padding
// prefix) — everything inside a record is free to use this package's
// framing.
package gvariant

import (
	"encoding/binary"

	"github.com/ostreego/ostree/internal/varint"
	"golang.org/x/xerrors"
)

// ErrTruncated is returned when a buffer ends before a field can be read.
var ErrTruncated = xerrors.New("gvariant: truncated record")

// Writer accumulates a canonical record.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated record.
func (w *Writer) Bytes() []byte { return w.buf }

// PutU32 appends a big-endian uint32 (the 'u' GVariant type).
func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutU64 appends a big-endian uint64 (the 't' GVariant type).
func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutBytes appends a varint-length-prefixed byte string (the 'ay' / 's'
// GVariant types, framed explicitly instead of via trailing offsets).
func (w *Writer) PutBytes(b []byte) {
	w.buf = varint.AppendUvarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// PutRaw appends pre-serialized bytes (e.g. a nested record or array)
// verbatim with no additional framing; the caller is responsible for the
// child being self-delimiting (arrays are, via PutArray).
func (w *Writer) PutRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutArray writes a varint element count followed by each element's
// pre-serialized bytes concatenated (the 'a*' GVariant types). Each
// element must already be self-delimiting or of fixed known size, which
// every element type used in this module is.
func (w *Writer) PutArray(elems [][]byte) {
	w.buf = varint.AppendUvarint(w.buf, uint64(len(elems)))
	for _, e := range elems {
		w.buf = append(w.buf, e...)
	}
}

// Reader walks a canonical record produced by Writer.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader over buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Offset returns the current read offset.
func (r *Reader) Offset() int {
	return r.off
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Bytes reads a varint-length-prefixed byte string.
func (r *Reader) Bytes() ([]byte, error) {
	n, next, err := varint.ReadUvarint(r.buf, r.off)
	if err != nil {
		return nil, xerrors.Errorf("reading length: %w", err)
	}
	if uint64(len(r.buf)-next) < n {
		return nil, ErrTruncated
	}
	b := r.buf[next : next+int(n)]
	r.off = next + int(n)
	return b, nil
}

// ReadRaw reads exactly n unframed bytes, for fields written via PutRaw
// whose length is known from context (e.g. a fixed-size checksum).
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ArrayCount reads the element count prefix of an array and advances
// past it; the caller then reads exactly that many elements itself.
func (r *Reader) ArrayCount() (int, error) {
	n, next, err := varint.ReadUvarint(r.buf, r.off)
	if err != nil {
		return 0, xerrors.Errorf("reading array count: %w", err)
	}
	r.off = next
	return int(n), nil
}

package delta

import (
	"github.com/ostreego/ostree/internal/varint"
	"golang.org/x/xerrors"
)

// bspatch/bsdiff here is a hand-written copy/insert patch format, not
// the bsdiff suffix-sort algorithm real ostree links against — no
// bsdiff/xdelta/xz library exists anywhere in the retrieved corpus (see
// DESIGN.md). It plays the same role the COPY/INSERT instruction pair
// plays in ginternals/packfile/packfile.go's delta-object interpreter,
// generalized from git's bit-packed offset/length encoding to this
// module's LEB128 varint framing.

const (
	patchOpCopy   byte = 0
	patchOpInsert byte = 1
)

func appendPatchCopy(buf []byte, offset, length uint64) []byte {
	buf = append(buf, patchOpCopy)
	buf = varint.AppendUvarint(buf, offset)
	buf = varint.AppendUvarint(buf, length)
	return buf
}

func appendPatchInsert(buf []byte, data []byte) []byte {
	buf = append(buf, patchOpInsert)
	buf = varint.AppendUvarint(buf, uint64(len(data)))
	buf = append(buf, data...)
	return buf
}

// bspatch applies a copy/insert patch program against source, producing
// the reconstructed target bytes.
func bspatch(source, patch []byte) ([]byte, error) {
	var out []byte
	off := 0
	for off < len(patch) {
		op := patch[off]
		off++
		switch op {
		case patchOpCopy:
			srcOff, n, err := varint.ReadUvarint(patch, off)
			if err != nil {
				return nil, xerrors.Errorf("copy offset: %w", err)
			}
			off = n
			length, n, err := varint.ReadUvarint(patch, off)
			if err != nil {
				return nil, xerrors.Errorf("copy length: %w", err)
			}
			off = n
			end := srcOff + length
			if end > uint64(len(source)) || end < srcOff {
				return nil, xerrors.Errorf("copy span [%d,%d) exceeds source of length %d: %w", srcOff, end, len(source), ErrInvalidDelta)
			}
			out = append(out, source[srcOff:end]...)
		case patchOpInsert:
			length, n, err := varint.ReadUvarint(patch, off)
			if err != nil {
				return nil, xerrors.Errorf("insert length: %w", err)
			}
			off = n
			end := off + int(length)
			if end > len(patch) || end < off {
				return nil, xerrors.Errorf("insert span exceeds patch length: %w", ErrInvalidDelta)
			}
			out = append(out, patch[off:end]...)
			off = end
		default:
			return nil, xerrors.Errorf("patch opcode %d: %w", op, ErrInvalidDelta)
		}
	}
	return out, nil
}

// bsdiff produces a copy/insert patch transforming source into target.
// It uses a rolling-checksum chunk index over source (rollsum.go) to
// find matching runs rather than a full suffix-sort, trading some
// compactness for a simple, auditable implementation — matching the
// corpus's general preference (see packfile.go's own delta interpreter)
// for a direct, hand-rolled algorithm over vendoring a heavyweight diff
// library that isn't present anywhere in the retrieved examples.
func bsdiff(source, target []byte) []byte {
	const window = 64
	index := buildRollsumIndex(source, window)

	var patch []byte
	var pendingInsert []byte
	i := 0
	for i < len(target) {
		if i+window <= len(target) {
			h := rollsumHash(target[i : i+window])
			if srcOff, ok := index.lookup(h, source, target[i:i+window]); ok {
				if len(pendingInsert) > 0 {
					patch = appendPatchInsert(patch, pendingInsert)
					pendingInsert = nil
				}
				matchLen := extendMatch(source, target, srcOff, i, window)
				patch = appendPatchCopy(patch, uint64(srcOff), uint64(matchLen))
				i += matchLen
				continue
			}
		}
		pendingInsert = append(pendingInsert, target[i])
		i++
	}
	if len(pendingInsert) > 0 {
		patch = appendPatchInsert(patch, pendingInsert)
	}
	return patch
}

// extendMatch grows a window-sized match forward as far as source and
// target agree, so adjacent matching windows collapse into one COPY.
func extendMatch(source, target []byte, srcOff, tgtOff, minLen int) int {
	n := minLen
	for srcOff+n < len(source) && tgtOff+n < len(target) && source[srcOff+n] == target[tgtOff+n] {
		n++
	}
	return n
}

package delta

import (
	"bytes"

	"github.com/ostreego/ostree/internal/varint"
	"golang.org/x/xerrors"
)

// rollsumHash is a simple additive/positional rolling checksum in the
// style of rsync's, used only to index fixed-size windows of the "from"
// object for bsdiff's match search (§4.8: "a rolling checksum (rsync-
// style) to find copyable runs, falling back to a literal patch when
// the match ratio is below 50%").
func rollsumHash(window []byte) uint32 {
	var a, b uint32
	for i, c := range window {
		a += uint32(c)
		b += uint32(len(window)-i) * uint32(c)
	}
	return a | (b << 16)
}

type rollsumIndex struct {
	window int
	byHash map[uint32][]int
}

func buildRollsumIndex(source []byte, window int) *rollsumIndex {
	idx := &rollsumIndex{window: window, byHash: make(map[uint32][]int)}
	if len(source) < window {
		return idx
	}
	for i := 0; i+window <= len(source); i++ {
		h := rollsumHash(source[i : i+window])
		idx.byHash[h] = append(idx.byHash[h], i)
	}
	return idx
}

// lookup finds an exact window-sized match for target's current window
// among source offsets sharing the same rolling hash, guarding against
// hash collisions with a direct byte comparison.
func (idx *rollsumIndex) lookup(h uint32, source, targetWindow []byte) (int, bool) {
	for _, off := range idx.byHash[h] {
		if bytes.Equal(source[off:off+idx.window], targetWindow) {
			return off, true
		}
	}
	return 0, false
}

// matchRatio reports the fraction of target bytes a bsdiff patch
// reconstructed via COPY rather than INSERT. classifyPatch compares it
// against MinMatchRatio (rollsum) and bsdiffFallbackRatio (bsdiff) to
// decide how a changed file is packed, or whether it ships as a plain
// literal object.
func matchRatio(patch []byte, targetLen int) float64 {
	if targetLen == 0 {
		return 1
	}
	copied := 0
	off := 0
	for off < len(patch) {
		op := patch[off]
		off++
		switch op {
		case patchOpCopy:
			_, n1, err := varint.ReadUvarint(patch, off)
			if err != nil {
				return 0
			}
			length, n2, err := varint.ReadUvarint(patch, n1)
			if err != nil {
				return 0
			}
			copied += int(length)
			off = n2
		case patchOpInsert:
			length, n, err := varint.ReadUvarint(patch, off)
			if err != nil {
				return 0
			}
			off = n + int(length)
		default:
			return 0
		}
	}
	return float64(copied) / float64(targetLen)
}

// rollsumSegment is one span of a bsdiff copy/insert patch, decoded back
// into a form the generator can replay as a sequence of WRITE opcodes:
// a copy names an offset/length into the read source, an insert carries
// its own literal bytes for the payload blob.
type rollsumSegment struct {
	isCopy bool
	offset uint64
	length uint64
	data   []byte
}

// decodeRollsumSegments walks a bsdiff patch program and returns it as
// an ordered list of copy/insert spans, the intermediate form the
// generator's rollsum path packs as WRITE opcodes rather than a single
// BSPATCH blob (§4.8's rollsum-match strategy).
func decodeRollsumSegments(patch []byte) ([]rollsumSegment, error) {
	var segs []rollsumSegment
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
			segs = append(segs, rollsumSegment{isCopy: true, offset: srcOff, length: length})
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
			segs = append(segs, rollsumSegment{data: patch[off:end]})
			off = end
		default:
			return nil, xerrors.Errorf("patch opcode %d: %w", op, ErrInvalidDelta)
		}
	}
	return segs, nil
}

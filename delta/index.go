package delta

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// noFromMarker is the line written in place of a from-checksum for a
// from-scratch delta, so it isn't confused with a (vanishingly
// unlikely, but well-defined) real checksum of all zero bytes.
const noFromMarker = "-"

// Index records, per "to" commit, which deltas are available from it
// (§4.6's "optional per-target index of available deltas"), so a
// "static-delta list" caller can answer "what deltas exist for this
// commit" without scanning every directory under deltas/.
type Index struct {
	fs   afero.Fs
	root string
}

// NewIndex returns an Index rooted at repoRoot.
func NewIndex(fs afero.Fs, repoRoot string) *Index {
	return &Index{fs: fs, root: repoRoot}
}

func (x *Index) path(to checksum.Checksum) string {
	return filepath.Join(x.root, layout.DeltaIndexPath(to))
}

// List returns every from-checksum for which a delta to "to" is known,
// with checksum.Zero standing in for a from-scratch delta. The list is
// sorted by hex string, checksum.Zero first.
func (x *Index) List(to checksum.Checksum) ([]checksum.Checksum, error) {
	data, err := afero.ReadFile(x.fs, x.path(to))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("could not read delta index for %s: %w", to, err)
	}
	var out []checksum.Checksum
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		if line == noFromMarker {
			out = append(out, checksum.Zero)
			continue
		}
		csum, err := checksum.FromHex(line)
		if err != nil {
			return nil, xerrors.Errorf("corrupt delta index for %s: %w", to, err)
		}
		out = append(out, csum)
	}
	return out, nil
}

// Add records that a delta from "from" (checksum.Zero for from-scratch)
// to "to" now exists. It is a no-op if already recorded.
func (x *Index) Add(from, to checksum.Checksum) error {
	existing, err := x.List(to)
	if err != nil {
		return err
	}
	for _, f := range existing {
		if f == from {
			return nil
		}
	}
	existing = append(existing, from)
	return x.write(to, existing)
}

// Remove drops "from" out of "to"'s index. It is a no-op if the entry
// was never recorded.
func (x *Index) Remove(from, to checksum.Checksum) error {
	existing, err := x.List(to)
	if err != nil {
		return err
	}
	out := existing[:0]
	for _, f := range existing {
		if f != from {
			out = append(out, f)
		}
	}
	return x.write(to, out)
}

func (x *Index) write(to checksum.Checksum, from []checksum.Checksum) error {
	sort.Slice(from, func(i, j int) bool { return from[i].String() < from[j].String() })
	var b strings.Builder
	for _, f := range from {
		if f.IsZero() {
			b.WriteString(noFromMarker)
		} else {
			b.WriteString(f.String())
		}
		b.WriteByte('\n')
	}

	p := x.path(to)
	if err := x.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Errorf("could not create delta index directory: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(p), ".tmp-"+strconv.Itoa(rand.Int()))
	if err := afero.WriteFile(x.fs, tmp, []byte(b.String()), 0o644); err != nil {
		return xerrors.Errorf("could not write delta index: %w", err)
	}
	if err := x.fs.Rename(tmp, p); err != nil {
		return xerrors.Errorf("could not rename delta index into place: %w", err)
	}
	return nil
}

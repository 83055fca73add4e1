package delta

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// WriteToRepo persists a generated superblock and its parts under
// repoRoot/deltas/... (§4.6) and records the pair in the delta index, so
// a later "static-delta list"/"static-delta show" can find it without
// the caller keeping the superblock bytes around itself.
func WriteToRepo(fs afero.Fs, repoRoot string, sb Superblock, parts [][]byte) error {
	if len(parts) != len(sb.Parts) {
		return xerrors.Errorf("expected %d parts, got %d: %w", len(sb.Parts), len(parts), ErrInvalidDelta)
	}

	dir := filepath.Join(repoRoot, layout.DeltaDir(sb.From, sb.To, sb.HasFrom))
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("could not create delta directory: %w", err)
	}

	sbData, err := sb.Marshal()
	if err != nil {
		return xerrors.Errorf("could not marshal superblock: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, "superblock"), sbData, 0o644); err != nil {
		return xerrors.Errorf("could not write superblock: %w", err)
	}
	if len(sb.DetachedMeta) > 0 {
		if err := afero.WriteFile(fs, filepath.Join(dir, "meta"), sb.DetachedMeta, 0o644); err != nil {
			return xerrors.Errorf("could not write detached metadata: %w", err)
		}
	}
	for i, part := range parts {
		name := filepath.Join(dir, strconv.Itoa(i))
		if err := afero.WriteFile(fs, name, part, 0o644); err != nil {
			return xerrors.Errorf("could not write part %d: %w", i, err)
		}
	}

	return NewIndex(fs, repoRoot).Add(sb.From, sb.To)
}

// ReadFromRepo reads back a superblock and its parts previously written
// by WriteToRepo.
func ReadFromRepo(fs afero.Fs, repoRoot string, from, to checksum.Checksum, hasFrom bool) (Superblock, [][]byte, error) {
	dir := filepath.Join(repoRoot, layout.DeltaDir(from, to, hasFrom))

	sbData, err := afero.ReadFile(fs, filepath.Join(dir, "superblock"))
	if err != nil {
		if os.IsNotExist(err) {
			return Superblock{}, nil, xerrors.Errorf("no delta to %s: %w", to, ErrInvalidDelta)
		}
		return Superblock{}, nil, xerrors.Errorf("could not read superblock: %w", err)
	}
	sb, err := ParseSuperblock(sbData)
	if err != nil {
		return Superblock{}, nil, xerrors.Errorf("could not parse superblock: %w", err)
	}

	parts := make([][]byte, len(sb.Parts))
	for i := range sb.Parts {
		name := filepath.Join(dir, strconv.Itoa(i))
		data, err := afero.ReadFile(fs, name)
		if err != nil {
			return Superblock{}, nil, xerrors.Errorf("could not read part %d: %w", i, err)
		}
		parts[i] = data
	}
	return sb, parts, nil
}

// ListDeltas reports every from-checksum for which a delta to "to" is
// recorded in the repository's index (checksum.Zero standing for
// from-scratch), for "static-delta list".
func ListDeltas(fs afero.Fs, repoRoot string, to checksum.Checksum) ([]checksum.Checksum, error) {
	return NewIndex(fs, repoRoot).List(to)
}

// DeltaLabel formats a (from, to) pair the way "static-delta list" would
// print one line per delta.
func DeltaLabel(from, to checksum.Checksum) string {
	if from.IsZero() {
		return fmt.Sprintf("(none) -> %s", to)
	}
	return fmt.Sprintf("%s -> %s", from, to)
}

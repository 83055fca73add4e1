package delta

import (
	"os"
	"path/filepath"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Sweep removes every delta under repoRoot/deltas/ whose target commit
// (the superblock's To) is absent from reachable — a delta to a commit
// prune has already collected as garbage is garbage itself (§4.5 step
// 5). With dryRun set, it tallies without deleting. It returns the
// number of deltas that were (or, in dry-run, would be) removed.
func Sweep(fs afero.Fs, repoRoot string, reachable map[checksum.Checksum]checksum.Type, dryRun bool) (int, error) {
	root := filepath.Join(repoRoot, layout.DeltasPath)
	exists, err := afero.DirExists(fs, root)
	if err != nil {
		return 0, xerrors.Errorf("checking deltas directory: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var dirs []string
	err = afero.Walk(fs, root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || filepath.Base(p) != "superblock" {
			return nil
		}
		dirs = append(dirs, filepath.Dir(p))
		return nil
	})
	if err != nil {
		return 0, xerrors.Errorf("walking deltas directory: %w", err)
	}

	idx := NewIndex(fs, repoRoot)
	removed := 0
	for _, dir := range dirs {
		data, err := afero.ReadFile(fs, filepath.Join(dir, "superblock"))
		if err != nil {
			return removed, xerrors.Errorf("reading superblock %s: %w", dir, err)
		}
		sb, err := ParseSuperblock(data)
		if err != nil {
			return removed, xerrors.Errorf("parsing superblock %s: %w", dir, err)
		}
		if _, ok := reachable[sb.To]; ok {
			continue
		}
		if !dryRun {
			if err := fs.RemoveAll(dir); err != nil {
				return removed, xerrors.Errorf("removing stale delta %s: %w", dir, err)
			}
			from := checksum.Zero
			if sb.HasFrom {
				from = sb.From
			}
			if err := idx.Remove(from, sb.To); err != nil {
				return removed, xerrors.Errorf("updating delta index for %s: %w", sb.To, err)
			}
		}
		removed++
	}
	return removed, nil
}

package ostree

import (
	"os"
	"path/filepath"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Checkout materializes the commit's root tree as real files under
// destDir on destFS — the inverse of TreeBuilder, turning dirtree/
// dirmeta/file objects back into a POSIX directory hierarchy. Ownership
// (uid/gid) is recorded by the objects but not applied, since doing so
// requires privileges this library does not assume; permission bits are
// applied as-is.
func (r *Repository) Checkout(commitCsum checksum.Checksum, destFS afero.Fs, destDir string) error {
	c, err := r.ReadCommit(commitCsum)
	if err != nil {
		return xerrors.Errorf("could not read commit %s: %w", commitCsum, err)
	}
	if err := destFS.MkdirAll(destDir, 0o755); err != nil {
		return xerrors.Errorf("could not create %s: %w", destDir, err)
	}
	return r.checkoutDir(c.RootTree, c.RootTreeMeta, destFS, destDir)
}

func (r *Repository) checkoutDir(treeCsum, metaCsum checksum.Checksum, destFS afero.Fs, dir string) error {
	treeData, err := r.store.ReadRaw(treeCsum, checksum.TypeDirTree)
	if err != nil {
		return xerrors.Errorf("could not read dirtree %s: %w", treeCsum, err)
	}
	tree, err := object.ParseDirTree(treeData)
	if err != nil {
		return xerrors.Errorf("could not parse dirtree %s: %w", treeCsum, err)
	}

	metaData, err := r.store.ReadRaw(metaCsum, checksum.TypeDirMeta)
	if err != nil {
		return xerrors.Errorf("could not read dirmeta %s: %w", metaCsum, err)
	}
	meta, err := object.ParseDirMeta(metaData)
	if err != nil {
		return xerrors.Errorf("could not parse dirmeta %s: %w", metaCsum, err)
	}

	for _, fe := range tree.Files {
		if err := r.checkoutFile(fe, destFS, filepath.Join(dir, fe.Name)); err != nil {
			return err
		}
	}
	for _, de := range tree.Dirs {
		childDir := filepath.Join(dir, de.Name)
		if err := destFS.MkdirAll(childDir, 0o755); err != nil {
			return xerrors.Errorf("could not create %s: %w", childDir, err)
		}
		if err := r.checkoutDir(de.TreeChecksum, de.MetaChecksum, destFS, childDir); err != nil {
			return err
		}
	}

	return destFS.Chmod(dir, os.FileMode(meta.Mode&0o7777))
}

func (r *Repository) checkoutFile(fe object.FileEntry, destFS afero.Fs, path string) error {
	f, err := r.store.ReadFileObject(fe.Checksum)
	if err != nil {
		return xerrors.Errorf("could not read file object %s: %w", fe.Checksum, err)
	}

	if f.Header.IsSymlink() {
		if linker, ok := destFS.(afero.Symlinker); ok {
			if err := linker.SymlinkIfPossible(f.Header.SymlinkTarget, path); err != nil {
				return xerrors.Errorf("could not create symlink %s: %w", path, err)
			}
			return nil
		}
		return xerrors.Errorf("filesystem does not support symlinks, cannot check out %s", path)
	}

	if err := afero.WriteFile(destFS, path, f.Content, os.FileMode(f.Header.Mode&0o7777)); err != nil {
		return xerrors.Errorf("could not write %s: %w", path, err)
	}
	return destFS.Chmod(path, os.FileMode(f.Header.Mode&0o7777))
}

package refs

import (
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Store persists refs under refs/heads and refs/remotes/<remote> inside
// a repository root, mirroring backend.Backend's ref methods.
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a ref Store rooted at repoRoot.
func New(fs afero.Fs, repoRoot string) *Store {
	return &Store{fs: fs, root: repoRoot}
}

// systemPath returns the on-disk path backing ref/refspec name, resolving
// the remote-mirror namespace from a HasRemote refspec.
func (s *Store) systemPath(spec Refspec) string {
	if spec.HasRemote() {
		return filepath.Join(s.root, layout.RemoteRefPath(spec.Remote, spec.Ref))
	}
	return filepath.Join(s.root, layout.RefPath(spec.Ref))
}

// Get resolves name (a bare ref or "[remote:]ref" refspec) to its commit
// checksum.
func (s *Store) Get(name string) (checksum.Checksum, error) {
	spec, err := ParseRefspec(name)
	if err != nil {
		return checksum.Zero, err
	}
	p := s.systemPath(spec)
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return checksum.Zero, xerrors.Errorf("%q: %w", name, ErrNotFound)
		}
		return checksum.Zero, xerrors.Errorf("could not read ref %q: %w", name, err)
	}
	text := strings.TrimRight(string(data), "\n")
	csum, err := checksum.FromHex(text)
	if err != nil {
		return checksum.Zero, xerrors.Errorf("%q: %w", name, ErrCorrupted)
	}
	return csum, nil
}

// Set writes name to point at csum, overwriting any existing value.
func (s *Store) Set(name string, csum checksum.Checksum) error {
	spec, err := ParseRefspec(name)
	if err != nil {
		return err
	}
	if spec.HasRemote() {
		return xerrors.Errorf("%q: %w", name, ErrInvalidName)
	}
	return s.writeRef(spec, csum)
}

// SetExclusive writes name to point at csum only if it does not already
// exist; returns ErrExists otherwise.
func (s *Store) SetExclusive(name string, csum checksum.Checksum) error {
	spec, err := ParseRefspec(name)
	if err != nil {
		return err
	}
	p := s.systemPath(spec)
	if _, statErr := s.fs.Stat(p); statErr == nil {
		return xerrors.Errorf("%q: %w", name, ErrExists)
	} else if !os.IsNotExist(statErr) {
		return xerrors.Errorf("could not check ref %q: %w", name, statErr)
	}
	return s.writeRef(spec, csum)
}

func (s *Store) writeRef(spec Refspec, csum checksum.Checksum) error {
	p := s.systemPath(spec)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Errorf("could not create ref directory: %w", err)
	}
	content := []byte(csum.String() + "\n")
	if err := s.writeAtomic(p, content, 0o644); err != nil {
		return xerrors.Errorf("could not persist ref: %w", err)
	}
	return nil
}

// writeAtomic writes data to path via a tmp-file-then-rename sequence so
// a reader never observes a partially written ref (§9). On the real OS
// filesystem this defers to renameio, which additionally fsyncs the
// containing directory; on in-memory/test filesystems it falls back to a
// plain afero tmp+Rename, since renameio only operates on *os.File —
// the same split store.Store's writeAtomic makes for loose objects.
func (s *Store) writeAtomic(path string, data []byte, perm os.FileMode) error {
	if _, ok := s.fs.(*afero.OsFs); ok {
		return renameio.WriteFile(path, data, perm)
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+strconv.Itoa(rand.Int())+filepath.Base(path))
	if err := afero.WriteFile(s.fs, tmp, data, perm); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path)
}

// Remove deletes a ref. Removing a ref that does not exist is a no-op.
func (s *Store) Remove(name string) error {
	spec, err := ParseRefspec(name)
	if err != nil {
		return err
	}
	p := s.systemPath(spec)
	if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("could not remove ref %q: %w", name, err)
	}
	return nil
}

// WalkFunc is applied to every ref found by Walk. name is the ref's
// "[remote:]ref" refspec string.
type WalkFunc func(name string, csum checksum.Checksum) error

// List returns every ref under refs/heads and refs/remotes/<remote>/ as a
// name → checksum map (§4.9: "listing is a recursive directory walk
// returning name → hex_csum").
func (s *Store) List() (map[string]checksum.Checksum, error) {
	out := map[string]checksum.Checksum{}
	err := s.Walk(func(name string, csum checksum.Checksum) error {
		out[name] = csum
		return nil
	})
	return out, err
}

// Walk visits every ref under refs/heads and refs/remotes.
func (s *Store) Walk(f WalkFunc) error {
	if err := s.walkDir(filepath.Join(s.root, layout.RefsHeadsPath), "", f); err != nil {
		return err
	}
	remotesRoot := filepath.Join(s.root, layout.RefsRemotesPath)
	entries, err := afero.ReadDir(s.fs, remotesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("could not list remotes: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		remote := e.Name()
		prefix := remote + ":"
		if err := s.walkDir(filepath.Join(remotesRoot, remote), prefix, f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) walkDir(dir, namePrefix string, f WalkFunc) error {
	return afero.Walk(s.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		name := namePrefix + path.Join(filepath.ToSlash(rel))
		data, readErr := afero.ReadFile(s.fs, p)
		if readErr != nil {
			return xerrors.Errorf("could not read ref %q: %w", name, readErr)
		}
		text := strings.TrimRight(string(data), "\n")
		csum, csumErr := checksum.FromHex(text)
		if csumErr != nil {
			return xerrors.Errorf("ref %q: %w", name, ErrCorrupted)
		}
		return f(name, csum)
	})
}

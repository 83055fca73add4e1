// Package store implements the on-disk repository layout (§4, §5): the
// loose object store, atomic tmpfile+rename object writes, and
// repository initialization. There is no multi-object transaction API. It generalizes backend/fsbackend.Backend — an
// afero.Fs-backed store with per-key locking and an LRU object cache —
// from git's single packed/loose object model to ostree's four object
// kinds and five storage modes.
package store

import (
	"os"
	"path/filepath"

	"github.com/ostreego/ostree/internal/cache"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/ostreego/ostree/internal/syncutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// defaultCacheSize bounds the in-memory object cache, mirroring the
// teacher's unbounded-until-asked LRU wrapper but with a concrete size
// since a tree store's objects (commits, dirtrees) are hit repeatedly
// during traversal.
const defaultCacheSize = 4096

// defaultMutexCount is the number of stripes in the per-oid lock table
// (teacher's syncutil.NamedMutex); a prime is preferred for distribution.
const defaultMutexCount = 257

// Store is a repository's on-disk object store; refs are kept by
// refs.Store.
type Store struct {
	fs   afero.Fs
	root string
	mode Mode

	objectMu *syncutil.NamedMutex
	cache    *cache.LRU
}

// New returns a Store rooted at root on fs, in the given mode. It does
// not touch the filesystem; call Init for a fresh repository or Open to
// validate an existing one.
func New(fs afero.Fs, root string, mode Mode) *Store {
	return &Store{
		fs:       fs,
		root:     root,
		mode:     mode,
		objectMu: syncutil.NewNamedMutex(defaultMutexCount),
		cache:    cache.NewLRU(defaultCacheSize),
	}
}

// Root returns the repository's root directory.
func (s *Store) Root() string { return s.root }

// Fs returns the filesystem backing this repository, so a caller like
// prune's deltas/ sweep can walk paths the Store itself has no reason
// to expose a dedicated method for.
func (s *Store) Fs() afero.Fs { return s.fs }

// Mode returns the repository's storage mode.
func (s *Store) Mode() Mode { return s.mode }

// Init creates a fresh repository layout: the objects/refs/deltas
// directory skeleton and a default config file (§4.1).
func (s *Store) Init() error {
	dirs := []string{
		layout.ObjectsPath,
		layout.RefsHeadsPath,
		layout.RefsRemotesPath,
		layout.RefsMirrorsPath,
		layout.TmpPath,
		layout.TmpCachePath,
		layout.DeltasPath,
		layout.DeltaIndexesPath,
		layout.StateOverridePath,
	}
	for _, d := range dirs {
		full := filepath.Join(s.root, d)
		if err := s.fs.MkdirAll(full, 0o755); err != nil {
			return xerrors.Errorf("could not create directory %s: %w", d, err)
		}
	}
	if err := s.writeDefaultConfig(); err != nil {
		return xerrors.Errorf("could not write default config: %w", err)
	}
	return nil
}

// Open validates that root already looks like a repository (has a
// readable, parseable config file) and loads its mode from config. It
// does not check for the objects/ directory.
func Open(fs afero.Fs, root string) (*Store, error) {
	cfgPath := filepath.Join(root, layout.ConfigPath)
	f, err := fs.Open(cfgPath)
	if err != nil {
		return nil, xerrors.Errorf("could not open repository config: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	cfg, err := ini.Load(f)
	if err != nil {
		return nil, xerrors.Errorf("could not parse repository config: %w", err)
	}
	modeStr := cfg.Section("core").Key("mode").MustString("bare")
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, xerrors.Errorf("config: %w", err)
	}
	return New(fs, root, mode), nil
}

func (s *Store) writeDefaultConfig() error {
	cfg := ini.Empty()
	core, err := cfg.NewSection("core")
	if err != nil {
		return xerrors.Errorf("could not create core section: %w", err)
	}
	kv := map[string]string{
		"repo_version": "1",
		"mode":         s.mode.String(),
	}
	for k, v := range kv {
		if _, err := core.NewKey(k, v); err != nil {
			return xerrors.Errorf("could not set %s: %w", k, err)
		}
	}

	f, err := s.fs.OpenFile(filepath.Join(s.root, layout.ConfigPath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // write error captured below

	if _, err := cfg.WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}

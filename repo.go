// Package ostree ties the object, store, refs, merkle, prune and delta
// packages together into the single public entry point a caller
// actually wants: a Repository. It generalizes the teacher's root
// Repository type (InitRepository/OpenRepository/GetObject/WriteObject
// in the original git-go) from a single packed+loose git object store
// to ostree's mode-selectable tree store.
package ostree

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/config"
	"github.com/ostreego/ostree/delta"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/ostreego/ostree/merkle"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/prune"
	"github.com/ostreego/ostree/refs"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Errors returned by Repository, mirroring the teacher's
// ErrRepositoryNotExist/ErrRepositoryExists on the root Repository type.
var (
	ErrRepositoryExists   = errors.New("ostree: repository already exists")
	ErrRepositoryNotExist = errors.New("ostree: repository does not exist")
)

// Repository is an ostree repository rooted at a directory: the object
// store, the ref store, and the path they share.
type Repository struct {
	root  string
	fs    afero.Fs
	store *store.Store
	refs  *refs.Store
}

// InitOptions configures Init. The zero value creates a bare-mode
// repository on the real filesystem.
type InitOptions struct {
	// Mode selects the on-disk storage strategy (§2). Defaults to
	// store.ModeBare.
	Mode store.Mode
	// FS backs every filesystem access; defaults to afero.NewOsFs().
	// Tests pass afero.NewMemMapFs(), the same seam the teacher's
	// fsbackend tests use.
	FS afero.Fs
}

// Init creates a fresh repository at root and returns it. It fails with
// ErrRepositoryExists if a repository already lives there.
func Init(root string, opts InitOptions) (*Repository, error) {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if _, statErr := fs.Stat(filepath.Join(root, layout.ConfigPath)); statErr == nil {
		return nil, ErrRepositoryExists
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, xerrors.Errorf("could not create repository root: %w", err)
	}

	st := store.New(fs, root, opts.Mode)
	if err := st.Init(); err != nil {
		return nil, xerrors.Errorf("could not initialize repository: %w", err)
	}
	return &Repository{root: root, fs: fs, store: st, refs: refs.New(fs, root)}, nil
}

// OpenOptions configures Open.
type OpenOptions struct {
	// FS backs every filesystem access; defaults to afero.NewOsFs().
	FS afero.Fs
}

// Open loads an existing repository at root, reading its mode from the
// config file written by Init.
func Open(root string, opts OpenOptions) (*Repository, error) {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	st, err := store.Open(fs, root)
	if err != nil {
		if xerrors.Is(err, os.ErrNotExist) {
			return nil, ErrRepositoryNotExist
		}
		return nil, xerrors.Errorf("could not open repository: %w", err)
	}
	return &Repository{root: root, fs: fs, store: st, refs: refs.New(fs, root)}, nil
}

// Root returns the repository's root directory.
func (r *Repository) Root() string { return r.root }

// Mode returns the repository's storage mode.
func (r *Repository) Mode() store.Mode { return r.store.Mode() }

// Store returns the underlying object store, for callers that need the
// lower-level API (delta application, fsck, …).
func (r *Repository) Store() *store.Store { return r.store }

// Refs returns the underlying ref store.
func (r *Repository) Refs() *refs.Store { return r.refs }

// Config loads and returns the repository's config file (§6), the
// core.* keys and any configured remotes.
func (r *Repository) Config() (*config.File, error) {
	return config.Load(r.fs, r.root)
}

// NewTreeBuilder returns a TreeBuilder that stages a directory hierarchy
// for this repository (§4.2, §4.3).
func (r *Repository) NewTreeBuilder() *TreeBuilder {
	return newTreeBuilder(r.store)
}

// CommitOptions carries everything needed to build a commit object
// (§3) beyond its root dirtree/dirmeta, which come from a TreeBuilder.
type CommitOptions struct {
	// Parent is the checksum of the parent commit; leave HasParent
	// false for the first commit in a history.
	Parent    checksum.Checksum
	HasParent bool
	Subject   string
	Body      string
	// Timestamp is seconds since the epoch, UTC. Callers that want
	// ContentChecksum-stable re-commits (§8 scenario 2) pass distinct
	// Timestamp values across calls that build the same tree.
	Timestamp uint64
	Related   []object.RelatedObject
}

// Commit writes a commit object pointing at the given root dirtree and
// dirmeta checksums (normally obtained from TreeBuilder.Write) and
// returns its checksum. It does not touch any ref; call SetRef
// separately, mirroring the teacher's NewCommit/WriteReference split.
func (r *Repository) Commit(rootTree, rootTreeMeta checksum.Checksum, opts CommitOptions) (checksum.Checksum, error) {
	c := object.Commit{
		Parent:       opts.Parent,
		HasParent:    opts.HasParent,
		Related:      opts.Related,
		Subject:      opts.Subject,
		Body:         opts.Body,
		Timestamp:    opts.Timestamp,
		RootTree:     rootTree,
		RootTreeMeta: rootTreeMeta,
	}
	data, err := c.Marshal()
	if err != nil {
		return checksum.Zero, xerrors.Errorf("could not marshal commit: %w", err)
	}
	csum := checksum.Sum(data)
	if err := r.store.WriteRaw(csum, checksum.TypeCommit, data); err != nil {
		return checksum.Zero, xerrors.Errorf("could not write commit: %w", err)
	}
	return csum, nil
}

// ReadCommit reads and parses the commit addressed by csum.
func (r *Repository) ReadCommit(csum checksum.Checksum) (object.Commit, error) {
	data, err := r.store.ReadRaw(csum, checksum.TypeCommit)
	if err != nil {
		return object.Commit{}, err
	}
	return object.ParseCommit(data)
}

// ResolveRef resolves a ref or refspec to its commit checksum.
func (r *Repository) ResolveRef(name string) (checksum.Checksum, error) {
	return r.refs.Get(name)
}

// SetRef points name at csum, creating or overwriting it.
func (r *Repository) SetRef(name string, csum checksum.Checksum) error {
	return r.refs.Set(name, csum)
}

// Reachable computes the Merkle-reachable object set rooted at the
// given commits (§4.4), the primitive both Prune and delta generation
// build on.
func (r *Repository) Reachable(roots []checksum.Checksum, opts merkle.Options) (*merkle.Result, error) {
	return merkle.Reachable(r.store, roots, opts)
}

// Prune runs the garbage collector (§4.5).
func (r *Repository) Prune(flags prune.Flags) (prune.Totals, error) {
	return prune.Run(r.store, r.refs, r.store, flags)
}

// Fsck structurally validates every loose object in the repository.
func (r *Repository) Fsck() (store.FsckReport, error) {
	return r.store.Fsck()
}

// GenerateDelta produces a static delta from fromCsum (the zero
// checksum for a from-scratch delta) to toCsum (§4.8).
func (r *Repository) GenerateDelta(fromCsum, toCsum checksum.Checksum, opts delta.GenOptions) (delta.Superblock, []byte, error) {
	toData, err := r.store.ReadRaw(toCsum, checksum.TypeCommit)
	if err != nil {
		return delta.Superblock{}, nil, xerrors.Errorf("could not read target commit: %w", err)
	}
	toCommit, err := object.ParseCommit(toData)
	if err != nil {
		return delta.Superblock{}, nil, xerrors.Errorf("could not parse target commit: %w", err)
	}

	var fromCommit *object.Commit
	if !fromCsum.IsZero() {
		fromData, err := r.store.ReadRaw(fromCsum, checksum.TypeCommit)
		if err != nil {
			return delta.Superblock{}, nil, xerrors.Errorf("could not read source commit: %w", err)
		}
		fc, err := object.ParseCommit(fromData)
		if err != nil {
			return delta.Superblock{}, nil, xerrors.Errorf("could not parse source commit: %w", err)
		}
		fromCommit = &fc
	}

	return delta.Generate(r.store, fromCommit, toCommit, toCsum, toData, opts)
}

// GenerateDeltaToRepo generates a static delta the same way
// GenerateDelta does, but also persists it under this repository's
// deltas/ directory and records it in the delta index, ready for
// "static-delta list"/"static-delta show" or later application.
func (r *Repository) GenerateDeltaToRepo(fromCsum, toCsum checksum.Checksum, opts delta.GenOptions) error {
	sb, part, err := r.GenerateDelta(fromCsum, toCsum, opts)
	if err != nil {
		return err
	}
	return delta.WriteToRepo(r.fs, r.root, sb, [][]byte{part})
}

// ListDeltas reports the from-checksums (checksum.Zero for from-scratch)
// of every delta recorded to the given target commit.
func (r *Repository) ListDeltas(to checksum.Checksum) ([]checksum.Checksum, error) {
	return delta.ListDeltas(r.fs, r.root, to)
}

// ShowDelta reads back a superblock previously persisted by
// GenerateDeltaToRepo, without applying it.
func (r *Repository) ShowDelta(from, to checksum.Checksum, hasFrom bool) (delta.Superblock, error) {
	sb, _, err := delta.ReadFromRepo(r.fs, r.root, from, to, hasFrom)
	return sb, err
}

// ApplyDeltaFromRepo reads a delta previously persisted by
// GenerateDeltaToRepo (in this repository or, typically, one synced in
// from elsewhere) and applies it.
func (r *Repository) ApplyDeltaFromRepo(from, to checksum.Checksum, hasFrom bool, opts delta.ExecOptions) error {
	sb, parts, err := delta.ReadFromRepo(r.fs, r.root, from, to, hasFrom)
	if err != nil {
		return err
	}
	return r.ApplyDelta(sb, parts, opts)
}

// ApplyDelta reconstructs every part of sb's superblock into this
// repository (§4.7). The destination commit object itself (carried
// whole inside the superblock) is written last, once every part has
// succeeded.
func (r *Repository) ApplyDelta(sb delta.Superblock, parts [][]byte, opts delta.ExecOptions) error {
	if len(parts) != len(sb.Parts) {
		return xerrors.Errorf("expected %d parts, got %d: %w", len(sb.Parts), len(parts), delta.ErrInvalidDelta)
	}
	for i, part := range sb.Parts {
		if err := delta.ApplyPart(r.store, part, parts[i], opts); err != nil {
			return xerrors.Errorf("part %d: %w", i, err)
		}
	}
	if opts.StatsOnly {
		return nil
	}
	if err := r.store.WriteRaw(sb.To, checksum.TypeCommit, sb.ToCommit); err != nil {
		return xerrors.Errorf("could not write target commit: %w", err)
	}
	return nil
}

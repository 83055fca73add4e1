// Package prune implements the garbage collector (§4.5): compute the
// reachable object set via merkle.Reachable, walk every loose object,
// and delete whatever isn't reachable, with a dry-run mode and a
// deltas/ sweep for deltas whose target commit no longer exists.
package prune

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/delta"
	"github.com/ostreego/ostree/merkle"
	"github.com/ostreego/ostree/refs"
	"github.com/ostreego/ostree/store"
	"golang.org/x/xerrors"
)

// Flags mirror the §4.5 flags word.
type Flags struct {
	// NoPrune makes Run a dry-run: objects are tallied but not deleted.
	NoPrune bool
	// RefsOnly roots the reachability walk at commits named by any ref,
	// rather than every commit object found in the store.
	RefsOnly bool
	// CommitOnly suppresses dirtree recursion during the reachability
	// walk (passed straight through to merkle.Options).
	CommitOnly bool
}

// Totals reports the outcome of a prune run (§4.5 step 7).
type Totals struct {
	ObjectsTotal  int
	ObjectsPruned int
	BytesFreed    int64
	// DeltasPruned counts deltas/ entries removed (or, in dry-run mode,
	// that would be removed) because their target commit is no longer
	// reachable (§4.5 step 5).
	DeltasPruned int
}

// Sizer exposes the on-disk size of a loose object, queried before
// unlinking for accounting purposes (§4.5: "size query before unlink,
// to ensure accounting is accurate even if deletion races with another
// process").
type Sizer interface {
	ObjectSize(csum checksum.Checksum, typ checksum.Type) (int64, error)
}

// Run executes one prune pass: acquire-lock is the caller's
// responsibility (the store's exclusive-lock contract, §5), since
// lock scope in this implementation spans more than a single prune call
// (a transaction may also want it).
//
// Hardlink/payload-link deduplication is out of scope (spec Non-goals:
// "storing hardlink identity as distinct objects"), so the payload-link
// threshold special case from §4.5 step 4 does not apply here — every
// unreachable loose object is simply prunable.
func Run(s *store.Store, r *refs.Store, sizer Sizer, flags Flags) (Totals, error) {
	roots, err := pruneRoots(s, r, flags.RefsOnly)
	if err != nil {
		return Totals{}, xerrors.Errorf("computing roots: %w", err)
	}

	reachable, err := merkle.Reachable(s, roots, merkle.Options{
		MaxDepth:        -1,
		CommitOnly:      flags.CommitOnly,
		TolerateMissing: true,
	})
	if err != nil {
		return Totals{}, xerrors.Errorf("computing reachable set: %w", err)
	}

	var totals Totals
	var toDelete []objectRef
	err = s.WalkObjects(func(csum checksum.Checksum, typ checksum.Type) error {
		totals.ObjectsTotal++
		if _, ok := reachable.Objects[csum]; ok {
			return nil
		}
		toDelete = append(toDelete, objectRef{csum, typ})
		return nil
	})
	if err != nil {
		return Totals{}, xerrors.Errorf("listing loose objects: %w", err)
	}

	for _, o := range toDelete {
		size, err := sizer.ObjectSize(o.csum, o.typ)
		if err != nil {
			return Totals{}, xerrors.Errorf("sizing object %s: %w", o.csum, err)
		}
		totals.ObjectsPruned++
		totals.BytesFreed += size
		if flags.NoPrune {
			continue
		}
		if err := s.DeleteObject(o.csum, o.typ); err != nil {
			return Totals{}, xerrors.Errorf("deleting object %s: %w", o.csum, err)
		}
	}

	deltasPruned, err := delta.Sweep(s.Fs(), s.Root(), reachable.Objects, flags.NoPrune)
	if err != nil {
		return Totals{}, xerrors.Errorf("sweeping deltas: %w", err)
	}
	totals.DeltasPruned = deltasPruned

	return totals, nil
}

type objectRef struct {
	csum checksum.Checksum
	typ  checksum.Type
}

func pruneRoots(s *store.Store, r *refs.Store, refsOnly bool) ([]checksum.Checksum, error) {
	if refsOnly {
		list, err := r.List()
		if err != nil {
			return nil, err
		}
		roots := make([]checksum.Checksum, 0, len(list))
		for _, csum := range list {
			roots = append(roots, csum)
		}
		return roots, nil
	}

	var roots []checksum.Checksum
	err := s.WalkObjects(func(csum checksum.Checksum, typ checksum.Type) error {
		if typ == checksum.TypeCommit {
			roots = append(roots, csum)
		}
		return nil
	})
	return roots, err
}

package merkle

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/store"
	"golang.org/x/xerrors"
)

// Options configures a reachability walk (§4.4).
type Options struct {
	// MaxDepth bounds how many parent hops are followed from each root
	// commit; -1 means unbounded.
	MaxDepth int
	// CommitOnly suppresses dirtree recursion, visiting only commit
	// (and their ancestors') checksums.
	CommitOnly bool
	// TolerateMissing silently skips NotFound errors while loading a
	// dirtree, treating that subtree as absent rather than failing the
	// whole walk; dirmeta and file objects are marked by checksum without
	// being loaded (§4.4, §9 redesign
	// note: tolerate_missing is a flag threaded down to the single
	// point of failure rather than inspected from error codes deep in
	// the call stack).
	TolerateMissing bool
	// RecordProvenance, if true, additionally builds a map from every
	// visited object to the set of root commits that transitively
	// reference it.
	RecordProvenance bool
}

// Result is the output of a reachability walk.
type Result struct {
	// Objects maps every reachable object's checksum to its type.
	Objects map[checksum.Checksum]checksum.Type
	// Provenance maps an object checksum to the set of root commit
	// checksums that transitively reference it; nil unless
	// Options.RecordProvenance was set.
	Provenance map[checksum.Checksum]map[checksum.Checksum]struct{}
}

func newResult(recordProvenance bool) *Result {
	r := &Result{Objects: map[checksum.Checksum]checksum.Type{}}
	if recordProvenance {
		r.Provenance = map[checksum.Checksum]map[checksum.Checksum]struct{}{}
	}
	return r
}

func (r *Result) mark(csum checksum.Checksum, typ checksum.Type, root checksum.Checksum) {
	r.Objects[csum] = typ
	if r.Provenance != nil {
		set, ok := r.Provenance[csum]
		if !ok {
			set = map[checksum.Checksum]struct{}{}
			r.Provenance[csum] = set
		}
		set[root] = struct{}{}
	}
}

// Reachable computes the reachable object set rooted at the given commit
// checksums (§4.4). Missing root commits are silently skipped ("load the
// commit; return ok+empty if not present, to tolerate partial repos").
func Reachable(s ObjectReader, roots []checksum.Checksum, opts Options) (*Result, error) {
	result := newResult(opts.RecordProvenance)
	for _, root := range roots {
		if err := walkFromCommit(s, root, root, opts, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func walkFromCommit(s ObjectReader, csum, root checksum.Checksum, opts Options, result *Result) error {
	depth := 0
	cur := csum
	for {
		if _, seen := result.Objects[cur]; seen {
			result.mark(cur, checksum.TypeCommit, root)
			return nil
		}
		data, err := s.ReadRaw(cur, checksum.TypeCommit)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		c, err := object.ParseCommit(data)
		if err != nil {
			return xerrors.Errorf("commit %s: %w", cur, err)
		}
		result.mark(cur, checksum.TypeCommit, root)

		if !opts.CommitOnly {
			if err := walkTree(s, c.RootTree, c.RootTreeMeta, root, opts, result); err != nil {
				return err
			}
		}

		if !c.HasParent {
			return nil
		}
		if opts.MaxDepth >= 0 && depth >= opts.MaxDepth {
			return nil
		}
		depth++
		cur = c.Parent
	}
}

func walkTree(s ObjectReader, treeCsum, metaCsum, root checksum.Checksum, opts Options, result *Result) error {
	result.mark(metaCsum, checksum.TypeDirMeta, root)

	it, err := NewTreeIterator(s, treeCsum)
	if err != nil {
		if isNotFound(err) && opts.TolerateMissing {
			return nil
		}
		return err
	}
	result.mark(treeCsum, checksum.TypeDirTree, root)

	return walkIterator(it, root, opts, result)
}

// walkIterator drains one TreeIterator to the end, pushing each
// subdirectory onto the same iterator's stack via Descend rather than
// recursing with a fresh iterator per subtree.
func walkIterator(it *TreeIterator, root checksum.Checksum, opts Options, result *Result) error {
	for {
		step, err := it.Next()
		if err != nil {
			return err
		}
		switch step.Kind {
		case StepEnd:
			return nil
		case StepFile:
			result.mark(step.Csum, checksum.TypeFile, root)
		case StepDir:
			result.mark(step.MetaCsum, checksum.TypeDirMeta, root)
			result.mark(step.Csum, checksum.TypeDirTree, root)
			if err := it.Descend(step); err != nil {
				if isNotFound(err) && opts.TolerateMissing {
					continue
				}
				return err
			}
		}
	}
}

func isNotFound(err error) bool {
	return xerrors.Is(err, store.ErrNotFound)
}

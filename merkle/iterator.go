// Package merkle implements the single traversal primitive the prune
// engine and delta generator both build on (§4.4): an in-place DFS
// iterator over one dirtree's (files, then subdirs), and a commit-level
// wrapper that follows the parent chain and recurses into root trees to
// produce a reachable object set.
package merkle

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
)

// StepKind tags what a TreeIterator step produced.
type StepKind int

// Step kinds (§4.4): FILE, DIR, END. Errors are returned through Next's
// error result rather than as a step kind.
const (
	StepFile StepKind = iota + 1
	StepDir
	StepEnd
)

// Step is one result of TreeIterator.Next.
type Step struct {
	Kind StepKind
	Name string
	// Csum is the file content checksum for StepFile, or the subtree's
	// dirtree checksum for StepDir.
	Csum checksum.Checksum
	// MetaCsum is the subtree's dirmeta checksum, set only for StepDir
	// ("dirmeta is reported only as the second checksum of a DIR
	// result", §4.4).
	MetaCsum checksum.Checksum
}

// ObjectReader is the subset of store.Store the traversal needs. It is
// an interface so merkle can be tested against a fake without importing
// the store package's afero dependency.
type ObjectReader interface {
	ReadRaw(csum checksum.Checksum, typ checksum.Type) ([]byte, error)
}

type frame struct {
	tree  object.DirTree
	fileI int
	dirI  int
}

// TreeIterator performs the implicit DFS cursor across (files-then-subdirs)
// of a dirtree. Next does not descend on its own: a caller that passes a
// StepDir to Descend has that subtree pushed onto the iterator's own
// stack rather than onto an external work queue — §4.4 describes
// consumers keeping such a queue for cross-commit reachability, but
// within a single tree this iterator holds it inline.
type TreeIterator struct {
	store   ObjectReader
	stack   []frame
	pending error
}

// NewTreeIterator loads the dirtree at rootCsum and returns an iterator
// positioned at its first entry.
func NewTreeIterator(s ObjectReader, rootCsum checksum.Checksum) (*TreeIterator, error) {
	tree, err := loadTree(s, rootCsum)
	if err != nil {
		return nil, err
	}
	return &TreeIterator{store: s, stack: []frame{{tree: tree}}}, nil
}

func loadTree(s ObjectReader, csum checksum.Checksum) (object.DirTree, error) {
	data, err := s.ReadRaw(csum, checksum.TypeDirTree)
	if err != nil {
		return object.DirTree{}, err
	}
	return object.ParseDirTree(data)
}

// Next advances the iterator and returns the next Step. Once a StepEnd
// is returned, subsequent calls keep returning StepEnd with no error.
func (it *TreeIterator) Next() (Step, error) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.fileI < len(top.tree.Files) {
			f := top.tree.Files[top.fileI]
			top.fileI++
			return Step{Kind: StepFile, Name: f.Name, Csum: f.Checksum}, nil
		}
		if top.dirI < len(top.tree.Dirs) {
			d := top.tree.Dirs[top.dirI]
			top.dirI++
			return Step{Kind: StepDir, Name: d.Name, Csum: d.TreeChecksum, MetaCsum: d.MetaChecksum}, nil
		}
		// exhausted this frame
		it.stack = it.stack[:len(it.stack)-1]
	}
	return Step{Kind: StepEnd}, nil
}

// Descend pushes the subtree named by a just-returned StepDir onto the
// iterator's own stack, so the caller can choose to recurse inline
// instead of maintaining an external work queue.
func (it *TreeIterator) Descend(step Step) error {
	tree, err := loadTree(it.store, step.Csum)
	if err != nil {
		return err
	}
	it.stack = append(it.stack, frame{tree: tree})
	return nil
}

package ostree

import (
	"sort"
	"strings"
	"syscall"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/ostreego/ostree/store"
	"golang.org/x/xerrors"
)

// TreeBuilder stages a directory hierarchy in memory and persists it as
// a tree of dirtree/dirmeta objects (§3, §4.2) on Write. It generalizes
// the teacher's flat, single-level TreeBuilder (Insert/Write against one
// git tree object) to ostree's recursive dirtree/dirmeta pair per
// directory: inserting "a/b/c" transparently creates the intermediate
// "a" and "a/b" directory nodes, each written as its own dirtree+dirmeta
// object when Write walks the tree bottom-up.
type TreeBuilder struct {
	store *store.Store
	root  *dirNode
}

// dirNode is one in-progress directory: its own permission metadata plus
// its direct file and subdirectory children.
type dirNode struct {
	uid, gid, mode uint32
	xattrs         []object.Xattr
	files          map[string]checksum.Checksum
	dirs           map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{
		mode:  syscall.S_IFDIR | 0o755,
		files: map[string]checksum.Checksum{},
		dirs:  map[string]*dirNode{},
	}
}

func newTreeBuilder(s *store.Store) *TreeBuilder {
	return &TreeBuilder{store: s, root: newDirNode()}
}

// splitPath breaks a slash-separated relative path into its directory
// components and final name, validating each component against §3's
// filename invariant.
func splitPath(path string) (dirs []string, name string, err error) {
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if !object.ValidFilename(p) {
			return nil, "", xerrors.Errorf("%q: %w", path, object.ErrInvalidFilename)
		}
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

func (tb *TreeBuilder) dirFor(dirs []string) *dirNode {
	node := tb.root
	for _, d := range dirs {
		child, ok := node.dirs[d]
		if !ok {
			child = newDirNode()
			node.dirs[d] = child
		}
		node = child
	}
	return node
}

// Mkdir sets the permission metadata of the directory at path (creating
// any missing intermediate directories), overriding the default mode
// (0755, uid/gid 0) Write would otherwise assign it.
func (tb *TreeBuilder) Mkdir(path string, uid, gid, mode uint32, xattrs []object.Xattr) error {
	dirs, name, err := splitPath(path)
	if err != nil {
		return err
	}
	node := tb.dirFor(append(dirs, name))
	node.uid, node.gid, node.mode = uid, gid, syscall.S_IFDIR|mode
	node.xattrs = xattrs
	return nil
}

// InsertFile writes data as a regular file content object (§3) and
// inserts it at path.
func (tb *TreeBuilder) InsertFile(path string, data []byte, uid, gid, mode uint32, xattrs []object.Xattr) (checksum.Checksum, error) {
	dirs, name, err := splitPath(path)
	if err != nil {
		return checksum.Zero, err
	}
	f := object.FileObject{
		Header: object.FileHeader{
			UID:    uid,
			GID:    gid,
			Mode:   syscall.S_IFREG | mode,
			Xattrs: xattrs,
		},
		Content: data,
	}
	csum, err := tb.store.WriteFileObject(f)
	if err != nil {
		return checksum.Zero, xerrors.Errorf("could not write file %q: %w", path, err)
	}
	tb.dirFor(dirs).files[name] = csum
	return csum, nil
}

// InsertSymlink writes a symlink content object (§3) pointing at target
// and inserts it at path.
func (tb *TreeBuilder) InsertSymlink(path, target string, uid, gid uint32) (checksum.Checksum, error) {
	dirs, name, err := splitPath(path)
	if err != nil {
		return checksum.Zero, err
	}
	f := object.FileObject{
		Header: object.FileHeader{
			UID:           uid,
			GID:           gid,
			Mode:          syscall.S_IFLNK | 0o777,
			SymlinkTarget: target,
		},
	}
	csum, err := tb.store.WriteFileObject(f)
	if err != nil {
		return checksum.Zero, xerrors.Errorf("could not write symlink %q: %w", path, err)
	}
	tb.dirFor(dirs).files[name] = csum
	return csum, nil
}

// Remove deletes the entry at path (file or empty/non-empty
// subdirectory) from the staged tree. It is a no-op if path was never
// inserted.
func (tb *TreeBuilder) Remove(path string) error {
	dirs, name, err := splitPath(path)
	if err != nil {
		return err
	}
	node := tb.dirFor(dirs)
	delete(node.files, name)
	delete(node.dirs, name)
	return nil
}

// Write persists every staged directory bottom-up as a dirtree+dirmeta
// object pair (§4.2) and returns the root's (dirtree checksum, dirmeta
// checksum) — the pair a Commit needs for RootTree/RootTreeMeta.
func (tb *TreeBuilder) Write() (rootTree, rootTreeMeta checksum.Checksum, err error) {
	return tb.writeNode(tb.root)
}

func (tb *TreeBuilder) writeNode(n *dirNode) (checksum.Checksum, checksum.Checksum, error) {
	dt := object.DirTree{
		Files: make([]object.FileEntry, 0, len(n.files)),
		Dirs:  make([]object.DirEntry, 0, len(n.dirs)),
	}
	for name, csum := range n.files {
		dt.Files = append(dt.Files, object.FileEntry{Name: name, Checksum: csum})
	}

	names := make([]string, 0, len(n.dirs))
	for name := range n.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		treeCsum, metaCsum, err := tb.writeNode(n.dirs[name])
		if err != nil {
			return checksum.Zero, checksum.Zero, err
		}
		dt.Dirs = append(dt.Dirs, object.DirEntry{Name: name, TreeChecksum: treeCsum, MetaChecksum: metaCsum})
	}
	dt.Sort()

	treeData, err := dt.Marshal()
	if err != nil {
		return checksum.Zero, checksum.Zero, xerrors.Errorf("could not marshal dirtree: %w", err)
	}
	treeCsum := checksum.Sum(treeData)
	if err := tb.store.WriteRaw(treeCsum, checksum.TypeDirTree, treeData); err != nil {
		return checksum.Zero, checksum.Zero, xerrors.Errorf("could not write dirtree: %w", err)
	}

	dm := object.DirMeta{UID: n.uid, GID: n.gid, Mode: n.mode, Xattrs: n.xattrs}
	metaData, err := dm.Marshal()
	if err != nil {
		return checksum.Zero, checksum.Zero, xerrors.Errorf("could not marshal dirmeta: %w", err)
	}
	metaCsum := checksum.Sum(metaData)
	if err := tb.store.WriteRaw(metaCsum, checksum.TypeDirMeta, metaData); err != nil {
		return checksum.Zero, checksum.Zero, xerrors.Errorf("could not write dirmeta: %w", err)
	}

	return treeCsum, metaCsum, nil
}

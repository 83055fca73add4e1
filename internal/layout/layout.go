// Package layout contains consts and helpers to work with paths inside
// a repository root: the ostree directory scheme (§4.1, §4.3, §5).
package layout

import (
	"path"

	"github.com/ostreego/ostree/checksum"
)

// Repository root files and directories (§4.1).
const (
	ConfigPath        = "config"
	ObjectsPath       = "objects"
	RefsPath          = "refs"
	RefsHeadsPath     = RefsPath + "/heads"
	RefsRemotesPath   = RefsPath + "/remotes"
	RefsMirrorsPath   = RefsPath + "/mirrors"
	TmpPath           = "tmp"
	TmpCachePath      = TmpPath + "/cache"
	DeltasPath        = "deltas"
	DeltaIndexesPath  = "delta-indexes"
	StateOverridePath = "state-overrides"
)

// Object file extensions, keyed by object type and storage mode (§4.2).
const (
	ExtFile       = ".file"  // bare-mode regular file / symlink content object
	ExtFilezBare  = ".filez" // archive-mode zlib-compressed content object
	ExtDirTree    = ".dirtree"
	ExtDirMeta    = ".dirmeta"
	ExtCommit     = ".commit"
	ExtCommitMeta = ".commitmeta" // detached GPG/signature metadata
)

// ExtForType returns the on-disk extension for an object of the given
// type. Content objects additionally depend on storage mode, so callers
// needing the mode-correct file extension should use ExtForFile instead.
func ExtForType(t checksum.Type) string {
	switch t {
	case checksum.TypeDirTree:
		return ExtDirTree
	case checksum.TypeDirMeta:
		return ExtDirMeta
	case checksum.TypeCommit:
		return ExtCommit
	default:
		return ExtFile
	}
}

// ExtForFile returns the on-disk extension for a file content object
// given whether the repository stores it archive-compressed.
func ExtForFile(archived bool) string {
	if archived {
		return ExtFilezBare
	}
	return ExtFile
}

// ObjectPath returns the loose-object path for csum/ext, fanned out by
// the first two hex characters of the checksum (§4.1):
// objects/<aa>/<rest-of-hex>.<ext>
func ObjectPath(csum checksum.Checksum, ext string) string {
	hex := csum.String()
	return path.Join(ObjectsPath, hex[:2], hex[2:]+ext)
}

// ObjectDir returns the fan-out directory (objects/<aa>) that must exist
// before an object with this checksum can be written.
func ObjectDir(csum checksum.Checksum) string {
	hex := csum.String()
	return path.Join(ObjectsPath, hex[:2])
}

// RefPath returns the path of a local branch ref under refs/heads/<name>.
func RefPath(name string) string {
	return path.Join(RefsHeadsPath, name)
}

// RemoteRefPath returns the path of a remote-tracking ref under
// refs/remotes/<remote>/<name> (§5).
func RemoteRefPath(remote, name string) string {
	return path.Join(RefsRemotesPath, remote, name)
}

// DeltaDir returns the directory holding one static delta's superblock,
// detached metadata and part files (§4.6):
// deltas/<aa-from>/<rest-from>-<aa-to><rest-to>/ when a from-commit is
// given, or deltas/<aa-to>/<rest-to>/ for a from-scratch delta — the
// first two hex characters of each side are lifted as directory
// prefixes the way loose objects fan out by checksum.
func DeltaDir(from, to checksum.Checksum, hasFrom bool) string {
	toHex := to.String()
	if !hasFrom {
		return path.Join(DeltasPath, toHex[:2], toHex[2:])
	}
	fromHex := from.String()
	return path.Join(DeltasPath, fromHex[:2], fromHex[2:]+"-"+toHex[:2]+toHex[2:])
}

// DeltaIndexPath returns the path of the delta index file listing the
// deltas available for a "to" checksum (§4.6):
// delta-indexes/<aa>/<rest-to>.index.
func DeltaIndexPath(to checksum.Checksum) string {
	hex := to.String()
	return path.Join(DeltaIndexesPath, hex[:2], hex[2:]+".index")
}

package store

import "golang.org/x/xerrors"

// Mode selects a repository's on-disk storage strategy for file content
// objects and their ownership/xattr metadata (§2, §4.2).
type Mode int

// Repository modes (§2). Numeric values are part of the config file
// encoding (the "mode" key under [core]) and must not be renumbered.
const (
	ModeBare Mode = iota
	ModeBareUser
	ModeBareUserOnly
	ModeBareSplitXattrs
	ModeArchive
)

// ErrUnknownMode is returned for a mode value outside the five known
// repository modes.
var ErrUnknownMode = xerrors.New("store: unknown repository mode")

// String returns the config-file spelling of m.
func (m Mode) String() string {
	switch m {
	case ModeBare:
		return "bare"
	case ModeBareUser:
		return "bare-user"
	case ModeBareUserOnly:
		return "bare-user-only"
	case ModeBareSplitXattrs:
		return "bare-split-xattrs"
	case ModeArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// ParseMode parses the config-file spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "bare":
		return ModeBare, nil
	case "bare-user":
		return ModeBareUser, nil
	case "bare-user-only":
		return ModeBareUserOnly, nil
	case "bare-split-xattrs":
		return ModeBareSplitXattrs, nil
	case "archive", "archive-z2":
		return ModeArchive, nil
	default:
		return 0, ErrUnknownMode
	}
}

// Archived reports whether file content objects are stored zlib
// compressed under this mode (only ModeArchive is).
func (m Mode) Archived() bool {
	return m == ModeArchive
}

// StoresOwnership reports whether file content objects carry real
// uid/gid/mode metadata in their header, as opposed to a synthetic
// "owned by the repository user" identity recorded in a side-channel
// xattr (BARE_USER / BARE_USER_ONLY, §2).
func (m Mode) StoresOwnership() bool {
	switch m {
	case ModeBareUser, ModeBareUserOnly:
		return false
	default:
		return true
	}
}

// SplitXattrs reports whether xattrs for a file object are stored as a
// separate detached object rather than inline in the file header (§2).
func (m Mode) SplitXattrs() bool {
	return m == ModeBareSplitXattrs
}

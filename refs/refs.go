// Package refs implements named mutable pointers to commits (§3, §4.9):
// ref-name and refspec grammar validation, and atomic, listable storage
// under refs/heads and refs/remotes/<remote>. The interface shape —
// Reference/WriteReference/WriteReferenceSafe/Walk — mirrors
// backend.Backend's reference methods and ginternals.Reference,
// generalized from git's oid-or-symbolic references (ostree refs are
// always a plain commit checksum, never symbolic) to ostree's refspec
// grammar and remote-mirror namespace.
package refs

import (
	"strings"

	"github.com/ostreego/ostree/checksum"
	"golang.org/x/xerrors"
)

// Sentinel errors (§7).
var (
	// ErrInvalidName is returned when a ref name or refspec fails the §8
	// grammar check.
	ErrInvalidName = xerrors.New("refs: invalid name")
	// ErrNotFound is returned when a named ref does not exist.
	ErrNotFound = xerrors.New("refs: not found")
	// ErrExists is returned by exclusive-create writes when the ref
	// already exists.
	ErrExists = xerrors.New("refs: already exists")
	// ErrCorrupted is returned when a ref file's content is not exactly
	// a 64-char lowercase hex checksum plus newline.
	ErrCorrupted = xerrors.New("refs: corrupted ref file")
)

// Valid reports whether name satisfies the ref-name grammar (§8):
// non-empty, starts with [A-Za-z0-9_], every other character is in
// [-._A-Za-z0-9/], no two consecutive '/', no leading/trailing '/'.
func Valid(name string) bool {
	if name == "" {
		return false
	}
	if name[0] == '/' || name[len(name)-1] == '/' {
		return false
	}
	if !isNameStart(rune(name[0])) {
		return false
	}
	prevSlash := false
	for i, r := range name {
		if i == 0 {
			continue
		}
		if r == '/' {
			if prevSlash {
				return false
			}
			prevSlash = true
			continue
		}
		prevSlash = false
		if !isNameChar(r) {
			return false
		}
	}
	return true
}

func isNameStart(r rune) bool {
	return r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r == '-' || r == '.'
}

// Refspec is a parsed "[<remote>:]<ref>" string (§3, §4.9).
type Refspec struct {
	Remote string // empty if the refspec had no "<remote>:" prefix
	Ref    string
}

// HasRemote reports whether the refspec named an explicit remote.
func (s Refspec) HasRemote() bool { return s.Remote != "" }

// ParseRefspec parses "[<remote>:]<ref>". <remote> must be a single
// ref-name fragment (no '/'); <ref> must satisfy Valid.
func ParseRefspec(s string) (Refspec, error) {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		remote, ref := s[:idx], s[idx+1:]
		if remote == "" || !Valid(remote) || strings.Contains(remote, "/") {
			return Refspec{}, xerrors.Errorf("remote %q: %w", checksum.Truncate(remote, 64), ErrInvalidName)
		}
		if !Valid(ref) {
			return Refspec{}, xerrors.Errorf("ref %q: %w", checksum.Truncate(ref, 64), ErrInvalidName)
		}
		return Refspec{Remote: remote, Ref: ref}, nil
	}
	if !Valid(s) {
		return Refspec{}, xerrors.Errorf("ref %q: %w", checksum.Truncate(s, 64), ErrInvalidName)
	}
	return Refspec{Ref: s}, nil
}

// String renders the refspec back to its "[<remote>:]<ref>" textual form.
func (s Refspec) String() string {
	if s.Remote == "" {
		return s.Ref
	}
	return s.Remote + ":" + s.Ref
}

package main

import (
	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/checksum"
	"golang.org/x/xerrors"
)

// parseChecksumArg parses a hex checksum given on the command line,
// wrapping checksum.FromHex's error with the offending argument.
func parseChecksumArg(s string) (checksum.Checksum, error) {
	c, err := checksum.FromHex(s)
	if err != nil {
		return checksum.Zero, xerrors.Errorf("%q is not a valid checksum: %w", s, err)
	}
	return c, nil
}

// resolveCommitArg accepts either a ref name ("heads/main") or a bare
// hex commit checksum, the way most ostree subcommands accept either.
func resolveCommitArg(r *ostree.Repository, arg string) (checksum.Checksum, error) {
	if c, err := checksum.FromHex(arg); err == nil {
		return c, nil
	}
	return r.ResolveRef(arg)
}

package store

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// FsckIssue describes one object that failed structural validation.
type FsckIssue struct {
	Checksum checksum.Checksum
	Type     checksum.Type
	Err      error
}

// FsckReport summarizes a Fsck run.
type FsckReport struct {
	ObjectsChecked int
	Issues         []FsckIssue
}

// Fsck walks every loose object and verifies it re-hashes to its own
// filename and, for dirtree/dirmeta/commit objects, parses back without
// error (§7's corruption contract, checked directly rather than taken
// on faith from the in-memory cache populated at write time).
func (s *Store) Fsck() (FsckReport, error) {
	var report FsckReport
	err := s.WalkObjects(func(csum checksum.Checksum, typ checksum.Type) error {
		report.ObjectsChecked++
		if err := s.fsckOne(csum, typ); err != nil {
			report.Issues = append(report.Issues, FsckIssue{Checksum: csum, Type: typ, Err: err})
		}
		return nil
	})
	if err != nil {
		return report, xerrors.Errorf("could not walk objects: %w", err)
	}
	return report, nil
}

func (s *Store) fsckOne(csum checksum.Checksum, typ checksum.Type) error {
	if typ == checksum.TypeFile {
		_, err := s.ReadFileObject(csum)
		return err
	}

	data, err := afero.ReadFile(s.fs, s.objectPath(csum, typ))
	if err != nil {
		return xerrors.Errorf("could not read object from disk: %w", err)
	}
	if got := checksum.Sum(data); got != csum {
		return xerrors.Errorf("on-disk content hashes to %s: %w", got, ErrChecksumMismatch)
	}

	switch typ {
	case checksum.TypeDirTree:
		_, err = object.ParseDirTree(data)
	case checksum.TypeDirMeta:
		_, err = object.ParseDirMeta(data)
	case checksum.TypeCommit:
		_, err = object.ParseCommit(data)
	default:
		return xerrors.Errorf("unknown object type %d: %w", typ, ErrUnknownMode)
	}
	if err != nil {
		return xerrors.Errorf("could not parse object: %w", err)
	}
	return nil
}

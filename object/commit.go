package object

import (
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/gvariant"
	"golang.org/x/xerrors"
)

// ErrBadParent is returned when a commit's parent field is a non-empty
// byte string of the wrong length (§3: a parent checksum is either
// absent — zero bytes — or exactly 32 bytes).
var ErrBadParent = xerrors.New("object: malformed parent checksum")

// RelatedObject is one (name, checksum) entry in a commit's related
// objects array (§3): an auxiliary pointer from a commit to another
// commit or collection, e.g. a collection-ID binding.
type RelatedObject struct {
	Name     string
	Checksum checksum.Checksum
}

// Commit is the '(a{sv}, ay, a(say), s, s, t, ay, ay)' record anchoring
// one Merkle forest root (§3).
type Commit struct {
	Metadata     map[string]gvariant.Value
	Parent       checksum.Checksum // Zero if this is the first commit
	HasParent    bool
	Related      []RelatedObject
	Subject      string
	Body         string
	Timestamp    uint64 // seconds since epoch, UTC
	RootTree     checksum.Checksum
	RootTreeMeta checksum.Checksum
}

func (c Commit) validate() error {
	for _, rel := range c.Related {
		if !ValidFilename(rel.Name) {
			return xerrors.Errorf("related object %q: %w", checksumSafe(rel.Name), ErrInvalidFilename)
		}
	}
	return nil
}

// Marshal returns the canonical commit record. The "content checksum"
// used for commit deduplication across re-commits at different
// timestamps (§3, §8 scenario 2) is computed separately by
// ContentChecksum, not by hashing this record.
func (c Commit) Marshal() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	metaVal := gvariant.Dict(c.Metadata)
	metaBytes, err := gvariant.Marshal(metaVal)
	if err != nil {
		return nil, xerrors.Errorf("metadata: %w", err)
	}

	relElems := make([][]byte, len(c.Related))
	for i, rel := range c.Related {
		w := gvariant.NewWriter()
		w.PutBytes([]byte(rel.Name))
		w.PutRaw(rel.Checksum.Bytes())
		relElems[i] = w.Bytes()
	}

	w := gvariant.NewWriter()
	w.PutBytes(metaBytes)
	if c.HasParent {
		w.PutBytes(c.Parent.Bytes())
	} else {
		w.PutBytes(nil)
	}
	w.PutArray(relElems)
	w.PutBytes([]byte(c.Subject))
	w.PutBytes([]byte(c.Body))
	w.PutU64(c.Timestamp)
	w.PutRaw(c.RootTree.Bytes())
	w.PutRaw(c.RootTreeMeta.Bytes())
	return w.Bytes(), nil
}

// Checksum returns SHA-256 of the canonical commit record. Two commits
// that differ only in Timestamp have different Checksum values — use
// ContentChecksum to compare the tree state they describe.
func (c Commit) Checksum() (checksum.Checksum, error) {
	data, err := c.Marshal()
	if err != nil {
		return checksum.Zero, err
	}
	return checksum.Sum(data), nil
}

// ContentChecksum returns SHA256(root_dirtree_checksum || root_dirmeta_checksum),
// the commit's content identity independent of timestamp, subject, body
// or metadata (§3). Two commits produced from an identical tree at
// different times share a ContentChecksum.
func (c Commit) ContentChecksum() checksum.Checksum {
	buf := make([]byte, 0, 2*checksum.Size)
	buf = append(buf, c.RootTree.Bytes()...)
	buf = append(buf, c.RootTreeMeta.Bytes()...)
	return checksum.Sum(buf)
}

// ParseCommit parses a raw commit record produced by Marshal.
func ParseCommit(data []byte) (Commit, error) {
	r := gvariant.NewReader(data)

	metaBytes, err := r.Bytes()
	if err != nil {
		return Commit{}, xerrors.Errorf("metadata: %w", err)
	}
	metaVal, err := gvariant.Unmarshal(append([]byte(nil), metaBytes...))
	if err != nil {
		return Commit{}, xerrors.Errorf("metadata: %w", ErrCorrupted)
	}
	if metaVal.Kind != gvariant.KindDict {
		return Commit{}, xerrors.Errorf("metadata not a dict: %w", ErrCorrupted)
	}

	parentBytes, err := r.Bytes()
	if err != nil {
		return Commit{}, xerrors.Errorf("parent: %w", err)
	}
	var parent checksum.Checksum
	hasParent := false
	switch len(parentBytes) {
	case 0:
	case checksum.Size:
		parent, err = checksum.FromBytes(parentBytes)
		if err != nil {
			return Commit{}, xerrors.Errorf("parent: %w", ErrCorrupted)
		}
		hasParent = true
	default:
		return Commit{}, ErrBadParent
	}

	nRel, err := r.ArrayCount()
	if err != nil {
		return Commit{}, xerrors.Errorf("related array: %w", err)
	}
	related := make([]RelatedObject, 0, nRel)
	for i := 0; i < nRel; i++ {
		name, err := r.Bytes()
		if err != nil {
			return Commit{}, xerrors.Errorf("related %d name: %w", i, err)
		}
		nameCopy := string(append([]byte(nil), name...))
		csumBytes, err := readFixed(r, checksum.Size)
		if err != nil {
			return Commit{}, xerrors.Errorf("related %d checksum: %w", i, err)
		}
		csum, err := checksum.FromBytes(csumBytes)
		if err != nil {
			return Commit{}, xerrors.Errorf("related %d: %w", i, ErrCorrupted)
		}
		related = append(related, RelatedObject{Name: nameCopy, Checksum: csum})
	}

	subject, err := r.Bytes()
	if err != nil {
		return Commit{}, xerrors.Errorf("subject: %w", err)
	}
	body, err := r.Bytes()
	if err != nil {
		return Commit{}, xerrors.Errorf("body: %w", err)
	}
	timestamp, err := r.U64()
	if err != nil {
		return Commit{}, xerrors.Errorf("timestamp: %w", err)
	}
	rootTreeBytes, err := readFixed(r, checksum.Size)
	if err != nil {
		return Commit{}, xerrors.Errorf("root tree checksum: %w", err)
	}
	rootTree, err := checksum.FromBytes(rootTreeBytes)
	if err != nil {
		return Commit{}, xerrors.Errorf("root tree: %w", ErrCorrupted)
	}
	rootMetaBytes, err := readFixed(r, checksum.Size)
	if err != nil {
		return Commit{}, xerrors.Errorf("root tree meta checksum: %w", err)
	}
	rootMeta, err := checksum.FromBytes(rootMetaBytes)
	if err != nil {
		return Commit{}, xerrors.Errorf("root tree meta: %w", ErrCorrupted)
	}

	if r.Remaining() != 0 {
		return Commit{}, xerrors.Errorf("trailing bytes: %w", ErrCorrupted)
	}

	c := Commit{
		Metadata:     metaVal.Dict,
		Parent:       parent,
		HasParent:    hasParent,
		Related:      related,
		Subject:      string(subject),
		Body:         string(body),
		Timestamp:    timestamp,
		RootTree:     rootTree,
		RootTreeMeta: rootMeta,
	}
	if err := c.validate(); err != nil {
		return Commit{}, err
	}
	return c, nil
}

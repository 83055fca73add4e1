package object

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/gvariant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCommit() Commit {
	return Commit{
		Metadata: map[string]gvariant.Value{
			"version": gvariant.String("1.0"),
		},
		HasParent:    false,
		Subject:      "initial import",
		Body:         "",
		Timestamp:    1700000000,
		RootTree:     checksum.Sum([]byte("tree")),
		RootTreeMeta: checksum.Sum([]byte("treemeta")),
	}
}

func TestCommitRoundTrip(t *testing.T) {
	c := baseCommit()
	c.HasParent = true
	c.Parent = checksum.Sum([]byte("parent"))
	c.Related = []RelatedObject{{Name: "other", Checksum: checksum.Sum([]byte("x"))}}

	data, err := c.Marshal()
	require.NoError(t, err)

	got, err := ParseCommit(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCommitNoParent(t *testing.T) {
	c := baseCommit()
	data, err := c.Marshal()
	require.NoError(t, err)

	got, err := ParseCommit(data)
	require.NoError(t, err)
	assert.False(t, got.HasParent)
	assert.True(t, got.Parent.IsZero())
}

func TestCommitContentChecksumStableAcrossTimestamp(t *testing.T) {
	c1 := baseCommit()
	c2 := baseCommit()
	c2.Timestamp = c1.Timestamp + 1000
	c2.Subject = "re-commit, unchanged tree"

	assert.Equal(t, c1.ContentChecksum(), c2.ContentChecksum())

	csum1, err := c1.Checksum()
	require.NoError(t, err)
	csum2, err := c2.Checksum()
	require.NoError(t, err)
	assert.NotEqual(t, csum1, csum2, "object checksum must differ when subject/timestamp differ")
}

func TestCommitBadParentLength(t *testing.T) {
	w := gvariant.NewWriter()
	metaBytes, err := gvariant.Marshal(gvariant.Dict(nil))
	require.NoError(t, err)
	w.PutBytes(metaBytes)
	w.PutBytes(make([]byte, 10)) // wrong length parent
	w.PutArray(nil)
	w.PutBytes(nil)
	w.PutBytes(nil)
	w.PutU64(0)
	w.PutRaw(checksum.Zero.Bytes())
	w.PutRaw(checksum.Zero.Bytes())

	_, err = ParseCommit(w.Bytes())
	assert.ErrorIs(t, err, ErrBadParent)
}

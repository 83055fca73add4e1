package delta_test

import (
	"testing"

	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/delta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperblockRoundTrip(t *testing.T) {
	t.Parallel()

	sb := delta.Superblock{
		Timestamp:    1700000000,
		HasFrom:      true,
		From:         checksum.Sum([]byte("from")),
		To:           checksum.Sum([]byte("to")),
		ToCommit:     []byte("commit record"),
		DetachedMeta: []byte("detached"),
		Parts: []delta.PartHeader{{
			Version:          1,
			Checksum:         checksum.Sum([]byte("part")),
			CompressedSize:   10,
			UncompressedSize: 20,
			Objects: []checksum.ObjectName{
				{Checksum: checksum.Sum([]byte("a")), Type: checksum.TypeFile},
				{Checksum: checksum.Sum([]byte("b")), Type: checksum.TypeDirMeta},
			},
		}},
		Fallbacks: []delta.FallbackEntry{{
			Type:             checksum.TypeFile,
			Checksum:         checksum.Sum([]byte("big")),
			CompressedSize:   100,
			UncompressedSize: 200,
		}},
	}

	data, err := sb.Marshal()
	require.NoError(t, err)

	got, err := delta.ParseSuperblock(data)
	require.NoError(t, err)

	assert.Equal(t, sb.Timestamp, got.Timestamp)
	assert.Equal(t, sb.HasFrom, got.HasFrom)
	assert.Equal(t, sb.From, got.From)
	assert.Equal(t, sb.To, got.To)
	assert.Equal(t, sb.ToCommit, got.ToCommit)
	assert.Equal(t, sb.DetachedMeta, got.DetachedMeta)
	require.Len(t, got.Parts, 1)
	assert.Equal(t, sb.Parts[0].Checksum, got.Parts[0].Checksum)
	assert.Equal(t, sb.Parts[0].Objects, got.Parts[0].Objects)
	require.Len(t, got.Fallbacks, 1)
	assert.Equal(t, sb.Fallbacks[0].Checksum, got.Fallbacks[0].Checksum)
}

func TestSuperblockNoFrom(t *testing.T) {
	t.Parallel()

	sb := delta.Superblock{
		Timestamp: 1,
		HasFrom:   false,
		To:        checksum.Sum([]byte("to")),
		ToCommit:  []byte("c"),
	}
	data, err := sb.Marshal()
	require.NoError(t, err)
	got, err := delta.ParseSuperblock(data)
	require.NoError(t, err)
	assert.False(t, got.HasFrom)
	assert.True(t, got.From.IsZero())
}

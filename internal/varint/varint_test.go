package varint_test

import (
	"testing"

	"github.com/ostreego/ostree/internal/varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	t.Parallel()

	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := varint.AppendUvarint(nil, v)
		got, n, err := varint.Uvarint(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestUvarintTruncated(t *testing.T) {
	t.Parallel()

	buf := varint.AppendUvarint(nil, 1<<40)
	_, _, err := varint.Uvarint(buf[:1])
	assert.ErrorIs(t, err, varint.ErrTruncated)
}

func TestReadUvarintSequence(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = varint.AppendUvarint(buf, 10)
	buf = varint.AppendUvarint(buf, 2000)

	v1, off, err := varint.ReadUvarint(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), v1)

	v2, off, err := varint.ReadUvarint(buf, off)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), v2)
	assert.Equal(t, len(buf), off)
}

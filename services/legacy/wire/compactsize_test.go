package wire

import (
	"bytes"
	"testing"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactSizeRoundTrip(t *testing.T) {
	tests := []struct {
		n    uint64
		size int
	}{
		{0, 1},
		{0xfc, 1},
		{0xfd, 3},
		{0xffff, 3},
		{0x10000, 5},
		{0xffffffff, 5},
		{0x100000000, 9},
	}

	for _, tt := range tests {
		var buf bytes.Buffer

		require.NoError(t, WriteCompactSize(&buf, tt.n))
		assert.Equal(t, tt.size, buf.Len(), "encoded size of %d", tt.n)
		assert.Equal(t, tt.size, CompactSizeLen(tt.n))

		encoded := buf.Bytes()

		n, err := ReadCompactSize(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, tt.n, n)

		_, err = ReadCompactSize(bytes.NewReader(encoded[:len(encoded)-1]))
		require.Error(t, err, "truncated encoding of %d", tt.n)
		assert.True(t, errors.Is(err, errors.ErrWireFormat))
	}
}

func TestCompactSizeNonCanonical(t *testing.T) {
	tests := [][]byte{
		{0xfd, 0xfc, 0x00},
		{0xfe, 0xff, 0xff, 0x00, 0x00},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00},
	}

	for _, encoded := range tests {
		_, err := ReadCompactSize(bytes.NewReader(encoded))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-canonical")
	}
}

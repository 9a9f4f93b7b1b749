package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockWork(t *testing.T) {
	// genesis difficulty: 0x1d00ffff needs about 2^32 hashes
	work := BlockWork(0x1d00ffff)
	assert.Equal(t, "4295032833", work.String())

	// an easier target is less work
	assert.Equal(t, -1, BlockWork(0x207fffff).Cmp(work))

	// a zero target still yields positive work
	assert.Equal(t, 1, BlockWork(0).Sign())
}

package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Position identifies a block by its height and hash on a particular chain.
type Position struct {
	Height int32
	Hash   chainhash.Hash
}

func NewPosition(height int32, hash chainhash.Hash) Position {
	return Position{Height: height, Hash: hash}
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%s", p.Height, p.Hash.String())
}

// Positions is an ordered run of positions requested together.
type Positions []Position

// Hashes returns the block hashes in order.
func (ps Positions) Hashes() []chainhash.Hash {
	hashes := make([]chainhash.Hash, len(ps))
	for i, p := range ps {
		hashes[i] = p.Hash
	}

	return hashes
}

// First returns the lowest position, or the zero value when empty.
func (ps Positions) First() Position {
	if len(ps) == 0 {
		return Position{}
	}

	return ps[0]
}

// Last returns the highest position, or the zero value when empty.
func (ps Positions) Last() Position {
	if len(ps) == 0 {
		return Position{}
	}

	return ps[len(ps)-1]
}

// Contiguous reports whether the heights increase by exactly one.
func (ps Positions) Contiguous() bool {
	for i := 1; i < len(ps); i++ {
		if ps[i].Height != ps[i-1].Height+1 {
			return false
		}
	}

	return true
}

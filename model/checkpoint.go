package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// FilterType is the BIP157 filter type byte.
type FilterType uint8

const (
	// FilterTypeBasic is the BIP158 basic filter.
	FilterTypeBasic FilterType = 0x00
)

func (f FilterType) String() string {
	switch f {
	case FilterTypeBasic:
		return "basic"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// Checkpoint is a hard-coded (height, block hash, filter header) triple used
// to vet a new peer before trusting any of its chain data.
type Checkpoint struct {
	Height       int32
	BlockHash    chainhash.Hash
	FilterHeader chainhash.Hash
	FilterType   FilterType
}

func (c Checkpoint) Position() Position {
	return Position{Height: c.Height, Hash: c.BlockHash}
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("checkpoint %d block %s filter header %s", c.Height, c.BlockHash, c.FilterHeader)
}

// NextFilterHeader chains a filter hash onto the previous filter header:
// dsha256(filterHash || prevHeader).
func NextFilterHeader(filterHash, prevHeader chainhash.Hash) chainhash.Hash {
	buf := make([]byte, 0, 2*chainhash.HashSize)
	buf = append(buf, filterHash[:]...)
	buf = append(buf, prevHeader[:]...)

	return chainhash.DoubleHashH(buf)
}

// FilterHash returns the hash of a serialized filter as carried in cfheaders.
func FilterHash(filter []byte) chainhash.Hash {
	return chainhash.DoubleHashH(filter)
}

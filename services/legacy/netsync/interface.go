package netsync

import (
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// HeaderOracle is the shared authority on block headers. Implementations
// must be safe for concurrent use by every peer.
type HeaderOracle interface {
	// LoadHeader returns a known header and its height. An unknown hash is
	// an ERR_NOT_FOUND error.
	LoadHeader(hash chainhash.Hash) (wire.BlockHeader, int32, error)

	// BestHashes returns best chain hashes from height start up to and
	// including stop, at most limit of them. A zero stop means the tip.
	BestHashes(start int32, stop chainhash.Hash, limit int) []chainhash.Hash

	// Ancestors returns the chain ending at to, from fromHeight up to and
	// including to, lowest first.
	Ancestors(fromHeight int32, to chainhash.Hash) (model.Positions, error)

	// GetDefaultCheckpoint returns the checkpoint new peers are vetted
	// against.
	GetDefaultCheckpoint() model.Checkpoint

	// BestPosition returns the tip of the best chain.
	BestPosition() model.Position

	// AddHeaders validates and stores headers in order. It returns the
	// resulting best position and the positions of the headers it stored.
	// A header contradicting the checkpoint is ERR_CHECKPOINT_MISMATCH.
	AddHeaders(headers []wire.BlockHeader) (model.Position, model.Positions, error)
}

// BlockOracle is the shared authority on full blocks.
type BlockOracle interface {
	// LoadBitcoin returns a future that yields the block once it is
	// available. Callers that must not wait check it with a select.
	LoadBitcoin(hash chainhash.Hash) <-chan []byte

	// Validate checks a block before it is accepted.
	Validate(block []byte) error

	// AddBitcoin stores a validated block.
	AddBitcoin(hash chainhash.Hash, block []byte) error
}

// FilterOracle is the shared authority on compact filters and filter
// headers.
type FilterOracle interface {
	LoadFilter(filterType model.FilterType, hash chainhash.Hash) ([]byte, error)
	LoadFilterHeader(filterType model.FilterType, hash chainhash.Hash) (chainhash.Hash, error)

	// AddFilterHeaders stores the filter hash and resulting filter header
	// of each position.
	AddFilterHeaders(filterType model.FilterType, positions model.Positions, filterHashes, headers []chainhash.Hash) error

	AddFilter(filterType model.FilterType, hash chainhash.Hash, filter []byte) error
}

// BatchHandle is a block batch managed outside the peer. The peer only
// fetches the blocks and hands each one back.
type BatchHandle interface {
	Positions() model.Positions

	// Deliver hands over a fetched block. An error leaves the position
	// outstanding.
	Deliver(pos model.Position, block []byte) error
}

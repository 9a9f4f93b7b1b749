package peer

import (
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/netsync"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// The chain oracles are shared with the sync trackers.
type (
	HeaderOracle = netsync.HeaderOracle
	BlockOracle  = netsync.BlockOracle
	FilterOracle = netsync.FilterOracle
)

// Mempool is the shared transaction pool. Implementations must be safe for
// concurrent use.
type Mempool interface {
	// Query returns the raw transaction for txid if the pool holds it.
	Query(txid chainhash.Hash) ([]byte, bool)

	// Submit records announced txids and returns the ones the pool does
	// not have yet, in the order given.
	Submit(txids []chainhash.Hash) []chainhash.Hash

	// SubmitTx adds a raw transaction to the pool.
	SubmitTx(tx []byte) error

	// Dump returns the txid of every transaction in the pool.
	Dump() []chainhash.Hash
}

// Manager is told what a peer learns. Every method must return promptly:
// they are called from the peer's own goroutine.
type Manager interface {
	UpdateHeight(p *Peer, height int32, hash chainhash.Hash)
	HeadersSubmitted(p *Peer, best model.Position, added model.Positions)
	BlockSubmitted(p *Peer, pos model.Position)
	AddAddresses(p *Peer, addresses []*wire.NetAddress)

	// Subscribe registers p for chain events. It returns nil when the
	// manager is not accepting subscriptions.
	Subscribe(p *Peer) *Subscription
	Unsubscribe(sub *Subscription)

	// PeerDone is called once, after p reached Shutdown.
	PeerDone(p *Peer)
}

// ChainEventType tags a ChainEvent.
type ChainEventType int

const (
	// ChainBlock announces a new best block.
	ChainBlock ChainEventType = iota

	// ChainTx announces a transaction accepted to the mempool.
	ChainTx

	// ChainReorg announces that the best chain now forks at Position.
	ChainReorg
)

func (t ChainEventType) String() string {
	switch t {
	case ChainBlock:
		return "block"
	case ChainTx:
		return "tx"
	case ChainReorg:
		return "reorg"
	default:
		return "unknown"
	}
}

// ChainEvent is one broadcast from the manager to its subscribed peers.
type ChainEvent struct {
	Type ChainEventType

	// Position is the new block for ChainBlock and the fork parent for
	// ChainReorg.
	Position model.Position

	// Header is set for ChainBlock when the manager has it.
	Header *wire.BlockHeader

	// TxID is set for ChainTx.
	TxID chainhash.Hash

	// Origin is the peer the event came from, if any. Peers do not relay
	// events back to their origin.
	Origin *Peer
}

// Subscription is a peer's view of the manager's broadcasts.
type Subscription struct {
	ID     uint64
	Peer   *Peer
	Events chan ChainEvent
}

// NewSubscription returns a subscription with room for size events.
func NewSubscription(id uint64, p *Peer, size int) *Subscription {
	return &Subscription{ID: id, Peer: p, Events: make(chan ChainEvent, size)}
}

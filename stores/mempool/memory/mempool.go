// Package memory is an in-memory transaction pool shared by every peer.
// Transactions expire after a fixed time; nothing is validated beyond
// parsing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/cespare/xxhash"
	"github.com/greatroar/blobloom"
	"github.com/jellydator/ttlcache/v3"
)

const (
	// rejectedCapacity is the number of rejected txids remembered before
	// the filter starts over.
	rejectedCapacity = 50000
	rejectedFPRate   = 1e-6
)

// Options bounds the pool.
type Options struct {
	// Expiry is how long a transaction stays in the pool.
	Expiry time.Duration

	// AnnounceExpiry is how long an announced txid is considered in
	// flight. Other peers announcing it meanwhile are not asked for it.
	AnnounceExpiry time.Duration

	// MaxSize caps the number of transactions; the oldest are evicted.
	MaxSize int
}

// Mempool implements the peer mempool.
type Mempool struct {
	logger ulogger.Logger

	// mu makes Submit's check-and-mark atomic
	mu        sync.Mutex
	txs       *ttlcache.Cache[chainhash.Hash, []byte]
	announced *ttlcache.Cache[chainhash.Hash, struct{}]

	// rejected holds txids whose transactions failed to parse. A false
	// positive only means a transaction is not fetched from peers.
	rejected      *blobloom.Filter
	rejectedCount int

	onAccept func(txid chainhash.Hash)
}

func New(logger ulogger.Logger, opts Options) *Mempool {
	txOpts := []ttlcache.Option[chainhash.Hash, []byte]{
		ttlcache.WithTTL[chainhash.Hash, []byte](opts.Expiry),
		ttlcache.WithDisableTouchOnHit[chainhash.Hash, []byte](),
	}

	if opts.MaxSize > 0 {
		txOpts = append(txOpts, ttlcache.WithCapacity[chainhash.Hash, []byte](uint64(opts.MaxSize)))
	}

	m := &Mempool{
		logger: logger,
		txs:    ttlcache.New[chainhash.Hash, []byte](txOpts...),
		announced: ttlcache.New[chainhash.Hash, struct{}](
			ttlcache.WithTTL[chainhash.Hash, struct{}](opts.AnnounceExpiry),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, struct{}](),
		),
		rejected: newRejectedFilter(),
	}

	m.txs.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[chainhash.Hash, []byte]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			m.logger.Debugf("[Mempool] evicted %s, pool full", item.Key())
		}
	})

	return m
}

func newRejectedFilter() *blobloom.Filter {
	return blobloom.NewOptimized(blobloom.Config{
		Capacity: rejectedCapacity,
		FPRate:   rejectedFPRate,
	})
}

func rejectedKey(txid chainhash.Hash) uint64 {
	return xxhash.Sum64(txid[:])
}

// OnAccept registers fn to be called with every transaction added by
// SubmitTx. It must be set before the pool is shared.
func (m *Mempool) OnAccept(fn func(txid chainhash.Hash)) {
	m.onAccept = fn
}

// Start runs the expiry loops until Stop.
func (m *Mempool) Start() {
	go m.txs.Start()
	go m.announced.Start()
}

func (m *Mempool) Stop() {
	m.txs.Stop()
	m.announced.Stop()
}

func (m *Mempool) Query(txid chainhash.Hash) ([]byte, bool) {
	item := m.txs.Get(txid)
	if item == nil {
		return nil, false
	}

	return item.Value(), true
}

// Submit returns the txids neither held, already being fetched nor
// recently rejected, and marks them as being fetched.
func (m *Mempool) Submit(txids []chainhash.Hash) []chainhash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wanted []chainhash.Hash

	for _, txid := range txids {
		if m.txs.Has(txid) || m.announced.Has(txid) || m.rejected.Has(rejectedKey(txid)) {
			continue
		}

		m.announced.Set(txid, struct{}{}, ttlcache.DefaultTTL)
		wanted = append(wanted, txid)
	}

	return wanted
}

// SubmitTx adds a raw transaction. A transaction already held is an
// ERR_TX_ALREADY_EXISTS error; one that does not parse ERR_TX_INVALID.
func (m *Mempool) SubmitTx(raw []byte) error {
	txid := chainhash.DoubleHashH(raw)

	tx, err := bt.NewTxFromBytes(raw)
	if err != nil {
		m.reject(txid)
		return errors.NewTxInvalidError("transaction %s does not parse", txid, err)
	}

	m.mu.Lock()

	if m.txs.Has(txid) {
		m.mu.Unlock()
		return errors.NewTxAlreadyExistsError("transaction %s already in the mempool", txid)
	}

	m.txs.Set(txid, raw, ttlcache.DefaultTTL)
	m.announced.Delete(txid)

	m.mu.Unlock()

	m.logger.Debugf("[Mempool] accepted %s (%d inputs, %d outputs)", txid, tx.InputCount(), tx.OutputCount())

	if m.onAccept != nil {
		m.onAccept(txid)
	}

	return nil
}

func (m *Mempool) reject(txid chainhash.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejectedCount >= rejectedCapacity {
		m.rejected = newRejectedFilter()
		m.rejectedCount = 0
	}

	m.rejected.Add(rejectedKey(txid))
	m.rejectedCount++
	m.announced.Delete(txid)
}

// Dump returns the txid of every transaction held.
func (m *Mempool) Dump() []chainhash.Hash {
	return m.txs.Keys()
}

func (m *Mempool) Len() int {
	return m.txs.Len()
}

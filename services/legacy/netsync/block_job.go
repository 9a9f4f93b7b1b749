package netsync

import (
	"sort"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// DefaultMaxBlockBatch is how many blocks one getdata asks for when the
// job is created without a limit.
const DefaultMaxBlockBatch = 16

// BlockTracker is implemented by both block request shapes. A peer runs at
// most one of them at a time.
type BlockTracker interface {
	Tracker

	// Next builds a getdata for blocks not yet requested.
	Next(now time.Time) (*wire.MsgGetData, error)

	// Handle validates and accepts a block. A block that fails validation
	// is dropped and its position stays outstanding.
	Handle(msg *wire.MsgBlock, blocks BlockOracle) (model.Position, error)

	// NotFound records that the peer does not have hash.
	NotFound(hash chainhash.Hash)

	Pending() bool
}

// blockFetch is the bookkeeping shared by BlockJob and BlockBatch.
type blockFetch struct {
	lifecycle

	maxBatch  int
	data      model.Positions
	requested map[chainhash.Hash]model.Position

	// rejected holds positions this peer failed to deliver. They stay
	// outstanding but are not asked for again.
	rejected map[chainhash.Hash]struct{}
}

func (f *blockFetch) setup(positions model.Positions, maxBatch int) error {
	if len(positions) == 0 {
		return errors.NewInvalidArgumentError("block job has no positions")
	}

	if maxBatch <= 0 {
		maxBatch = DefaultMaxBlockBatch
	}

	f.init()
	f.maxBatch = maxBatch
	f.data = append(model.Positions(nil), positions...)
	f.requested = make(map[chainhash.Hash]model.Position)
	f.rejected = make(map[chainhash.Hash]struct{})

	sort.SliceStable(f.data, func(i, k int) bool {
		return f.data[i].Height < f.data[k].Height
	})

	return nil
}

func (f *blockFetch) Remaining() model.Positions {
	return append(model.Positions(nil), f.data...)
}

func (f *blockFetch) Next(now time.Time) (*wire.MsgGetData, error) {
	if err := f.checkRequest("block"); err != nil {
		return nil, err
	}

	msg := wire.NewMsgGetData()

	for _, p := range f.data {
		if len(msg.InvList) >= f.maxBatch {
			break
		}

		if _, ok := f.rejected[p.Hash]; ok {
			continue
		}

		hash := p.Hash
		msg.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
		f.requested[p.Hash] = p
	}

	if len(msg.InvList) == 0 {
		// everything left was refused by this peer
		f.Abandon()
		return nil, errors.NewJobAbandonedError("peer cannot deliver the %d remaining blocks", len(f.data))
	}

	f.markRequested(now)

	return msg, nil
}

func (f *blockFetch) match(hash chainhash.Hash) (model.Position, error) {
	if !f.pending {
		return model.Position{}, unsolicited("block")
	}

	p, ok := f.requested[hash]
	if !ok {
		return model.Position{}, unsolicited("block " + hash.String())
	}

	return p, nil
}

func (f *blockFetch) release(hash chainhash.Hash) {
	delete(f.requested, hash)

	if len(f.requested) == 0 {
		f.pending = false
	}
}

func (f *blockFetch) reject(hash chainhash.Hash) {
	f.rejected[hash] = struct{}{}
	f.release(hash)
}

func (f *blockFetch) satisfy(hash chainhash.Hash) {
	f.release(hash)

	for i, p := range f.data {
		if p.Hash == hash {
			f.data = append(f.data[:i:i], f.data[i+1:]...)
			break
		}
	}

	if len(f.data) == 0 {
		f.finish()
	}
}

func (f *blockFetch) NotFound(hash chainhash.Hash) {
	if _, ok := f.requested[hash]; ok {
		f.reject(hash)
	}
}

func (f *blockFetch) Reorg(parent model.Position) {
	data, dropped := truncateAbove(f.data, parent)
	if !dropped {
		return
	}

	f.data = data

	for hash, p := range f.requested {
		if p.Height > parent.Height {
			delete(f.requested, hash)
		}
	}

	if len(f.requested) == 0 {
		f.pending = false
	}

	if len(f.data) == 0 {
		f.Abandon()
	}
}

func (f *blockFetch) validate(msg *wire.MsgBlock, blocks BlockOracle) (model.Position, error) {
	hash := msg.BlockHash()

	p, err := f.match(hash)
	if err != nil {
		return p, err
	}

	if err = blocks.Validate(msg.Raw); err != nil {
		f.reject(hash)
		return p, errors.NewBlockInvalidError("block %s failed validation", p, err)
	}

	return p, nil
}

// BlockJob fetches a flat list of blocks into the block oracle.
type BlockJob struct {
	blockFetch
}

// NewBlockJob returns a job for positions, asking for at most maxBatch
// blocks per getdata.
func NewBlockJob(positions model.Positions, maxBatch int) (*BlockJob, error) {
	j := &BlockJob{}
	if err := j.setup(positions, maxBatch); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *BlockJob) Handle(msg *wire.MsgBlock, blocks BlockOracle) (model.Position, error) {
	p, err := j.validate(msg, blocks)
	if err != nil {
		return p, err
	}

	if err = blocks.AddBitcoin(p.Hash, msg.Raw); err != nil {
		j.reject(p.Hash)
		return p, errors.NewStorageError("failed to store block %s", p, err)
	}

	j.satisfy(p.Hash)

	return p, nil
}

// BlockBatch fetches the blocks of an externally managed batch and hands
// each one back through the batch handle.
type BlockBatch struct {
	blockFetch

	handle BatchHandle
}

// NewBlockBatch returns a tracker for handle.
func NewBlockBatch(handle BatchHandle, maxBatch int) (*BlockBatch, error) {
	b := &BlockBatch{handle: handle}
	if err := b.setup(handle.Positions(), maxBatch); err != nil {
		return nil, err
	}

	return b, nil
}

// BatchHandle returns the batch handle.
func (b *BlockBatch) BatchHandle() BatchHandle {
	return b.handle
}

func (b *BlockBatch) Handle(msg *wire.MsgBlock, blocks BlockOracle) (model.Position, error) {
	p, err := b.validate(msg, blocks)
	if err != nil {
		return p, err
	}

	if err = b.handle.Deliver(p, msg.Raw); err != nil {
		b.reject(p.Hash)
		return p, errors.NewProcessingError("batch refused block %s", p, err)
	}

	b.satisfy(p.Hash)

	return p, nil
}

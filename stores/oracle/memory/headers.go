package memory

import (
	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/util"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

func (o *Oracle) tip() *node {
	return o.best[len(o.best)-1]
}

// onBest reports whether n is part of the best chain. Callers hold mu.
func (o *Oracle) onBest(n *node) bool {
	return int(n.height) < len(o.best) && o.best[n.height] == n
}

func (o *Oracle) LoadHeader(hash chainhash.Hash) (wire.BlockHeader, int32, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n, ok := o.index.Get(hash)
	if !ok {
		return wire.BlockHeader{}, 0, errors.NewNotFoundError("header %s not found", hash)
	}

	return n.header, n.height, nil
}

func (o *Oracle) BestPosition() model.Position {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.tip().position()
}

// BestHashes returns best chain hashes from start. A stop hash that is not
// on the best chain is treated as the tip.
func (o *Oracle) BestHashes(start int32, stop chainhash.Hash, limit int) []chainhash.Hash {
	o.mu.RLock()
	defer o.mu.RUnlock()

	end := o.tip().height

	if n, ok := o.index.Get(stop); ok && o.onBest(n) {
		end = n.height
	}

	if start < 0 {
		start = 0
	}

	var hashes []chainhash.Hash

	for h := start; h <= end && len(hashes) < limit; h++ {
		hashes = append(hashes, o.best[h].hash)
	}

	return hashes
}

// Ancestors walks back from to, which need not be on the best chain.
func (o *Oracle) Ancestors(fromHeight int32, to chainhash.Hash) (model.Positions, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n, ok := o.index.Get(to)
	if !ok {
		return nil, errors.NewNotFoundError("header %s not found", to)
	}

	if fromHeight < 0 || fromHeight > n.height {
		return nil, errors.NewInvalidArgumentError("height %d is not below %s", fromHeight, n.position())
	}

	positions := make(model.Positions, n.height-fromHeight+1)

	for ; n != nil && n.height >= fromHeight; n = n.parent {
		positions[n.height-fromHeight] = n.position()
	}

	return positions, nil
}

// OnBestChain reports whether hash is a best chain block.
func (o *Oracle) OnBestChain(hash chainhash.Hash) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n, ok := o.index.Get(hash)

	return ok && o.onBest(n)
}

// FindFork returns the highest best chain block that hash descends from.
func (o *Oracle) FindFork(hash chainhash.Hash) (model.Position, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n, ok := o.index.Get(hash)
	if !ok {
		return model.Position{}, errors.NewNotFoundError("header %s not found", hash)
	}

	for !o.onBest(n) {
		n = n.parent
	}

	return n.position(), nil
}

// AddHeaders connects headers to the tree in order. Known headers are
// skipped. A header whose parent is unknown stops the batch with
// ERR_BLOCK_NOT_FOUND; one that contradicts the checkpoint with
// ERR_CHECKPOINT_MISMATCH, which costs the peer its connection.
func (o *Oracle) AddHeaders(headers []wire.BlockHeader) (model.Position, model.Positions, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var added model.Positions

	for i := range headers {
		n, err := o.connect(headers[i])
		if err != nil {
			return o.tip().position(), added, err
		}

		if n == nil {
			continue
		}

		added = append(added, n.position())

		if n.work.Cmp(o.tip().work) > 0 {
			o.setBest(n)
		}
	}

	return o.tip().position(), added, nil
}

// connect adds one header. It returns nil for a header already known.
func (o *Oracle) connect(header wire.BlockHeader) (*node, error) {
	hash := header.Hash()
	if o.index.Has(hash) {
		return nil, nil
	}

	parent, ok := o.index.Get(header.PrevHash())
	if !ok {
		return nil, errors.NewBlockNotFoundError("header %s does not connect: parent %s unknown", hash, header.PrevHash())
	}

	parsed, err := header.Parse()
	if err != nil {
		return nil, errors.NewBlockInvalidError("header %s", hash, err)
	}

	height := parent.height + 1

	if height == o.checkpoint.Height && hash != o.checkpoint.BlockHash {
		return nil, errors.NewCheckpointMismatchError("header %s at height %d contradicts %s", hash, height, o.checkpoint)
	}

	n := &node{
		header: header,
		hash:   hash,
		height: height,
		parent: parent,
		work:   util.BlockWork(parsed.Bits),
	}
	n.work.Add(n.work, parent.work)

	o.index.Put(hash, n)

	return n, nil
}

// setBest makes n the tip, replacing the best chain above the fork.
func (o *Oracle) setBest(n *node) {
	var branch []*node

	fork := n
	for !o.onBest(fork) {
		branch = append(branch, fork)
		fork = fork.parent
	}

	if fork != o.tip() {
		o.logger.Infof("[MemoryOracle] reorg from %s to %s at %s", o.tip().position(), n.position(), fork.position())

		for ft, h := range o.headerCursor {
			o.headerCursor[ft] = min(h, fork.height+1)
		}

		for ft, h := range o.filterCursor {
			o.filterCursor[ft] = min(h, fork.height+1)
		}

		o.blockCursor = min(o.blockCursor, fork.height+1)
	}

	o.best = o.best[:fork.height+1]

	for i := len(branch) - 1; i >= 0; i-- {
		o.best = append(o.best, branch[i])
	}
}

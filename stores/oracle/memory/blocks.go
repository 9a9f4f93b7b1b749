package memory

import (
	"bytes"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// merkleRootOffset is where the merkle root sits in a serialized header,
// after the version and the previous block hash.
const merkleRootOffset = 4 + chainhash.HashSize

// LoadBitcoin returns a future for the block. Futures for blocks that never
// arrive are dropped after waiterTTL.
func (o *Oracle) LoadBitcoin(hash chainhash.Hash) <-chan []byte {
	ch := make(chan []byte, 1)

	o.waitMu.Lock()
	defer o.waitMu.Unlock()

	if block, ok := o.blocks.Get(hash); ok {
		ch <- block
		close(ch)

		return ch
	}

	var waiting []chan []byte
	if item := o.waiters.Get(hash); item != nil {
		waiting = item.Value()
	}

	o.waiters.Set(hash, append(waiting, ch), waiterTTL)

	return ch
}

// Validate checks that the block extends a known header and that its
// transactions parse and commit to the header's merkle root.
func (o *Oracle) Validate(block []byte) error {
	if len(block) < wire.BlockHeaderLen {
		return errors.NewBlockInvalidError("block is %d bytes", len(block))
	}

	header, err := wire.NewBlockHeaderFromBytes(block[:wire.BlockHeaderLen])
	if err != nil {
		return errors.NewBlockInvalidError("bad block header", err)
	}

	hash := header.Hash()

	if _, _, err = o.LoadHeader(hash); err != nil {
		return errors.NewBlockInvalidError("block %s has no known header", hash, err)
	}

	txids, err := readTxIDs(block[wire.BlockHeaderLen:])
	if err != nil {
		return errors.NewBlockInvalidError("block %s", hash, err)
	}

	var committed chainhash.Hash

	copy(committed[:], header[merkleRootOffset:merkleRootOffset+chainhash.HashSize])

	if root := merkleRoot(txids); root != committed {
		return errors.NewBlockInvalidError("block %s merkle root %s, header has %s", hash, root, committed)
	}

	return nil
}

// AddBitcoin stores a block and resolves every future waiting for it.
func (o *Oracle) AddBitcoin(hash chainhash.Hash, block []byte) error {
	o.waitMu.Lock()
	defer o.waitMu.Unlock()

	o.blocks.Set(hash, block)

	if item := o.waiters.Get(hash); item != nil {
		for _, ch := range item.Value() {
			ch <- block
			close(ch)
		}

		o.waiters.Delete(hash)
	}

	return nil
}

// MissingBlocks returns up to limit best chain blocks, lowest first, that
// are not stored yet.
func (o *Oracle) MissingBlocks(limit int) model.Positions {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.blockCursor
	for int(start) < len(o.best) && o.blocks.Exists(o.best[start].hash) {
		start++
	}

	o.blockCursor = start

	var missing model.Positions

	for h := start; int(h) < len(o.best) && len(missing) < limit; h++ {
		if !o.blocks.Exists(o.best[h].hash) {
			missing = append(missing, o.best[h].position())
		}
	}

	return missing
}

func readTxIDs(b []byte) ([]chainhash.Hash, error) {
	r := bytes.NewReader(b)

	count, err := wire.ReadCompactSize(r)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, errors.NewBlockInvalidError("block has no transactions")
	}

	// every transaction is at least ten bytes
	if count > uint64(r.Len())/10 {
		return nil, errors.NewBlockInvalidError("block claims %d transactions in %d bytes", count, r.Len())
	}

	rest := b[len(b)-r.Len():]
	txids := make([]chainhash.Hash, 0, count)

	for i := uint64(0); i < count; i++ {
		_, size, err := bt.NewTxFromStream(rest)
		if err != nil {
			return nil, errors.NewBlockInvalidError("transaction %d does not parse", i, err)
		}

		txids = append(txids, chainhash.DoubleHashH(rest[:size]))
		rest = rest[size:]
	}

	if len(rest) != 0 {
		return nil, errors.NewBlockInvalidError("%d trailing bytes after transactions", len(rest))
	}

	return txids, nil
}

// merkleRoot folds txids pairwise, duplicating the last hash of an odd
// level.
func merkleRoot(txids []chainhash.Hash) chainhash.Hash {
	level := append([]chainhash.Hash(nil), txids...)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := level[:0]

		for i := 0; i < len(level); i += 2 {
			var buf [2 * chainhash.HashSize]byte

			copy(buf[:chainhash.HashSize], level[i][:])
			copy(buf[chainhash.HashSize:], level[i+1][:])

			next = append(next, chainhash.DoubleHashH(buf[:]))
		}

		level = next
	}

	return level[0]
}

package netsync

import (
	"testing"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	gowire "github.com/bsv-blockchain/go-wire"
)

// testChain is a linear header chain with filters attached to every block.
type testChain struct {
	headers  []wire.BlockHeader
	heights  map[chainhash.Hash]int32
	filters  map[chainhash.Hash][]byte
	fHeaders map[chainhash.Hash]chainhash.Hash
	added    [][]wire.BlockHeader
}

func newTestChain(t *testing.T, n int) *testChain {
	t.Helper()

	c := &testChain{
		heights:  make(map[chainhash.Hash]int32),
		filters:  make(map[chainhash.Hash][]byte),
		fHeaders: make(map[chainhash.Hash]chainhash.Hash),
	}

	prev := chainhash.Hash{}
	prevFilterHeader := chainhash.Hash{}

	for i := 0; i < n; i++ {
		wh := &gowire.BlockHeader{Version: 1, PrevBlock: prev, Nonce: uint32(i)} //nolint:gosec // test heights

		h, err := wire.NewBlockHeaderFromWire(wh)
		if err != nil {
			t.Fatal(err)
		}

		hash := h.Hash()
		filter := []byte{byte(i), 0xaa}

		c.headers = append(c.headers, h)
		c.heights[hash] = int32(i) //nolint:gosec // test heights
		c.filters[hash] = filter
		prevFilterHeader = model.NextFilterHeader(model.FilterHash(filter), prevFilterHeader)
		c.fHeaders[hash] = prevFilterHeader
		prev = hash
	}

	return c
}

func (c *testChain) position(height int) model.Position {
	return model.Position{Height: int32(height), Hash: c.headers[height].Hash()} //nolint:gosec // test heights
}

func (c *testChain) positions(from, to int) model.Positions {
	ps := make(model.Positions, 0, to-from+1)
	for i := from; i <= to; i++ {
		ps = append(ps, c.position(i))
	}

	return ps
}

func (c *testChain) LoadHeader(hash chainhash.Hash) (wire.BlockHeader, int32, error) {
	height, ok := c.heights[hash]
	if !ok {
		return wire.BlockHeader{}, 0, errors.NewNotFoundError("header %s", hash)
	}

	return c.headers[height], height, nil
}

func (c *testChain) BestHashes(start int32, _ chainhash.Hash, limit int) []chainhash.Hash {
	var hashes []chainhash.Hash

	for h := int(start); h < len(c.headers) && len(hashes) < limit; h++ {
		hashes = append(hashes, c.headers[h].Hash())
	}

	return hashes
}

func (c *testChain) Ancestors(fromHeight int32, to chainhash.Hash) (model.Positions, error) {
	height, ok := c.heights[to]
	if !ok {
		return nil, errors.NewNotFoundError("header %s", to)
	}

	return c.positions(int(fromHeight), int(height)), nil
}

func (c *testChain) GetDefaultCheckpoint() model.Checkpoint {
	return model.Checkpoint{Height: 0, BlockHash: c.headers[0].Hash(), FilterHeader: c.fHeaders[c.headers[0].Hash()]}
}

func (c *testChain) BestPosition() model.Position {
	return c.position(len(c.headers) - 1)
}

func (c *testChain) AddHeaders(headers []wire.BlockHeader) (model.Position, model.Positions, error) {
	c.added = append(c.added, headers)
	return c.BestPosition(), nil, nil
}

func (c *testChain) LoadFilter(_ model.FilterType, hash chainhash.Hash) ([]byte, error) {
	f, ok := c.filters[hash]
	if !ok {
		return nil, errors.NewNotFoundError("filter %s", hash)
	}

	return f, nil
}

func (c *testChain) LoadFilterHeader(_ model.FilterType, hash chainhash.Hash) (chainhash.Hash, error) {
	h, ok := c.fHeaders[hash]
	if !ok {
		return chainhash.Hash{}, errors.NewNotFoundError("filter header %s", hash)
	}

	return h, nil
}

func (c *testChain) AddFilterHeaders(model.FilterType, model.Positions, []chainhash.Hash, []chainhash.Hash) error {
	return nil
}

func (c *testChain) AddFilter(model.FilterType, chainhash.Hash, []byte) error {
	return nil
}

// cfheaders builds the honest answer for positions.
func (c *testChain) cfheaders(ps model.Positions) *wire.MsgCFHeaders {
	msg := &wire.MsgCFHeaders{FilterType: model.FilterTypeBasic, StopHash: ps.Last().Hash}

	if ps.First().Height > 0 {
		msg.PrevFilterHeader = c.fHeaders[c.headers[ps.First().Height-1].Hash()]
	}

	for _, p := range ps {
		fh := model.FilterHash(c.filters[p.Hash])
		msg.AddCFHash(&fh)
	}

	return msg
}

// emptyFilters knows no filter headers, so nothing can be cross-checked.
type emptyFilters struct {
	*testChain
}

func (emptyFilters) LoadFilterHeader(model.FilterType, chainhash.Hash) (chainhash.Hash, error) {
	return chainhash.Hash{}, errors.NewNotFoundError("no filter headers")
}

type testBlocks struct {
	invalid map[chainhash.Hash]bool
	stored  map[chainhash.Hash][]byte
}

func newTestBlocks() *testBlocks {
	return &testBlocks{invalid: make(map[chainhash.Hash]bool), stored: make(map[chainhash.Hash][]byte)}
}

func (b *testBlocks) LoadBitcoin(hash chainhash.Hash) <-chan []byte {
	ch := make(chan []byte, 1)
	if blk, ok := b.stored[hash]; ok {
		ch <- blk
	}

	return ch
}

func (b *testBlocks) Validate(block []byte) error {
	msg := &wire.MsgBlock{Raw: block}
	if b.invalid[msg.BlockHash()] {
		return errors.NewBlockInvalidError("invalid")
	}

	return nil
}

func (b *testBlocks) AddBitcoin(hash chainhash.Hash, block []byte) error {
	b.stored[hash] = block
	return nil
}

func (c *testChain) block(height int) *wire.MsgBlock {
	return &wire.MsgBlock{Raw: append(append([]byte(nil), c.headers[height][:]...), 0x00)}
}

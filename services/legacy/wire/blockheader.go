package wire

import (
	"bytes"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	gowire "github.com/bsv-blockchain/go-wire"
)

// BlockHeaderLen is the serialized size of a block header.
const BlockHeaderLen = 80

// BlockHeader is a block header kept in its serialized form. The engine only
// needs its hash and parent; the full field set is available via Parse.
type BlockHeader [BlockHeaderLen]byte

// NewBlockHeaderFromBytes copies an 80 byte header.
func NewBlockHeaderFromBytes(b []byte) (BlockHeader, error) {
	var h BlockHeader

	if len(b) != BlockHeaderLen {
		return h, errors.NewWireFormatError("block header is %d bytes, expected %d", len(b), BlockHeaderLen)
	}

	copy(h[:], b)

	return h, nil
}

// NewBlockHeaderFromWire serializes a go-wire header.
func NewBlockHeaderFromWire(wh *gowire.BlockHeader) (BlockHeader, error) {
	var buf bytes.Buffer

	if err := wh.Serialize(&buf); err != nil {
		return BlockHeader{}, errors.NewWireFormatError("failed to serialize block header", err)
	}

	return NewBlockHeaderFromBytes(buf.Bytes())
}

// Hash returns the double-SHA256 of the header.
func (h *BlockHeader) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(h[:])
}

// PrevHash returns the hash of the parent block.
func (h *BlockHeader) PrevHash() chainhash.Hash {
	var prev chainhash.Hash
	copy(prev[:], h[4:4+chainhash.HashSize])

	return prev
}

// Parse decodes every header field.
func (h *BlockHeader) Parse() (*gowire.BlockHeader, error) {
	wh := &gowire.BlockHeader{}
	if err := wh.Deserialize(bytes.NewReader(h[:])); err != nil {
		return nil, errors.NewWireFormatError("failed to parse block header", err)
	}

	return wh, nil
}

package wire

import (
	"bytes"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// MaxBlockLocatorsPerMsg is the maximum number of locator hashes accepted
// in a getheaders or getblocks message.
const MaxBlockLocatorsPerMsg = 101

// BlockLocator is the body shared by getheaders and getblocks: a protocol
// version, hashes of known blocks from newest to oldest, and a stop hash.
// A zero stop hash asks for as many items as the remote will send.
type BlockLocator struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

// AddBlockLocatorHash appends hash, failing once the locator is full.
func (l *BlockLocator) AddBlockLocatorHash(hash *chainhash.Hash) bool {
	if len(l.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return false
	}

	l.BlockLocatorHashes = append(l.BlockLocatorHashes, hash)

	return true
}

func (l *BlockLocator) encode(buf *bytes.Buffer) {
	writeUint32(buf, l.ProtocolVersion)
	writeCount(buf, len(l.BlockLocatorHashes))

	for _, hash := range l.BlockLocatorHashes {
		buf.Write(hash[:])
	}

	buf.Write(l.HashStop[:])
}

func decodeLocator(r *payloadReader) (BlockLocator, error) {
	var l BlockLocator

	v, err := r.readUint32("protocol version")
	if err != nil {
		return l, err
	}

	l.ProtocolVersion = v

	n, err := r.count(MaxBlockLocatorsPerMsg, chainhash.HashSize, "locator hashes")
	if err != nil {
		return l, err
	}

	l.BlockLocatorHashes = make([]*chainhash.Hash, 0, n)

	for i := 0; i < n; i++ {
		hash, err := r.readHash("locator hash")
		if err != nil {
			return l, err
		}

		l.BlockLocatorHashes = append(l.BlockLocatorHashes, &hash)
	}

	if l.HashStop, err = r.readHash("stop hash"); err != nil {
		return l, err
	}

	return l, nil
}

// MsgGetHeaders requests headers following the first locator hash the
// remote recognises.
type MsgGetHeaders struct {
	BlockLocator
}

// NewMsgGetHeaders returns a getheaders with the current protocol version.
func NewMsgGetHeaders(locator []*chainhash.Hash, stop chainhash.Hash) *MsgGetHeaders {
	return &MsgGetHeaders{BlockLocator{
		ProtocolVersion:    ProtocolVersion,
		BlockLocatorHashes: locator,
		HashStop:           stop,
	}}
}

func (msg *MsgGetHeaders) Command() Command {
	return CmdGetHeaders
}

// MsgGetBlocks requests block inventory following the first locator hash
// the remote recognises.
type MsgGetBlocks struct {
	BlockLocator
}

func (msg *MsgGetBlocks) Command() Command {
	return CmdGetBlocks
}

package wire

import (
	"bytes"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// minBlockPayload is a header plus a one byte transaction count.
const minBlockPayload = BlockHeaderLen + 1

// MsgBlock carries a serialized block. The engine does not interpret the
// transactions; validation is left to the block oracle.
type MsgBlock struct {
	Raw []byte
}

// Header returns the block's header.
func (msg *MsgBlock) Header() BlockHeader {
	var h BlockHeader
	copy(h[:], msg.Raw)

	return h
}

// BlockHash returns the hash of the block's header.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	h := msg.Header()
	return h.Hash()
}

func (msg *MsgBlock) Command() Command {
	return CmdBlock
}

func (msg *MsgBlock) encode(buf *bytes.Buffer) {
	buf.Write(msg.Raw)
}

func decodeBlock(r *payloadReader) (*MsgBlock, error) {
	if err := r.need(minBlockPayload, "block"); err != nil {
		return nil, err
	}

	raw, _ := r.readBytes(r.remaining(), "block")

	return &MsgBlock{Raw: raw}, nil
}

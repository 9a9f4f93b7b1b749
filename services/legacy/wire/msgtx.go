package wire

import (
	"bytes"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// minTxPayload is version, empty input and output counts and lock time.
const minTxPayload = 4 + 1 + 1 + 4

// MsgTx carries a serialized transaction.
type MsgTx struct {
	Raw []byte
}

// NewMsgTx wraps a go-bt transaction.
func NewMsgTx(tx *bt.Tx) *MsgTx {
	return &MsgTx{Raw: tx.Bytes()}
}

// TxID returns the transaction hash.
func (msg *MsgTx) TxID() chainhash.Hash {
	return chainhash.DoubleHashH(msg.Raw)
}

// Tx parses the transaction.
func (msg *MsgTx) Tx() (*bt.Tx, error) {
	tx, err := bt.NewTxFromBytes(msg.Raw)
	if err != nil {
		return nil, errors.NewTxInvalidError("failed to parse transaction", err)
	}

	return tx, nil
}

func (msg *MsgTx) Command() Command {
	return CmdTx
}

func (msg *MsgTx) encode(buf *bytes.Buffer) {
	buf.Write(msg.Raw)
}

func decodeTx(r *payloadReader) (*MsgTx, error) {
	if err := r.need(minTxPayload, "transaction"); err != nil {
		return nil, err
	}

	raw, _ := r.readBytes(r.remaining(), "transaction")

	return &MsgTx{Raw: raw}, nil
}

package wire

import "bytes"

// MsgFeeFilter asks the remote not to announce transactions paying less than
// MinFee satoshis per kilobyte.
type MsgFeeFilter struct {
	MinFee int64
}

// NewMsgFeeFilter returns a feefilter for minfee.
func NewMsgFeeFilter(minfee int64) *MsgFeeFilter {
	return &MsgFeeFilter{MinFee: minfee}
}

func (msg *MsgFeeFilter) Command() Command {
	return CmdFeeFilter
}

func (msg *MsgFeeFilter) encode(buf *bytes.Buffer) {
	writeUint64(buf, uint64(msg.MinFee)) //nolint:gosec // two's complement on the wire
}

func decodeFeeFilter(r *payloadReader) (*MsgFeeFilter, error) {
	fee, err := r.readUint64("minimum fee")
	if err != nil {
		return nil, err
	}

	return &MsgFeeFilter{MinFee: int64(fee)}, nil //nolint:gosec // two's complement on the wire
}

package wire

import "bytes"

// MaxBlockHeadersPerMsg is the maximum number of headers in a single
// headers message.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders delivers block headers. Each header is followed on the wire by
// a transaction count which must be zero.
type MsgHeaders struct {
	Headers []BlockHeader
}

// AddBlockHeader appends h, failing once the message is full.
func (msg *MsgHeaders) AddBlockHeader(h BlockHeader) bool {
	if len(msg.Headers)+1 > MaxBlockHeadersPerMsg {
		return false
	}

	msg.Headers = append(msg.Headers, h)

	return true
}

func (msg *MsgHeaders) Command() Command {
	return CmdHeaders
}

func (msg *MsgHeaders) encode(buf *bytes.Buffer) {
	writeCount(buf, len(msg.Headers))

	for i := range msg.Headers {
		buf.Write(msg.Headers[i][:])
		buf.WriteByte(0)
	}
}

func decodeHeaders(r *payloadReader) (*MsgHeaders, error) {
	n, err := r.count(MaxBlockHeadersPerMsg, BlockHeaderLen+1, "headers")
	if err != nil {
		return nil, err
	}

	msg := &MsgHeaders{Headers: make([]BlockHeader, n)}

	for i := 0; i < n; i++ {
		if err = r.fixed(msg.Headers[i][:], "block header"); err != nil {
			return nil, err
		}

		txCount, err := ReadCompactSize(r.r)
		if err != nil {
			return nil, r.fail("header transaction count", err)
		}

		if txCount != 0 {
			return nil, r.fail("header %d carries %d transactions", i, txCount)
		}
	}

	return msg, nil
}

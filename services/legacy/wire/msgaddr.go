package wire

import "bytes"

// MaxAddrPerMsg is the maximum number of addresses in a single addr message.
const MaxAddrPerMsg = 1000

// MsgAddr relays known peer addresses.
type MsgAddr struct {
	AddrList []*NetAddress
}

// AddAddress adds na, failing once the message is full.
func (msg *MsgAddr) AddAddress(na *NetAddress) bool {
	if len(msg.AddrList)+1 > MaxAddrPerMsg {
		return false
	}

	msg.AddrList = append(msg.AddrList, na)

	return true
}

func (msg *MsgAddr) Command() Command {
	return CmdAddr
}

func (msg *MsgAddr) encode(buf *bytes.Buffer) {
	writeCount(buf, len(msg.AddrList))

	for _, na := range msg.AddrList {
		na.encode(buf, true)
	}
}

func decodeAddr(r *payloadReader) (*MsgAddr, error) {
	n, err := r.count(MaxAddrPerMsg, timestampedNetAddressSize, "addresses")
	if err != nil {
		return nil, err
	}

	msg := &MsgAddr{AddrList: make([]*NetAddress, 0, n)}

	for i := 0; i < n; i++ {
		na, err := decodeNetAddress(r, true, "address")
		if err != nil {
			return nil, err
		}

		msg.AddrList = append(msg.AddrList, na)
	}

	return msg, nil
}

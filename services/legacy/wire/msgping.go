package wire

import "bytes"

// MsgPing carries a nonce the remote echoes back in a pong.
type MsgPing struct {
	Nonce uint64
}

// NewMsgPing returns a ping carrying nonce.
func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}

func (msg *MsgPing) Command() Command {
	return CmdPing
}

func (msg *MsgPing) encode(buf *bytes.Buffer) {
	writeUint64(buf, msg.Nonce)
}

func decodePing(r *payloadReader) (*MsgPing, error) {
	nonce, err := r.readUint64("nonce")
	if err != nil {
		return nil, err
	}

	return &MsgPing{Nonce: nonce}, nil
}

// MsgPong answers a ping with the same nonce.
type MsgPong struct {
	Nonce uint64
}

// NewMsgPong returns a pong carrying nonce.
func NewMsgPong(nonce uint64) *MsgPong {
	return &MsgPong{Nonce: nonce}
}

func (msg *MsgPong) Command() Command {
	return CmdPong
}

func (msg *MsgPong) encode(buf *bytes.Buffer) {
	writeUint64(buf, msg.Nonce)
}

func decodePong(r *payloadReader) (*MsgPong, error) {
	nonce, err := r.readUint64("nonce")
	if err != nil {
		return nil, err
	}

	return &MsgPong{Nonce: nonce}, nil
}

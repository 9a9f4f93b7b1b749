package wire

import "bytes"

// MsgUnknown keeps a message whose command is not understood. The peer
// ignores these; they are kept for logging and for forwarding tools.
type MsgUnknown struct {
	Name string
	Raw  []byte
}

func (msg *MsgUnknown) Command() Command {
	return CmdUnknown
}

func (msg *MsgUnknown) encode(buf *bytes.Buffer) {
	buf.Write(msg.Raw)
}

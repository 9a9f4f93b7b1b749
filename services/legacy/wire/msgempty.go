package wire

import "bytes"

// MsgVerAck acknowledges a version message. It has no payload.
type MsgVerAck struct{}

func (msg *MsgVerAck) Command() Command {
	return CmdVerAck
}

func (msg *MsgVerAck) encode(_ *bytes.Buffer) {}

// MsgMemPool asks the remote to announce its mempool. It has no payload.
type MsgMemPool struct{}

func (msg *MsgMemPool) Command() Command {
	return CmdMemPool
}

func (msg *MsgMemPool) encode(_ *bytes.Buffer) {}

// MsgGetAddr asks the remote for known addresses. It has no payload.
type MsgGetAddr struct{}

func (msg *MsgGetAddr) Command() Command {
	return CmdGetAddr
}

func (msg *MsgGetAddr) encode(_ *bytes.Buffer) {}

// MsgSendHeaders asks the remote to announce new blocks with headers
// instead of inv. It has no payload.
type MsgSendHeaders struct{}

func (msg *MsgSendHeaders) Command() Command {
	return CmdSendHeaders
}

func (msg *MsgSendHeaders) encode(_ *bytes.Buffer) {}

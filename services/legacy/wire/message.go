package wire

import (
	"bytes"

	"github.com/bsv-blockchain/cfpeer/errors"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// Payload is implemented by every typed message body. The set of
// implementations is closed; Decode picks one from the header's command.
type Payload interface {
	Command() Command
	encode(buf *bytes.Buffer)
}

// Message is one immutable wire unit. The checksum is computed when the
// message is built and is never re-derived when it is sent.
type Message struct {
	Command Command
	Network uint32
	Payload Payload

	name     string
	raw      []byte
	checksum [4]byte
}

// NewMessage serializes payload for network and computes its checksum.
func NewMessage(network uint32, payload Payload) (*Message, error) {
	var buf bytes.Buffer

	payload.encode(&buf)

	if uint64(buf.Len()) > MaxMessagePayload {
		return nil, errors.NewWireFormatError("%s payload of %d bytes is too large", payload.Command(), buf.Len())
	}

	name := payload.Command().String()
	if u, ok := payload.(*MsgUnknown); ok {
		name = u.Name
	}

	if len(name) > CommandSize {
		return nil, errors.NewWireFormatError("command %q is longer than %d bytes", name, CommandSize)
	}

	raw := buf.Bytes()

	return &Message{
		Command:  payload.Command(),
		Network:  network,
		Payload:  payload,
		name:     name,
		raw:      raw,
		checksum: Checksum(raw),
	}, nil
}

// Name returns the command as it appears on the wire.
func (m *Message) Name() string {
	return m.name
}

// Checksum returns the checksum computed when the message was built.
func (m *Message) Checksum() [4]byte {
	return m.checksum
}

// Header returns the serialized 24-byte message header.
func (m *Message) Header() []byte {
	length, _ := safeconversion.IntToUint32(len(m.raw))

	h := MessageHeader{
		Magic:    m.Network,
		Command:  m.name,
		Length:   length,
		Checksum: m.checksum,
	}

	return h.Bytes()
}

// PayloadBytes returns the serialized payload. Callers must not modify it.
func (m *Message) PayloadBytes() []byte {
	return m.raw
}

// Bytes returns the header followed by the payload.
func (m *Message) Bytes() []byte {
	b := make([]byte, 0, MessageHeaderSize+len(m.raw))
	b = append(b, m.Header()...)

	return append(b, m.raw...)
}

// Decode parses a framed message. The checksum is verified against the
// payload before any field of the payload is read.
func Decode(header, payload []byte) (*Message, error) {
	h, err := ParseHeader(header)
	if err != nil {
		return nil, err
	}

	return DecodePayload(h, payload)
}

// DecodePayload is Decode for a header that was already parsed.
func DecodePayload(h *MessageHeader, payload []byte) (*Message, error) {
	if uint64(h.Length) != uint64(len(payload)) {
		return nil, errors.NewWireFormatError("header declares %d payload bytes for %s, got %d", h.Length, h.Command, len(payload))
	}

	sum := Checksum(payload)
	if sum != h.Checksum {
		return nil, errors.NewWireChecksumError("checksum mismatch for %s: header %x, payload %x", h.Command, h.Checksum, sum)
	}

	cmd := ParseCommand(h.Command)

	p, err := decodePayload(cmd, h.Command, payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Command:  cmd,
		Network:  h.Magic,
		Payload:  p,
		name:     h.Command,
		raw:      payload,
		checksum: sum,
	}, nil
}

// decodePayload decodes payload as cmd and rejects bytes left over. Only
// version may carry trailing fields, which newer nodes append after relay.
func decodePayload(cmd Command, name string, payload []byte) (Payload, error) {
	r := newPayloadReader(cmd, payload)

	p, err := decodeFields(r, cmd, name, payload)
	if err != nil {
		return nil, err
	}

	if cmd != CmdVersion && r.remaining() > 0 {
		if _, unknown := p.(*MsgUnknown); !unknown {
			return nil, r.fail("%d trailing bytes", r.remaining())
		}
	}

	return p, nil
}

func decodeFields(r *payloadReader, cmd Command, name string, payload []byte) (Payload, error) {
	switch cmd {
	case CmdVersion:
		return decodeVersion(r)
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdPing:
		return decodePing(r)
	case CmdPong:
		return decodePong(r)
	case CmdInv:
		list, err := decodeInvList(r)
		return &MsgInv{InvList: list}, err
	case CmdGetData:
		list, err := decodeInvList(r)
		return &MsgGetData{InvList: list}, err
	case CmdNotFound:
		list, err := decodeInvList(r)
		return &MsgNotFound{InvList: list}, err
	case CmdGetHeaders:
		l, err := decodeLocator(r)
		return &MsgGetHeaders{BlockLocator: l}, err
	case CmdGetBlocks:
		l, err := decodeLocator(r)
		return &MsgGetBlocks{BlockLocator: l}, err
	case CmdHeaders:
		return decodeHeaders(r)
	case CmdBlock:
		return decodeBlock(r)
	case CmdTx:
		return decodeTx(r)
	case CmdMemPool:
		return &MsgMemPool{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdAddr:
		return decodeAddr(r)
	case CmdReject:
		return decodeReject(r)
	case CmdSendHeaders:
		return &MsgSendHeaders{}, nil
	case CmdFeeFilter:
		return decodeFeeFilter(r)
	case CmdGetCFilters:
		q, err := decodeFilterQuery(r)
		return &MsgGetCFilters{FilterQuery: q}, err
	case CmdCFilter:
		return decodeCFilter(r)
	case CmdGetCFHeaders:
		q, err := decodeFilterQuery(r)
		return &MsgGetCFHeaders{FilterQuery: q}, err
	case CmdCFHeaders:
		return decodeCFHeaders(r)
	case CmdGetCFCheckpt:
		return decodeGetCFCheckpt(r)
	case CmdCFCheckpt:
		return decodeCFCheckpt(r)
	case CmdUnknown, numCommands:
		return &MsgUnknown{Name: name, Raw: payload}, nil
	default:
		return &MsgUnknown{Name: name, Raw: payload}, nil
	}
}

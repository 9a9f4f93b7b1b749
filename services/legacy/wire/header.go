package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

const (
	// MessageHeaderSize is the number of bytes in a message header:
	// magic 4 bytes + command 12 bytes + payload length 4 bytes +
	// checksum 4 bytes.
	MessageHeaderSize = 24

	// CommandSize is the fixed size of the command field in a message header.
	CommandSize = 12

	// MaxMessagePayload is the largest payload length the header can express.
	MaxMessagePayload = 0xffffffff
)

// MessageHeader is the decoded form of the fixed 24-byte message header.
type MessageHeader struct {
	Magic    uint32
	Command  string
	Length   uint32
	Checksum [4]byte
}

// Checksum returns the first four bytes of the double-SHA256 of payload.
func Checksum(payload []byte) [4]byte {
	var sum [4]byte
	copy(sum[:], chainhash.DoubleHashB(payload))

	return sum
}

// Bytes serializes the header.
func (h *MessageHeader) Bytes() []byte {
	b := make([]byte, MessageHeaderSize)

	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	copy(b[4:4+CommandSize], h.Command)
	binary.LittleEndian.PutUint32(b[16:20], h.Length)
	copy(b[20:24], h.Checksum[:])

	return b
}

// ParseHeader decodes a message header. The command must be printable ASCII
// followed only by null padding.
func ParseHeader(b []byte) (*MessageHeader, error) {
	if len(b) != MessageHeaderSize {
		return nil, errors.NewWireFormatError("message header is %d bytes, expected %d", len(b), MessageHeaderSize)
	}

	raw := b[4 : 4+CommandSize]

	end := bytes.IndexByte(raw, 0)
	if end == -1 {
		end = CommandSize
	}

	if end == 0 {
		return nil, errors.NewWireFormatError("empty command in message header")
	}

	for _, c := range raw[:end] {
		if c < 0x20 || c > 0x7e {
			return nil, errors.NewWireFormatError("non-printable byte 0x%02x in command", c)
		}
	}

	for _, c := range raw[end:] {
		if c != 0 {
			return nil, errors.NewWireFormatError("command %q is not null padded", string(raw[:end]))
		}
	}

	h := &MessageHeader{
		Magic:   binary.LittleEndian.Uint32(b[0:4]),
		Command: string(raw[:end]),
		Length:  binary.LittleEndian.Uint32(b[16:20]),
	}

	copy(h.Checksum[:], b[20:24])

	return h, nil
}

// Validate checks the header belongs to network magic and that its
// declared length is within maxPayload. A zero maxPayload means no limit
// beyond what the header can express.
func (h *MessageHeader) Validate(magic uint32, maxPayload uint32) error {
	if h.Magic != magic {
		return errors.NewProtocolViolationError("message magic 0x%08x does not match network 0x%08x", h.Magic, magic)
	}

	if maxPayload != 0 && h.Length > maxPayload {
		return errors.NewWireFormatError("payload of %d bytes for %s exceeds limit of %d", h.Length, h.Command, maxPayload)
	}

	return nil
}

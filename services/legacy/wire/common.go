package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// payloadReader reads fields out of a fully buffered payload. Every read is
// checked against the bytes that remain, so a hostile length can never cause
// an out of bounds read or an oversized allocation.
type payloadReader struct {
	r   *bytes.Reader
	cmd Command
}

func newPayloadReader(cmd Command, payload []byte) *payloadReader {
	return &payloadReader{r: bytes.NewReader(payload), cmd: cmd}
}

func (p *payloadReader) remaining() int {
	return p.r.Len()
}

func (p *payloadReader) fail(format string, params ...interface{}) error {
	return errors.NewWireFormatError("["+p.cmd.String()+"] "+format, params...)
}

func (p *payloadReader) need(n int, what string) error {
	if n < 0 || p.r.Len() < n {
		return p.fail("truncated %s: need %d bytes, have %d", what, n, p.r.Len())
	}

	return nil
}

func (p *payloadReader) readBytes(n int, what string) ([]byte, error) {
	if err := p.need(n, what); err != nil {
		return nil, err
	}

	b := make([]byte, n)
	_, _ = io.ReadFull(p.r, b)

	return b, nil
}

func (p *payloadReader) fixed(dst []byte, what string) error {
	if err := p.need(len(dst), what); err != nil {
		return err
	}

	_, _ = io.ReadFull(p.r, dst)

	return nil
}

func (p *payloadReader) readUint8(what string) (uint8, error) {
	var b [1]byte
	if err := p.fixed(b[:], what); err != nil {
		return 0, err
	}

	return b[0], nil
}

func (p *payloadReader) readUint16BE(what string) (uint16, error) {
	var b [2]byte
	if err := p.fixed(b[:], what); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b[:]), nil
}

func (p *payloadReader) readUint32(what string) (uint32, error) {
	var b [4]byte
	if err := p.fixed(b[:], what); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b[:]), nil
}

func (p *payloadReader) readUint64(what string) (uint64, error) {
	var b [8]byte
	if err := p.fixed(b[:], what); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

func (p *payloadReader) readHash(what string) (chainhash.Hash, error) {
	var h chainhash.Hash
	err := p.fixed(h[:], what)

	return h, err
}

// count reads a compact-size item count, enforcing both the protocol maximum
// and that count*itemSize bytes are actually present.
func (p *payloadReader) count(maximum uint64, itemSize int, what string) (int, error) {
	n, err := ReadCompactSize(p.r)
	if err != nil {
		return 0, p.fail("%s count", what, err)
	}

	if n > maximum {
		return 0, p.fail("too many %s: %d > %d", what, n, maximum)
	}

	if itemSize > 0 && n > uint64(p.r.Len()/itemSize) {
		return 0, p.fail("%d %s declared but only %d bytes remain", n, what, p.r.Len())
	}

	return int(n), nil //nolint:gosec // bounded by maximum above
}

func (p *payloadReader) varBytes(maximum int, what string) ([]byte, error) {
	n, err := ReadCompactSize(p.r)
	if err != nil {
		return nil, p.fail("%s length", what, err)
	}

	if n > uint64(maximum) { //nolint:gosec // maximum is a positive constant
		return nil, p.fail("%s too long: %d > %d", what, n, maximum)
	}

	return p.readBytes(int(n), what) //nolint:gosec // bounded by maximum above
}

func (p *payloadReader) varString(maximum int, what string) (string, error) {
	b, err := p.varBytes(maximum, what)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func writeUint16BE(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeCount(buf *bytes.Buffer, n int) {
	_ = WriteCompactSize(buf, uint64(n)) //nolint:gosec // lengths are never negative
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeCount(buf, len(b))
	buf.Write(b)
}

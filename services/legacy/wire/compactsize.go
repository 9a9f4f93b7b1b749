package wire

import (
	"encoding/binary"
	"io"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/go-bt/v2"
)

// WriteCompactSize writes n using the protocol's variable length encoding.
func WriteCompactSize(w io.Writer, n uint64) error {
	_, err := w.Write(bt.VarInt(n).Bytes())
	return err
}

// CompactSizeLen returns the number of bytes WriteCompactSize uses for n.
func CompactSizeLen(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadCompactSize reads a compact-size integer. Non-canonical encodings (a
// value that fits a shorter form) and truncated input are format errors.
func ReadCompactSize(r io.Reader) (uint64, error) {
	var b [8]byte

	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, errors.NewWireFormatError("compact size: missing discriminant", err)
	}

	var (
		n       uint64
		minimum uint64
	)

	switch b[0] {
	case 0xff:
		if _, err := io.ReadFull(r, b[:8]); err != nil {
			return 0, errors.NewWireFormatError("compact size: truncated 8-byte value", err)
		}

		n = binary.LittleEndian.Uint64(b[:8])
		minimum = 0x100000000
	case 0xfe:
		if _, err := io.ReadFull(r, b[:4]); err != nil {
			return 0, errors.NewWireFormatError("compact size: truncated 4-byte value", err)
		}

		n = uint64(binary.LittleEndian.Uint32(b[:4]))
		minimum = 0x10000
	case 0xfd:
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return 0, errors.NewWireFormatError("compact size: truncated 2-byte value", err)
		}

		n = uint64(binary.LittleEndian.Uint16(b[:2]))
		minimum = 0xfd
	default:
		return uint64(b[0]), nil
	}

	if n < minimum {
		return 0, errors.NewWireFormatError("compact size: non-canonical encoding of %d", n)
	}

	return n, nil
}

package util

import (
	"encoding/binary"
	"math/big"
)

var (
	bigOne    = big.NewInt(1)
	oneLsh256 = new(big.Int).Lsh(bigOne, 256)
)

// BlockWork returns the expected number of hashes needed to find a block
// with the compact target bits: 2^256 / (target+1).
func BlockWork(bits uint32) *big.Int {
	var nb [4]byte

	binary.BigEndian.PutUint32(nb[:], bits)

	target := CalculateTarget(nb[:])
	if target.Sign() < 0 {
		return new(big.Int)
	}

	return new(big.Int).Div(oneLsh256, new(big.Int).Add(target, bigOne))
}

func CalculateTarget(nBits []byte) *big.Int {
	nb := binary.BigEndian.Uint32(nBits)
	exponent := nb >> 24
	mantissa := nb & 0x007FFFFF

	// Invalid nBits
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		return big.NewInt(int64(mantissa))
	}

	target := big.NewInt(int64(mantissa))
	target.Lsh(target, uint(8*(exponent-3)))

	return target
}

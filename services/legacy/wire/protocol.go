package wire

import (
	gowire "github.com/bsv-blockchain/go-wire"
)

const (
	// ProtocolVersion is the latest protocol version this package supports.
	ProtocolVersion uint32 = 70016

	// FeeFilterVersion is the protocol version which added the feefilter message.
	FeeFilterVersion uint32 = 70013

	// SendHeadersVersion is the protocol version which added the sendheaders message.
	SendHeadersVersion uint32 = 70012

	// BIP0037Version is the protocol version which added the relay flag to
	// the version message.
	BIP0037Version uint32 = 70001

	// MinAcceptableProtocolVersion is the lowest protocol version a remote
	// peer may advertise.
	MinAcceptableProtocolVersion uint32 = BIP0037Version
)

// ServiceFlag and BitcoinNet are shared with go-wire so values round-trip with
// the rest of the bsv stack.
type (
	ServiceFlag = gowire.ServiceFlag
	BitcoinNet  = gowire.BitcoinNet
)

const (
	// SFNodeNetwork indicates a peer can serve full blocks.
	SFNodeNetwork = gowire.SFNodeNetwork

	// SFNodeCompactFilters indicates a peer serves BIP157 compact filters.
	SFNodeCompactFilters ServiceFlag = 1 << 6
)

// HasServices reports whether every bit of desired is set in advertised.
func HasServices(advertised, desired ServiceFlag) bool {
	return advertised&desired == desired
}

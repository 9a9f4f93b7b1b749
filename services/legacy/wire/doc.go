/*
Package wire implements the peer-to-peer wire protocol spoken by the peer
engine.

Every message on the wire is a fixed 24-byte header followed by a payload:

	magic    [4]byte   network identifier, little-endian uint32
	command  [12]byte  ASCII, null padded
	length   [4]byte   little-endian payload length
	checksum [4]byte   first four bytes of double-SHA256(payload)

A Message is immutable. NewMessage serializes the payload and computes the
checksum once; Decode verifies the checksum before dispatching on the closed
Command enumeration to the typed decoder for that command. Decoders never
trust a declared count: the bytes a count implies are checked against what is
left in the payload before anything is allocated.

Headers, blocks and transactions are carried as opaque bytes. Callers that
need the fields of a header use BlockHeader.Parse.
*/
package wire

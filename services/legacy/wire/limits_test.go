package wire

import (
	"bytes"
	"testing"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame builds a header for an arbitrary payload so decoders can be fed
// input NewMessage would never produce.
func frame(t *testing.T, cmd string, payload []byte) []byte {
	t.Helper()

	h := MessageHeader{Magic: testNet, Command: cmd, Length: uint32(len(payload)), Checksum: Checksum(payload)} //nolint:gosec // test sizes

	return h.Bytes()
}

func decodeRaw(t *testing.T, cmd string, payload []byte) (*Message, error) {
	t.Helper()

	return Decode(frame(t, cmd, payload), payload)
}

func countOnly(n uint64) []byte {
	var buf bytes.Buffer
	_ = WriteCompactSize(&buf, n)

	return buf.Bytes()
}

func TestDecodeRejectsExcessiveCounts(t *testing.T) {
	locatorPrefix := []byte{0x80, 0x11, 0x01, 0x00}

	tests := []struct {
		cmd     string
		payload []byte
	}{
		{"inv", countOnly(MaxInvPerMsg + 1)},
		{"getdata", countOnly(MaxInvPerMsg + 1)},
		{"notfound", countOnly(MaxInvPerMsg + 1)},
		{"headers", countOnly(MaxBlockHeadersPerMsg + 1)},
		{"addr", countOnly(MaxAddrPerMsg + 1)},
		{"getheaders", append(append([]byte(nil), locatorPrefix...), countOnly(MaxBlockLocatorsPerMsg+1)...)},
		{"getblocks", append(append([]byte(nil), locatorPrefix...), countOnly(MaxBlockLocatorsPerMsg+1)...)},
		{"cfheaders", append(make([]byte, 1+2*chainhash.HashSize), countOnly(MaxCFHeadersPerMsg+1)...)},
		{"cfilter", append(make([]byte, 1+chainhash.HashSize), countOnly(MaxCFilterDataSize+1)...)},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			_, err := decodeRaw(t, tt.cmd, tt.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrWireFormat), err.Error())
		})
	}
}

func TestDecodeRejectsCountBeyondBuffer(t *testing.T) {
	// 10 inventory vectors declared, one present
	payload := append(countOnly(10), make([]byte, InvVectSize)...)

	_, err := decodeRaw(t, "inv", payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 36 bytes remain")
}

func TestDecodeTruncatedPayloads(t *testing.T) {
	hash := chainhash.HashH([]byte("x"))

	version := NewMsgVersion(NewNetAddress("127.0.0.1:1", 0), NewNetAddress("127.0.0.1:2", 0), 1, 0)
	require.NoError(t, version.AddUserAgent("cfpeer", "1"))

	payloads := []Payload{
		NewMsgPing(1),
		NewMsgGetCFHeaders(0, 1, hash),
		&MsgCFilter{BlockHash: hash, Data: []byte{1, 2, 3}},
		NewMsgGetHeaders([]*chainhash.Hash{&hash}, hash),
		NewMsgReject("block", RejectInvalid, "bad"),
		NewMsgFeeFilter(1),
		&MsgGetCFCheckpt{StopHash: hash},
	}

	for _, payload := range payloads {
		t.Run(payload.Command().String(), func(t *testing.T) {
			msg, err := NewMessage(testNet, payload)
			require.NoError(t, err)

			raw := msg.PayloadBytes()

			for n := 0; n < len(raw); n++ {
				_, err = decodeRaw(t, msg.Name(), raw[:n])
				require.Error(t, err, "truncated to %d bytes", n)
			}
		})
	}

	// a version message shorter than its fixed fields
	msg, err := NewMessage(testNet, version)
	require.NoError(t, err)

	_, err = decodeRaw(t, "version", msg.PayloadBytes()[:minVersionPayload-1])
	require.Error(t, err)
}

func TestVersionRelayFlag(t *testing.T) {
	version := NewMsgVersion(NewNetAddress("127.0.0.1:1", 0), NewNetAddress("127.0.0.1:2", 0), 1, 0)
	version.DisableRelayTx = true

	msg, err := NewMessage(testNet, version)
	require.NoError(t, err)

	decoded, err := Decode(msg.Header(), msg.PayloadBytes())
	require.NoError(t, err)
	assert.True(t, decoded.Payload.(*MsgVersion).DisableRelayTx)

	// without the trailing relay byte the remote wants relay
	raw := msg.PayloadBytes()[:len(msg.PayloadBytes())-1]

	decoded, err = decodeRaw(t, "version", raw)
	require.NoError(t, err)
	assert.False(t, decoded.Payload.(*MsgVersion).DisableRelayTx)

	// versions before BIP0037 carry no relay flag
	version.ProtocolVersion = 60002

	msg, err = NewMessage(testNet, version)
	require.NoError(t, err)
	assert.Len(t, msg.PayloadBytes(), minVersionPayload)
}

func TestVersionUserAgentTooLong(t *testing.T) {
	version := NewMsgVersion(NewNetAddress("127.0.0.1:1", 0), NewNetAddress("127.0.0.1:2", 0), 1, 0)
	version.UserAgent = string(bytes.Repeat([]byte{'a'}, MaxUserAgentLen+1))

	msg, err := NewMessage(testNet, version)
	require.NoError(t, err)

	_, err = Decode(msg.Header(), msg.PayloadBytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user agent too long")

	err = NewMsgVersion(NewNetAddress("127.0.0.1:1", 0), NewNetAddress("127.0.0.1:2", 0), 1, 0).
		AddUserAgent(version.UserAgent, "1")
	require.Error(t, err)
}

func TestHeadersWithTransactions(t *testing.T) {
	genesis := genesisHeader(t)

	payload := append(countOnly(1), genesis[:]...)
	payload = append(payload, 0x01)

	_, err := decodeRaw(t, "headers", payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carries 1 transactions")
}

func TestRejectHashOnlyForBlockAndTx(t *testing.T) {
	reject := NewMsgReject("version", RejectDuplicate, "duplicate version")

	msg, err := NewMessage(testNet, reject)
	require.NoError(t, err)
	assert.Len(t, msg.PayloadBytes(), 1+len("version")+1+1+len("duplicate version"))

	reject = NewMsgReject("tx", RejectDust, "dust")

	msg, err = NewMessage(testNet, reject)
	require.NoError(t, err)
	assert.Len(t, msg.PayloadBytes(), 1+len("tx")+1+1+len("dust")+chainhash.HashSize)
}

func TestBlockAndTxMinimumSize(t *testing.T) {
	_, err := decodeRaw(t, "block", make([]byte, BlockHeaderLen))
	require.Error(t, err)

	_, err = decodeRaw(t, "tx", make([]byte, minTxPayload-1))
	require.Error(t, err)

	msg, err := decodeRaw(t, "block", make([]byte, minBlockPayload))
	require.NoError(t, err)
	assert.Len(t, msg.Payload.(*MsgBlock).Raw, minBlockPayload)
}

func TestTrailingBytesRejected(t *testing.T) {
	tests := []struct {
		cmd     string
		payload []byte
	}{
		{"ping", append(pingBytes(42), 0xde, 0xad)},
		{"verack", []byte{0x00}},
		{"mempool", []byte{0x01, 0x02}},
		{"getaddr", []byte{0x00}},
		{"sendheaders", []byte{0xff}},
		{"headers", append(countOnly(0), 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			_, err := decodeRaw(t, tt.cmd, tt.payload)
			require.Error(t, err)
			assert.Equal(t, errors.ERR_WIRE_FORMAT, errors.CodeOf(err))
			assert.Contains(t, err.Error(), "trailing bytes")
		})
	}
}

func TestVersionTrailingFieldsAccepted(t *testing.T) {
	me := NewNetAddress("127.0.0.1:18444", SFNodeNetwork)
	you := NewNetAddress("127.0.0.1:18445", 0)

	msg, err := NewMessage(testNet, NewMsgVersion(me, you, 7, 100))
	require.NoError(t, err)

	// an association id appended after the relay flag
	payload := append(append([]byte(nil), msg.PayloadBytes()...), 0x01, 0xaa)

	decoded, err := decodeRaw(t, "version", payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded.Payload.(*MsgVersion).Nonce)
}

func pingBytes(nonce uint64) []byte {
	var buf bytes.Buffer
	NewMsgPing(nonce).encode(&buf)

	return buf.Bytes()
}

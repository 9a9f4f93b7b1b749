package connmgr

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMagic uint32 = 0xdab5bffa

func testConfig() Config {
	return Config{Magic: testMagic, MaxPayloadSize: 1024}
}

func waitEvent(t *testing.T, tr Transport, want EventType) Event {
	t.Helper()

	select {
	case ev := <-tr.Events():
		require.Equal(t, want, ev.Type, "got %s event: %v", ev.Type, ev.Err)
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s event", want)
	}

	return Event{}
}

func waitSend(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for send")
	}

	return nil
}

func connectPair(t *testing.T, a, b Transport) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, a.Connect(ctx))
	require.NoError(t, b.Connect(ctx))

	waitEvent(t, a, EventConnected)
	waitEvent(t, b, EventConnected)
}

func exchange(t *testing.T, from, to Transport) {
	t.Helper()

	msg, err := wire.NewMessage(testMagic, wire.NewMsgPing(99))
	require.NoError(t, err)

	require.NoError(t, waitSend(t, from.Transmit(msg.Header(), msg.PayloadBytes())))

	ev := waitEvent(t, to, EventHeader)
	assert.Equal(t, "ping", ev.Header.Command)
	assert.Equal(t, uint32(8), ev.Header.Length)

	ev = waitEvent(t, to, EventPayload)

	decoded, err := wire.DecodePayload(&wire.MessageHeader{Magic: testMagic, Command: "ping", Length: 8, Checksum: msg.Checksum()}, ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), decoded.Payload.(*wire.MsgPing).Nonce)

	// empty payloads frame as a bare header
	verack, err := wire.NewMessage(testMagic, &wire.MsgVerAck{})
	require.NoError(t, err)

	require.NoError(t, waitSend(t, from.Transmit(verack.Header(), verack.PayloadBytes())))

	ev = waitEvent(t, to, EventHeader)
	assert.Equal(t, "verack", ev.Header.Command)

	ev = waitEvent(t, to, EventPayload)
	assert.Empty(t, ev.Payload)
}

func TestLoopback(t *testing.T) {
	out, in := NewLoopback(ulogger.TestLogger{}, testConfig())
	defer out.Close()
	defer in.Close()

	assert.False(t, out.Inbound())
	assert.True(t, in.Inbound())

	connectPair(t, out, in)

	exchange(t, out, in)
	exchange(t, in, out)

	// a second Connect does nothing
	require.NoError(t, out.Connect(context.Background()))
}

func TestCloseFailsPendingSends(t *testing.T) {
	out, in := NewLoopback(ulogger.TestLogger{}, testConfig())
	defer in.Close()

	msg, err := wire.NewMessage(testMagic, wire.NewMsgPing(1))
	require.NoError(t, err)

	// never connected, so the writer never drains the queue
	pending := out.Transmit(msg.Header(), msg.PayloadBytes())

	require.NoError(t, out.Close())

	err = waitSend(t, pending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetworkDisconnected))

	err = waitSend(t, out.Transmit(msg.Header(), msg.PayloadBytes()))
	assert.True(t, errors.Is(err, errors.ErrNetworkDisconnected))

	require.NoError(t, out.Close())
}

func TestRemoteCloseReportsError(t *testing.T) {
	out, in := NewLoopback(ulogger.TestLogger{}, testConfig())
	defer out.Close()

	connectPair(t, out, in)

	require.NoError(t, in.Close())

	ev := waitEvent(t, out, EventError)
	assert.True(t, errors.Is(ev.Err, errors.ErrNetworkDisconnected))
}

func TestRejectsForeignMagic(t *testing.T) {
	out, in := NewLoopback(ulogger.TestLogger{}, testConfig())
	defer out.Close()
	defer in.Close()

	connectPair(t, out, in)

	msg, err := wire.NewMessage(0xe8f3e1e3, wire.NewMsgPing(1))
	require.NoError(t, err)

	out.Transmit(msg.Header(), msg.PayloadBytes())

	ev := waitEvent(t, in, EventError)
	assert.True(t, errors.Is(ev.Err, errors.ErrProtocolViolation))
}

func TestRejectsOversizedPayload(t *testing.T) {
	out, in := NewLoopback(ulogger.TestLogger{}, testConfig())
	defer out.Close()
	defer in.Close()

	connectPair(t, out, in)

	msg, err := wire.NewMessage(testMagic, &wire.MsgTx{Raw: make([]byte, 2048)})
	require.NoError(t, err)

	out.Transmit(msg.Header(), msg.PayloadBytes())

	ev := waitEvent(t, in, EventError)
	assert.True(t, errors.Is(ev.Err, errors.ErrWireFormat))
}

func TestStreamTransportTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer listener.Close()

	accepted := make(chan net.Conn, 1)

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	out := NewStreamTransport(ulogger.TestLogger{}, testConfig(), listener.Addr().String())
	defer out.Close()

	require.NoError(t, out.Connect(context.Background()))
	waitEvent(t, out, EventConnected)

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not accept")
	}

	in := NewInboundStreamTransport(ulogger.TestLogger{}, testConfig(), conn)
	defer in.Close()

	require.NoError(t, in.Connect(context.Background()))
	waitEvent(t, in, EventConnected)

	exchange(t, out, in)
}

func TestStreamTransportDialFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	out := NewStreamTransport(ulogger.TestLogger{}, testConfig(), address)
	defer out.Close()

	require.NoError(t, out.Connect(context.Background()))

	ev := waitEvent(t, out, EventError)
	assert.True(t, errors.Is(ev.Err, errors.ErrNetworkConnectionRefused))
}

func TestMessageTransport(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, err := ListenMessageTransport(ctx, ulogger.TestLogger{}, testConfig(), address)
	require.NoError(t, err)

	defer in.Close()

	out := NewMessageTransport(ulogger.TestLogger{}, testConfig(), address)
	defer out.Close()

	connectPair(t, out, in)

	exchange(t, out, in)
	exchange(t, in, out)
}

func TestZMQEndpoint(t *testing.T) {
	assert.Equal(t, "tcp://127.0.0.1:8333", ZMQEndpoint("127.0.0.1:8333"))
	assert.Equal(t, "ipc:///tmp/peer", ZMQEndpoint("ipc:///tmp/peer"))
}

package connmgr

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/btcsuite/go-socks/socks"
)

// StreamTransport frames messages over a byte stream: it reads exactly one
// header, then exactly the number of payload bytes the header declares.
type StreamTransport struct {
	*base

	dial func(ctx context.Context) (net.Conn, error)

	connMu sync.Mutex
	conn   net.Conn
}

// NewStreamTransport returns an outbound TCP transport to address. The dial
// goes through the configured SOCKS5 proxy when there is one.
func NewStreamTransport(logger ulogger.Logger, config Config, address string) *StreamTransport {
	t := &StreamTransport{base: newBase(logger, config, address, false)}
	t.dial = t.dialer(address)

	return t
}

// NewInboundStreamTransport wraps a connection accepted by a listener.
func NewInboundStreamTransport(logger ulogger.Logger, config Config, conn net.Conn) *StreamTransport {
	return &StreamTransport{
		base: newBase(logger, config, conn.RemoteAddr().String(), true),
		conn: conn,
	}
}

// NewLoopback returns an outbound and an inbound transport joined by an
// in-memory pipe.
func NewLoopback(logger ulogger.Logger, config Config) (outbound, inbound *StreamTransport) {
	a, b := net.Pipe()

	outbound = &StreamTransport{
		base: newBase(logger, config, "loopback", false),
		dial: func(_ context.Context) (net.Conn, error) {
			return a, nil
		},
	}

	inbound = &StreamTransport{
		base: newBase(logger, config, "loopback", true),
		conn: b,
	}

	return outbound, inbound
}

func (t *StreamTransport) dialer(address string) func(ctx context.Context) (net.Conn, error) {
	if p := t.config.Proxy; p != nil && p.Address != "" {
		proxy := &socks.Proxy{
			Addr:     p.Address,
			Username: p.Username,
			Password: p.Password,
		}

		return func(_ context.Context) (net.Conn, error) {
			return proxy.Dial("tcp", address)
		}
	}

	d := &net.Dialer{Timeout: t.config.DialTimeout}

	return func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", address)
	}
}

func (t *StreamTransport) Connect(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}

	if t.inbound {
		t.start(t.conn)
		return nil
	}

	go func() {
		conn, err := t.dial(ctx)
		if err != nil {
			t.fail(errors.NewNetworkConnectionRefusedError("[%s] dial failed", t.address, err), t.Close)
			return
		}

		t.start(conn)
	}()

	return nil
}

func (t *StreamTransport) start(conn net.Conn) {
	t.connMu.Lock()

	if t.isClosing() {
		t.connMu.Unlock()
		_ = conn.Close()

		return
	}

	t.conn = conn
	t.connMu.Unlock()

	t.connected.Store(true)
	prometheusConnMgrConnections.Inc()

	if !t.emit(Event{Type: EventConnected}) {
		return
	}

	go t.readLoop(conn)
	go t.writeLoop(func(header, payload []byte) error {
		if _, err := conn.Write(header); err != nil {
			return err
		}

		if len(payload) == 0 {
			return nil
		}

		_, err := conn.Write(payload)

		return err
	}, func(err error) {
		t.fail(err, t.Close)
	})
}

func (t *StreamTransport) readLoop(conn net.Conn) {
	raw := make([]byte, wire.MessageHeaderSize)

	for {
		if _, err := io.ReadFull(conn, raw); err != nil {
			t.fail(errors.NewNetworkDisconnectedError("[%s] failed to read message header", t.address, err), t.Close)
			return
		}

		header, err := t.acceptHeader(raw)
		if err != nil {
			t.fail(err, t.Close)
			return
		}

		if !t.emit(Event{Type: EventHeader, Header: header}) {
			return
		}

		payload := make([]byte, header.Length)

		if _, err = io.ReadFull(conn, payload); err != nil {
			t.fail(errors.NewNetworkDisconnectedError("[%s] failed to read %s payload", t.address, header.Command, err), t.Close)
			return
		}

		prometheusConnMgrBytesReceived.Add(float64(wire.MessageHeaderSize + len(payload)))
		prometheusConnMgrMessagesReceived.Inc()

		if !t.emit(Event{Type: EventPayload, Payload: payload}) {
			return
		}
	}
}

func (t *StreamTransport) Close() error {
	return t.shutdown(func() error {
		t.connMu.Lock()
		conn := t.conn
		t.connMu.Unlock()

		if conn == nil {
			return nil
		}

		if t.connected.Load() {
			prometheusConnMgrConnections.Dec()
		}

		return conn.Close()
	})
}

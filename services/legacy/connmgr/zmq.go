package connmgr

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/go-zeromq/zmq4"
)

// MessageTransport carries each wire message as one two-frame ZeroMQ
// message [header, payload] over a PAIR socket. The payload length is the
// frame length; an empty or missing second frame means an empty payload.
type MessageTransport struct {
	*base

	endpoint string

	sockMu sync.Mutex
	sock   zmq4.Socket
}

// ZMQEndpoint turns host:port into a tcp:// endpoint, leaving full endpoints
// untouched.
func ZMQEndpoint(address string) string {
	if strings.Contains(address, "://") {
		return address
	}

	return "tcp://" + address
}

// NewMessageTransport returns an outbound transport that dials address.
func NewMessageTransport(logger ulogger.Logger, config Config, address string) *MessageTransport {
	return &MessageTransport{
		base:     newBase(logger, config, address, false),
		endpoint: ZMQEndpoint(address),
	}
}

// ListenMessageTransport binds a PAIR socket on address and returns it as an
// inbound transport. A PAIR socket serves exactly one remote.
func ListenMessageTransport(ctx context.Context, logger ulogger.Logger, config Config, address string) (*MessageTransport, error) {
	t := &MessageTransport{
		base:     newBase(logger, config, address, true),
		endpoint: ZMQEndpoint(address),
	}

	sock := zmq4.NewPair(ctx)
	if err := sock.Listen(t.endpoint); err != nil {
		_ = sock.Close()
		return nil, errors.NewNetworkError("[%s] failed to listen", t.endpoint, err)
	}

	t.sock = sock

	return t, nil
}

func (t *MessageTransport) Connect(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}

	if t.inbound {
		t.start(t.sock)
		return nil
	}

	go func() {
		sock := zmq4.NewPair(ctx, zmq4.WithDialerRetry(time.Second))

		if err := sock.Dial(t.endpoint); err != nil {
			_ = sock.Close()
			t.fail(errors.NewNetworkConnectionRefusedError("[%s] dial failed", t.endpoint, err), t.Close)

			return
		}

		t.start(sock)
	}()

	return nil
}

func (t *MessageTransport) start(sock zmq4.Socket) {
	t.sockMu.Lock()

	if t.isClosing() {
		t.sockMu.Unlock()
		_ = sock.Close()

		return
	}

	t.sock = sock
	t.sockMu.Unlock()

	t.connected.Store(true)
	prometheusConnMgrConnections.Inc()

	if !t.emit(Event{Type: EventConnected}) {
		return
	}

	go t.readLoop(sock)
	go t.writeLoop(func(header, payload []byte) error {
		if payload == nil {
			payload = []byte{}
		}

		return sock.SendMulti(zmq4.NewMsgFrom(header, payload))
	}, func(err error) {
		t.fail(err, t.Close)
	})
}

func (t *MessageTransport) readLoop(sock zmq4.Socket) {
	for {
		msg, err := sock.Recv()
		if err != nil {
			t.fail(errors.NewNetworkDisconnectedError("[%s] receive failed", t.endpoint, err), t.Close)
			return
		}

		if len(msg.Frames) == 0 || len(msg.Frames) > 2 {
			t.fail(errors.NewWireFormatError("[%s] expected 1 or 2 frames, got %d", t.endpoint, len(msg.Frames)), t.Close)
			return
		}

		header, err := t.acceptHeader(msg.Frames[0])
		if err != nil {
			t.fail(err, t.Close)
			return
		}

		var payload []byte
		if len(msg.Frames) == 2 {
			payload = msg.Frames[1]
		}

		if uint64(len(payload)) != uint64(header.Length) {
			t.fail(errors.NewWireFormatError("[%s] %s header declares %d bytes, frame carries %d", t.endpoint, header.Command, header.Length, len(payload)), t.Close)
			return
		}

		if payload == nil {
			payload = []byte{}
		}

		prometheusConnMgrBytesReceived.Add(float64(len(msg.Frames[0]) + len(payload)))
		prometheusConnMgrMessagesReceived.Inc()

		if !t.emit(Event{Type: EventHeader, Header: header}) {
			return
		}

		if !t.emit(Event{Type: EventPayload, Payload: payload}) {
			return
		}
	}
}

func (t *MessageTransport) Close() error {
	return t.shutdown(func() error {
		t.sockMu.Lock()
		sock := t.sock
		t.sockMu.Unlock()

		if sock == nil {
			return nil
		}

		if t.connected.Load() {
			prometheusConnMgrConnections.Dec()
		}

		return sock.Close()
	})
}

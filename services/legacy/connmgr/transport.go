// Package connmgr owns the byte transport under a peer. Whatever the
// transport, the peer sees the same thing: a connected event, then one header
// event followed by one payload event per inbound message, and a send handle
// per outbound message that resolves once the bytes are written or the
// connection is gone.
package connmgr

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"go.uber.org/atomic"
)

// EventType tags what a transport is reporting.
type EventType int

const (
	// EventConnected is sent once the transport can carry messages.
	EventConnected EventType = iota

	// EventHeader carries a validated message header.
	EventHeader

	// EventPayload carries the payload belonging to the preceding header.
	EventPayload

	// EventError reports a fatal transport or framing error. No further
	// events follow it.
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventHeader:
		return "header"
	case EventPayload:
		return "payload"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from the transport to its owner.
type Event struct {
	Type    EventType
	Header  *wire.MessageHeader
	Payload []byte
	Err     error
}

// Transport is the contract between a peer and the connection it owns.
type Transport interface {
	// Connect starts the transport. Outbound transports dial in the
	// background and report the outcome as EventConnected or EventError.
	// Calling it again has no effect.
	Connect(ctx context.Context) error

	// Transmit queues one message. The returned channel yields exactly one
	// value: nil once written, or an error if the write failed or the
	// transport closed first.
	Transmit(header, payload []byte) <-chan error

	// Events delivers transport notifications in arrival order.
	Events() <-chan Event

	Inbound() bool
	Address() string

	// Close tears down the connection and fails every pending send with
	// ERR_NETWORK_DISCONNECTED. It is safe to call more than once.
	Close() error
}

// Config holds what every transport needs to frame messages.
type Config struct {
	// Magic is the network identifier every inbound header must carry.
	Magic uint32

	// MaxPayloadSize bounds the payload a header may declare, so a hostile
	// length never turns into an allocation.
	MaxPayloadSize uint32

	// SendQueueSize is the number of messages that may wait for the writer.
	SendQueueSize int

	// EventQueueSize is the buffer between the reader and the owner.
	EventQueueSize int

	// DialTimeout bounds an outbound dial.
	DialTimeout time.Duration

	// Proxy, when set, is the SOCKS5 proxy outbound stream dials go through.
	Proxy *ProxyConfig
}

// ProxyConfig describes a SOCKS5 proxy.
type ProxyConfig struct {
	Address  string
	Username string
	Password string
}

func (c Config) withDefaults() Config {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 50
	}

	if c.EventQueueSize <= 0 {
		c.EventQueueSize = 50
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = 30 * time.Second
	}

	return c
}

type pendingSend struct {
	header  []byte
	payload []byte
	done    chan error
}

func (s *pendingSend) resolve(err error) {
	s.done <- err
}

// base carries the bookkeeping shared by every transport: the event channel,
// the send queue and close handling.
type base struct {
	logger  ulogger.Logger
	config  Config
	address string
	inbound bool

	events    chan Event
	sendQueue chan *pendingSend
	quit      chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	started   atomic.Bool
	connected atomic.Bool
}

func newBase(logger ulogger.Logger, config Config, address string, inbound bool) *base {
	initPrometheusMetrics()

	config = config.withDefaults()

	return &base{
		logger:    logger,
		config:    config,
		address:   address,
		inbound:   inbound,
		events:    make(chan Event, config.EventQueueSize),
		sendQueue: make(chan *pendingSend, config.SendQueueSize),
		quit:      make(chan struct{}),
	}
}

func (b *base) Events() <-chan Event {
	return b.events
}

func (b *base) Inbound() bool {
	return b.inbound
}

func (b *base) Address() string {
	return b.address
}

func (b *base) Transmit(header, payload []byte) <-chan error {
	s := &pendingSend{header: header, payload: payload, done: make(chan error, 1)}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		s.resolve(errors.NewNetworkDisconnectedError("[%s] transport closed", b.address))
		return s.done
	}

	select {
	case b.sendQueue <- s:
	case <-b.quit:
		s.resolve(errors.NewNetworkDisconnectedError("[%s] transport closed", b.address))
	}

	return s.done
}

// emit hands an event to the owner unless the transport is shutting down.
func (b *base) emit(ev Event) bool {
	select {
	case b.events <- ev:
		return true
	case <-b.quit:
		return false
	}
}

// shutdown closes quit, runs closeConn, and fails whatever is left in the
// send queue. closeConn runs before the queue is drained so a writer blocked
// on the connection is released.
func (b *base) shutdown(closeConn func() error) error {
	var err error

	b.closeOnce.Do(func() {
		close(b.quit)

		if closeConn != nil {
			err = closeConn()
		}

		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		for {
			select {
			case s := <-b.sendQueue:
				s.resolve(errors.NewNetworkDisconnectedError("[%s] transport closed before send", b.address))
			default:
				return
			}
		}
	})

	return err
}

// fail reports err to the owner and closes the transport. Errors seen while
// the transport is already closing are the result of that close and are not
// reported.
func (b *base) fail(err error, closeFn func() error) {
	if b.isClosing() {
		return
	}

	b.logger.Debugf("[%s] transport failed: %v", b.address, err)

	b.emit(Event{Type: EventError, Err: err})

	_ = closeFn()
}

func (b *base) isClosing() bool {
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}

// writeLoop feeds queued messages to write until the transport closes.
func (b *base) writeLoop(write func(header, payload []byte) error, fail func(error)) {
	for {
		select {
		case <-b.quit:
			return
		case s := <-b.sendQueue:
			if b.isClosing() {
				s.resolve(errors.NewNetworkDisconnectedError("[%s] transport closed before send", b.address))
				continue
			}

			if err := write(s.header, s.payload); err != nil {
				werr := errors.NewNetworkDisconnectedError("[%s] write failed", b.address, err)
				s.resolve(werr)
				fail(werr)

				continue
			}

			prometheusConnMgrBytesSent.Add(float64(len(s.header) + len(s.payload)))
			prometheusConnMgrMessagesSent.Inc()
			s.resolve(nil)
		}
	}
}

// acceptHeader parses and validates an inbound header against the config.
func (b *base) acceptHeader(raw []byte) (*wire.MessageHeader, error) {
	h, err := wire.ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	if err = h.Validate(b.config.Magic, b.config.MaxPayloadSize); err != nil {
		return nil, err
	}

	return h, nil
}

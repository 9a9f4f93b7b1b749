// Package peer runs one remote connection through its lifecycle: connect,
// version handshake, checkpoint verification, subscription to the manager's
// chain events, and ordinary sync traffic.
//
// All peer-local state is owned by a single goroutine (run). Transport
// events, the periodic tick, chain broadcasts and external commands are
// multiplexed into that goroutine, so one inbound message is handled to
// completion before the next is looked at. Outbound messages go through a
// queue goroutine so the run goroutine never waits on the network.
package peer

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/connmgr"
	"github.com/bsv-blockchain/cfpeer/services/legacy/netsync"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/settings"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/decred/dcrd/lru"
	"github.com/looplab/fsm"
	"github.com/ordishs/gocore"
	"go.uber.org/atomic"
)

const (
	outboxSize       = 50
	commandQueueSize = 10
)

var (
	// nodeCount hands out peer ids.
	nodeCount atomic.Int32
)

// Config holds the shared collaborators a peer consults. Manager may be nil,
// in which case the peer runs without chain broadcasts.
type Config struct {
	Headers HeaderOracle
	Blocks  BlockOracle
	Filters FilterOracle
	Mempool Mempool
	Manager Manager

	// Nonces is the node's set of sent version nonces. Nil means a set
	// shared by the whole process.
	Nonces *NonceSet

	// OnStateChange, if set, is called with every state the peer enters,
	// in order, from the goroutine driving the peer.
	OnStateChange func(State)
}

type outMsg struct {
	msg  *wire.Message
	done chan error
}

type assignMsg struct {
	tracker netsync.Tracker
	reply   chan error
}

// Peer is one remote connection. Create it with New, then call Start.
type Peer struct {
	id        int32
	logger    ulogger.Logger
	settings  *settings.Settings
	params    *chaincfg.Params
	cfg       Config
	transport connmgr.Transport
	inbound   bool
	magic     uint32
	nonce     uint64

	sm             *fsm.FSM
	connectLatch   *Latch
	handshakeLatch *Latch
	verifyLatch    *Latch

	// Read from other goroutines.
	protocolVersion atomic.Uint32
	services        atomic.Uint64
	userAgent       atomic.String
	startHeight     atomic.Int32
	lastBlock       atomic.Int32
	relay           atomic.Bool
	feeFilter       atomic.Int64
	pingMicros      atomic.Int64
	started         atomic.Bool

	// Owned by the run goroutine.
	stopped         bool
	farewell        *wire.Message
	phaseStart      time.Time
	versionSent     bool
	versionReceived bool
	sendHeaders     bool
	pendingHeader   *wire.MessageHeader
	checkpoint      model.Checkpoint
	pingNonce       uint64
	pingSent        time.Time
	lastPing        time.Time
	lastReconcile   time.Time
	knownInventory  lru.Cache
	headerSync      *netsync.HeaderSync
	cfheaders       *netsync.CfheaderJob
	cfilters        *netsync.CfilterJob
	blocks          netsync.BlockTracker
	sub             *Subscription

	outbox        chan *outMsg
	transmitQueue chan *outMsg
	commands      chan interface{}
	disconnect    chan error
	quit          chan struct{}
	released      chan struct{}
	done          chan struct{}
	cancel        context.CancelFunc

	errMu sync.Mutex
	err   error
}

// New returns a peer that will own transport. The peer is outbound unless
// the transport was accepted from a listener.
func New(logger ulogger.Logger, tSettings *settings.Settings, transport connmgr.Transport, cfg Config) (*Peer, error) {
	if transport == nil {
		return nil, errors.NewInvalidArgumentError("peer needs a transport")
	}

	if cfg.Headers == nil || cfg.Blocks == nil || cfg.Filters == nil || cfg.Mempool == nil {
		return nil, errors.NewInvalidArgumentError("peer needs header, block and filter oracles and a mempool")
	}

	if tSettings == nil || tSettings.ChainCfgParams == nil {
		return nil, errors.NewConfigurationError("peer needs chain parameters")
	}

	initPrometheusMetrics()

	if cfg.Nonces == nil {
		cfg.Nonces = defaultNonces
	}

	nonce, err := randomUint64()
	if err != nil {
		return nil, errors.NewProcessingError("failed to generate version nonce", err)
	}

	knownSize := tSettings.Legacy.KnownInventorySize
	if knownSize <= 0 {
		knownSize = 1000
	}

	p := &Peer{
		id:             nodeCount.Inc(),
		logger:         logger,
		settings:       tSettings,
		params:         tSettings.ChainCfgParams,
		cfg:            cfg,
		transport:      transport,
		inbound:        transport.Inbound(),
		magic:          tSettings.ChainCfgParams.Magic(),
		nonce:          nonce,
		sm:             NewStateMachine(),
		connectLatch:   NewLatch("connect"),
		handshakeLatch: NewLatch("handshake"),
		verifyLatch:    NewLatch("verify"),
		knownInventory: lru.NewCache(uint(knownSize)),
		headerSync:     netsync.NewHeaderSync(cfg.Headers),
		outbox:         make(chan *outMsg, outboxSize),
		transmitQueue:  make(chan *outMsg),
		commands:       make(chan interface{}, commandQueueSize),
		disconnect:     make(chan error, 1),
		quit:           make(chan struct{}),
		released:       make(chan struct{}),
		done:           make(chan struct{}),
	}

	p.protocolVersion.Store(tSettings.Legacy.ProtocolVersion)
	p.relay.Store(true)

	return p, nil
}

func randomUint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

func (p *Peer) String() string {
	direction := "outbound"
	if p.inbound {
		direction = "inbound"
	}

	return fmt.Sprintf("%s (%s, id %d)", p.transport.Address(), direction, p.id)
}

// Start connects the transport and starts the peer's goroutines. A peer can
// be started once; a failed peer is discarded and a new one built.
func (p *Peer) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.NewStateError("peer %d already started", p.id)
	}

	prometheusPeerActive.Inc()

	ctx, p.cancel = context.WithCancel(ctx)
	now := time.Now()

	if err := p.advance(ctx, EventConnect); err != nil {
		p.stop(ctx, err)
		return err
	}

	p.phaseStart = now
	p.connectLatch.First()

	if err := p.transport.Connect(ctx); err != nil {
		p.stop(ctx, err)
		return err
	}

	if p.inbound {
		// an accepted connection is already established
		p.connectLatch.Second()

		if err := p.advance(ctx, EventListen); err != nil {
			p.stop(ctx, err)
			return err
		}

		if err := p.enterHandshake(ctx, now); err != nil {
			p.stop(ctx, err)
			return err
		}
	}

	go p.queueHandler()
	go p.transmitHandler()
	go p.run(ctx)

	return nil
}

// stop shuts down a peer whose run goroutine never started.
func (p *Peer) stop(ctx context.Context, err error) {
	p.shutdown(ctx, err)
	p.finish()
}

// finish closes done once the transport has been released.
func (p *Peer) finish() {
	<-p.released
	close(p.done)
}

// Disconnect asks the peer to shut down with reason. It never blocks.
func (p *Peer) Disconnect(reason error) {
	if reason == nil {
		reason = errors.NewNetworkDisconnectedError("disconnect requested")
	}

	select {
	case p.disconnect <- reason:
	default:
	}
}

// Done is closed once the peer has shut down and released its transport.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// WaitForShutdown blocks until the peer has shut down.
func (p *Peer) WaitForShutdown() {
	<-p.done
}

// Err returns why the peer shut down, or nil while it is running.
func (p *Peer) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()

	return p.err
}

// Assign hands a cfheader, cfilter or block tracker to the peer. The peer
// must be in Run and have no unfinished tracker of the same category.
func (p *Peer) Assign(tracker netsync.Tracker) error {
	if !p.started.Load() {
		return errors.NewServiceNotStartedError("peer %d not started", p.id)
	}

	reply := make(chan error, 1)

	select {
	case p.commands <- assignMsg{tracker: tracker, reply: reply}:
	case <-p.done:
		return errors.NewNetworkDisconnectedError("peer %d has shut down", p.id)
	}

	select {
	case err := <-reply:
		return err
	case <-p.done:
		return errors.NewNetworkDisconnectedError("peer %d has shut down", p.id)
	}
}

func (p *Peer) ID() int32 {
	return p.id
}

func (p *Peer) Inbound() bool {
	return p.inbound
}

func (p *Peer) Address() string {
	return p.transport.Address()
}

// State returns the current connection state.
func (p *Peer) State() State {
	return State(p.sm.Current())
}

// ProtocolVersion returns the negotiated protocol version. It only ever
// decreases.
func (p *Peer) ProtocolVersion() uint32 {
	return p.protocolVersion.Load()
}

// Services returns the services the remote advertised.
func (p *Peer) Services() wire.ServiceFlag {
	return wire.ServiceFlag(p.services.Load())
}

func (p *Peer) UserAgent() string {
	return p.userAgent.Load()
}

// StartHeight is the best height the remote reported in its version.
func (p *Peer) StartHeight() int32 {
	return p.startHeight.Load()
}

// LastBlock is the highest block height learned from the remote.
func (p *Peer) LastBlock() int32 {
	return p.lastBlock.Load()
}

// FeeFilter is the minimum fee rate the remote asked to be sent.
func (p *Peer) FeeFilter() int64 {
	return p.feeFilter.Load()
}

// PingMicros is the round trip of the last answered ping.
func (p *Peer) PingMicros() int64 {
	return p.pingMicros.Load()
}

// DisplayChain is the label of the network the peer is on.
func (p *Peer) DisplayChain() string {
	return p.params.DisplayChain
}

// ConnectLatch, HandshakeLatch and VerifyLatch expose the phase gates.
func (p *Peer) ConnectLatch() *Latch {
	return p.connectLatch
}

func (p *Peer) HandshakeLatch() *Latch {
	return p.handshakeLatch
}

func (p *Peer) VerifyLatch() *Latch {
	return p.verifyLatch
}

func (p *Peer) advance(ctx context.Context, event string) error {
	if err := transition(ctx, p.sm, event); err != nil {
		return err
	}

	state := p.State()
	prometheusPeerStates.WithLabelValues(state.String()).Inc()
	p.logger.Debugf("[Peer][%d] state %s", p.id, state)

	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(state)
	}

	return nil
}

func (p *Peer) run(ctx context.Context) {
	defer p.finish()

	tick := p.settings.Legacy.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	events := p.transport.Events()

	for !p.stopped {
		var chainEvents <-chan ChainEvent
		if p.sub != nil {
			chainEvents = p.sub.Events
		}

		select {
		case <-ctx.Done():
			p.shutdown(ctx, errors.NewContextCanceledError("[Peer][%d] context done", p.id, ctx.Err()))

		case reason := <-p.disconnect:
			p.shutdown(ctx, reason)

		case ev := <-events:
			p.handleTransportEvent(ctx, ev)

		case now := <-ticker.C:
			p.tick(ctx, now)

		case ev := <-chainEvents:
			p.handleChainEvent(ctx, ev)

		case cmd := <-p.commands:
			p.handleCommand(ctx, cmd)
		}
	}
}

func (p *Peer) handleTransportEvent(ctx context.Context, ev connmgr.Event) {
	switch ev.Type {
	case connmgr.EventConnected:
		if p.inbound || p.State() != StateConnect {
			return
		}

		if p.connectLatch.Second() {
			if err := p.enterHandshake(ctx, time.Now()); err != nil {
				p.shutdown(ctx, err)
			}
		}

	case connmgr.EventHeader:
		p.pendingHeader = ev.Header

	case connmgr.EventPayload:
		header := p.pendingHeader
		p.pendingHeader = nil

		if header == nil {
			p.shutdown(ctx, errors.NewProtocolViolationError("[Peer][%d] payload without header", p.id))
			return
		}

		msg, err := wire.DecodePayload(header, ev.Payload)
		if err != nil {
			p.shutdown(ctx, err)
			return
		}

		p.handleMessage(ctx, msg)

	case connmgr.EventError:
		p.shutdown(ctx, ev.Err)
	}
}

func (p *Peer) handleCommand(ctx context.Context, cmd interface{}) {
	switch c := cmd.(type) {
	case assignMsg:
		c.reply <- p.assign(ctx, c.tracker)
	default:
		p.logger.Warnf("[Peer][%d] unknown command %T", p.id, cmd)
	}
}

func (p *Peer) tick(ctx context.Context, now time.Time) {
	switch p.State() {
	case StateConnect, StateListening, StateHandshake:
		if timeout := p.settings.Legacy.HandshakeTimeout; timeout > 0 && now.Sub(p.phaseStart) > timeout {
			p.shutdown(ctx, errors.NewNetworkTimeoutError("[Peer][%d] handshake not completed within %s", p.id, timeout))
		}

	case StateVerify:
		if timeout := p.settings.Legacy.VerifyTimeout; timeout > 0 && now.Sub(p.phaseStart) > timeout {
			p.shutdown(ctx, errors.NewNetworkTimeoutError("[Peer][%d] checkpoint not verified within %s", p.id, timeout))
		}

	case StateRun:
		p.driveSync(ctx, now)
		p.maybePing(now)
		p.maybeReconcile(now)
	}
}

// shutdown moves the peer to Shutdown and releases everything it holds.
// It runs at most once, and still completes when ctx is already cancelled.
func (p *Peer) shutdown(ctx context.Context, reason error) {
	if p.stopped {
		return
	}

	p.stopped = true

	if reason == nil {
		reason = errors.NewNetworkDisconnectedError("peer %d shut down", p.id)
	}

	// the state machine refuses events on a cancelled context
	if err := p.advance(context.WithoutCancel(ctx), EventShutdown); err != nil {
		p.logger.Errorf("[Peer][%d] %v", p.id, err)
	}

	p.errMu.Lock()
	p.err = reason
	p.errMu.Unlock()

	category := errors.Category(reason)

	switch category {
	case "context", "network":
		p.logger.Infof("[Peer][%d] %s disconnected: %v", p.id, p, reason)
	default:
		p.logger.Warnf("[Peer][%d] %s disconnected (%s): %v", p.id, p, category, reason)
	}

	prometheusPeerDisconnects.WithLabelValues(category).Inc()
	prometheusPeerActive.Dec()

	p.connectLatch.Fail(reason)
	p.handshakeLatch.Fail(reason)
	p.verifyLatch.Fail(reason)

	p.headerSync.Abandon()

	if p.cfheaders != nil {
		p.cfheaders.Abandon()
	}

	if p.cfilters != nil {
		p.cfilters.Abandon()
	}

	if p.blocks != nil {
		p.blocks.Abandon()
	}

	close(p.quit)

	go p.release(p.farewell)

	if p.cancel != nil {
		p.cancel()
	}

	if p.cfg.Manager != nil {
		if p.sub != nil {
			p.cfg.Manager.Unsubscribe(p.sub)
			p.sub = nil
		}

		p.cfg.Manager.PeerDone(p)
	}
}

// release writes farewell, if any, then closes the transport. The write
// gets at most flushTimeout.
func (p *Peer) release(farewell *wire.Message) {
	defer close(p.released)

	if farewell != nil {
		select {
		case err := <-p.transport.Transmit(farewell.Header(), farewell.PayloadBytes()):
			if err != nil {
				p.logger.Debugf("[Peer][%d] failed to send %s: %v", p.id, farewell.Name(), err)
			}
		case <-time.After(flushTimeout):
			p.logger.Debugf("[Peer][%d] gave up sending %s", p.id, farewell.Name())
		}
	}

	if err := p.transport.Close(); err != nil {
		p.logger.Debugf("[Peer][%d] closing transport: %v", p.id, err)
	}
}

// queue hands msg to the outbound queue. It never blocks on the network.
func (p *Peer) queue(payload wire.Payload, done chan error) error {
	msg, err := wire.NewMessage(p.magic, payload)
	if err != nil {
		return err
	}

	select {
	case <-p.quit:
		return errors.NewNetworkDisconnectedError("[Peer][%d] peer shut down", p.id)
	default:
	}

	select {
	case p.outbox <- &outMsg{msg: msg, done: done}:
	case <-p.quit:
		return errors.NewNetworkDisconnectedError("[Peer][%d] peer shut down", p.id)
	}

	prometheusPeerMessagesSent.WithLabelValues(msg.Name()).Inc()

	if p.logger.LogLevel() == int(gocore.DEBUG) {
		p.logger.Debugf("[Peer][%d] queued %s (%d bytes)", p.id, msg.Name(), len(msg.PayloadBytes()))
	}

	return nil
}

func (p *Peer) send(payload wire.Payload) error {
	return p.queue(payload, nil)
}

// QueueMessage sends payload to the remote. The returned channel yields nil
// once the message is written, or the error that stopped it.
func (p *Peer) QueueMessage(payload wire.Payload) <-chan error {
	done := make(chan error, 1)

	if err := p.queue(payload, done); err != nil {
		done <- err
	}

	return done
}

// queueHandler keeps the run goroutine from waiting on the writer. Messages
// are kept in order in an unbounded list.
func (p *Peer) queueHandler() {
	pending := list.New()

	for {
		var (
			next  chan<- *outMsg
			front *outMsg
		)

		if e := pending.Front(); e != nil {
			next = p.transmitQueue
			front = e.Value.(*outMsg)
		}

		select {
		case <-p.quit:
			for e := pending.Front(); e != nil; e = e.Next() {
				e.Value.(*outMsg).resolve(errors.NewNetworkDisconnectedError("[Peer][%d] peer shut down before send", p.id))
			}

			return

		case m := <-p.outbox:
			pending.PushBack(m)

		case next <- front:
			pending.Remove(pending.Front())
		}
	}
}

func (p *Peer) transmitHandler() {
	for {
		select {
		case <-p.quit:
			return

		case m := <-p.transmitQueue:
			m.resolve(<-p.transport.Transmit(m.msg.Header(), m.msg.PayloadBytes()))
		}
	}
}

func (m *outMsg) resolve(err error) {
	if m.done != nil {
		m.done <- err
	}
}

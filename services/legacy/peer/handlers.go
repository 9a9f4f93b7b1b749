package peer

import (
	"context"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/netsync"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/util/tracing"
	"github.com/davecgh/go-spew/spew"
	"github.com/ordishs/gocore"
)

func (p *Peer) handleMessage(ctx context.Context, msg *wire.Message) {
	name := msg.Name()

	prometheusPeerMessagesReceived.WithLabelValues(name).Inc()

	if p.logger.LogLevel() == int(gocore.DEBUG) {
		switch msg.Command {
		case wire.CmdBlock, wire.CmdTx, wire.CmdCFilter:
			p.logger.Debugf("[Peer][%d] received %s (%d bytes)", p.id, name, len(msg.PayloadBytes()))
		default:
			p.logger.Debugf("[Peer][%d] received %s: %s", p.id, name, spew.Sdump(msg.Payload))
		}
	}

	ctx, _, deferFn := tracing.Tracer("peer").Start(ctx, "Peer.handleMessage",
		tracing.WithHistogram(prometheusPeerHandle.WithLabelValues(name)),
		tracing.WithTag("command", name),
	)

	err := p.dispatch(ctx, msg)

	deferFn(err)

	if err == nil {
		return
	}

	switch {
	case netsync.IsUnsolicited(err):
		p.logger.Debugf("[Peer][%d] ignoring %s: %v", p.id, name, err)
	case keepsConnection(err):
		p.logger.Warnf("[Peer][%d] dropped %s: %v", p.id, name, err)
	default:
		p.shutdown(ctx, err)
	}
}

// keepsConnection reports whether err only costs the item that caused it.
func keepsConnection(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ERR_BLOCK_INVALID, errors.ERR_TX_INVALID, errors.ERR_TX_ALREADY_EXISTS,
		errors.ERR_STORAGE_ERROR, errors.ERR_PROCESSING:
		return true
	default:
		return false
	}
}

// dispatch routes one message. The switch covers every payload the codec
// can produce. Until the remote's version arrives only version and verack
// are legal; requests are served from Verify on; sync traffic needs Run.
func (p *Peer) dispatch(ctx context.Context, msg *wire.Message) error {
	if !p.versionReceived && msg.Command != wire.CmdVersion && msg.Command != wire.CmdVerAck {
		return errors.NewProtocolViolationError("[Peer][%d] %s before version", p.id, msg.Name())
	}

	state := p.State()
	serving := state.Rank() >= StateVerify.Rank()
	running := state == StateRun
	now := time.Now()

	switch m := msg.Payload.(type) {
	case *wire.MsgVersion:
		return p.handleVersion(ctx, m)

	case *wire.MsgVerAck:
		return p.handleVerAck(ctx)

	case *wire.MsgPing:
		return p.handlePing(m)

	case *wire.MsgPong:
		p.handlePong(m, now)

	case *wire.MsgSendHeaders:
		p.sendHeaders = true

	case *wire.MsgFeeFilter:
		p.feeFilter.Store(m.MinFee)

	case *wire.MsgReject:
		p.logger.Warnf("[Peer][%d] remote rejected %s: %s %s %s", p.id, m.Cmd, m.Code, m.Reason, m.Hash)

	case *wire.MsgUnknown:
		p.logger.Debugf("[Peer][%d] ignoring unknown command %q", p.id, m.Name)

	case *wire.MsgHeaders:
		switch state {
		case StateVerify:
			return p.verifyHeaders(ctx, m)
		case StateRun:
			return p.handleHeaders(m, now)
		}

	case *wire.MsgCFHeaders:
		switch state {
		case StateVerify:
			return p.verifyFilterHeaders(ctx, m)
		case StateRun:
			return p.handleCFHeaders(m, now)
		}

	case *wire.MsgGetHeaders:
		if serving {
			return p.serveHeaders(m)
		}

	case *wire.MsgGetCFHeaders:
		if serving {
			return p.serveCFHeaders(m)
		}

	case *wire.MsgGetCFilters:
		if serving {
			return p.serveCFilters(m)
		}

	case *wire.MsgGetCFCheckpt:
		if serving {
			return p.serveCFCheckpt(m)
		}

	case *wire.MsgGetData:
		if serving {
			return p.serveData(m)
		}

	case *wire.MsgInv:
		if running {
			return p.handleInv(m, now)
		}

	case *wire.MsgNotFound:
		if running {
			p.handleNotFound(m)
		}

	case *wire.MsgTx:
		if running {
			return p.handleTx(m)
		}

	case *wire.MsgBlock:
		if running {
			return p.handleBlock(m, now)
		}

	case *wire.MsgCFilter:
		if running {
			return p.handleCFilter(m, now)
		}

	case *wire.MsgMemPool:
		if running {
			return p.announceMempool(false)
		}

	case *wire.MsgAddr:
		if running && p.cfg.Manager != nil {
			p.cfg.Manager.AddAddresses(p, m.AddrList)
		}

	case *wire.MsgCFCheckpt:
		return errors.NewNotFoundError("[Peer][%d] no getcfcheckpt outstanding", p.id)

	case *wire.MsgGetAddr, *wire.MsgGetBlocks:
		// addresses are shared through the manager and blocks are only
		// announced with headers

	default:
		return errors.NewProtocolViolationError("[Peer][%d] unhandled %s", p.id, msg.Name())
	}

	return nil
}

// handlePing answers a ping. A ping carrying one of our own nonces means the
// connection loops back to us: answer it, then disconnect.
func (p *Peer) handlePing(msg *wire.MsgPing) error {
	if msg.Nonce == p.nonce || (p.pingNonce != 0 && msg.Nonce == p.pingNonce) {
		p.sendFarewell(wire.NewMsgPong(msg.Nonce))
		return errors.NewSelfConnectionError("[Peer][%d] received our own ping nonce", p.id)
	}

	return p.send(wire.NewMsgPong(msg.Nonce))
}

func (p *Peer) handlePong(msg *wire.MsgPong, now time.Time) {
	if p.pingNonce == 0 || msg.Nonce != p.pingNonce {
		return
	}

	latency := now.Sub(p.pingSent)

	p.pingMicros.Store(latency.Microseconds())
	p.pingNonce = 0

	prometheusPeerPingLatency.Observe(latency.Seconds())
}

func (p *Peer) maybePing(now time.Time) {
	interval := p.settings.Legacy.PingInterval
	if interval <= 0 || now.Sub(p.lastPing) < interval {
		return
	}

	if p.pingNonce != 0 {
		// one ping outstanding at a time
		return
	}

	nonce, err := randomUint64()
	if err != nil {
		p.logger.Errorf("[Peer][%d] failed to generate ping nonce: %v", p.id, err)
		return
	}

	p.lastPing = now
	p.pingNonce = nonce
	p.pingSent = now

	if err = p.send(wire.NewMsgPing(nonce)); err != nil {
		p.logger.Debugf("[Peer][%d] failed to queue ping: %v", p.id, err)
	}
}

package peer

import (
	"context"
	"net"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// flushTimeout bounds how long a farewell message may take to be written
// before the connection is torn down anyway.
const flushTimeout = 2 * time.Second

func (p *Peer) enterHandshake(ctx context.Context, now time.Time) error {
	if err := p.advance(ctx, EventHandshake); err != nil {
		return err
	}

	p.phaseStart = now

	if p.inbound {
		// inbound peers answer the remote's version
		return nil
	}

	return p.sendVersion()
}

func (p *Peer) localVersion() (*wire.MsgVersion, error) {
	services := wire.ServiceFlag(p.settings.Legacy.Services)

	me := wire.NewNetAddressIPPort(net.IPv4zero, 0, services)
	you := wire.NewNetAddress(p.transport.Address(), p.Services())

	msg := wire.NewMsgVersion(me, you, p.nonce, p.cfg.Headers.BestPosition().Height)
	msg.ProtocolVersion = int32(p.settings.Legacy.ProtocolVersion) //nolint:gosec // configured protocol versions are small
	msg.Services = services
	msg.DisableRelayTx = !p.settings.Legacy.Relay

	if err := msg.AddUserAgent(p.settings.Legacy.UserAgentName, p.settings.Legacy.UserAgentVersion, p.params.DisplayChain); err != nil {
		return nil, err
	}

	return msg, nil
}

func (p *Peer) sendVersion() error {
	msg, err := p.localVersion()
	if err != nil {
		return err
	}

	p.cfg.Nonces.Add(p.nonce)
	p.versionSent = true

	return p.send(msg)
}

func (p *Peer) handleVersion(ctx context.Context, msg *wire.MsgVersion) error {
	if p.versionReceived {
		return errors.NewProtocolViolationError("[Peer][%d] duplicate version message", p.id)
	}

	if p.cfg.Nonces.Contains(msg.Nonce) {
		return errors.NewSelfConnectionError("[Peer][%d] version nonce %d is one of ours", p.id, msg.Nonce)
	}

	p.versionReceived = true

	if msg.ProtocolVersion < 0 || uint32(msg.ProtocolVersion) < wire.MinAcceptableProtocolVersion {
		reason := errors.NewProtocolViolationError("[Peer][%d] protocol version %d is below the minimum %d", p.id, msg.ProtocolVersion, wire.MinAcceptableProtocolVersion)
		p.sendFarewell(wire.NewMsgReject(wire.CmdVersion.String(), wire.RejectObsolete, "protocol version too old"))

		return reason
	}

	if remote := uint32(msg.ProtocolVersion); remote < p.protocolVersion.Load() {
		p.protocolVersion.Store(remote)
	}

	p.services.Store(uint64(msg.Services))
	p.userAgent.Store(msg.UserAgent)
	p.startHeight.Store(msg.LastBlock)
	p.lastBlock.Store(msg.LastBlock)
	p.relay.Store(!msg.DisableRelayTx)

	p.logger.Infof("[Peer][%d] %s version %d, services %s, user agent %s, height %d", p.id, p, msg.ProtocolVersion, msg.Services, msg.UserAgent, msg.LastBlock)

	if p.cfg.Manager != nil {
		p.cfg.Manager.UpdateHeight(p, msg.LastBlock, chainhash.Hash{})
	}

	if !p.versionSent {
		if err := p.sendVersion(); err != nil {
			return err
		}
	}

	if err := p.send(&wire.MsgVerAck{}); err != nil {
		return err
	}

	if p.handshakeLatch.Second() {
		return p.completeHandshake(ctx)
	}

	return nil
}

func (p *Peer) handleVerAck(ctx context.Context) error {
	if !p.versionSent {
		return errors.NewProtocolViolationError("[Peer][%d] verack before our version", p.id)
	}

	if first, _ := p.handshakeLatch.Actions(); first {
		return errors.NewProtocolViolationError("[Peer][%d] duplicate verack", p.id)
	}

	if p.handshakeLatch.First() {
		return p.completeHandshake(ctx)
	}

	return nil
}

func (p *Peer) completeHandshake(ctx context.Context) error {
	p.logger.Debugf("[Peer][%d] handshake complete, protocol %d", p.id, p.ProtocolVersion())

	if err := p.advance(ctx, EventVerify); err != nil {
		return err
	}

	return p.beginVerify(time.Now())
}

// sendFarewell sets the last message for the remote. It is written once
// the peer shuts down, after which the transport is closed.
func (p *Peer) sendFarewell(payload wire.Payload) {
	msg, err := wire.NewMessage(p.magic, payload)
	if err != nil {
		p.logger.Debugf("[Peer][%d] failed to build %s: %v", p.id, payload.Command(), err)
		return
	}

	p.farewell = msg
}

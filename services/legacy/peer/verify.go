package peer

import (
	"context"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// beginVerify asks the remote to prove it follows our chain: the header at
// the checkpoint must hash to the checkpoint block, and its filter must
// commit to the checkpoint filter header. Both answers open the verify
// latch.
func (p *Peer) beginVerify(now time.Time) error {
	p.phaseStart = now
	p.checkpoint = p.cfg.Headers.GetDefaultCheckpoint()

	start, err := safeconversion.Int32ToUint32(p.checkpoint.Height)
	if err != nil {
		return errors.NewConfigurationError("invalid checkpoint height %d", p.checkpoint.Height, err)
	}

	p.logger.Debugf("[Peer][%d] verifying against checkpoint %s", p.id, p.checkpoint)

	// an empty locator asks for the stop header alone
	if err = p.send(wire.NewMsgGetHeaders(nil, p.checkpoint.BlockHash)); err != nil {
		return err
	}

	return p.send(wire.NewMsgGetCFHeaders(p.checkpoint.FilterType, start, p.checkpoint.BlockHash))
}

func (p *Peer) checkpointFailed(format string, args ...interface{}) error {
	prometheusPeerCheckpointFailures.Inc()
	return errors.NewCheckpointMismatchError("[Peer][%d] "+format, append([]interface{}{p.id}, args...)...)
}

// verifyHeaders completes the first verify action when msg carries the
// checkpoint header.
func (p *Peer) verifyHeaders(ctx context.Context, msg *wire.MsgHeaders) error {
	if first, _ := p.verifyLatch.Actions(); first {
		// already proven; a second answer adds nothing
		return nil
	}

	found := false

	for i := range msg.Headers {
		if msg.Headers[i].Hash() == p.checkpoint.BlockHash {
			found = true
			break
		}
	}

	if !found {
		return p.checkpointFailed("headers do not contain checkpoint block %s", p.checkpoint.BlockHash)
	}

	if p.verifyLatch.First() {
		return p.enterRun(ctx)
	}

	return nil
}

// verifyFilterHeaders completes the second verify action when msg commits
// to the checkpoint filter header.
func (p *Peer) verifyFilterHeaders(ctx context.Context, msg *wire.MsgCFHeaders) error {
	if _, second := p.verifyLatch.Actions(); second {
		return nil
	}

	cp := p.checkpoint

	switch {
	case msg.FilterType != cp.FilterType:
		return p.checkpointFailed("cfheaders filter type %s, expected %s", msg.FilterType, cp.FilterType)
	case msg.StopHash != cp.BlockHash:
		return p.checkpointFailed("cfheaders stop hash %s, expected %s", msg.StopHash, cp.BlockHash)
	case len(msg.FilterHashes) != 1:
		return p.checkpointFailed("cfheaders carries %d filter hashes for the checkpoint", len(msg.FilterHashes))
	}

	if got := model.NextFilterHeader(*msg.FilterHashes[0], msg.PrevFilterHeader); got != cp.FilterHeader {
		return p.checkpointFailed("filter header %s, checkpoint has %s", got, cp.FilterHeader)
	}

	if p.verifyLatch.Second() {
		return p.enterRun(ctx)
	}

	return nil
}

// enterRun moves a verified peer through Subscribe into Run and starts
// ordinary sync traffic.
func (p *Peer) enterRun(ctx context.Context) error {
	if err := p.advance(ctx, EventSubscribe); err != nil {
		return err
	}

	if p.cfg.Manager != nil {
		p.sub = p.cfg.Manager.Subscribe(p)
	}

	if err := p.advance(ctx, EventRun); err != nil {
		return err
	}

	now := time.Now()
	p.lastPing = now
	p.lastReconcile = now

	p.logger.Infof("[Peer][%d] %s verified, running", p.id, p)

	if p.ProtocolVersion() >= wire.SendHeadersVersion {
		if err := p.send(&wire.MsgSendHeaders{}); err != nil {
			return err
		}
	}

	if err := p.send(&wire.MsgGetAddr{}); err != nil {
		return err
	}

	return p.requestHeaders(chainhash.Hash{}, now)
}

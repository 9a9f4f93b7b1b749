package peer

import (
	"context"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/netsync"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

func (p *Peer) requestHeaders(stop chainhash.Hash, now time.Time) error {
	msg, err := p.headerSync.Request(stop, now)
	if err != nil {
		if errors.CodeOf(err) == errors.ERR_REQUEST_PENDING {
			return nil
		}

		return err
	}

	return p.send(msg)
}

func (p *Peer) handleHeaders(msg *wire.MsgHeaders, now time.Time) error {
	result, err := p.headerSync.Handle(msg)
	if err != nil {
		if errors.CodeOf(err) == errors.ERR_BLOCK_NOT_FOUND {
			// an announcement we cannot connect yet: ask for the gap
			p.logger.Debugf("[Peer][%d] headers do not connect: %v", p.id, err)
			return p.requestHeaders(chainhash.Hash{}, now)
		}

		return err
	}

	if n := len(result.Added); n > 0 {
		for _, pos := range result.Added {
			p.markKnown(blockInv(pos.Hash))
		}

		last := result.Added.Last()
		if last.Height > p.lastBlock.Load() {
			p.lastBlock.Store(last.Height)
		}

		if p.cfg.Manager != nil {
			p.cfg.Manager.HeadersSubmitted(p, result.Best, result.Added)
			p.cfg.Manager.UpdateHeight(p, last.Height, last.Hash)
		}

		p.logger.Debugf("[Peer][%d] added %d headers, best %s", p.id, n, result.Best)
	}

	if result.More {
		return p.requestHeaders(chainhash.Hash{}, now)
	}

	return nil
}

func (p *Peer) handleCFHeaders(msg *wire.MsgCFHeaders, now time.Time) error {
	if p.cfheaders == nil {
		return errors.NewNotFoundError("[Peer][%d] no cfheader job", p.id)
	}

	batch, err := p.cfheaders.Handle(msg, p.cfg.Headers, p.cfg.Filters)
	if err != nil {
		return err
	}

	if err = p.cfg.Filters.AddFilterHeaders(p.cfheaders.FilterType, batch.Positions, batch.FilterHashes, batch.Headers); err != nil {
		return errors.NewStorageError("[Peer][%d] failed to store filter headers", p.id, err)
	}

	p.pumpJobs(now)

	return nil
}

func (p *Peer) handleCFilter(msg *wire.MsgCFilter, now time.Time) error {
	if p.cfilters == nil {
		return errors.NewNotFoundError("[Peer][%d] no cfilter job", p.id)
	}

	pos, err := p.cfilters.Handle(msg, p.cfg.Headers, p.cfg.Filters)
	if err != nil {
		return err
	}

	if err = p.cfg.Filters.AddFilter(msg.FilterType, pos.Hash, msg.Data); err != nil {
		return errors.NewStorageError("[Peer][%d] failed to store filter for %s", p.id, pos, err)
	}

	p.pumpJobs(now)

	return nil
}

func (p *Peer) handleBlock(msg *wire.MsgBlock, now time.Time) error {
	if p.blocks == nil {
		return errors.NewNotFoundError("[Peer][%d] no block job", p.id)
	}

	pos, err := p.blocks.Handle(msg, p.cfg.Blocks)
	if err != nil {
		return err
	}

	p.markKnown(blockInv(pos.Hash))

	if p.cfg.Manager != nil {
		p.cfg.Manager.BlockSubmitted(p, pos)
	}

	p.pumpJobs(now)

	return nil
}

// assign installs tracker in its slot. Each category holds one unfinished
// tracker at a time.
func (p *Peer) assign(_ context.Context, tracker netsync.Tracker) error {
	if state := p.State(); state != StateRun {
		return errors.NewStateError("[Peer][%d] cannot take a job in state %s", p.id, state)
	}

	switch t := tracker.(type) {
	case *netsync.CfheaderJob:
		if p.cfheaders != nil && !p.cfheaders.Closed() {
			return errors.NewRequestPendingError("[Peer][%d] cfheader job already running", p.id)
		}

		p.cfheaders = t

	case *netsync.CfilterJob:
		if p.cfilters != nil && !p.cfilters.Closed() {
			return errors.NewRequestPendingError("[Peer][%d] cfilter job already running", p.id)
		}

		p.cfilters = t

	case netsync.BlockTracker:
		if p.blocks != nil && !p.blocks.Finished() && !p.blocks.Abandoned() {
			return errors.NewRequestPendingError("[Peer][%d] block job already running", p.id)
		}

		p.blocks = t

	default:
		return errors.NewInvalidArgumentError("[Peer][%d] unsupported job %T", p.id, tracker)
	}

	p.pumpJobs(time.Now())

	return nil
}

// pumpJobs issues the next request of every idle job and drops jobs that
// have closed.
func (p *Peer) pumpJobs(now time.Time) {
	if p.cfheaders != nil {
		if p.cfheaders.Closed() {
			p.cfheaders = nil
		} else if !p.cfheaders.Pending() {
			msg, err := p.cfheaders.Next(now)
			p.sendNext(msg, err)
		}
	}

	if p.cfilters != nil {
		if p.cfilters.Closed() {
			p.cfilters = nil
		} else if !p.cfilters.Pending() {
			msg, err := p.cfilters.Next(now)
			p.sendNext(msg, err)
		}
	}

	if p.blocks != nil {
		if p.blocks.Finished() || p.blocks.Abandoned() {
			p.blocks = nil
		} else if !p.blocks.Pending() {
			msg, err := p.blocks.Next(now)
			p.sendNext(msg, err)
		}
	}
}

func (p *Peer) sendNext(msg wire.Payload, err error) {
	if err == nil {
		err = p.send(msg)
	}

	if err != nil {
		p.logger.Debugf("[Peer][%d] job request not sent: %v", p.id, err)
	}
}

// driveSync runs on every tick in Run. An unanswered request past the
// request timeout disconnects the peer; its jobs are abandoned for the
// scheduler to reassign.
func (p *Peer) driveSync(ctx context.Context, now time.Time) {
	timeout := p.settings.Legacy.RequestTimeout

	expired := p.headerSync.Expired(now, timeout)

	for _, t := range p.trackers() {
		expired = expired || t.Expired(now, timeout)
	}

	if expired {
		p.shutdown(ctx, errors.NewNetworkTimeoutError("[Peer][%d] request not answered within %s", p.id, timeout))
		return
	}

	p.pumpJobs(now)
}

func (p *Peer) trackers() []netsync.Tracker {
	trackers := make([]netsync.Tracker, 0, 3)

	if p.cfheaders != nil {
		trackers = append(trackers, p.cfheaders)
	}

	if p.cfilters != nil {
		trackers = append(trackers, p.cfilters)
	}

	if p.blocks != nil {
		trackers = append(trackers, p.blocks)
	}

	return trackers
}

func (p *Peer) reorg(parent model.Position) {
	p.logger.Infof("[Peer][%d] reorg at %s", p.id, parent)

	p.headerSync.Reorg(parent)

	for _, t := range p.trackers() {
		t.Reorg(parent)
	}
}

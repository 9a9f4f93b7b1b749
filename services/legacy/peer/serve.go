package peer

import (
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// serveHeaders answers getheaders from the header oracle. It always replies,
// with an empty headers message when there is nothing to send. An empty
// locator asks for the stop header alone.
func (p *Peer) serveHeaders(msg *wire.MsgGetHeaders) error {
	reply := &wire.MsgHeaders{}

	if len(msg.BlockLocatorHashes) == 0 {
		if header, _, err := p.cfg.Headers.LoadHeader(msg.HashStop); err == nil {
			reply.AddBlockHeader(header)
		}

		return p.send(reply)
	}

	// the genesis block is always shared
	start := int32(1)

	for _, hash := range msg.BlockLocatorHashes {
		_, height, err := p.cfg.Headers.LoadHeader(*hash)
		if err != nil {
			continue
		}

		if best := p.cfg.Headers.BestHashes(height, chainhash.Hash{}, 1); len(best) == 1 && best[0] == *hash {
			start = height + 1
			break
		}
	}

	for _, hash := range p.cfg.Headers.BestHashes(start, msg.HashStop, wire.MaxBlockHeadersPerMsg) {
		header, _, err := p.cfg.Headers.LoadHeader(hash)
		if err != nil {
			break
		}

		reply.AddBlockHeader(header)
	}

	return p.send(reply)
}

// filterRange resolves a filter query to best chain positions. Queries we
// cannot answer are dropped without a reply.
func (p *Peer) filterRange(startHeight uint32, stop chainhash.Hash, limit int) (model.Positions, bool) {
	start, err := safeconversion.Uint32ToInt32(startHeight)
	if err != nil {
		return nil, false
	}

	positions, err := p.cfg.Headers.Ancestors(start, stop)
	if err != nil || len(positions) == 0 || len(positions) > limit {
		p.logger.Debugf("[Peer][%d] cannot serve filters %d..%s", p.id, startHeight, stop)
		return nil, false
	}

	return positions, true
}

func (p *Peer) serveCFHeaders(msg *wire.MsgGetCFHeaders) error {
	positions, ok := p.filterRange(msg.StartHeight, msg.StopHash, wire.MaxCFHeadersPerMsg)
	if !ok {
		return nil
	}

	reply := &wire.MsgCFHeaders{FilterType: msg.FilterType, StopHash: msg.StopHash}

	if first := positions.First(); first.Height > 0 {
		header, _, err := p.cfg.Headers.LoadHeader(first.Hash)
		if err != nil {
			return nil
		}

		if reply.PrevFilterHeader, err = p.cfg.Filters.LoadFilterHeader(msg.FilterType, header.PrevHash()); err != nil {
			return nil
		}
	}

	for _, pos := range positions {
		filter, err := p.cfg.Filters.LoadFilter(msg.FilterType, pos.Hash)
		if err != nil {
			p.logger.Debugf("[Peer][%d] no %s filter for %s", p.id, msg.FilterType, pos)
			return nil
		}

		filterHash := model.FilterHash(filter)
		reply.AddCFHash(&filterHash)
	}

	return p.send(reply)
}

func (p *Peer) serveCFilters(msg *wire.MsgGetCFilters) error {
	positions, ok := p.filterRange(msg.StartHeight, msg.StopHash, wire.MaxGetCFiltersReqRange)
	if !ok {
		return nil
	}

	for _, pos := range positions {
		filter, err := p.cfg.Filters.LoadFilter(msg.FilterType, pos.Hash)
		if err != nil {
			p.logger.Debugf("[Peer][%d] no %s filter for %s", p.id, msg.FilterType, pos)
			return nil
		}

		if err = p.send(&wire.MsgCFilter{FilterType: msg.FilterType, BlockHash: pos.Hash, Data: filter}); err != nil {
			return err
		}
	}

	return nil
}

func (p *Peer) serveCFCheckpt(msg *wire.MsgGetCFCheckpt) error {
	positions, err := p.cfg.Headers.Ancestors(0, msg.StopHash)
	if err != nil {
		return nil
	}

	reply := &wire.MsgCFCheckpt{FilterType: msg.FilterType, StopHash: msg.StopHash}

	for i := wire.CFCheckptInterval; i < len(positions); i += wire.CFCheckptInterval {
		header, err := p.cfg.Filters.LoadFilterHeader(msg.FilterType, positions[i].Hash)
		if err != nil {
			return nil
		}

		reply.FilterHeaders = append(reply.FilterHeaders, &header)
	}

	return p.send(reply)
}

// serveData answers getdata. Blocks are only sent when the block oracle
// already holds them; anything that cannot be served right away is listed
// in a single notfound.
func (p *Peer) serveData(msg *wire.MsgGetData) error {
	notFound := &wire.MsgNotFound{}

	for _, iv := range msg.InvList {
		var payload wire.Payload

		switch {
		case iv.Type == wire.InvTypeTx:
			if raw, ok := p.cfg.Mempool.Query(iv.Hash); ok {
				payload = &wire.MsgTx{Raw: raw}
			}

		case iv.Type == wire.InvTypeBlock:
			select {
			case raw, ok := <-p.cfg.Blocks.LoadBitcoin(iv.Hash):
				if ok && raw != nil {
					payload = &wire.MsgBlock{Raw: raw}
				}
			default:
			}
		}

		if payload == nil {
			notFound.AddInvVect(iv)
			continue
		}

		if err := p.send(payload); err != nil {
			return err
		}
	}

	if len(notFound.InvList) > 0 {
		return p.send(notFound)
	}

	return nil
}

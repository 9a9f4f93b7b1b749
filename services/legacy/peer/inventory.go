package peer

import (
	"context"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

func txInv(hash chainhash.Hash) wire.InvVect {
	return wire.InvVect{Type: wire.InvTypeTx, Hash: hash}
}

func blockInv(hash chainhash.Hash) wire.InvVect {
	return wire.InvVect{Type: wire.InvTypeBlock, Hash: hash}
}

// markKnown records that the remote has iv. It reports whether iv was
// already known.
func (p *Peer) markKnown(iv wire.InvVect) bool {
	if p.knownInventory.Contains(iv) {
		return true
	}

	p.knownInventory.Add(iv)

	return false
}

// handleInv turns announcements into requests: unknown blocks start a
// header sync, transactions the mempool lacks are fetched with a single
// getdata.
func (p *Peer) handleInv(msg *wire.MsgInv, now time.Time) error {
	var txids []chainhash.Hash

	for _, iv := range msg.InvList {
		p.markKnown(*iv)

		switch {
		case iv.Type.IsBlock():
			if _, _, err := p.cfg.Headers.LoadHeader(iv.Hash); err == nil {
				continue
			}

			if !p.headerSync.Pending() {
				if err := p.requestHeaders(iv.Hash, now); err != nil {
					return err
				}
			}

		case iv.Type == wire.InvTypeTx:
			txids = append(txids, iv.Hash)
		}
	}

	if len(txids) == 0 {
		return nil
	}

	prometheusPeerTxAnnounced.Add(float64(len(txids)))

	wanted := p.cfg.Mempool.Submit(txids)
	if len(wanted) == 0 {
		return nil
	}

	getData := wire.NewMsgGetData()

	for i := range wanted {
		if !getData.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &wanted[i])) {
			break
		}
	}

	return p.send(getData)
}

func (p *Peer) handleNotFound(msg *wire.MsgNotFound) {
	for _, iv := range msg.InvList {
		if iv.Type.IsBlock() && p.blocks != nil {
			p.blocks.NotFound(iv.Hash)
		}
	}
}

func (p *Peer) handleTx(msg *wire.MsgTx) error {
	txid := msg.TxID()
	p.markKnown(txInv(txid))

	if err := p.cfg.Mempool.SubmitTx(msg.Raw); err != nil {
		if errors.CodeOf(err) == errors.ERR_TX_ALREADY_EXISTS {
			return nil
		}

		return errors.NewTxInvalidError("[Peer][%d] mempool refused tx %s", p.id, txid, err)
	}

	return nil
}

// announceMempool sends inv for every mempool transaction. With onlyUnknown
// set, transactions the remote already has are skipped.
func (p *Peer) announceMempool(onlyUnknown bool) error {
	if !p.relay.Load() {
		return nil
	}

	inv := wire.NewMsgInv()

	for _, txid := range p.cfg.Mempool.Dump() {
		iv := txInv(txid)

		if known := p.markKnown(iv); known && onlyUnknown {
			continue
		}

		if !inv.AddInvVect(&iv) {
			if err := p.send(inv); err != nil {
				return err
			}

			inv = wire.NewMsgInv()
			inv.AddInvVect(&iv)
		}
	}

	if len(inv.InvList) == 0 {
		return nil
	}

	return p.send(inv)
}

// maybeReconcile offers the remote every mempool transaction it is not
// known to have.
func (p *Peer) maybeReconcile(now time.Time) {
	interval := p.settings.Legacy.ReconcileInterval
	if interval <= 0 || now.Sub(p.lastReconcile) < interval {
		return
	}

	p.lastReconcile = now

	if err := p.announceMempool(true); err != nil {
		p.logger.Debugf("[Peer][%d] reconcile: %v", p.id, err)
	}
}

func (p *Peer) handleChainEvent(ctx context.Context, ev ChainEvent) {
	if ev.Origin == p && ev.Type != ChainReorg {
		return
	}

	var err error

	switch ev.Type {
	case ChainBlock:
		err = p.announceBlock(ev)
	case ChainTx:
		err = p.relayTx(ev.TxID)
	case ChainReorg:
		p.reorg(ev.Position)
	}

	if err != nil {
		p.shutdown(ctx, err)
	}
}

// announceBlock tells the remote about a new best block, as headers if it
// asked for sendheaders.
func (p *Peer) announceBlock(ev ChainEvent) error {
	if p.markKnown(blockInv(ev.Position.Hash)) {
		return nil
	}

	if p.sendHeaders && ev.Header != nil {
		return p.send(&wire.MsgHeaders{Headers: []wire.BlockHeader{*ev.Header}})
	}

	inv := wire.NewMsgInv()
	inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &ev.Position.Hash))

	return p.send(inv)
}

func (p *Peer) relayTx(txid chainhash.Hash) error {
	if !p.relay.Load() || p.markKnown(txInv(txid)) {
		return nil
	}

	inv := wire.NewMsgInv()
	inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &txid))

	return p.send(inv)
}

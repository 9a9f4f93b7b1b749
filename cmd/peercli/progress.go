package main

import (
	"context"
	"time"

	"github.com/bsv-blockchain/cfpeer/model"
)

const defaultProgressInterval = 10 * time.Second

// syncProgress is a snapshot of how far the node got.
type syncProgress struct {
	Headers       int32 `json:"headers"`
	FilterHeaders int32 `json:"filterHeaders"`
	Filters       int32 `json:"filters"`
	Inbound       int   `json:"inbound"`
	Outbound      int   `json:"outbound"`
	Mempool       int   `json:"mempool"`

	// counts held by the oracle, side branches included
	StoredFilters int `json:"storedFilters"`
	StoredBlocks  int `json:"storedBlocks"`
}

func (n *node) progress() syncProgress {
	tip := n.oracle.BestPosition()
	stored := n.oracle.Stored()
	inbound, outbound := n.server.PeerManager().Count()

	filterHeaders := syncedTo(tip, n.oracle.MissingFilterHeaders(model.FilterTypeBasic, 1))

	// filters are only fetched below known filter headers
	filters := min(filterHeaders, syncedTo(tip, n.oracle.MissingFilters(model.FilterTypeBasic, 1)))

	return syncProgress{
		Headers:       tip.Height,
		FilterHeaders: filterHeaders,
		Filters:       filters,
		Inbound:       inbound,
		Outbound:      outbound,
		Mempool:       n.mempool.Len(),
		StoredFilters: stored.Filters,
		StoredBlocks:  stored.Blocks,
	}
}

// syncedTo is the height below the first gap, or the tip without gaps.
func syncedTo(tip model.Position, gap model.Positions) int32 {
	if len(gap) == 0 {
		return tip.Height
	}

	return gap.First().Height - 1
}

func reportProgress(ctx context.Context, n *node, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p := n.progress()
		n.logger.Infof("[peercli] headers %d, cfheaders %d, cfilters %d (%d stored), blocks %d, peers %d in / %d out, mempool %d",
			p.Headers, p.FilterHeaders, p.Filters, p.StoredFilters, p.StoredBlocks, p.Inbound, p.Outbound, p.Mempool)
	}
}

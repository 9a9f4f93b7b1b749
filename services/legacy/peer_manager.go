package legacy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/netsync"
	"github.com/bsv-blockchain/cfpeer/services/legacy/peer"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/settings"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/patrickmn/go-cache"
)

const (
	subscriptionSize = 256

	addressExpiry = 24 * time.Hour
	maxAddresses  = 5000
)

// Chain is the chain store the peer manager schedules from. It is the union
// of the peer oracles plus the gap queries.
type Chain interface {
	peer.HeaderOracle
	peer.BlockOracle
	peer.FilterOracle

	OnBestChain(hash chainhash.Hash) bool
	FindFork(hash chainhash.Hash) (model.Position, error)

	MissingFilterHeaders(filterType model.FilterType, limit int) model.Positions
	MissingFilters(filterType model.FilterType, limit int) model.Positions
	MissingBlocks(limit int) model.Positions
}

type jobKind int

const (
	jobCfheaders jobKind = iota
	jobCfilters
	jobBlocks
	jobKinds
)

func (k jobKind) String() string {
	switch k {
	case jobCfheaders:
		return "cfheaders"
	case jobCfilters:
		return "cfilters"
	case jobBlocks:
		return "blocks"
	default:
		return "unknown"
	}
}

type assignment struct {
	peer    *peer.Peer
	tracker netsync.Tracker
}

type peerState struct {
	peer   *peer.Peer
	height int32
	hash   chainhash.Hash
}

// PeerManager tracks the peers of a node. It fans chain events out to the
// peers that subscribed, keeps the address book, and hands filter and block
// jobs to peers in Run. At most one job of each kind runs at a time.
type PeerManager struct {
	logger   ulogger.Logger
	settings *settings.Settings
	chain    Chain

	mu        sync.RWMutex
	peers     map[int32]*peerState
	subs      map[uint64]*peer.Subscription
	nextSub   uint64
	jobs      [jobKinds]*assignment
	lastBest  model.Position
	accepting bool

	addresses *cache.Cache

	wake chan struct{}
}

// NewPeerManager returns a manager scheduling against chain.
func NewPeerManager(logger ulogger.Logger, tSettings *settings.Settings, chain Chain) *PeerManager {
	initPrometheusMetrics()

	return &PeerManager{
		logger:    logger,
		settings:  tSettings,
		chain:     chain,
		peers:     make(map[int32]*peerState),
		subs:      make(map[uint64]*peer.Subscription),
		lastBest:  chain.BestPosition(),
		accepting: true,
		addresses: cache.New(addressExpiry, time.Hour),
		wake:      make(chan struct{}, 1),
	}
}

// Start runs the job scheduler until ctx is done. Subscriptions are refused
// once it returns.
func (pm *PeerManager) Start(ctx context.Context) error {
	interval := pm.settings.Legacy.ScheduleInterval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer func() {
		pm.mu.Lock()
		pm.accepting = false
		pm.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-pm.wake:
		}

		pm.schedule()
	}
}

func (pm *PeerManager) trigger() {
	select {
	case pm.wake <- struct{}{}:
	default:
	}
}

// AddPeer registers p before it is started.
func (pm *PeerManager) AddPeer(p *peer.Peer) {
	pm.mu.Lock()
	pm.peers[p.ID()] = &peerState{peer: p, height: p.StartHeight()}
	pm.mu.Unlock()

	prometheusLegacyPeers.WithLabelValues(direction(p)).Inc()
}

func direction(p *peer.Peer) string {
	if p.Inbound() {
		return "inbound"
	}

	return "outbound"
}

// Peers returns the registered peers ordered by id.
func (pm *PeerManager) Peers() []*peer.Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	peers := make([]*peer.Peer, 0, len(pm.peers))
	for _, ps := range pm.peers {
		peers = append(peers, ps.peer)
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].ID() < peers[j].ID() })

	return peers
}

// Count returns the number of inbound and outbound peers.
func (pm *PeerManager) Count() (inbound, outbound int) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, ps := range pm.peers {
		if ps.peer.Inbound() {
			inbound++
		} else {
			outbound++
		}
	}

	return inbound, outbound
}

// PeerHeight returns the best height p is known to have.
func (pm *PeerManager) PeerHeight(p *peer.Peer) (int32, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ps, ok := pm.peers[p.ID()]
	if !ok {
		return 0, false
	}

	return ps.height, true
}

// Addresses returns the addresses peers have told us about.
func (pm *PeerManager) Addresses() []*wire.NetAddress {
	items := pm.addresses.Items()

	addresses := make([]*wire.NetAddress, 0, len(items))
	for _, item := range items {
		addresses = append(addresses, item.Object.(*wire.NetAddress))
	}

	return addresses
}

// DisconnectAll asks every peer to shut down.
func (pm *PeerManager) DisconnectAll(reason error) {
	for _, p := range pm.Peers() {
		p.Disconnect(reason)
	}
}

func (pm *PeerManager) UpdateHeight(p *peer.Peer, height int32, hash chainhash.Hash) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	ps, ok := pm.peers[p.ID()]
	if !ok || height < ps.height {
		return
	}

	ps.height = height

	if hash != (chainhash.Hash{}) {
		ps.hash = hash
	}
}

// HeadersSubmitted announces a new best block to every other peer, preceded
// by a reorg event when the previous best block left the best chain.
func (pm *PeerManager) HeadersSubmitted(p *peer.Peer, best model.Position, added model.Positions) {
	pm.logger.Debugf("[PeerManager] peer %d added %d headers, best %s", p.ID(), len(added), best)

	pm.mu.Lock()

	prev := pm.lastBest
	if best.Hash == prev.Hash {
		pm.mu.Unlock()
		return
	}

	pm.lastBest = best

	var events []peer.ChainEvent

	if !pm.chain.OnBestChain(prev.Hash) {
		if fork, err := pm.chain.FindFork(prev.Hash); err == nil {
			pm.logger.Infof("[PeerManager] reorg from %s to %s, fork at %s", prev, best, fork)
			prometheusLegacyReorgs.Inc()

			events = append(events, peer.ChainEvent{Type: peer.ChainReorg, Position: fork, Origin: p})
		}
	}

	ev := peer.ChainEvent{Type: peer.ChainBlock, Position: best, Origin: p}

	if header, _, err := pm.chain.LoadHeader(best.Hash); err == nil {
		ev.Header = &header
	}

	events = append(events, ev)

	for _, ev := range events {
		pm.broadcastLocked(ev)
	}

	pm.mu.Unlock()

	pm.trigger()
}

func (pm *PeerManager) BlockSubmitted(p *peer.Peer, pos model.Position) {
	pm.logger.Debugf("[PeerManager] peer %d delivered block %s", p.ID(), pos)
	pm.trigger()
}

// TxAccepted relays a transaction the mempool just accepted.
func (pm *PeerManager) TxAccepted(txid chainhash.Hash) {
	pm.mu.RLock()
	pm.broadcastLocked(peer.ChainEvent{Type: peer.ChainTx, TxID: txid})
	pm.mu.RUnlock()
}

// broadcastLocked hands ev to every subscription without blocking. A peer
// too slow to keep up misses the event. Callers hold mu.
func (pm *PeerManager) broadcastLocked(ev peer.ChainEvent) {
	prometheusLegacyEvents.WithLabelValues(ev.Type.String()).Inc()

	for _, sub := range pm.subs {
		select {
		case sub.Events <- ev:
		default:
			prometheusLegacyEventsDropped.Inc()
			pm.logger.Warnf("[PeerManager] peer %d subscription full, dropped %s event", sub.Peer.ID(), ev.Type)
		}
	}
}

func (pm *PeerManager) AddAddresses(p *peer.Peer, addresses []*wire.NetAddress) {
	added := 0

	for _, addr := range addresses {
		if addr.Port == 0 || addr.IP == nil || addr.IP.IsUnspecified() {
			continue
		}

		if pm.addresses.ItemCount() >= maxAddresses {
			break
		}

		if err := pm.addresses.Add(addr.String(), addr, cache.DefaultExpiration); err == nil {
			added++
		}
	}

	pm.logger.Debugf("[PeerManager] peer %d sent %d addresses, %d new", p.ID(), len(addresses), added)
}

func (pm *PeerManager) Subscribe(p *peer.Peer) *peer.Subscription {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if !pm.accepting {
		return nil
	}

	pm.nextSub++
	sub := peer.NewSubscription(pm.nextSub, p, subscriptionSize)
	pm.subs[sub.ID] = sub

	return sub
}

func (pm *PeerManager) Unsubscribe(sub *peer.Subscription) {
	pm.mu.Lock()
	delete(pm.subs, sub.ID)
	pm.mu.Unlock()
}

// PeerDone forgets p. Its jobs were abandoned on shutdown and are handed
// to another peer on the next schedule.
func (pm *PeerManager) PeerDone(p *peer.Peer) {
	pm.mu.Lock()

	_, known := pm.peers[p.ID()]
	delete(pm.peers, p.ID())

	for k, a := range pm.jobs {
		if a != nil && a.peer == p {
			pm.jobs[k] = nil
		}
	}

	pm.mu.Unlock()

	if known {
		prometheusLegacyPeers.WithLabelValues(direction(p)).Dec()
	}

	pm.logger.Infof("[PeerManager] peer %d done: %v", p.ID(), p.Err())

	pm.trigger()
}

// schedule hands each kind of job whose slot is free to a running peer
// that has the blocks in question.
func (pm *PeerManager) schedule() {
	kinds := []jobKind{jobCfheaders, jobCfilters}
	if pm.settings.Legacy.FetchBlocks {
		kinds = append(kinds, jobBlocks)
	}

	for _, kind := range kinds {
		if !pm.slotFree(kind) {
			continue
		}

		tracker, last, err := pm.nextJob(kind)
		if err != nil {
			pm.logger.Errorf("[PeerManager] cannot build %s job: %v", kind, err)
			continue
		}

		if tracker == nil {
			continue
		}

		pm.assign(kind, tracker, last)
	}
}

func (pm *PeerManager) slotFree(kind jobKind) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	a := pm.jobs[kind]
	if a == nil {
		return true
	}

	if a.tracker.Finished() || a.tracker.Abandoned() {
		pm.jobs[kind] = nil
		return true
	}

	return false
}

func (pm *PeerManager) nextJob(kind jobKind) (netsync.Tracker, int32, error) {
	limit := pm.settings.Legacy.MaxFilterBatch

	switch kind {
	case jobCfheaders:
		positions := pm.chain.MissingFilterHeaders(model.FilterTypeBasic, min(limit, wire.MaxCFHeadersPerMsg))
		if len(positions) == 0 {
			return nil, 0, nil
		}

		job, err := netsync.NewCfheaderJob(model.FilterTypeBasic, positions)

		return job, positions.Last().Height, err

	case jobCfilters:
		positions := pm.chain.MissingFilters(model.FilterTypeBasic, min(limit, wire.MaxGetCFiltersReqRange))
		if len(positions) == 0 {
			return nil, 0, nil
		}

		job, err := netsync.NewCfilterJob(model.FilterTypeBasic, positions)

		return job, positions.Last().Height, err

	case jobBlocks:
		positions := pm.chain.MissingBlocks(pm.settings.Legacy.MaxBlockBatch)
		if len(positions) == 0 {
			return nil, 0, nil
		}

		job, err := netsync.NewBlockJob(positions, pm.settings.Legacy.MaxBlockBatch)

		return job, positions.Last().Height, err
	}

	return nil, 0, nil
}

// candidates returns running peers at or above height, least busy first.
func (pm *PeerManager) candidates(height int32) []*peer.Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	busy := make(map[*peer.Peer]int)

	for _, a := range pm.jobs {
		if a != nil {
			busy[a.peer]++
		}
	}

	var peers []*peer.Peer

	for _, ps := range pm.peers {
		if ps.peer.State() == peer.StateRun && max(ps.height, ps.peer.LastBlock()) >= height {
			peers = append(peers, ps.peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool {
		if busy[peers[i]] != busy[peers[j]] {
			return busy[peers[i]] < busy[peers[j]]
		}

		return peers[i].ID() < peers[j].ID()
	})

	return peers
}

// assign offers tracker to candidates in turn. The lock is not held while
// a peer answers.
func (pm *PeerManager) assign(kind jobKind, tracker netsync.Tracker, height int32) {
	for _, p := range pm.candidates(height) {
		if err := p.Assign(tracker); err != nil {
			pm.logger.Debugf("[PeerManager] peer %d refused %s job: %v", p.ID(), kind, err)
			continue
		}

		pm.mu.Lock()
		pm.jobs[kind] = &assignment{peer: p, tracker: tracker}
		pm.mu.Unlock()

		prometheusLegacyJobsAssigned.WithLabelValues(kind.String()).Inc()

		remaining := tracker.Remaining()
		pm.logger.Infof("[PeerManager] %s job %s..%s assigned to peer %d", kind, remaining.First(), remaining.Last(), p.ID())

		return
	}
}

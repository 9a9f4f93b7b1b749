package peer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/connmgr"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/settings"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	gowire "github.com/bsv-blockchain/go-wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const waitTimeout = 5 * time.Second

// testChain is a linear header chain with a filter for every block. It
// serves as header, block and filter oracle.
type testChain struct {
	mu       sync.Mutex
	headers  []wire.BlockHeader
	heights  map[chainhash.Hash]int32
	filters  map[chainhash.Hash][]byte
	fHeaders map[chainhash.Hash]chainhash.Hash
	blocks   map[chainhash.Hash][]byte
	added    [][]wire.BlockHeader

	// addErr, when set, fails every AddHeaders call
	addErr error
}

func newTestChain(t *testing.T, n int) *testChain {
	t.Helper()

	c := &testChain{
		heights:  make(map[chainhash.Hash]int32),
		filters:  make(map[chainhash.Hash][]byte),
		fHeaders: make(map[chainhash.Hash]chainhash.Hash),
		blocks:   make(map[chainhash.Hash][]byte),
	}

	prev := chainhash.Hash{}
	prevFilterHeader := chainhash.Hash{}

	for i := 0; i < n; i++ {
		h, err := wire.NewBlockHeaderFromWire(&gowire.BlockHeader{Version: 1, PrevBlock: prev, Nonce: uint32(i)}) //nolint:gosec // test heights
		require.NoError(t, err)

		hash := h.Hash()
		filter := []byte{byte(i), 0x5c}

		c.headers = append(c.headers, h)
		c.heights[hash] = int32(i) //nolint:gosec // test heights
		c.filters[hash] = filter
		prevFilterHeader = model.NextFilterHeader(model.FilterHash(filter), prevFilterHeader)
		c.fHeaders[hash] = prevFilterHeader
		prev = hash
	}

	return c
}

func (c *testChain) position(height int) model.Position {
	return model.Position{Height: int32(height), Hash: c.headers[height].Hash()} //nolint:gosec // test heights
}

func (c *testChain) checkpoint() model.Checkpoint {
	hash := c.headers[0].Hash()
	return model.Checkpoint{Height: 0, BlockHash: hash, FilterHeader: c.fHeaders[hash], FilterType: model.FilterTypeBasic}
}

func (c *testChain) LoadHeader(hash chainhash.Hash) (wire.BlockHeader, int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	height, ok := c.heights[hash]
	if !ok {
		return wire.BlockHeader{}, 0, errors.NewNotFoundError("header %s", hash)
	}

	return c.headers[height], height, nil
}

func (c *testChain) BestHashes(start int32, stop chainhash.Hash, limit int) []chainhash.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hashes []chainhash.Hash

	for h := int(start); h < len(c.headers) && len(hashes) < limit; h++ {
		hash := c.headers[h].Hash()
		hashes = append(hashes, hash)

		if hash == stop {
			break
		}
	}

	return hashes
}

func (c *testChain) Ancestors(fromHeight int32, to chainhash.Hash) (model.Positions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	height, ok := c.heights[to]
	if !ok || fromHeight > height {
		return nil, errors.NewNotFoundError("header %s", to)
	}

	ps := make(model.Positions, 0, height-fromHeight+1)
	for h := fromHeight; h <= height; h++ {
		ps = append(ps, c.position(int(h)))
	}

	return ps, nil
}

func (c *testChain) GetDefaultCheckpoint() model.Checkpoint {
	return c.checkpoint()
}

func (c *testChain) BestPosition() model.Position {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.position(len(c.headers) - 1)
}

func (c *testChain) AddHeaders(headers []wire.BlockHeader) (model.Position, model.Positions, error) {
	c.mu.Lock()
	c.added = append(c.added, headers)
	err := c.addErr
	c.mu.Unlock()

	if err != nil {
		return model.Position{}, nil, err
	}

	return c.BestPosition(), nil, nil
}

func (c *testChain) LoadBitcoin(hash chainhash.Hash) <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan []byte, 1)
	if blk, ok := c.blocks[hash]; ok {
		ch <- blk
	}

	return ch
}

func (c *testChain) Validate([]byte) error {
	return nil
}

func (c *testChain) AddBitcoin(hash chainhash.Hash, block []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks[hash] = block

	return nil
}

func (c *testChain) LoadFilter(_ model.FilterType, hash chainhash.Hash) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.filters[hash]
	if !ok {
		return nil, errors.NewNotFoundError("filter %s", hash)
	}

	return f, nil
}

func (c *testChain) LoadFilterHeader(_ model.FilterType, hash chainhash.Hash) (chainhash.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.fHeaders[hash]
	if !ok {
		return chainhash.Hash{}, errors.NewNotFoundError("filter header %s", hash)
	}

	return h, nil
}

func (c *testChain) AddFilterHeaders(model.FilterType, model.Positions, []chainhash.Hash, []chainhash.Hash) error {
	return nil
}

func (c *testChain) AddFilter(model.FilterType, chainhash.Hash, []byte) error {
	return nil
}

func (c *testChain) addedBatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.added)
}

// testMempool remembers what was announced and stored.
type testMempool struct {
	mu        sync.Mutex
	txs       map[chainhash.Hash][]byte
	announced map[chainhash.Hash]bool
}

func newTestMempool() *testMempool {
	return &testMempool{txs: make(map[chainhash.Hash][]byte), announced: make(map[chainhash.Hash]bool)}
}

func (m *testMempool) Query(txid chainhash.Hash) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[txid]

	return tx, ok
}

func (m *testMempool) Submit(txids []chainhash.Hash) []chainhash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	var missing []chainhash.Hash

	for _, txid := range txids {
		if _, ok := m.txs[txid]; ok || m.announced[txid] {
			continue
		}

		m.announced[txid] = true
		missing = append(missing, txid)
	}

	return missing
}

func (m *testMempool) SubmitTx(tx []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs[chainhash.DoubleHashH(tx)] = tx

	return nil
}

func (m *testMempool) Dump() []chainhash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	txids := make([]chainhash.Hash, 0, len(m.txs))
	for txid := range m.txs {
		txids = append(txids, txid)
	}

	return txids
}

// testManager records what peers report and hands out subscriptions.
type testManager struct {
	mu        sync.Mutex
	subs      []*Subscription
	done      []*Peer
	addresses int
	heights   []int32
}

func (m *testManager) UpdateHeight(_ *Peer, height int32, _ chainhash.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.heights = append(m.heights, height)
}

func (m *testManager) HeadersSubmitted(*Peer, model.Position, model.Positions) {}

func (m *testManager) BlockSubmitted(*Peer, model.Position) {}

func (m *testManager) AddAddresses(_ *Peer, addresses []*wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addresses += len(addresses)
}

func (m *testManager) Subscribe(p *Peer) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := NewSubscription(uint64(len(m.subs)+1), p, 16)
	m.subs = append(m.subs, sub)

	return sub
}

func (m *testManager) Unsubscribe(*Subscription) {}

func (m *testManager) PeerDone(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.done = append(m.done, p)
}

func (m *testManager) subscription(t *testing.T) *Subscription {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	require.Len(t, m.subs, 1)

	return m.subs[0]
}

// stalledTransport never finishes a write.
type stalledTransport struct {
	connmgr.Transport
	closed atomic.Bool
}

func (s *stalledTransport) Transmit(_, _ []byte) <-chan error {
	return make(chan error)
}

func (s *stalledTransport) Close() error {
	s.closed.Store(true)
	return s.Transport.Close()
}

// harness plays the remote node over the inbound half of a loopback pair.
type harness struct {
	t        *testing.T
	chain    *testChain
	mempool  *testMempool
	manager  *testManager
	peer     *Peer
	remote   connmgr.Transport
	magic    uint32
	messages chan *wire.Message
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	inbound  bool
	settings func(*settings.Settings)
	onState  func(State)
}

// asInbound makes the peer under test the accepting side.
func asInbound() harnessOption {
	return func(c *harnessConfig) {
		c.inbound = true
	}
}

func withStateHook(fn func(State)) harnessOption {
	return func(c *harnessConfig) {
		c.onState = fn
	}
}

func withSettings(fn func(*settings.Settings)) harnessOption {
	return func(c *harnessConfig) {
		c.settings = fn
	}
}

func newHarness(t *testing.T, n int, opts ...harnessOption) *harness {
	t.Helper()

	hc := &harnessConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	tSettings := settings.NewTestSettings(&chaincfg.RegressionNetParams)
	if hc.settings != nil {
		hc.settings(tSettings)
	}

	logger := ulogger.TestLogger{}

	config := connmgr.Config{Magic: tSettings.ChainCfgParams.Magic(), MaxPayloadSize: tSettings.Legacy.MaxPayloadSize}
	outbound, inbound := connmgr.NewLoopback(logger, config)

	var local, remote connmgr.Transport = outbound, inbound
	if hc.inbound {
		local, remote = inbound, outbound
	}

	h := &harness{
		t:        t,
		chain:    newTestChain(t, n),
		mempool:  newTestMempool(),
		manager:  &testManager{},
		remote:   remote,
		magic:    config.Magic,
		messages: make(chan *wire.Message, 1000),
	}

	p, err := New(logger, tSettings, local, Config{
		Headers: h.chain,
		Blocks:  h.chain,
		Filters: h.chain,
		Mempool: h.mempool,
		Manager: h.manager,

		OnStateChange: hc.onState,
	})
	require.NoError(t, err)

	h.peer = p

	require.NoError(t, remote.Connect(context.Background()))
	go h.read()

	t.Cleanup(func() {
		p.Disconnect(nil)
		_ = remote.Close()
	})

	return h
}

// read decodes everything the peer sends.
func (h *harness) read() {
	var header *wire.MessageHeader

	for ev := range h.remote.Events() {
		switch ev.Type {
		case connmgr.EventHeader:
			header = ev.Header
		case connmgr.EventPayload:
			msg, err := wire.DecodePayload(header, ev.Payload)
			if err != nil {
				return
			}

			h.messages <- msg
		case connmgr.EventError:
			return
		}
	}
}

func (h *harness) start() {
	h.t.Helper()
	h.startContext(context.Background())
}

func (h *harness) startContext(ctx context.Context) {
	h.t.Helper()
	require.NoError(h.t, h.peer.Start(ctx))
}

func (h *harness) send(payload wire.Payload) {
	h.t.Helper()

	msg, err := wire.NewMessage(h.magic, payload)
	require.NoError(h.t, err)

	select {
	case err = <-h.remote.Transmit(msg.Header(), msg.PayloadBytes()):
		require.NoError(h.t, err)
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out sending %s", msg.Name())
	}
}

// expect returns the next message from the peer, which must be cmd.
func (h *harness) expect(cmd wire.Command) *wire.Message {
	h.t.Helper()

	select {
	case msg := <-h.messages:
		require.Equal(h.t, cmd, msg.Command, "got %s", msg.Name())
		return msg
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out waiting for %s", cmd)
	}

	return nil
}

// drain collects what the peer sends until it has been quiet for quiet.
func (h *harness) drain(quiet time.Duration) []*wire.Message {
	var msgs []*wire.Message

	for {
		select {
		case msg := <-h.messages:
			msgs = append(msgs, msg)
		case <-time.After(quiet):
			return msgs
		}
	}
}

func (h *harness) remoteVersion(nonce uint64) *wire.MsgVersion {
	me := wire.NewNetAddress("127.0.0.1:18444", wire.SFNodeNetwork)
	you := wire.NewNetAddress("127.0.0.1:18445", 0)

	v := wire.NewMsgVersion(me, you, nonce, 0)
	v.ProtocolVersion = 70015
	v.Services = wire.SFNodeNetwork
	v.UserAgent = "/remote:1.0/"

	return v
}

// handshake answers the peer's version and completes the handshake.
func (h *harness) handshake() {
	h.t.Helper()

	h.expect(wire.CmdVersion)
	h.send(h.remoteVersion(0x1234))
	h.send(&wire.MsgVerAck{})
	h.expect(wire.CmdVerAck)
}

// verify answers the checkpoint requests honestly.
func (h *harness) verify() {
	h.t.Helper()

	getHeaders := h.expect(wire.CmdGetHeaders).Payload.(*wire.MsgGetHeaders)
	require.Empty(h.t, getHeaders.BlockLocatorHashes)

	getCFHeaders := h.expect(wire.CmdGetCFHeaders).Payload.(*wire.MsgGetCFHeaders)

	cp := h.chain.checkpoint()
	require.Equal(h.t, cp.BlockHash, getHeaders.HashStop)
	require.Equal(h.t, cp.BlockHash, getCFHeaders.StopHash)

	h.send(&wire.MsgHeaders{Headers: []wire.BlockHeader{h.chain.headers[0]}})

	filterHash := model.FilterHash(h.chain.filters[cp.BlockHash])
	h.send(&wire.MsgCFHeaders{
		FilterType:   model.FilterTypeBasic,
		StopHash:     cp.BlockHash,
		FilterHashes: []*chainhash.Hash{&filterHash},
	})
}

// run takes the peer all the way to Run and consumes the messages it sends
// on entry.
func (h *harness) run() {
	h.t.Helper()

	h.start()
	h.handshake()
	h.verify()

	h.expect(wire.CmdSendHeaders)
	h.expect(wire.CmdGetAddr)
	h.expect(wire.CmdGetHeaders)

	h.waitState(StateRun)
}

func (h *harness) waitState(state State) {
	h.t.Helper()

	require.Eventually(h.t, func() bool {
		return h.peer.State() == state
	}, waitTimeout, 5*time.Millisecond, "peer state %s, want %s", h.peer.State(), state)
}

func (h *harness) waitShutdown() error {
	h.t.Helper()

	select {
	case <-h.peer.Done():
		return h.peer.Err()
	case <-time.After(waitTimeout):
		h.t.Fatal("peer did not shut down")
	}

	return nil
}

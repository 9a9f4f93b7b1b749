package legacy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/peer"
	"github.com/bsv-blockchain/cfpeer/settings"
	oraclememory "github.com/bsv-blockchain/cfpeer/stores/oracle/memory"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syncTimeout = 10 * time.Second

func TestServerInitValidatesSettings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *settings.Settings)
	}{
		{"unknown transport", func(s *settings.Settings) { s.Legacy.Transport = "udp" }},
		{"no peers allowed", func(s *settings.Settings) { s.Legacy.MaxPeers = 0 }},
		{"proxy over zmq", func(s *settings.Settings) {
			s.Legacy.Transport = transportZMQ
			s.Legacy.ProxyAddress = "127.0.0.1:9050"
		}},
	}

	g := newTestGenesis(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tSettings := newTestSettings()
			tt.modify(tSettings)

			s := New(ulogger.TestLogger{}, tSettings, newTestOracle(t, g), newTestMempool(t, tSettings))

			err := s.Init(context.Background())
			require.Error(t, err)
			assert.Equal(t, errors.ERR_CONFIGURATION, errors.CodeOf(err))
		})
	}
}

func TestServerInitSetsProxy(t *testing.T) {
	tSettings := newTestSettings()
	tSettings.Legacy.ProxyAddress = "127.0.0.1:9050"
	tSettings.Legacy.ProxyUser = "user"

	s := New(ulogger.TestLogger{}, tSettings, newTestOracle(t, newTestGenesis(t)), newTestMempool(t, tSettings))
	require.NoError(t, s.Init(context.Background()))

	require.NotNil(t, s.config.Proxy)
	assert.Equal(t, "127.0.0.1:9050", s.config.Proxy.Address)
	assert.Equal(t, "user", s.config.Proxy.Username)
}

type testNode struct {
	server *Server
	oracle *oraclememory.Oracle
	cancel context.CancelFunc
	done   chan error
}

// startTestNode runs a server listening on a free local port and dialling
// connect, if given.
func startTestNode(t *testing.T, oracle *oraclememory.Oracle, connect ...string) *testNode {
	t.Helper()

	tSettings := newTestSettings()
	tSettings.Legacy.ListenAddresses = []string{"127.0.0.1:0"}
	tSettings.Legacy.ConnectPeers = connect

	logger := ulogger.NewVerboseTestLogger(t)
	logger.SetLogLevel("INFO")

	s := New(logger.New("legacy"), tSettings, oracle, newTestMempool(t, tSettings))
	require.NoError(t, s.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())

	n := &testNode{server: s, oracle: oracle, cancel: cancel, done: make(chan error, 1)}

	readyCh := make(chan struct{})

	go func() {
		n.done <- s.Start(ctx, readyCh)
	}()

	select {
	case <-readyCh:
	case <-time.After(syncTimeout):
		t.Fatal("server did not become ready")
	}

	require.NotNil(t, s.Addr())

	t.Cleanup(n.stop)

	return n
}

func (n *testNode) stop() {
	n.cancel()

	select {
	case <-n.done:
	case <-time.After(syncTimeout):
	}

	_ = n.server.Stop(context.Background())
}

func TestServerHealth(t *testing.T) {
	tSettings := newTestSettings()
	s := New(ulogger.TestLogger{}, tSettings, newTestOracle(t, newTestGenesis(t)), newTestMempool(t, tSettings))

	status, _, err := s.Health(context.Background(), true)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, errors.ERR_SERVICE_NOT_STARTED, errors.CodeOf(err))

	n := startTestNode(t, newTestOracle(t, newTestGenesis(t)))

	status, _, err = n.server.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	// ready needs a peer
	status, _, err = n.server.Health(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestServerSyncsHeadersAndFiltersFromSeed(t *testing.T) {
	g := newTestGenesis(t)

	seed := startTestNode(t, newSeedOracle(t, g, 5))
	client := startTestNode(t, newTestOracle(t, g), seed.server.Addr().String())

	tip := seed.oracle.BestPosition()
	require.Equal(t, int32(5), tip.Height)

	require.Eventually(t, func() bool {
		return client.oracle.BestPosition() == tip
	}, syncTimeout, 20*time.Millisecond, "headers")

	require.Eventually(t, func() bool {
		_, err := client.oracle.LoadFilter(model.FilterTypeBasic, tip.Hash)
		return err == nil
	}, syncTimeout, 20*time.Millisecond, "filters")

	want, err := seed.oracle.LoadFilterHeader(model.FilterTypeBasic, tip.Hash)
	require.NoError(t, err)

	got, err := client.oracle.LoadFilterHeader(model.FilterTypeBasic, tip.Hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// both sides see one running peer
	for _, n := range []*testNode{seed, client} {
		peers := n.server.PeerManager().Peers()
		require.Len(t, peers, 1)
		assert.Equal(t, peer.StateRun, peers[0].State())
	}

	status, _, err := client.server.Health(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestServerRelaysAcceptedTransactions(t *testing.T) {
	g := newTestGenesis(t)

	seed := startTestNode(t, newSeedOracle(t, g, 1))
	client := startTestNode(t, newTestOracle(t, g), seed.server.Addr().String())

	require.Eventually(t, func() bool {
		peers := client.server.PeerManager().Peers()
		return len(peers) == 1 && peers[0].State() == peer.StateRun
	}, syncTimeout, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		peers := seed.server.PeerManager().Peers()
		return len(peers) == 1 && peers[0].State() == peer.StateRun
	}, syncTimeout, 20*time.Millisecond)

	tx := testTx()
	require.NoError(t, seed.server.mempool.SubmitTx(tx))

	txid := seed.server.mempool.Dump()[0]

	require.Eventually(t, func() bool {
		_, ok := client.server.mempool.Query(txid)
		return ok
	}, syncTimeout, 20*time.Millisecond)
}

package legacy

import (
	"bytes"
	"testing"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/connmgr"
	"github.com/bsv-blockchain/cfpeer/services/legacy/peer"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/settings"
	mempoolmemory "github.com/bsv-blockchain/cfpeer/stores/mempool/memory"
	oraclememory "github.com/bsv-blockchain/cfpeer/stores/oracle/memory"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	gowire "github.com/bsv-blockchain/go-wire"
	"github.com/stretchr/testify/require"
)

// testGenesis is shared by every node of a test so they agree on the
// checkpoint.
type testGenesis struct {
	header       wire.BlockHeader
	filter       []byte
	filterHeader chainhash.Hash
}

func newTestGenesis(t *testing.T) testGenesis {
	t.Helper()

	filter := []byte{0x01, 0x9d}

	return testGenesis{
		header:       testHeader(t, chainhash.Hash{}, 0),
		filter:       filter,
		filterHeader: model.NextFilterHeader(model.FilterHash(filter), chainhash.Hash{}),
	}
}

func (g testGenesis) checkpoint() model.Checkpoint {
	return model.Checkpoint{
		Height:       0,
		BlockHash:    g.header.Hash(),
		FilterHeader: g.filterHeader,
		FilterType:   model.FilterTypeBasic,
	}
}

func testHeader(t *testing.T, prev chainhash.Hash, nonce uint32) wire.BlockHeader {
	t.Helper()

	h, err := wire.NewBlockHeaderFromWire(&gowire.BlockHeader{
		Version:   1,
		PrevBlock: prev,
		Bits:      0x207fffff,
		Nonce:     nonce,
	})
	require.NoError(t, err)

	return h
}

func testBranch(t *testing.T, prev chainhash.Hash, n int, salt uint32) []wire.BlockHeader {
	t.Helper()

	headers := make([]wire.BlockHeader, 0, n)

	for i := 0; i < n; i++ {
		h := testHeader(t, prev, salt+uint32(i)) //nolint:gosec // small test counts
		headers = append(headers, h)
		prev = h.Hash()
	}

	return headers
}

// newTestOracle returns an oracle holding only the genesis block and its
// filter.
func newTestOracle(t *testing.T, g testGenesis) *oraclememory.Oracle {
	t.Helper()

	o, err := oraclememory.NewWithGenesis(ulogger.TestLogger{}, g.header, g.checkpoint())
	require.NoError(t, err)

	// every node can prove the checkpoint to its peers
	require.NoError(t, o.AddFilter(model.FilterTypeBasic, g.header.Hash(), g.filter))

	o.Start()
	t.Cleanup(o.Stop)

	return o
}

// newSeedOracle returns an oracle holding n blocks above genesis with every
// filter and filter header.
func newSeedOracle(t *testing.T, g testGenesis, n int) *oraclememory.Oracle {
	t.Helper()

	o := newTestOracle(t, g)

	_, added, err := o.AddHeaders(testBranch(t, g.header.Hash(), n, 1))
	require.NoError(t, err)
	require.Len(t, added, n)

	prevFilterHeader := g.filterHeader

	filterHashes := make([]chainhash.Hash, 0, n)
	filterHeaders := make([]chainhash.Hash, 0, n)
	filters := make([][]byte, 0, n)

	for i := range added {
		filter := []byte{byte(i + 2), 0x9d}
		filterHash := model.FilterHash(filter)
		prevFilterHeader = model.NextFilterHeader(filterHash, prevFilterHeader)

		filters = append(filters, filter)
		filterHashes = append(filterHashes, filterHash)
		filterHeaders = append(filterHeaders, prevFilterHeader)
	}

	require.NoError(t, o.AddFilterHeaders(model.FilterTypeBasic, added, filterHashes, filterHeaders))

	for i, pos := range added {
		require.NoError(t, o.AddFilter(model.FilterTypeBasic, pos.Hash, filters[i]))
	}

	return o
}

func newTestMempool(t *testing.T, tSettings *settings.Settings) *mempoolmemory.Mempool {
	t.Helper()

	m := mempoolmemory.New(ulogger.TestLogger{}, mempoolmemory.Options{
		Expiry:         tSettings.Legacy.MempoolExpiry,
		AnnounceExpiry: tSettings.Legacy.AnnounceExpiry,
		MaxSize:        tSettings.Legacy.MempoolMaxSize,
	})

	m.Start()
	t.Cleanup(m.Stop)

	return m
}

// newIdlePeer returns a peer that is never started, for bookkeeping tests.
func newIdlePeer(t *testing.T, tSettings *settings.Settings, chain Chain) *peer.Peer {
	t.Helper()

	outbound, _ := connmgr.NewLoopback(ulogger.TestLogger{}, connmgr.Config{Magic: tSettings.ChainCfgParams.Magic()})

	p, err := peer.New(ulogger.TestLogger{}, tSettings, outbound, peer.Config{
		Headers: chain,
		Blocks:  chain,
		Filters: chain,
		Mempool: newTestMempool(t, tSettings),
	})
	require.NoError(t, err)

	return p
}

func newTestSettings() *settings.Settings {
	return settings.NewTestSettings(&chaincfg.RegressionNetParams)
}

// testTx returns a minimal one input, one output transaction.
func testTx() []byte {
	var buf bytes.Buffer

	buf.Write([]byte{1, 0, 0, 0})
	buf.WriteByte(1)
	buf.Write(make([]byte, 32))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	buf.Write([]byte{2, 0x51, 0x07})
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	buf.WriteByte(1)
	buf.Write(make([]byte, 8))
	buf.Write([]byte{1, 0x51})
	buf.Write([]byte{0, 0, 0, 0})

	return buf.Bytes()
}

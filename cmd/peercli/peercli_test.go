package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/settings"
	mempoolmemory "github.com/bsv-blockchain/cfpeer/stores/mempool/memory"
	oraclememory "github.com/bsv-blockchain/cfpeer/stores/oracle/memory"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/cfpeer/util/servicemanager"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T) *node {
	t.Helper()

	tSettings := settings.NewTestSettings(&chaincfg.RegressionNetParams)
	logger := ulogger.TestLogger{}

	oracle, err := oraclememory.New(logger, tSettings.ChainCfgParams)
	require.NoError(t, err)

	mempool := mempoolmemory.New(logger, mempoolmemory.Options{Expiry: tSettings.Legacy.MempoolExpiry})

	return &node{
		logger:   logger,
		settings: tSettings,
		oracle:   oracle,
		mempool:  mempool,
		server:   legacy.New(logger, tSettings, oracle, mempool),
	}
}

func TestDecodeHex(t *testing.T) {
	msg, err := wire.NewMessage(chaincfg.RegressionNetParams.Magic(), wire.NewMsgPing(42))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, decodeHex(&out, hex.EncodeToString(msg.Bytes())))

	assert.Contains(t, out.String(), "command: ping")
	assert.Contains(t, out.String(), "42")
}

func TestDecodeHexRejectsBadInput(t *testing.T) {
	var out bytes.Buffer

	err := decodeHex(&out, "zz")
	assert.Equal(t, errors.ERR_INVALID_ARGUMENT, errors.CodeOf(err))

	err = decodeHex(&out, "00ff")
	assert.Equal(t, errors.ERR_INVALID_ARGUMENT, errors.CodeOf(err))

	msg, err := wire.NewMessage(chaincfg.RegressionNetParams.Magic(), wire.NewMsgPing(42))
	require.NoError(t, err)

	raw := msg.Bytes()
	raw[len(raw)-1] ^= 0xff

	err = decodeHex(&out, hex.EncodeToString(raw))
	assert.Equal(t, errors.ERR_WIRE_CHECKSUM, errors.CodeOf(err))
}

func TestSyncedTo(t *testing.T) {
	tip := model.Position{Height: 10, Hash: chainhash.Hash{0x0a}}

	assert.Equal(t, int32(10), syncedTo(tip, nil))
	assert.Equal(t, int32(3), syncedTo(tip, model.Positions{{Height: 4}}))
}

func TestProgressOfFreshNode(t *testing.T) {
	p := newTestNode(t).progress()

	assert.Equal(t, int32(0), p.Headers)
	assert.Equal(t, int32(0), p.FilterHeaders)
	assert.LessOrEqual(t, p.Filters, int32(0))
	assert.Zero(t, p.Inbound+p.Outbound)
	assert.Zero(t, p.Mempool)
	assert.Zero(t, p.StoredFilters)
	assert.Zero(t, p.StoredBlocks)
}

func TestHandleCommand(t *testing.T) {
	n := newTestNode(t)

	var out bytes.Buffer

	require.NoError(t, handleCommand(&out, n, "status"))
	assert.Contains(t, out.String(), "headers 0")

	out.Reset()
	require.NoError(t, handleCommand(&out, n, "send getaddr"))
	assert.Contains(t, out.String(), "getaddr sent to 0 peers")

	err := handleCommand(&out, n, "send ping notanumber")
	assert.Equal(t, errors.ERR_INVALID_ARGUMENT, errors.CodeOf(err))

	err = handleCommand(&out, n, "frobnicate")
	assert.Equal(t, errors.ERR_INVALID_ARGUMENT, errors.CodeOf(err))
}

func TestInteractiveLoopStopsAtExit(t *testing.T) {
	n := newTestNode(t)

	in, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)

	_, err = in.WriteString("status\nexit\nstatus\n")
	require.NoError(t, err)

	_, err = in.Seek(0, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	interactiveLoop(in, &out, n)

	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("cfheaders")))
}

func TestHTTPEndpoint(t *testing.T) {
	n := newTestNode(t)

	sm := servicemanager.NewServiceManager(context.Background(), ulogger.TestLogger{})
	defer sm.ForceShutdown()

	e := newHTTP(n, sm)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	rec := get("/progress")
	require.Equal(t, http.StatusOK, rec.Code)

	var progress syncProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, int32(0), progress.Headers)

	rec = get("/peers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	assert.Equal(t, http.StatusOK, get("/health/liveness").Code)
	assert.Equal(t, http.StatusOK, get("/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get("/nothing").Code)
}

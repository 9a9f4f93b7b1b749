package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy"
	"github.com/bsv-blockchain/cfpeer/settings"
	mempoolmemory "github.com/bsv-blockchain/cfpeer/stores/mempool/memory"
	oraclememory "github.com/bsv-blockchain/cfpeer/stores/oracle/memory"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/cfpeer/util/servicemanager"
	"github.com/bsv-blockchain/cfpeer/util/tracing"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 5 * time.Second

// node bundles the stores and the server of one running peer node.
type node struct {
	logger   ulogger.Logger
	settings *settings.Settings
	oracle   *oraclememory.Oracle
	mempool  *mempoolmemory.Mempool
	server   *legacy.Server
}

func newNode(c *cli.Context) (*node, error) {
	tSettings := settings.NewSettings()
	applyFlags(c, tSettings)

	logger := ulogger.New("peercli",
		ulogger.WithLevel(tSettings.LogLevel),
		ulogger.WithLoggerType(tSettings.LoggerType),
	)

	oracle, err := oraclememory.New(logger.New("oracle"), tSettings.ChainCfgParams)
	if err != nil {
		return nil, err
	}

	mempool := mempoolmemory.New(logger.New("mempool"), mempoolmemory.Options{
		Expiry:         tSettings.Legacy.MempoolExpiry,
		AnnounceExpiry: tSettings.Legacy.AnnounceExpiry,
		MaxSize:        tSettings.Legacy.MempoolMaxSize,
	})

	return &node{
		logger:   logger,
		settings: tSettings,
		oracle:   oracle,
		mempool:  mempool,
		server:   legacy.New(logger.New("legacy"), tSettings, oracle, mempool),
	}, nil
}

func applyFlags(c *cli.Context, tSettings *settings.Settings) {
	if c.IsSet("listen") {
		tSettings.Legacy.ListenAddresses = c.StringSlice("listen")
	}

	if c.IsSet("connect") {
		tSettings.Legacy.ConnectPeers = c.StringSlice("connect")
	}

	if c.IsSet("transport") {
		tSettings.Legacy.Transport = c.String("transport")
	}

	if c.IsSet("http") {
		tSettings.Metrics.Enabled = true
		tSettings.Metrics.ListenAddress = c.String("http")
	}

	if c.IsSet("fetch-blocks") {
		tSettings.Legacy.FetchBlocks = c.Bool("fetch-blocks")
	}
}

// run serves until ctx is done, SIGINT or SIGTERM arrives, or the server
// fails. ready, if not nil, is called once the server listens.
func (n *node) run(ctx context.Context, progressInterval time.Duration, ready func()) error {
	n.oracle.Start()
	defer n.oracle.Stop()

	n.mempool.Start()
	defer n.mempool.Stop()

	if n.settings.Tracing.Enabled {
		if err := tracing.InitTracer(n.settings); err != nil {
			n.logger.Warnf("[peercli] tracing disabled: %v", err)
		} else {
			defer func() {
				_ = tracing.ShutdownTracer(context.Background())
			}()
		}
	}

	sm := servicemanager.NewServiceManager(ctx, n.logger)

	if err := sm.AddService("legacy", n.server); err != nil {
		sm.ForceShutdown()
		_ = sm.Wait()

		return err
	}

	if n.settings.Metrics.Enabled {
		srv := n.startHTTP(sm)

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			_ = srv.Shutdown(stopCtx)
		}()
	}

	go func() {
		sm.WaitForServiceToBeReady()

		if sm.Ctx.Err() != nil {
			return
		}

		if ready != nil {
			ready()
		}

		if progressInterval > 0 {
			reportProgress(sm.Ctx, n, progressInterval)
		}
	}()

	return sm.Wait()
}

// startHTTP serves the http endpoint until the returned server is shut down.
func (n *node) startHTTP(sm *servicemanager.ServiceManager) *echo.Echo {
	e := newHTTP(n, sm)

	go func() {
		if err := e.Start(n.settings.Metrics.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Errorf("[peercli] http endpoint failed: %v", err)
		}
	}()

	n.logger.Infof("[peercli] metrics and health on http://%s", n.settings.Metrics.ListenAddress)

	return e
}

func runNode(c *cli.Context) error {
	n, err := newNode(c)
	if err != nil {
		return err
	}

	return n.run(c.Context, c.Duration("progress"), nil)
}

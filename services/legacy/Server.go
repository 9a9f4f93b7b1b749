// Package legacy runs the peer-to-peer side of the node: it accepts and
// dials connections, gives each one a Peer, and lets the PeerManager keep
// them busy.
package legacy

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/connmgr"
	"github.com/bsv-blockchain/cfpeer/services/legacy/peer"
	"github.com/bsv-blockchain/cfpeer/settings"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/cfpeer/util/servicemanager"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	transportTCP = "tcp"
	transportZMQ = "zmq"
)

type Server struct {
	logger   ulogger.Logger
	settings *settings.Settings
	stats    *gocore.Stat

	chain   Chain
	mempool peer.Mempool
	pm      *PeerManager
	config  connmgr.Config
	nonces  *peer.NonceSet

	mu        sync.Mutex
	listeners []net.Listener
	started   bool
}

// New returns a server for chain and mempool. Nothing runs until Start.
func New(logger ulogger.Logger, tSettings *settings.Settings, chain Chain, mempool peer.Mempool) *Server {
	initPrometheusMetrics()

	s := &Server{
		logger:   logger,
		settings: tSettings,
		stats:    gocore.NewStat("legacy"),
		chain:    chain,
		mempool:  mempool,
		pm:       NewPeerManager(logger, tSettings, chain),
		nonces:   peer.NewNonceSet(50),
	}

	// accepted transactions are relayed to every running peer
	if notifier, ok := mempool.(acceptNotifier); ok {
		notifier.OnAccept(s.pm.TxAccepted)
	}

	return s
}

type acceptNotifier interface {
	OnAccept(func(txid chainhash.Hash))
}

// PeerManager returns the manager of the server's peers.
func (s *Server) PeerManager() *PeerManager {
	return s.pm
}

// Health reports whether the server is running and, for readiness, whether
// it has at least one peer.
func (s *Server) Health(_ context.Context, checkLiveness bool) (int, string, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return http.StatusServiceUnavailable, "not started", errors.NewServiceNotStartedError("legacy server not started")
	}

	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	inbound, outbound := s.pm.Count()
	if inbound+outbound == 0 {
		return http.StatusServiceUnavailable, "no peers", nil
	}

	return http.StatusOK, "OK", nil
}

// Init validates the settings and prepares the transport configuration.
func (s *Server) Init(_ context.Context) error {
	legacy := s.settings.Legacy

	switch legacy.Transport {
	case transportTCP, transportZMQ:
	default:
		return errors.NewConfigurationError("unknown legacy_transport %q", legacy.Transport)
	}

	if legacy.MaxPeers <= 0 {
		return errors.NewConfigurationError("legacy_maxPeers must be positive, got %d", legacy.MaxPeers)
	}

	s.config = connmgr.Config{
		Magic:          s.settings.ChainCfgParams.Magic(),
		MaxPayloadSize: legacy.MaxPayloadSize,
		DialTimeout:    legacy.DialTimeout,
	}

	if legacy.ProxyAddress != "" {
		if legacy.Transport != transportTCP {
			return errors.NewConfigurationError("legacy_proxy needs the tcp transport")
		}

		s.config.Proxy = &connmgr.ProxyConfig{
			Address:  legacy.ProxyAddress,
			Username: legacy.ProxyUser,
			Password: legacy.ProxyPass,
		}
	}

	return nil
}

// Start listens, dials the configured peers and runs the scheduler. It
// closes readyCh once the listeners are bound and blocks until ctx is done
// or a listener fails.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	g.Go(func() error {
		return s.pm.Start(ctx)
	})

	for _, address := range s.settings.Legacy.ListenAddresses {
		if s.settings.Legacy.Transport == transportZMQ {
			servicemanager.AddListenerInfo("zmq:" + address)

			g.Go(func() error {
				return s.listenZMQ(ctx, address)
			})

			continue
		}

		listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", address)
		if err != nil {
			cancel()
			s.closeListeners()
			_ = g.Wait()

			return errors.NewNetworkError("[Server] failed to listen on %s", address, err)
		}

		s.mu.Lock()
		s.listeners = append(s.listeners, listener)
		s.mu.Unlock()

		servicemanager.AddListenerInfo("tcp:" + listener.Addr().String())
		s.logger.Infof("[Server] listening on %s", listener.Addr())

		g.Go(func() error {
			return s.acceptLoop(ctx, listener)
		})
	}

	close(readyCh)

	for _, address := range s.settings.Legacy.ConnectPeers {
		g.Go(func() error {
			s.connectLoop(ctx, address)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.closeListeners()
		s.pm.DisconnectAll(errors.NewContextCanceledError("server stopping"))

		return nil
	})

	return g.Wait()
}

// Stop closes the listeners and disconnects every peer.
func (s *Server) Stop(_ context.Context) error {
	s.closeListeners()
	s.pm.DisconnectAll(errors.NewContextCanceledError("server stopping"))

	for _, p := range s.pm.Peers() {
		p.WaitForShutdown()
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return nil
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		_ = l.Close()
	}

	s.listeners = nil
}

// Addr returns the address of the first TCP listener, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.listeners) == 0 {
		return nil
	}

	return s.listeners[0].Addr()
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return errors.NewNetworkError("[Server] accept failed", err)
		}

		if inbound, outbound := s.pm.Count(); inbound+outbound >= s.settings.Legacy.MaxPeers {
			s.logger.Infof("[Server] refusing %s: %d peers already", conn.RemoteAddr(), inbound+outbound)
			_ = conn.Close()

			continue
		}

		if _, err = s.startPeer(ctx, connmgr.NewInboundStreamTransport(s.logger, s.config, conn)); err != nil {
			s.logger.Warnf("[Server] inbound peer %s failed to start: %v", conn.RemoteAddr(), err)
		}
	}
}

// listenZMQ serves one remote at a time on a PAIR socket, binding again
// once the previous peer is gone.
func (s *Server) listenZMQ(ctx context.Context, address string) error {
	for ctx.Err() == nil {
		transport, err := connmgr.ListenMessageTransport(ctx, s.logger, s.config, address)
		if err != nil {
			return err
		}

		s.logger.Infof("[Server] zmq listening on %s", address)

		p, err := s.startPeer(ctx, transport)
		if err != nil {
			s.logger.Warnf("[Server] zmq peer on %s failed to start: %v", address, err)
			continue
		}

		select {
		case <-p.Done():
		case <-ctx.Done():
			<-p.Done()
		}
	}

	return nil
}

// connectLoop keeps one outbound peer to address alive, building a fresh
// Peer for every attempt. Attempts are paced by the reconnect interval.
func (s *Server) connectLoop(ctx context.Context, address string) {
	interval := s.settings.Legacy.ReconnectInterval
	if interval <= 0 {
		interval = time.Second
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		prometheusLegacyConnectRetries.Inc()

		start := gocore.CurrentTime()

		p, err := s.startPeer(ctx, s.outboundTransport(address))
		if err != nil {
			s.logger.Warnf("[Server] peer %s failed to start: %v", address, err)
			continue
		}

		select {
		case <-p.Done():
			s.stats.NewStat("connection").AddTime(start)
			s.logger.Infof("[Server] peer %s gone: %v", address, p.Err())
		case <-ctx.Done():
			<-p.Done()
			return
		}
	}
}

func (s *Server) outboundTransport(address string) connmgr.Transport {
	if s.settings.Legacy.Transport == transportZMQ {
		return connmgr.NewMessageTransport(s.logger, s.config, address)
	}

	return connmgr.NewStreamTransport(s.logger, s.config, address)
}

// startPeer builds a peer over transport, registers it and starts it.
func (s *Server) startPeer(ctx context.Context, transport connmgr.Transport) (*peer.Peer, error) {
	p, err := peer.New(s.logger, s.settings, transport, peer.Config{
		Headers: s.chain,
		Blocks:  s.chain,
		Filters: s.chain,
		Mempool: s.mempool,
		Manager: s.pm,
		Nonces:  s.nonces,
	})
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	s.pm.AddPeer(p)

	if err = p.Start(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

package settings

import (
	"strconv"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

const (
	// NodeNetwork and NodeCompactFilters are the service bits this node
	// advertises by default.
	NodeNetwork        = 1 << 0
	NodeCompactFilters = 1 << 6
)

func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	legacy := LegacySettings{
		ListenAddresses: getMultiString("legacy_listen_addresses", ""),
		ConnectPeers:    getMultiString("legacy_connect_peers", ""),
		Transport:       getString("legacy_transport", "tcp"),
		MaxPeers:        getInt("legacy_maxPeers", 8),
		ProxyAddress:    getString("legacy_proxy", ""),
		ProxyUser:       getString("legacy_proxyUser", ""),
		ProxyPass:       getString("legacy_proxyPass", ""),

		UserAgentName:    getString("legacy_userAgentName", "cfpeer"),
		UserAgentVersion: getString("legacy_userAgentVersion", "0.1.0"),
		ProtocolVersion:  uint32(getInt("legacy_protocolVersion", 70016)),
		Services:         uint64(getInt("legacy_services", NodeNetwork|NodeCompactFilters)),
		Relay:            getBool("legacy_relay", true),

		HandshakeTimeout:  getDuration("legacy_handshakeTimeout", defaultHandshakeTimeout),
		VerifyTimeout:     getDuration("legacy_verifyTimeout", defaultVerifyTimeout),
		RequestTimeout:    getDuration("legacy_requestTimeout", defaultRequestTimeout),
		PingInterval:      getDuration("legacy_pingInterval", defaultPingInterval),
		TickInterval:      getDuration("legacy_tickInterval", defaultTickInterval),
		ReconcileInterval: getDuration("legacy_reconcileInterval", defaultReconcileInterval),
		ReconnectInterval: getDuration("legacy_reconnectInterval", defaultReconnectInterval),
		DialTimeout:       getDuration("legacy_dialTimeout", defaultDialTimeout),

		MaxPayloadSize:     uint32(getInt("legacy_maxPayloadSize", 32*1024*1024)),
		KnownInventorySize: getInt("legacy_knownInventorySize", 1000),
		MaxFilterBatch:     getInt("legacy_maxFilterBatch", 1000),
		MaxBlockBatch:      getInt("legacy_maxBlockBatch", 16),
		FetchBlocks:        getBool("legacy_fetchBlocks", false),

		MempoolExpiry:    getDuration("legacy_mempoolExpiry", defaultMempoolExpiry),
		MempoolMaxSize:   getInt("legacy_mempoolMaxSize", 100000),
		AnnounceExpiry:   getDuration("legacy_announceExpiry", defaultAnnounceExpiry),
		ScheduleInterval: getDuration("legacy_scheduleInterval", defaultScheduleInterval),

		CheckpointHeight:       getInt("legacy_checkpointHeight", 0),
		CheckpointHash:         getString("legacy_checkpointHash", ""),
		CheckpointFilterHeader: getString("legacy_checkpointFilterHeader", ""),
	}

	if legacy.CheckpointHash != "" {
		cp, err := parseCheckpoint(legacy)
		if err != nil {
			panic(err)
		}

		params = params.WithCheckpoint(cp)
	}

	sampleRate, err := strconv.ParseFloat(getString("tracing_SampleRate", "0.01"), 64)
	if err != nil {
		sampleRate = 0.01
	}

	return &Settings{
		ClientName:     getString("clientName", "cfpeer"),
		LogLevel:       getString("logLevel", "INFO"),
		LoggerType:     getString("logger", "zerolog"),
		ChainCfgParams: params,
		Legacy:         legacy,
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			CollectorURL: getURL("tracing_collector_url", "http://localhost:4318"),
			SampleRate:   sampleRate,
			ServiceName:  getString("tracing_serviceName", "cfpeer"),
		},
		Metrics: MetricsSettings{
			Enabled:       getBool("metrics_enabled", false),
			ListenAddress: getString("metrics_listenAddress", ":9091"),
		},
	}
}

func parseCheckpoint(legacy LegacySettings) (model.Checkpoint, error) {
	blockHash, err := chainhash.NewHashFromStr(legacy.CheckpointHash)
	if err != nil {
		return model.Checkpoint{}, err
	}

	filterHeader, err := chainhash.NewHashFromStr(legacy.CheckpointFilterHeader)
	if err != nil {
		return model.Checkpoint{}, err
	}

	return model.Checkpoint{
		Height:       int32(legacy.CheckpointHeight),
		BlockHash:    *blockHash,
		FilterHeader: *filterHeader,
		FilterType:   model.FilterTypeBasic,
	}, nil
}

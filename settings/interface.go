package settings

import (
	"net/url"
	"time"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
)

type Settings struct {
	ClientName     string
	LogLevel       string
	LoggerType     string
	ChainCfgParams *chaincfg.Params
	Legacy         LegacySettings
	Tracing        TracingSettings
	Metrics        MetricsSettings
}

type LegacySettings struct {
	// ListenAddresses are the inbound endpoints; a zmq transport expects
	// tcp://host:port form.
	ListenAddresses []string
	ConnectPeers    []string
	Transport       string
	MaxPeers        int
	ProxyAddress    string
	ProxyUser       string
	ProxyPass       string

	UserAgentName    string
	UserAgentVersion string
	ProtocolVersion  uint32
	Services         uint64
	Relay            bool

	HandshakeTimeout  time.Duration
	VerifyTimeout     time.Duration
	RequestTimeout    time.Duration
	PingInterval      time.Duration
	TickInterval      time.Duration
	ReconcileInterval time.Duration
	ReconnectInterval time.Duration
	DialTimeout       time.Duration

	MaxPayloadSize     uint32
	KnownInventorySize int
	MaxFilterBatch     int
	MaxBlockBatch      int

	// FetchBlocks makes the peer manager download full blocks as well as
	// filters.
	FetchBlocks bool

	MempoolExpiry    time.Duration
	MempoolMaxSize   int
	AnnounceExpiry   time.Duration
	ScheduleInterval time.Duration

	// Checkpoint overrides the network default when CheckpointHash is set.
	CheckpointHeight       int
	CheckpointHash         string
	CheckpointFilterHeader string
}

type TracingSettings struct {
	Enabled      bool
	CollectorURL *url.URL
	SampleRate   float64
	ServiceName  string
}

type MetricsSettings struct {
	Enabled       bool
	ListenAddress string
}

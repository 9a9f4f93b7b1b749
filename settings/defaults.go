package settings

import (
	"time"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
)

const (
	defaultHandshakeTimeout  = 30 * time.Second
	defaultVerifyTimeout     = 60 * time.Second
	defaultRequestTimeout    = 2 * time.Minute
	defaultPingInterval      = 2 * time.Minute
	defaultTickInterval      = time.Second
	defaultReconcileInterval = 30 * time.Second
	defaultReconnectInterval = 30 * time.Second
	defaultDialTimeout       = 30 * time.Second
	defaultMempoolExpiry     = 2 * time.Hour
	defaultAnnounceExpiry    = 2 * time.Minute
	defaultScheduleInterval  = time.Second
)

// NewTestSettings returns settings with short timers suited to loopback tests.
// It does not read the gocore config.
func NewTestSettings(params *chaincfg.Params) *Settings {
	return &Settings{
		ClientName:     "cfpeer-test",
		LogLevel:       "DEBUG",
		LoggerType:     "zerolog",
		ChainCfgParams: params,
		Legacy: LegacySettings{
			Transport:          "tcp",
			MaxPeers:           8,
			UserAgentName:      "cfpeer",
			UserAgentVersion:   "test",
			ProtocolVersion:    70016,
			Services:           NodeNetwork | NodeCompactFilters,
			Relay:              true,
			HandshakeTimeout:   5 * time.Second,
			VerifyTimeout:      5 * time.Second,
			RequestTimeout:     5 * time.Second,
			PingInterval:       time.Hour,
			TickInterval:       10 * time.Millisecond,
			ReconcileInterval:  time.Hour,
			ReconnectInterval:  100 * time.Millisecond,
			DialTimeout:        time.Second,
			MaxPayloadSize:     32 * 1024 * 1024,
			KnownInventorySize: 1000,
			MaxFilterBatch:     1000,
			MaxBlockBatch:      16,
			MempoolExpiry:      time.Hour,
			MempoolMaxSize:     1000,
			AnnounceExpiry:     time.Minute,
			ScheduleInterval:   20 * time.Millisecond,
		},
	}
}

// Package chaincfg wraps the go-chaincfg network parameters with the values the
// peer engine needs on top: a display label and the filter checkpoints used to
// vet a remote peer before any of its chain data is trusted.
package chaincfg

import (
	"strings"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	gochaincfg "github.com/bsv-blockchain/go-chaincfg"
)

// Params defines a network by its parameters.
type Params struct {
	*gochaincfg.Params

	// DisplayChain is the label used in logs and the user agent comment.
	DisplayChain string

	// GenesisBlockHash is the genesis block hash as a go-bt chainhash.
	GenesisBlockHash chainhash.Hash

	// Checkpoints holds (height, block hash, filter header) triples ordered
	// from oldest to newest. The last one is the default verification target.
	Checkpoints []model.Checkpoint
}

// Magic returns the 4-byte network identifier that prefixes every message.
func (p *Params) Magic() uint32 {
	return uint32(p.Net)
}

// DefaultCheckpoint returns the newest configured checkpoint.
func (p *Params) DefaultCheckpoint() model.Checkpoint {
	if len(p.Checkpoints) == 0 {
		return model.Checkpoint{
			Height:     0,
			BlockHash:  p.GenesisBlockHash,
			FilterType: model.FilterTypeBasic,
		}
	}

	return p.Checkpoints[len(p.Checkpoints)-1]
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Params:           &gochaincfg.MainNetParams,
	DisplayChain:     "main",
	GenesisBlockHash: *newHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
	Checkpoints: []model.Checkpoint{
		{
			Height:       0,
			BlockHash:    *newHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
			FilterHeader: *newHashFromStr("02c2392180d0ce2b5b6f8b08d39a11ffe831c673311a3ecf77b97fc3f0303c9f"),
			FilterType:   model.FilterTypeBasic,
		},
	},
}

// TestNetParams defines the network parameters for the test network.
// The genesis filter header is the BIP158 test vector for block 0.
var TestNetParams = Params{
	Params:           &gochaincfg.TestNetParams,
	DisplayChain:     "test",
	GenesisBlockHash: *newHashFromStr("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
	Checkpoints: []model.Checkpoint{
		{
			Height:       0,
			BlockHash:    *newHashFromStr("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
			FilterHeader: *newHashFromStr("21584579b7eb08997773e5aeff3a7f932700042d0ed2a6129012b7d7ae81b750"),
			FilterType:   model.FilterTypeBasic,
		},
	},
}

// RegressionNetParams defines the network parameters for the regression test network.
var RegressionNetParams = Params{
	Params:           &gochaincfg.RegressionNetParams,
	DisplayChain:     "regtest",
	GenesisBlockHash: *newHashFromStr("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"),
	Checkpoints: []model.Checkpoint{
		{
			Height:       0,
			BlockHash:    *newHashFromStr("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"),
			FilterHeader: *newHashFromStr("485e301e4509d7f0d954bf5b529f3ecef68c5191fd0e635f775c1d0266dc5a2b"),
			FilterType:   model.FilterTypeBasic,
		},
	},
}

// StnParams defines the network parameters for the scaling test network. It
// shares the main network genesis block.
var StnParams = Params{
	Params:           &gochaincfg.StnParams,
	DisplayChain:     "stn",
	GenesisBlockHash: MainNetParams.GenesisBlockHash,
	Checkpoints:      MainNetParams.Checkpoints,
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash. It panics on error since it is only called with hard-coded,
// and therefore known good, hashes.
func newHashFromStr(hexStr string) *chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}

	return hash
}

// GetChainParams returns the parameters for the named network.
func GetChainParams(network string) (*Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main":
		return &MainNetParams, nil
	case "testnet", "test":
		return &TestNetParams, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	case "stn":
		return &StnParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %s", network)
	}
}

// WithCheckpoint returns a copy of p whose default checkpoint is cp. Used when
// the operator pins a newer checkpoint in settings.
func (p *Params) WithCheckpoint(cp model.Checkpoint) *Params {
	clone := *p
	clone.Checkpoints = append(append([]model.Checkpoint(nil), p.Checkpoints...), cp)

	return &clone
}

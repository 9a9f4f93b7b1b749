// Package memory is an in-memory chain oracle. It keeps a header tree with
// a best chain chosen by cumulative work, the compact filters and filter
// headers of best chain blocks, and full blocks. It is meant for tests and
// small deployments; nothing is persisted.
package memory

import (
	"math/big"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/chaincfg"
	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/bsv-blockchain/cfpeer/util"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/jellydator/ttlcache/v3"
)

// waiterTTL bounds how long a LoadBitcoin future waits for its block.
const waiterTTL = 10 * time.Minute

type node struct {
	header wire.BlockHeader
	hash   chainhash.Hash
	height int32
	parent *node
	work   *big.Int
}

func (n *node) position() model.Position {
	return model.Position{Height: n.height, Hash: n.hash}
}

type filterKey struct {
	filterType model.FilterType
	hash       chainhash.Hash
}

// Oracle implements the header, block and filter oracles.
type Oracle struct {
	logger     ulogger.Logger
	checkpoint model.Checkpoint

	mu    sync.RWMutex
	index *swiss.Map[chainhash.Hash, *node]
	best  []*node

	// lowest best chain height that may still lack data, per filter type
	headerCursor map[model.FilterType]int32
	filterCursor map[model.FilterType]int32
	blockCursor  int32

	filters       *util.SyncedSwissMap[filterKey, []byte]
	filterHeaders *util.SyncedSwissMap[filterKey, chainhash.Hash]
	blocks        *util.SyncedSwissMap[chainhash.Hash, []byte]

	waitMu  sync.Mutex
	waiters *ttlcache.Cache[chainhash.Hash, []chan []byte]
}

// New returns an oracle holding only the genesis block of params. The
// default checkpoint is the newest one params carries.
func New(logger ulogger.Logger, params *chaincfg.Params) (*Oracle, error) {
	if params == nil || params.Params == nil || params.GenesisBlock == nil {
		return nil, errors.NewConfigurationError("chain params without a genesis block")
	}

	genesis, err := wire.NewBlockHeaderFromWire(&params.GenesisBlock.Header)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid genesis header", err)
	}

	return NewWithGenesis(logger, genesis, params.DefaultCheckpoint())
}

// NewWithGenesis returns an oracle rooted at genesis and vetting peers
// against checkpoint. A checkpoint at the genesis block also seeds the
// genesis filter header.
func NewWithGenesis(logger ulogger.Logger, genesis wire.BlockHeader, checkpoint model.Checkpoint) (*Oracle, error) {
	root := &node{header: genesis, hash: genesis.Hash()}

	parsed, err := genesis.Parse()
	if err != nil {
		return nil, errors.NewConfigurationError("invalid genesis header", err)
	}

	root.work = util.BlockWork(parsed.Bits)

	if checkpoint.Height == 0 && checkpoint.BlockHash != root.hash {
		return nil, errors.NewConfigurationError("genesis checkpoint %s does not match genesis %s", checkpoint.BlockHash, root.hash)
	}

	o := &Oracle{
		logger:        logger,
		checkpoint:    checkpoint,
		index:         swiss.NewMap[chainhash.Hash, *node](1024),
		best:          []*node{root},
		headerCursor:  make(map[model.FilterType]int32),
		filterCursor:  make(map[model.FilterType]int32),
		filters:       util.NewSyncedSwissMap[filterKey, []byte](1024),
		filterHeaders: util.NewSyncedSwissMap[filterKey, chainhash.Hash](1024),
		blocks:        util.NewSyncedSwissMap[chainhash.Hash, []byte](64),
		waiters: ttlcache.New[chainhash.Hash, []chan []byte](
			ttlcache.WithTTL[chainhash.Hash, []chan []byte](waiterTTL),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, []chan []byte](),
		),
	}

	o.index.Put(root.hash, root)

	if checkpoint.Height == 0 && checkpoint.FilterHeader != (chainhash.Hash{}) {
		o.filterHeaders.Set(filterKey{checkpoint.FilterType, root.hash}, checkpoint.FilterHeader)
	}

	return o, nil
}

// Start runs the expiry of block futures until Stop.
func (o *Oracle) Start() {
	go o.waiters.Start()
}

func (o *Oracle) Stop() {
	o.waiters.Stop()
}

func (o *Oracle) GetDefaultCheckpoint() model.Checkpoint {
	return o.checkpoint
}

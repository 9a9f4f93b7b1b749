package peer

import (
	"github.com/decred/dcrd/lru"
)

// NonceSet remembers the nonces of the version messages a node sent
// recently. A remote version carrying one of them means the node dialled
// itself. Every peer of one node must share the same set; separate nodes
// in one process need separate sets. It is safe for concurrent use.
type NonceSet struct {
	cache lru.Cache
}

// NewNonceSet returns a set remembering the last size nonces.
func NewNonceSet(size uint) *NonceSet {
	return &NonceSet{cache: lru.NewCache(size)}
}

func (s *NonceSet) Add(nonce uint64) {
	s.cache.Add(nonce)
}

func (s *NonceSet) Contains(nonce uint64) bool {
	return s.cache.Contains(nonce)
}

// defaultNonces serves peers whose Config carries no NonceSet.
var defaultNonces = NewNonceSet(50)

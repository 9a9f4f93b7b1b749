package netsync

import (
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// HeaderSync keeps one peer's headers flowing into the header oracle. At
// most one getheaders is outstanding at a time.
type HeaderSync struct {
	oracle HeaderOracle

	pending     bool
	requestedAt time.Time
	stop        chainhash.Hash

	// locator holds the hashes sent with the pending request.
	locator map[chainhash.Hash]struct{}

	// caughtUp is set once the peer answers with a short batch.
	caughtUp bool
}

// HeaderSyncResult describes what a headers message did.
type HeaderSyncResult struct {
	Best     model.Position
	Added    model.Positions
	CaughtUp bool

	// More is set when the batch was full and another request should
	// follow straight away.
	More bool
}

func NewHeaderSync(oracle HeaderOracle) *HeaderSync {
	return &HeaderSync{oracle: oracle}
}

// Pending reports whether a getheaders is waiting for its answer.
func (s *HeaderSync) Pending() bool {
	return s.pending
}

// CaughtUp reports whether the last answer was a short batch.
func (s *HeaderSync) CaughtUp() bool {
	return s.caughtUp
}

// Request builds the next getheaders. It fails with ERR_REQUEST_PENDING
// while a previous request is unanswered.
func (s *HeaderSync) Request(stop chainhash.Hash, now time.Time) (*wire.MsgGetHeaders, error) {
	if s.pending {
		return nil, errors.NewRequestPendingError("getheaders already outstanding")
	}

	locator := s.Locator()
	msg := wire.NewMsgGetHeaders(locator, stop)

	s.pending = true
	s.requestedAt = now
	s.stop = stop
	s.locator = make(map[chainhash.Hash]struct{}, len(locator))

	for _, hash := range locator {
		s.locator[*hash] = struct{}{}
	}

	return msg, nil
}

// Locator returns best chain hashes from the tip back to genesis: the ten
// most recent, then with the step doubling each time.
func (s *HeaderSync) Locator() []*chainhash.Hash {
	best := s.oracle.BestPosition()

	locator := make([]*chainhash.Hash, 0, 32)
	step := int32(1)

	for height := best.Height; height >= 0 && len(locator) < wire.MaxBlockLocatorsPerMsg; {
		hashes := s.oracle.BestHashes(height, best.Hash, 1)
		if len(hashes) == 1 {
			hash := hashes[0]
			locator = append(locator, &hash)
		}

		if height == 0 {
			break
		}

		if len(locator) >= 10 {
			step *= 2
		}

		height -= step
		if height < 0 {
			height = 0
		}
	}

	return locator
}

// answers reports whether msg is the reply to the pending getheaders: an
// empty or full batch, or one that starts from a locator hash or ends at
// the requested stop.
func (s *HeaderSync) answers(msg *wire.MsgHeaders) bool {
	if !s.pending {
		return false
	}

	n := len(msg.Headers)
	if n == 0 || n >= wire.MaxBlockHeadersPerMsg || len(s.locator) == 0 {
		return true
	}

	if _, ok := s.locator[msg.Headers[0].PrevHash()]; ok {
		return true
	}

	return s.stop != (chainhash.Hash{}) && msg.Headers[n-1].Hash() == s.stop
}

// Handle passes a headers message to the oracle. Headers may arrive
// unrequested as block announcements; those are accepted without touching
// the pending request.
func (s *HeaderSync) Handle(msg *wire.MsgHeaders) (*HeaderSyncResult, error) {
	solicited := s.answers(msg)
	if solicited {
		s.pending = false
		s.locator = nil
	}

	result := &HeaderSyncResult{}

	if len(msg.Headers) > 0 {
		best, added, err := s.oracle.AddHeaders(msg.Headers)
		if err != nil {
			return nil, err
		}

		result.Best = best
		result.Added = added
	} else {
		result.Best = s.oracle.BestPosition()
	}

	if solicited {
		s.caughtUp = len(msg.Headers) < wire.MaxBlockHeadersPerMsg
		result.More = !s.caughtUp
	}

	result.CaughtUp = s.caughtUp

	return result, nil
}

// Expired reports whether the pending request is older than timeout.
func (s *HeaderSync) Expired(now time.Time, timeout time.Duration) bool {
	return s.pending && timeout > 0 && now.Sub(s.requestedAt) > timeout
}

// Timeout drops the pending request so a new one can be issued.
func (s *HeaderSync) Timeout() {
	s.pending = false
	s.locator = nil
}

// Reorg marks the peer as no longer caught up. A pending getheaders stays
// pending: its answer is still useful on the new chain.
func (s *HeaderSync) Reorg(_ model.Position) {
	s.caughtUp = false
}

// Abandon drops any pending request.
func (s *HeaderSync) Abandon() {
	s.pending = false
	s.locator = nil
}

// Package netsync holds the per-peer sync trackers. A tracker records what
// was asked of one peer and decides whether each response satisfies it. A
// tracker is owned by a single peer goroutine and is not safe for concurrent
// use, except for Done, Finished and Abandoned which a scheduler may poll.
package netsync

import (
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"go.uber.org/atomic"
)

// Tracker is what every job exposes to the peer and the scheduler.
type Tracker interface {
	// Reorg drops outstanding work above parent. Calling it again with the
	// same parent changes nothing.
	Reorg(parent model.Position)

	// Abandon gives the job up. Remaining positions can be reassigned.
	Abandon()

	// Expired reports whether the pending request is older than timeout.
	Expired(now time.Time, timeout time.Duration) bool

	Remaining() model.Positions
	Finished() bool
	Abandoned() bool
	Done() <-chan struct{}
}

// lifecycle is the completion state shared by the jobs.
type lifecycle struct {
	done      chan struct{}
	doneOnce  sync.Once
	finished  atomic.Bool
	abandoned atomic.Bool

	pending     bool
	requestedAt time.Time
}

func (l *lifecycle) init() {
	l.done = make(chan struct{})
}

func (l *lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *lifecycle) Finished() bool {
	return l.finished.Load()
}

func (l *lifecycle) Abandoned() bool {
	return l.abandoned.Load()
}

// Closed reports whether the job finished or was abandoned.
func (l *lifecycle) Closed() bool {
	return l.Finished() || l.Abandoned()
}

func (l *lifecycle) Abandon() {
	l.pending = false

	if l.finished.Load() {
		return
	}

	l.abandoned.Store(true)
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *lifecycle) finish() {
	l.pending = false

	if l.abandoned.Load() {
		return
	}

	l.finished.Store(true)
	l.doneOnce.Do(func() { close(l.done) })
}

// Pending reports whether a request is waiting for its response.
func (l *lifecycle) Pending() bool {
	return l.pending
}

func (l *lifecycle) markRequested(now time.Time) {
	l.pending = true
	l.requestedAt = now
}

func (l *lifecycle) Expired(now time.Time, timeout time.Duration) bool {
	return l.pending && timeout > 0 && now.Sub(l.requestedAt) > timeout
}

// checkRequest fails when the job cannot issue another request.
func (l *lifecycle) checkRequest(what string) error {
	if l.Closed() {
		return errors.NewJobAbandonedError("%s job is closed", what)
	}

	if l.pending {
		return errors.NewRequestPendingError("%s request already outstanding", what)
	}

	return nil
}

// IsUnsolicited reports whether err marks a response nobody asked for, or
// one for a request a reorg already dropped. These are ignored, not fatal.
// Only the outermost code counts: a violation wrapping a lookup miss is
// still a violation.
func IsUnsolicited(err error) bool {
	return err != nil && errors.CodeOf(err) == errors.ERR_NOT_FOUND
}

func unsolicited(what string) error {
	return errors.NewNotFoundError("no outstanding %s request", what)
}

// truncateAbove drops positions above parent. It reports whether anything
// was dropped.
func truncateAbove(ps model.Positions, parent model.Position) (model.Positions, bool) {
	for i, p := range ps {
		if p.Height > parent.Height {
			return ps[:i:i], true
		}
	}

	return ps, false
}

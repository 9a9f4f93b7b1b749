package peer

import (
	"sync"

	"github.com/bsv-blockchain/cfpeer/errors"
)

// Latch is a one-shot gate opened by two independent actions. Once both
// actions complete, or the latch fails, the outcome is fixed: Done is closed
// and Err returns the same value forever after.
type Latch struct {
	name string

	mu     sync.Mutex
	first  bool
	second bool
	err    error
	closed bool
	done   chan struct{}
}

func NewLatch(name string) *Latch {
	return &Latch{name: name, done: make(chan struct{})}
}

// First records the first action. It reports whether this call opened the
// latch.
func (l *Latch) First() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	l.first = true

	return l.maybeOpen()
}

// Second records the second action. It reports whether this call opened the
// latch.
func (l *Latch) Second() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	l.second = true

	return l.maybeOpen()
}

func (l *Latch) maybeOpen() bool {
	if !l.first || !l.second {
		return false
	}

	l.closed = true
	close(l.done)

	return true
}

// Fail breaks the latch. It has no effect once the latch is decided.
func (l *Latch) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if err == nil {
		err = errors.NewStateError("%s latch broken", l.name)
	}

	l.err = err
	l.closed = true
	close(l.done)
}

// Done is closed once the latch is decided.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Err returns the failure, or nil if the latch opened or is undecided.
func (l *Latch) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.err
}

// Opened reports whether both actions completed.
func (l *Latch) Opened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed && l.err == nil
}

// Actions reports which of the two actions have completed.
func (l *Latch) Actions() (first, second bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.first, l.second
}

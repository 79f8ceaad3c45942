package player

import (
	"sync"
	"time"
)

type eventBits uint32

const (
	evStart eventBits = 1 << iota
	evStop
	evTick
	evDeinit
	evVideoReady
	evAudioReady

	evControl = evStart | evStop | evTick | evDeinit
	evReady   = evVideoReady | evAudioReady
)

// eventGroup is a set of sticky bits. wait returns as soon as any requested
// bit is set and clears the bits it returns, so each set is observed by at
// most one waiter.
type eventGroup struct {
	mu      sync.Mutex
	bits    eventBits
	changed chan struct{} // closed and replaced on every set
	closed  bool
}

func newEventGroup() *eventGroup {
	return &eventGroup{changed: make(chan struct{})}
}

func (g *eventGroup) set(b eventBits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.bits |= b
	close(g.changed)
	g.changed = make(chan struct{})
}

// close wakes every waiter; later waits return zero at once.
func (g *eventGroup) close() {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.changed)
	}
	g.mu.Unlock()
}

func (g *eventGroup) clear(b eventBits) {
	g.mu.Lock()
	g.bits &^= b
	g.mu.Unlock()
}

// wait blocks until a bit in mask is set or timeout elapses and returns the
// bits it consumed, zero on timeout or close. A zero timeout polls and a
// negative one waits forever.
func (g *eventGroup) wait(mask eventBits, timeout time.Duration) eventBits {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return 0
		}
		if got := g.bits & mask; got != 0 {
			g.bits &^= got
			g.mu.Unlock()
			return got
		}
		changed := g.changed
		g.mu.Unlock()

		if timeout == 0 {
			return 0
		}
		select {
		case <-changed:
		case <-expired:
			return 0
		}
	}
}

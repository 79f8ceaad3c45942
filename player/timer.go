package player

import (
	"time"
)

// frameTimer raises evTick at a fixed period. It never touches frame data.
// Only the scheduler goroutine starts and stops it.
type frameTimer struct {
	events *eventGroup
	halt   chan struct{}
	done   chan struct{}
}

func newFrameTimer(events *eventGroup) *frameTimer {
	return &frameTimer{events: events}
}

func (t *frameTimer) start(interval time.Duration) {
	t.stop()
	t.halt = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(interval, t.halt, t.done)
}

func (t *frameTimer) run(interval time.Duration, halt, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.events.set(evTick)
		case <-halt:
			return
		}
	}
}

// stop disarms the timer and waits for its goroutine. A tick raised just
// before stop may still be pending in the event group.
func (t *frameTimer) stop() {
	if t.halt == nil {
		return
	}
	close(t.halt)
	<-t.done
	t.halt, t.done = nil, nil
}

func (t *frameTimer) running() bool {
	return t.halt != nil
}

// Package player paces the chunks of an AVI file at the rate its header
// declares and hands them to callbacks or polling consumers.
//
// A Player owns one scheduler goroutine. Play requests, stop requests and
// timer ticks are events for that goroutine; it reads at most one video
// frame per tick, plus the audio chunks interleaved before it, and never
// decodes payloads.
package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultDeinitTimeout bounds how long Close waits for the scheduler.
const DefaultDeinitTimeout = time.Second

// State is the scheduler state.
type State int32

const (
	StateNone State = iota
	StateHeader
	StateData
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateHeader:
		return "header"
	case StateData:
		return "data"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Player plays one AVI source at a time.
type Player struct {
	cfg    Config
	log    *logrus.Entry
	events *eventGroup
	timer  *frameTimer

	state    atomic.Int32
	starting atomic.Bool
	closed   atomic.Bool

	mu      sync.Mutex
	pending *session

	// Owned by the scheduler goroutine.
	sess *session
	buf  []byte

	video frameSlot[VideoFrameInfo]
	audio frameSlot[AudioFrameInfo]

	infoMu    sync.RWMutex
	info      *avi.ContainerInfo
	sessionID uuid.UUID

	done        chan struct{}
	releaseOnce sync.Once
}

// New validates cfg, allocates the frame buffers and starts the scheduler.
// Zero BufferSize and StackSize take their defaults.
func New(cfg Config) (*Player, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger.WithField("component", "player")

	if err := cfg.validate(); err != nil {
		log.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Configuration validation failed")
		return nil, err
	}

	p := &Player{
		cfg:    cfg,
		log:    log,
		events: newEventGroup(),
		buf:    make([]byte, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	p.timer = newFrameTimer(p.events)
	p.video.buf = make([]byte, cfg.BufferSize)
	p.audio.buf = make([]byte, cfg.BufferSize)

	log.WithFields(logrus.Fields{
		"function":    "New",
		"buffer_size": cfg.BufferSize,
		"priority":    cfg.Priority,
		"stack_size":  cfg.StackSize,
		"core_id":     cfg.CoreID,
		"strict":      cfg.Strict,
	}).Debug("Starting scheduler")

	go p.run()
	return p, nil
}

// Deinit stops any active session, waits for the scheduler goroutine to exit
// and releases the buffers. The active session ends through the normal end
// path, so OnPlaybackEnd runs once with a nil error.
//
// If ctx expires first Deinit returns ErrDeinitTimeout and releases nothing;
// calling it again resumes the wait. Deinit on a released player returns nil.
// It must not be called from a callback.
func (p *Player) Deinit(ctx context.Context) error {
	if p.closed.CompareAndSwap(false, true) {
		p.log.WithField("function", "Deinit").Debug("Signalling scheduler to exit")
		p.events.set(evDeinit)
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.log.WithFields(logrus.Fields{
			"function": "Deinit",
			"error":    ctx.Err().Error(),
		}).Warn("Scheduler did not exit in time")
		return fmt.Errorf("%w: %w", ErrDeinitTimeout, ctx.Err())
	}

	p.releaseOnce.Do(func() {
		// A play that raced with Deinit never reached the scheduler.
		p.mu.Lock()
		if p.pending != nil {
			p.pending.demux.Close()
			p.pending = nil
		}
		p.mu.Unlock()

		p.events.close()
		p.video.release()
		p.audio.release()
		p.buf = nil
		p.log.WithField("function", "Deinit").Info("Player released")
	})
	return nil
}

// Close is Deinit bounded by DefaultDeinitTimeout.
func (p *Player) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDeinitTimeout)
	defer cancel()
	return p.Deinit(ctx)
}

// PlayFromMemory plays an AVI file held in data. data must not change until
// the session ends.
func (p *Player) PlayFromMemory(data []byte) error {
	return p.play(avi.NewMemorySource(data), "memory")
}

// PlayFromFile opens path and plays it. The file is closed when the session
// ends.
func (p *Player) PlayFromFile(path string) error {
	if err := p.checkIdle(); err != nil {
		return err
	}
	src, err := avi.OpenFileSource(path)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"function": "PlayFromFile",
			"path":     path,
			"error":    err.Error(),
		}).Error("Failed to open source")
		return err
	}
	if err := p.play(src, path); err != nil {
		src.Close()
		return err
	}
	return nil
}

// PlayFromSource plays src. The player closes src when the session ends.
func (p *Player) PlayFromSource(src avi.Source) error {
	return p.play(src, "source")
}

func (p *Player) checkIdle() error {
	if p.closed.Load() {
		return ErrClosed
	}
	if p.starting.Load() || p.State() != StateNone {
		return ErrAlreadyPlaying
	}
	return nil
}

func (p *Player) play(src avi.Source, name string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if !p.starting.CompareAndSwap(false, true) {
		return ErrAlreadyPlaying
	}
	if p.State() != StateNone {
		p.starting.Store(false)
		return ErrAlreadyPlaying
	}

	s := newSession(src, p.log.WithField("source", name))

	p.mu.Lock()
	p.pending = s
	p.mu.Unlock()

	s.log.WithField("function", "Play").Info("Starting playback")
	p.events.set(evStart)
	return nil
}

// Stop ends the active session. OnPlaybackEnd runs with a nil error.
func (p *Player) Stop() error {
	if p.closed.Load() {
		return ErrClosed
	}
	if !p.starting.Load() && p.State() == StateNone {
		return ErrNotPlaying
	}
	p.log.WithField("function", "Stop").Debug("Stop requested")
	p.events.set(evStop)
	return nil
}

// State returns the scheduler state.
func (p *Player) State() State {
	return State(p.state.Load())
}

func (p *Player) setState(s State) {
	p.state.Store(int32(s))
}

// Info returns the header of the active session, or nil when no header has
// been parsed yet.
func (p *Player) Info() *avi.ContainerInfo {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	if p.info == nil {
		return nil
	}
	info := *p.info
	return &info
}

// SessionID identifies the active session in logs. It is uuid.Nil when idle.
func (p *Player) SessionID() uuid.UUID {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.sessionID
}

package player

import (
	"errors"
	"fmt"
)

// Sentinel errors for player operations.
// These errors enable reliable error classification using errors.Is().

// Lifecycle errors.
var (
	// ErrInvalidConfig indicates a configuration value out of range.
	ErrInvalidConfig = errors.New("invalid player configuration")

	// ErrClosed indicates the player has been deinitialized.
	ErrClosed = errors.New("player closed")

	// ErrDeinitTimeout indicates the scheduler did not exit before the
	// deadline. Nothing has been released; Deinit may be called again.
	ErrDeinitTimeout = errors.New("timed out waiting for scheduler to exit")
)

// State errors. Each wraps ErrState.
var (
	// ErrState indicates an operation that is invalid in the current state.
	ErrState = errors.New("invalid player state")

	// ErrAlreadyPlaying indicates a play request while a session is active.
	ErrAlreadyPlaying = fmt.Errorf("%w: already playing", ErrState)

	// ErrNotPlaying indicates a stop request with no active session.
	ErrNotPlaying = fmt.Errorf("%w: not playing", ErrState)
)

// Session errors, delivered through OnPlaybackEnd.
var (
	// ErrParseFailed indicates the header could not be used. The parse
	// error is wrapped alongside it.
	ErrParseFailed = errors.New("failed to parse container header")

	// ErrInvalidFrameRate indicates neither the video stream nor avih
	// declares a usable frame period.
	ErrInvalidFrameRate = errors.New("container declares no frame rate")
)

// Hand-off errors. Neither affects the session.
var (
	// ErrTimeout indicates no frame became ready before the timeout.
	ErrTimeout = errors.New("timed out waiting for frame")

	// ErrBufferTooSmall indicates the caller buffer cannot hold the ready
	// frame. The ready signal has already been consumed.
	ErrBufferTooSmall = errors.New("buffer too small for frame")
)

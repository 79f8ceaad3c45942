package avi

import (
	"errors"
	"fmt"
)

// Error categories. Every parse or read failure wraps exactly one of them.
var (
	// ErrContainerFormat indicates a bad RIFF/LIST/avih/strh/strf tag or size.
	ErrContainerFormat = errors.New("container format error")

	// ErrUnsupportedCodec indicates video other than MJPEG/H264 or audio other than PCM.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrContainerTruncated indicates data shorter than the headers declare.
	ErrContainerTruncated = errors.New("container truncated")

	// ErrUnknownFrameTag indicates a movi chunk that is neither video nor audio.
	ErrUnknownFrameTag = errors.New("unknown frame tag")
)

// Header parsing errors.
var (
	ErrInvalidRIFF  = fmt.Errorf("%w: not a RIFF/AVI file", ErrContainerFormat)
	ErrInvalidHdrl  = fmt.Errorf("%w: missing hdrl list", ErrContainerFormat)
	ErrInvalidAvih  = fmt.Errorf("%w: invalid avih chunk", ErrContainerFormat)
	ErrInvalidStrl  = fmt.Errorf("%w: invalid strl list", ErrContainerFormat)
	ErrInvalidStrh  = fmt.Errorf("%w: invalid strh chunk", ErrContainerFormat)
	ErrInvalidStrf  = fmt.Errorf("%w: invalid strf chunk", ErrContainerFormat)
	ErrInvalidMovi  = fmt.Errorf("%w: invalid movi list", ErrContainerFormat)
	ErrDivideByZero = fmt.Errorf("%w: stream scale is zero", ErrContainerFormat)

	ErrTruncatedHeader = fmt.Errorf("%w: header runs past end of buffer", ErrContainerTruncated)
	ErrMoviNotFound    = fmt.Errorf("%w: movi list not found", ErrContainerTruncated)
)

// Frame reader errors.
var (
	// ErrInsufficientSource indicates the source ends before the chunk does.
	ErrInsufficientSource = fmt.Errorf("%w: source ends inside chunk", ErrContainerTruncated)

	// ErrDestinationTooSmall indicates the caller buffer cannot hold the padded chunk.
	ErrDestinationTooSmall = errors.New("destination buffer too small for chunk")
)

// AVIError attaches the failing operation to an underlying error.
type AVIError struct {
	Op  string
	Err error
}

func (e *AVIError) Error() string {
	return fmt.Sprintf("avi: %s: %v", e.Op, e.Err)
}

func (e *AVIError) Unwrap() error {
	return e.Err
}

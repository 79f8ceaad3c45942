package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/charlescerisier/aviplayer/avi"
)

// FrameInfo describes one delivered chunk.
type FrameInfo struct {
	FourCC   avi.FourCC
	Size     int    // payload bytes, without the pad byte
	Offset   int64  // chunk header offset in the source
	Sequence uint64 // per-kind count within the session, from 1
}

// VideoFrameInfo describes a video chunk.
type VideoFrameInfo struct {
	FrameInfo
	Codec  avi.VideoCodec
	Width  int
	Height int
}

// AudioFrameInfo describes an audio chunk.
type AudioFrameInfo struct {
	FrameInfo
	Codec         avi.AudioCodec
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// frameSlot holds the latest frame of one kind. There is no queue: a frame
// not collected before the next one is published is lost.
type frameSlot[T any] struct {
	mu   sync.RWMutex
	buf  []byte
	size int
	info T
}

// swap installs buf as the slot's frame and returns the previous buffer for
// reuse as the decode buffer.
func (s *frameSlot[T]) swap(buf []byte, size int, info T) []byte {
	s.mu.Lock()
	old := s.buf
	s.buf, s.size, s.info = buf, size, info
	s.mu.Unlock()
	return old
}

func (s *frameSlot[T]) copyTo(dst []byte) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(dst) < s.size {
		return s.info, fmt.Errorf("%w: frame is %d bytes, buffer holds %d", ErrBufferTooSmall, s.size, len(dst))
	}
	copy(dst, s.buf[:s.size])
	return s.info, nil
}

func (s *frameSlot[T]) release() {
	s.mu.Lock()
	s.buf, s.size = nil, 0
	s.mu.Unlock()
}

// GetVideoFrame waits up to timeout for the next video frame and copies it
// into dst. A zero timeout polls and a negative one waits forever.
//
// The ready signal is consumed before the size check, so after
// ErrBufferTooSmall the same frame cannot be fetched again; a retry with a
// larger buffer receives the next frame. The returned info carries the
// frame size in both cases.
func (p *Player) GetVideoFrame(dst []byte, timeout time.Duration) (VideoFrameInfo, error) {
	if p.closed.Load() {
		return VideoFrameInfo{}, ErrClosed
	}
	if p.events.wait(evVideoReady, timeout) == 0 {
		if p.closed.Load() {
			return VideoFrameInfo{}, ErrClosed
		}
		return VideoFrameInfo{}, ErrTimeout
	}
	return p.video.copyTo(dst)
}

// GetAudioFrame is GetVideoFrame for audio chunks. Audio chunks do not pace
// the scheduler, so several may be published within one frame period and
// only the last of them is kept.
func (p *Player) GetAudioFrame(dst []byte, timeout time.Duration) (AudioFrameInfo, error) {
	if p.closed.Load() {
		return AudioFrameInfo{}, ErrClosed
	}
	if p.events.wait(evAudioReady, timeout) == 0 {
		if p.closed.Load() {
			return AudioFrameInfo{}, ErrClosed
		}
		return AudioFrameInfo{}, ErrTimeout
	}
	return p.audio.copyTo(dst)
}

package avi

import (
	"errors"
	"io"
)

// SeekableBuffer is an in-memory io.ReadWriteSeeker. A Writer can emit into
// it and, since it also satisfies Source, a Demuxer or player can read the
// result back without touching the file system.
type SeekableBuffer struct {
	buf []byte
	pos int64
}

// NewSeekableBuffer creates an empty buffer.
func NewSeekableBuffer() *SeekableBuffer {
	return &SeekableBuffer{}
}

// Write writes p at the current position, overwriting existing bytes and
// growing the buffer as needed.
func (sb *SeekableBuffer) Write(p []byte) (int, error) {
	end := sb.pos + int64(len(p))
	if end > int64(len(sb.buf)) {
		if end > int64(cap(sb.buf)) {
			grown := make([]byte, end, 2*end)
			copy(grown, sb.buf)
			sb.buf = grown
		} else {
			sb.buf = sb.buf[:end]
		}
	}
	n := copy(sb.buf[sb.pos:], p)
	sb.pos += int64(n)
	return n, nil
}

// Seek sets the position for the next Read or Write. Seeking past the end
// zero-fills the gap.
func (sb *SeekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64

	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = sb.pos + offset
	case io.SeekEnd:
		newPos = int64(len(sb.buf)) + offset
	default:
		return 0, errors.New("invalid seek whence")
	}

	if newPos < 0 {
		return 0, errors.New("seek before start of buffer")
	}
	if newPos > int64(len(sb.buf)) {
		sb.buf = append(sb.buf, make([]byte, newPos-int64(len(sb.buf)))...)
	}

	sb.pos = newPos
	return newPos, nil
}

// Read reads from the current position.
func (sb *SeekableBuffer) Read(p []byte) (int, error) {
	if sb.pos >= int64(len(sb.buf)) {
		return 0, io.EOF
	}
	n := copy(p, sb.buf[sb.pos:])
	sb.pos += int64(n)
	return n, nil
}

// Bytes returns the buffer contents
func (sb *SeekableBuffer) Bytes() []byte {
	return sb.buf
}

// Len returns the buffer length
func (sb *SeekableBuffer) Len() int {
	return len(sb.buf)
}

// Size returns the buffer length as a Source.
func (sb *SeekableBuffer) Size() int64 {
	return int64(len(sb.buf))
}

// Close is a no-op.
func (sb *SeekableBuffer) Close() error {
	return nil
}

// Reset empties the buffer
func (sb *SeekableBuffer) Reset() {
	sb.buf = sb.buf[:0]
	sb.pos = 0
}

package avi

import (
	"errors"
	"io"
	"os"
)

// Source is the byte stream a demux session reads from. Size reports the
// total length so readers can tell a short source from an I/O failure.
type Source interface {
	io.ReadSeeker
	io.Closer
	Size() int64
}

// MemorySource reads an AVI file held in memory. The slice stays owned by
// the caller and Close does not release it.
type MemorySource struct {
	data []byte
	off  int64
}

// NewMemorySource wraps data without copying it.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func (m *MemorySource) Read(p []byte) (int, error) {
	if m.off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.off:])
	m.off += int64(n)
	return n, nil
}

func (m *MemorySource) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = m.off + offset
	case io.SeekEnd:
		pos = int64(len(m.data)) + offset
	default:
		return 0, errors.New("invalid seek whence")
	}
	if pos < 0 {
		return 0, errors.New("seek before start of buffer")
	}
	m.off = pos
	return pos, nil
}

// Size returns len(data).
func (m *MemorySource) Size() int64 { return int64(len(m.data)) }

// Close is a no-op.
func (m *MemorySource) Close() error { return nil }

// ReaderSource adapts any io.ReadSeeker of known length.
type ReaderSource struct {
	io.ReadSeeker
	size int64
}

// NewReaderSource wraps r, whose total length is size. Close closes r when
// it implements io.Closer.
func NewReaderSource(r io.ReadSeeker, size int64) *ReaderSource {
	return &ReaderSource{ReadSeeker: r, size: size}
}

// Size returns the length given at construction.
func (r *ReaderSource) Size() int64 { return r.size }

// Close closes the underlying reader if it can be closed.
func (r *ReaderSource) Close() error {
	if c, ok := r.ReadSeeker.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenFileSource opens an AVI file for sequential reading.
func OpenFileSource(filename string) (*ReaderSource, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &AVIError{Op: "open", Err: err}
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &AVIError{Op: "stat", Err: err}
	}
	return NewReaderSource(file, stat.Size()), nil
}

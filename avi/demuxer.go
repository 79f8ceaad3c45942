package avi

import (
	"errors"
	"fmt"
	"io"
)

// DefaultHeaderSize is how much of the file the header parser looks at.
const DefaultHeaderSize = 20 * 1024

// Chunk describes one movi data chunk.
type Chunk struct {
	FourCC FourCC
	Kind   FrameKind
	Offset int64  // absolute offset of the chunk header
	Size   uint32 // declared payload size
	Padded int64  // bytes the payload occupies on disk
}

// ReadFrame reads the chunk at the current position of src into dst and
// returns the padded payload length. Odd sized chunks carry one pad byte
// which is copied along with the payload, so src always ends up on the next
// chunk header. A source that ends early yields ErrInsufficientSource, a dst
// shorter than the padded payload ErrDestinationTooSmall; nothing is copied
// in either case.
func ReadFrame(src Source, dst []byte) (int, FourCC, error) {
	c, err := readChunk(src, dst)
	if err != nil {
		return 0, c.FourCC, err
	}
	return int(c.Padded), c.FourCC, nil
}

func readChunk(src Source, dst []byte) (Chunk, error) {
	pos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return Chunk{}, &AVIError{Op: "tell", Err: err}
	}

	var hdr [ChunkHeaderSize]byte
	if err := readFull(src, hdr[:], "read chunk header"); err != nil {
		return Chunk{Offset: pos}, err
	}
	h, _ := ReadChunkHeader(hdr[:])
	c := Chunk{
		FourCC: h.FourCC,
		Kind:   Classify(h.FourCC),
		Offset: pos,
		Size:   h.Size,
		Padded: h.Padded(),
	}

	if remaining := src.Size() - pos - ChunkHeaderSize; c.Padded > remaining {
		return c, fmt.Errorf("%w: chunk %s at %d needs %d bytes, %d left", ErrInsufficientSource, c.FourCC, pos, c.Padded, remaining)
	}
	if int64(len(dst)) < c.Padded {
		return c, fmt.Errorf("%w: chunk %s needs %d bytes, buffer holds %d", ErrDestinationTooSmall, c.FourCC, c.Padded, len(dst))
	}
	if err := readFull(src, dst[:c.Padded], "read chunk data"); err != nil {
		return c, err
	}
	return c, nil
}

// readFull separates a short read from an I/O failure.
func readFull(r io.Reader, p []byte, op string) error {
	_, err := io.ReadFull(r, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrInsufficientSource
	default:
		return &AVIError{Op: op, Err: err}
	}
}

// Demuxer reads the header region of a Source once and then walks the movi
// list chunk by chunk, keeping count of the bytes it has consumed.
type Demuxer struct {
	src      Source
	info     *ContainerInfo
	consumed int64
}

// NewDemuxer creates a demuxer over src. The demuxer owns src until Close.
func NewDemuxer(src Source) *Demuxer {
	return &Demuxer{src: src}
}

// ReadHeader fills buf from the start of the source, parses it and positions
// the source on the first movi chunk. buf bounds how far the parser looks.
func (d *Demuxer) ReadHeader(buf []byte, opts ParseOptions) (*ContainerInfo, error) {
	if _, err := d.src.Seek(0, io.SeekStart); err != nil {
		return nil, &AVIError{Op: "seek", Err: err}
	}
	n := len(buf)
	if size := d.src.Size(); size < int64(n) {
		n = int(size)
	}
	read, err := io.ReadFull(d.src, buf[:n])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, &AVIError{Op: "read header", Err: err}
	}

	info, err := ParseWithOptions(buf[:read], opts)
	if err != nil {
		return nil, err
	}
	if err := d.Rewind(info); err != nil {
		return nil, err
	}
	return info, nil
}

// Rewind sets info as the parsed header and seeks back to its first chunk.
func (d *Demuxer) Rewind(info *ContainerInfo) error {
	if _, err := d.src.Seek(info.MoviStart, io.SeekStart); err != nil {
		return &AVIError{Op: "seek movi", Err: err}
	}
	d.info = info
	d.consumed = 0
	return nil
}

// Info returns the parsed header, or nil before ReadHeader.
func (d *Demuxer) Info() *ContainerInfo {
	return d.info
}

// Consumed is the sum of padded payload plus chunk header bytes read so far.
func (d *Demuxer) Consumed() int64 {
	return d.consumed
}

// Done reports whether every byte of the movi data has been consumed.
func (d *Demuxer) Done() bool {
	return d.info != nil && d.consumed >= d.info.DataSize()
}

// ReadFrame reads the next chunk into dst. See the package level ReadFrame.
func (d *Demuxer) ReadFrame(dst []byte) (int, FourCC, error) {
	c, err := d.ReadChunk(dst)
	if err != nil {
		return 0, c.FourCC, err
	}
	return int(c.Padded), c.FourCC, nil
}

// ReadChunk reads the next chunk into dst and describes it.
func (d *Demuxer) ReadChunk(dst []byte) (Chunk, error) {
	if d.info == nil {
		return Chunk{}, &AVIError{Op: "read chunk", Err: errors.New("header not read")}
	}
	if d.Done() {
		return Chunk{}, io.EOF
	}
	c, err := readChunk(d.src, dst)
	if err != nil {
		return c, err
	}
	d.consumed += c.Padded + ChunkHeaderSize
	return c, nil
}

// ReadIndex loads the idx1 chunk that follows the movi list. It returns nil
// when the file has no index. The current read position is preserved.
func (d *Demuxer) ReadIndex() ([]IndexEntry, error) {
	if d.info == nil {
		return nil, &AVIError{Op: "read index", Err: errors.New("header not read")}
	}
	cur, err := d.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, &AVIError{Op: "tell", Err: err}
	}
	defer d.src.Seek(cur, io.SeekStart)

	at := d.info.MoviStart + int64(AlignSize(uint32(d.info.DataSize())))
	if at+ChunkHeaderSize > d.src.Size() {
		return nil, nil
	}
	if _, err := d.src.Seek(at, io.SeekStart); err != nil {
		return nil, &AVIError{Op: "seek idx1", Err: err}
	}
	var hdr [ChunkHeaderSize]byte
	if err := readFull(d.src, hdr[:], "read idx1 header"); err != nil {
		return nil, err
	}
	h, _ := ReadChunkHeader(hdr[:])
	if h.FourCC != FccIDX1 {
		return nil, nil
	}
	if remaining := d.src.Size() - at - ChunkHeaderSize; int64(h.Size) > remaining {
		return nil, ErrInsufficientSource
	}
	raw := make([]byte, h.Size)
	if err := readFull(d.src, raw, "read idx1"); err != nil {
		return nil, err
	}

	c := newCursor(raw)
	entries := make([]IndexEntry, 0, len(raw)/IndexEntrySize)
	for c.remaining() >= IndexEntrySize {
		var e IndexEntry
		var id uint32
		_ = c.u32s(&id, &e.Flags, &e.Offset, &e.Size)
		e.ChunkID = FourCC(id)
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the underlying source.
func (d *Demuxer) Close() error {
	if d.src == nil {
		return nil
	}
	return d.src.Close()
}

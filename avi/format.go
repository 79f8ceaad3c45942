package avi

import (
	"encoding/binary"
)

// FourCC is a RIFF four-character code held as the little-endian uint32 of
// its four ASCII bytes, so 'RIFF' on disk compares equal to FccRIFF read with
// binary.LittleEndian.
type FourCC uint32

// MakeFourCC builds a FourCC from its four characters in file order.
func MakeFourCC(a, b, c, d byte) FourCC {
	return FourCC(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// ParseFourCC builds a FourCC from a string of at most four bytes; shorter
// strings are space padded.
func ParseFourCC(s string) FourCC {
	id := [4]byte{' ', ' ', ' ', ' '}
	copy(id[:], s)
	return MakeFourCC(id[0], id[1], id[2], id[3])
}

// Bytes returns the four characters in file order.
func (f FourCC) Bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(f))
	return b
}

// String renders printable characters and escapes the rest as '.'.
func (f FourCC) String() string {
	b := f.Bytes()
	for i, c := range b {
		if c < 32 || c > 126 {
			b[i] = '.'
		}
	}
	return string(b[:])
}

// RIFF and AVI identifiers.
const (
	FccRIFF FourCC = 'R' | 'I'<<8 | 'F'<<16 | 'F'<<24
	FccAVI  FourCC = 'A' | 'V'<<8 | 'I'<<16 | ' '<<24
	FccLIST FourCC = 'L' | 'I'<<8 | 'S'<<16 | 'T'<<24
	FccJUNK FourCC = 'J' | 'U'<<8 | 'N'<<16 | 'K'<<24

	FccHDRL FourCC = 'h' | 'd'<<8 | 'r'<<16 | 'l'<<24
	FccSTRL FourCC = 's' | 't'<<8 | 'r'<<16 | 'l'<<24
	FccMOVI FourCC = 'm' | 'o'<<8 | 'v'<<16 | 'i'<<24

	FccAVIH FourCC = 'a' | 'v'<<8 | 'i'<<16 | 'h'<<24
	FccSTRH FourCC = 's' | 't'<<8 | 'r'<<16 | 'h'<<24
	FccSTRF FourCC = 's' | 't'<<8 | 'r'<<16 | 'f'<<24
	FccIDX1 FourCC = 'i' | 'd'<<8 | 'x'<<16 | '1'<<24

	FccVIDS FourCC = 'v' | 'i'<<8 | 'd'<<16 | 's'<<24
	FccAUDS FourCC = 'a' | 'u'<<8 | 'd'<<16 | 's'<<24
	FccTXTS FourCC = 't' | 'x'<<8 | 't'<<16 | 's'<<24

	FccMJPG FourCC = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	FccH264 FourCC = 'H' | '2'<<8 | '6'<<16 | '4'<<24
	FccXVID FourCC = 'X' | 'V'<<8 | 'I'<<16 | 'D'<<24
)

// Two-character chunk type suffixes of movi data chunks, positioned in the
// upper 16 bits the way they appear after a little-endian load of '00dc'.
const (
	tagMask          uint32 = 0xFFFF0000
	tagCompressedVid uint32 = 'd'<<16 | 'c'<<24
	tagUncompVid     uint32 = 'd'<<16 | 'b'<<24
	tagAudio         uint32 = 'w'<<16 | 'b'<<24
)

// Header sizes in bytes as they appear on disk.
const (
	ChunkHeaderSize = 8
	ListHeaderSize  = 12

	MainHeaderSize   = 56 // avih payload
	StreamHeaderSize = 56 // strh payload
	BitmapInfoSize   = 40 // video strf payload
	WaveFormatSize   = 16 // audio strf payload without cbSize
	WaveFormatExSize = 18 // audio strf payload with cbSize
	IndexEntrySize   = 16
)

// WAVE format tags.
const (
	WaveFormatPCM uint16 = 0x0001
)

// ChunkHeader identifies and sizes a chunk. Size excludes the header and any
// padding byte.
type ChunkHeader struct {
	FourCC FourCC
	Size   uint32
}

// Padded returns Size rounded up to the even length the chunk occupies. It
// is computed in 64 bits so a declared size of 0xFFFFFFFF does not wrap.
func (h ChunkHeader) Padded() int64 {
	return paddedSize(h.Size)
}

// ListHeader is a RIFF or LIST chunk header followed by its list type. Size
// counts every byte after the size field, the list type included.
type ListHeader struct {
	Tag    FourCC
	Size   uint32
	FourCC FourCC
}

// ReadChunkHeader decodes a chunk header from the start of buf.
func ReadChunkHeader(buf []byte) (ChunkHeader, error) {
	c := newCursor(buf)
	return c.chunkHeader()
}

// ReadListHeader decodes a RIFF/LIST header from the start of buf.
func ReadListHeader(buf []byte) (ListHeader, error) {
	c := newCursor(buf)
	return c.listHeader()
}

// PutChunkHeader encodes h into the first 8 bytes of buf.
func PutChunkHeader(buf []byte, h ChunkHeader) error {
	if len(buf) < ChunkHeaderSize {
		return ErrTruncatedHeader
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.FourCC))
	binary.LittleEndian.PutUint32(buf[4:8], h.Size)
	return nil
}

// PutListHeader encodes h into the first 12 bytes of buf.
func PutListHeader(buf []byte, h ListHeader) error {
	if len(buf) < ListHeaderSize {
		return ErrTruncatedHeader
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Tag))
	binary.LittleEndian.PutUint32(buf[4:8], h.Size)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.FourCC))
	return nil
}

// AlignSize rounds size up to the next even number. It wraps to 0 for
// 0xFFFFFFFF; sizes read from a file go through ChunkHeader.Padded instead.
func AlignSize(size uint32) uint32 {
	return (size + 1) &^ 1
}

func paddedSize(size uint32) int64 {
	return int64(size) + int64(size&1)
}

// MakeChunkID builds the movi chunk id for a stream, e.g. (1, "wb") -> '01wb'.
func MakeChunkID(streamIndex int, twoCC string) FourCC {
	return MakeFourCC(byte('0'+streamIndex/10%10), byte('0'+streamIndex%10), twoCC[0], twoCC[1])
}

// StreamIndex returns the stream number encoded in the first two characters
// of a movi chunk id, or -1 when they are not decimal digits.
func (f FourCC) StreamIndex() int {
	b := f.Bytes()
	if b[0] < '0' || b[0] > '9' || b[1] < '0' || b[1] > '9' {
		return -1
	}
	return int(b[0]-'0')*10 + int(b[1]-'0')
}

// cursor walks a byte slice and fails instead of reading past its end.
type cursor struct {
	buf []byte
	off int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) need(n int) error {
	if n < 0 || c.remaining() < n {
		return ErrTruncatedHeader
	}
	return nil
}

func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) fourCC() (FourCC, error) {
	v, err := c.u32()
	return FourCC(v), err
}

func (c *cursor) chunkHeader() (ChunkHeader, error) {
	if err := c.need(ChunkHeaderSize); err != nil {
		return ChunkHeader{}, err
	}
	id, _ := c.fourCC()
	size, _ := c.u32()
	return ChunkHeader{FourCC: id, Size: size}, nil
}

func (c *cursor) listHeader() (ListHeader, error) {
	if err := c.need(ListHeaderSize); err != nil {
		return ListHeader{}, err
	}
	tag, _ := c.fourCC()
	size, _ := c.u32()
	id, _ := c.fourCC()
	return ListHeader{Tag: tag, Size: size, FourCC: id}, nil
}

// u32s reads len(dst) consecutive little-endian uint32 values.
func (c *cursor) u32s(dst ...*uint32) error {
	if err := c.need(4 * len(dst)); err != nil {
		return err
	}
	for _, p := range dst {
		*p, _ = c.u32()
	}
	return nil
}

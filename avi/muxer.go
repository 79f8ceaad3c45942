package avi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

type writerStream struct {
	typ    StreamType
	video  VideoFormat
	fps    uint32
	audio  AudioFormat
	frames uint32
	bytes  uint64
}

// Writer produces AVI files the parser accepts: one hdrl with avih and a
// strl per stream, a movi list of '??dc' and '??wb' chunks, and an idx1.
// Streams must be added before the first frame is written; headers are
// written with placeholder counts and rewritten in place by Finalize.
type Writer struct {
	w        io.WriteSeeker
	streams  []writerStream
	index    []IndexEntry
	started  bool
	final    bool
	moviData uint32 // bytes after the 'movi' tag
}

// NewWriter creates a writer that emits to w.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{w: w}
}

// CreateFile creates filename and returns a writer for it. Close closes the
// file.
func CreateFile(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, &AVIError{Op: "create", Err: err}
	}
	return NewWriter(file), nil
}

// AddVideoStream declares a video stream and returns its index.
func (w *Writer) AddVideoStream(codec VideoCodec, width, height int, fps uint32) (int, error) {
	if w.started {
		return -1, &AVIError{Op: "add stream", Err: errors.New("frames already written")}
	}
	if codec.FourCC() == 0 {
		return -1, &AVIError{Op: "add stream", Err: ErrUnsupportedCodec}
	}
	if fps == 0 {
		return -1, &AVIError{Op: "add stream", Err: errors.New("frame rate must be positive")}
	}
	w.streams = append(w.streams, writerStream{
		typ: StreamTypeVideo,
		fps: fps,
		video: VideoFormat{
			Width:       width,
			Height:      height,
			BitCount:    24,
			Compression: codec.FourCC(),
			Codec:       codec,
		},
	})
	return len(w.streams) - 1, nil
}

// AddAudioStream declares a PCM audio stream and returns its index.
func (w *Writer) AddAudioStream(channels, sampleRate, bitsPerSample int) (int, error) {
	if w.started {
		return -1, &AVIError{Op: "add stream", Err: errors.New("frames already written")}
	}
	if channels <= 0 || sampleRate <= 0 || bitsPerSample <= 0 {
		return -1, &AVIError{Op: "add stream", Err: fmt.Errorf("invalid pcm format %d/%d/%d", channels, sampleRate, bitsPerSample)}
	}
	blockAlign := channels * bitsPerSample / 8
	w.streams = append(w.streams, writerStream{
		typ: StreamTypeAudio,
		audio: AudioFormat{
			FormatTag:      WaveFormatPCM,
			Channels:       channels,
			SampleRate:     sampleRate,
			AvgBytesPerSec: uint32(sampleRate * blockAlign),
			BlockAlign:     uint16(blockAlign),
			BitsPerSample:  bitsPerSample,
			Codec:          AudioCodecPCM,
		},
	})
	return len(w.streams) - 1, nil
}

// WriteFrame appends one chunk for stream. Odd payloads get a pad byte.
func (w *Writer) WriteFrame(stream int, data []byte, keyframe bool) error {
	if w.final {
		return &AVIError{Op: "write frame", Err: errors.New("writer finalized")}
	}
	if stream < 0 || stream >= len(w.streams) {
		return &AVIError{Op: "write frame", Err: fmt.Errorf("invalid stream index %d", stream)}
	}
	if !w.started {
		if err := w.writeHeaders(); err != nil {
			return err
		}
		w.started = true
	}

	s := &w.streams[stream]
	twoCC := "dc"
	if s.typ == StreamTypeAudio {
		twoCC = "wb"
	}
	id := MakeChunkID(stream, twoCC)

	var hdr [ChunkHeaderSize]byte
	_ = PutChunkHeader(hdr[:], ChunkHeader{FourCC: id, Size: uint32(len(data))})
	if _, err := w.w.Write(hdr[:]); err != nil {
		return &AVIError{Op: "write chunk header", Err: err}
	}
	if _, err := w.w.Write(data); err != nil {
		return &AVIError{Op: "write chunk data", Err: err}
	}
	if len(data)%2 == 1 {
		if _, err := w.w.Write([]byte{0}); err != nil {
			return &AVIError{Op: "write padding", Err: err}
		}
	}

	var flags uint32
	if keyframe || s.typ == StreamTypeAudio {
		flags = IndexFlagKeyframe
	}
	w.index = append(w.index, IndexEntry{
		ChunkID: id,
		Flags:   flags,
		Offset:  w.moviData + 4, // relative to the 'movi' tag
		Size:    uint32(len(data)),
	})
	w.moviData += ChunkHeaderSize + AlignSize(uint32(len(data)))
	s.frames++
	s.bytes += uint64(len(data))
	return nil
}

// Finalize writes idx1 and rewrites the headers with the final sizes.
func (w *Writer) Finalize() error {
	if w.final {
		return nil
	}
	if !w.started {
		if err := w.writeHeaders(); err != nil {
			return err
		}
		w.started = true
	}

	idx := make([]byte, ChunkHeaderSize+IndexEntrySize*len(w.index))
	_ = PutChunkHeader(idx, ChunkHeader{FourCC: FccIDX1, Size: uint32(IndexEntrySize * len(w.index))})
	for i, e := range w.index {
		b := idx[ChunkHeaderSize+i*IndexEntrySize:]
		binary.LittleEndian.PutUint32(b[0:], uint32(e.ChunkID))
		binary.LittleEndian.PutUint32(b[4:], e.Flags)
		binary.LittleEndian.PutUint32(b[8:], e.Offset)
		binary.LittleEndian.PutUint32(b[12:], e.Size)
	}
	if _, err := w.w.Write(idx); err != nil {
		return &AVIError{Op: "write idx1", Err: err}
	}

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return &AVIError{Op: "seek", Err: err}
	}
	if err := w.writeHeaders(); err != nil {
		return err
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return &AVIError{Op: "seek", Err: err}
	}
	w.final = true
	return nil
}

// Close finalizes if needed and closes the destination when it can be closed.
func (w *Writer) Close() error {
	err := w.Finalize()
	if c, ok := w.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func strfSize(s writerStream) uint32 {
	if s.typ == StreamTypeVideo {
		return BitmapInfoSize
	}
	return WaveFormatExSize
}

func strlSize(s writerStream) uint32 {
	return 4 + ChunkHeaderSize + StreamHeaderSize + ChunkHeaderSize + AlignSize(strfSize(s))
}

func (w *Writer) hdrlSize() uint32 {
	size := uint32(4 + ChunkHeaderSize + MainHeaderSize)
	for _, s := range w.streams {
		size += ChunkHeaderSize + strlSize(s)
	}
	return size
}

// writeHeaders emits RIFF, hdrl and the movi LIST header using the counts
// gathered so far.
func (w *Writer) writeHeaders() error {
	hdrl := w.hdrlSize()
	moviList := 4 + w.moviData
	idx1 := uint32(ChunkHeaderSize + IndexEntrySize*len(w.index))
	if !w.started {
		idx1 = 0
	}
	riff := 4 + ChunkHeaderSize + hdrl + ChunkHeaderSize + moviList + idx1

	buf := make([]byte, ListHeaderSize+ChunkHeaderSize+hdrl+ListHeaderSize)
	off := 0
	putList := func(tag FourCC, size uint32, id FourCC) {
		_ = PutListHeader(buf[off:], ListHeader{Tag: tag, Size: size, FourCC: id})
		off += ListHeaderSize
	}
	putChunk := func(id FourCC, size uint32) {
		_ = PutChunkHeader(buf[off:], ChunkHeader{FourCC: id, Size: size})
		off += ChunkHeaderSize
	}
	u16 := func(v uint16) { binary.LittleEndian.PutUint16(buf[off:], v); off += 2 }
	u32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[off:], v); off += 4 }

	putList(FccRIFF, riff, FccAVI)
	putList(FccLIST, hdrl, FccHDRL)

	var usPerFrame, totalFrames, width, height uint32
	for _, s := range w.streams {
		if s.typ == StreamTypeVideo {
			usPerFrame = 1000000 / s.fps
			totalFrames = s.frames
			width, height = uint32(s.video.Width), uint32(s.video.Height)
			break
		}
	}
	putChunk(FccAVIH, MainHeaderSize)
	u32(usPerFrame)
	u32(0)    // dwMaxBytesPerSec
	u32(0)    // dwPaddingGranularity
	u32(0x10) // AVIF_HASINDEX
	u32(totalFrames)
	u32(0) // dwInitialFrames
	u32(uint32(len(w.streams)))
	u32(0) // dwSuggestedBufferSize
	u32(width)
	u32(height)
	off += 16 // dwReserved

	for _, s := range w.streams {
		putList(FccLIST, strlSize(s), FccSTRL)
		putChunk(FccSTRH, StreamHeaderSize)
		if s.typ == StreamTypeVideo {
			u32(uint32(FccVIDS))
			u32(uint32(s.video.Compression))
		} else {
			u32(uint32(FccAUDS))
			u32(0)
		}
		u32(0) // dwFlags
		u16(0) // wPriority
		u16(0) // wLanguage
		u32(0) // dwInitialFrames
		if s.typ == StreamTypeVideo {
			u32(1)     // dwScale
			u32(s.fps) // dwRate
		} else {
			u32(uint32(s.audio.BlockAlign))
			u32(s.audio.AvgBytesPerSec)
		}
		u32(0) // dwStart
		if s.typ == StreamTypeVideo {
			u32(s.frames)
		} else if s.audio.BlockAlign > 0 {
			u32(uint32(s.bytes / uint64(s.audio.BlockAlign)))
		} else {
			u32(0)
		}
		u32(0)          // dwSuggestedBufferSize
		u32(0xFFFFFFFF) // dwQuality
		if s.typ == StreamTypeVideo {
			u32(0)
			u16(0)
			u16(0)
			u16(uint16(s.video.Width))
			u16(uint16(s.video.Height))
		} else {
			u32(uint32(s.audio.BlockAlign))
			off += 8 // rcFrame
		}

		putChunk(FccSTRF, strfSize(s))
		if s.typ == StreamTypeVideo {
			u32(BitmapInfoSize)
			u32(uint32(int32(s.video.Width)))
			u32(uint32(int32(s.video.Height)))
			u16(1) // biPlanes
			u16(s.video.BitCount)
			u32(uint32(s.video.Compression))
			u32(uint32(s.video.Width * s.video.Height * int(s.video.BitCount) / 8))
			off += 16 // pels per meter, colour counts
		} else {
			u16(s.audio.FormatTag)
			u16(uint16(s.audio.Channels))
			u32(uint32(s.audio.SampleRate))
			u32(s.audio.AvgBytesPerSec)
			u16(s.audio.BlockAlign)
			u16(uint16(s.audio.BitsPerSample))
			u16(0) // cbSize
		}
	}

	putList(FccLIST, moviList, FccMOVI)

	if _, err := w.w.Write(buf[:off]); err != nil {
		return &AVIError{Op: "write headers", Err: err}
	}
	return nil
}

package avi

import (
	"time"
)

// StreamType represents the type of media stream
type StreamType string

const (
	StreamTypeVideo StreamType = "video"
	StreamTypeAudio StreamType = "audio"
	StreamTypeOther StreamType = "other"
)

// VideoCodec is one of the payload formats the player will pace.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecMJPEG
	VideoCodecH264
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecMJPEG:
		return "MJPEG"
	case VideoCodecH264:
		return "H264"
	default:
		return "unknown"
	}
}

// FourCC returns the canonical compression tag written for the codec.
func (c VideoCodec) FourCC() FourCC {
	switch c {
	case VideoCodecMJPEG:
		return FccMJPG
	case VideoCodecH264:
		return FccH264
	default:
		return 0
	}
}

// AudioCodec is the audio payload format. Only PCM is accepted.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecPCM
)

func (c AudioCodec) String() string {
	if c == AudioCodecPCM {
		return "PCM"
	}
	return "unknown"
}

// MainHeader holds the avih fields.
type MainHeader struct {
	MicroSecPerFrame    uint32
	MaxBytesPerSec      uint32
	PaddingGranularity  uint32
	Flags               uint32
	TotalFrames         uint32
	InitialFrames       uint32
	Streams             uint32
	SuggestedBufferSize uint32
	Width               uint32
	Height              uint32
}

// Rect is the strh display rectangle.
type Rect struct {
	Left, Top, Right, Bottom uint16
}

// StreamHeader holds the strh fields needed to classify and pace a stream.
type StreamHeader struct {
	Type                FourCC
	Handler             FourCC
	Flags               uint32
	Priority            uint16
	Language            uint16
	InitialFrames       uint32
	Scale               uint32
	Rate                uint32
	Start               uint32
	Length              uint32
	SuggestedBufferSize uint32
	Quality             uint32
	SampleSize          uint32
	Frame               Rect
}

// VideoFormat is derived from a video strf (BITMAPINFOHEADER).
type VideoFormat struct {
	Width       int
	Height      int
	BitCount    uint16
	Compression FourCC
	Codec       VideoCodec
}

// AudioFormat is derived from an audio strf (WAVEFORMATEX).
type AudioFormat struct {
	FormatTag      uint16
	Channels       int
	SampleRate     int
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  int
	Codec          AudioCodec
}

// Stream describes one strl entry.
type Stream struct {
	Index    int
	Type     StreamType
	Header   StreamHeader
	Video    *VideoFormat
	Audio    *AudioFormat
	Duration time.Duration
}

// ContainerInfo is everything the parser learns from the header region.
type ContainerInfo struct {
	Main    MainHeader
	Streams []Stream

	HasVideo bool
	Video    VideoFormat
	FPS      uint32

	HasAudio bool
	Audio    AudioFormat

	// MoviStart is the absolute offset of the first data chunk and MoviSize
	// the declared size of the movi LIST, the 'movi' tag included.
	MoviStart int64
	MoviSize  uint32

	// Warnings lists stream entries the lenient parser skipped.
	Warnings []string
}

// DataSize is the number of bytes of data chunks inside the movi LIST.
func (ci *ContainerInfo) DataSize() int64 {
	if ci.MoviSize < 4 {
		return 0
	}
	return int64(ci.MoviSize) - 4
}

// FrameInterval is the pacing period derived from FPS, or 0 when unknown.
func (ci *ContainerInfo) FrameInterval() time.Duration {
	if ci.FPS == 0 {
		return 0
	}
	return time.Duration(1000*1000/ci.FPS) * time.Microsecond
}

// FrameKind classifies a movi chunk.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameVideo
	FrameAudio
)

func (k FrameKind) String() string {
	switch k {
	case FrameVideo:
		return "video"
	case FrameAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Classify maps a chunk id to its frame kind by its two-character suffix.
func Classify(id FourCC) FrameKind {
	switch uint32(id) & tagMask {
	case tagCompressedVid, tagUncompVid:
		return FrameVideo
	case tagAudio:
		return FrameAudio
	default:
		return FrameUnknown
	}
}

// IndexEntry represents an index entry (idx1)
type IndexEntry struct {
	ChunkID FourCC
	Flags   uint32
	Offset  uint32
	Size    uint32
}

// AVIIF_KEYFRAME
const IndexFlagKeyframe uint32 = 0x10

package avi

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ParseOptions tunes Parse.
type ParseOptions struct {
	// Strict makes a malformed strl fatal. By default the parser stops
	// reading stream lists at the first broken one, records a warning and
	// still looks for the movi list.
	Strict bool

	// Logger receives diagnostics. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Parse walks the header region of an AVI file held in buf: RIFF 'AVI ',
// LIST 'hdrl' with avih and one strl per declared stream, then the movi LIST.
// buf does not need to hold the movi payload, only its LIST header.
func Parse(buf []byte) (*ContainerInfo, error) {
	return ParseWithOptions(buf, ParseOptions{})
}

// ParseWithOptions is Parse with explicit options.
func ParseWithOptions(buf []byte, opts ParseOptions) (*ContainerInfo, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &parser{c: newCursor(buf), opts: opts, log: log.WithField("function", "Parse")}
	return p.parse()
}

type parser struct {
	c    *cursor
	opts ParseOptions
	log  logrus.FieldLogger
	info ContainerInfo
}

func (p *parser) parse() (*ContainerInfo, error) {
	riff, err := p.c.listHeader()
	if err != nil {
		return nil, err
	}
	if riff.Tag != FccRIFF || riff.FourCC != FccAVI {
		return nil, ErrInvalidRIFF
	}

	hdrl, err := p.c.listHeader()
	if err != nil {
		return nil, err
	}
	if hdrl.Tag != FccLIST || hdrl.FourCC != FccHDRL {
		return nil, ErrInvalidHdrl
	}

	if err := p.parseMainHeader(); err != nil {
		return nil, err
	}

	for i := 0; i < int(p.info.Main.Streams); i++ {
		err := p.parseStreamList(i)
		if err == nil {
			continue
		}
		if p.opts.Strict || errors.Is(err, ErrUnsupportedCodec) {
			return nil, err
		}
		p.warn(fmt.Sprintf("stream %d: %v", i, err))
		break
	}

	if err := p.findMovi(); err != nil {
		return nil, err
	}

	info := p.info
	return &info, nil
}

func (p *parser) warn(msg string) {
	p.info.Warnings = append(p.info.Warnings, msg)
	p.log.WithField("warning", msg).Warn("Skipping stream list")
}

func (p *parser) parseMainHeader() error {
	h, err := p.c.chunkHeader()
	if err != nil {
		return err
	}
	if h.FourCC != FccAVIH || h.Size != MainHeaderSize {
		return ErrInvalidAvih
	}
	m := &p.info.Main
	if err := p.c.u32s(
		&m.MicroSecPerFrame, &m.MaxBytesPerSec, &m.PaddingGranularity, &m.Flags,
		&m.TotalFrames, &m.InitialFrames, &m.Streams, &m.SuggestedBufferSize,
		&m.Width, &m.Height,
	); err != nil {
		return err
	}
	// dwReserved[4]
	return p.c.skip(16)
}

func (p *parser) parseStreamList(index int) error {
	start := p.c.off
	list, err := p.c.listHeader()
	if err != nil {
		return err
	}
	if list.Tag != FccLIST || list.FourCC != FccSTRL {
		return ErrInvalidStrl
	}
	end := int64(start) + ChunkHeaderSize + paddedSize(list.Size)

	stream := Stream{Index: index, Type: StreamTypeOther}
	if err := p.parseStreamHeader(&stream.Header); err != nil {
		return err
	}
	sh := &stream.Header

	switch sh.Type {
	case FccVIDS:
		stream.Type = StreamTypeVideo
		if sh.Scale == 0 {
			return ErrDivideByZero
		}
		// Many writers leave the handler zero; a named one must agree with a
		// codec the player can deliver.
		if sh.Handler != 0 && videoCodecOf(sh.Handler) == VideoCodecUnknown {
			return fmt.Errorf("%w: stream handler %q", ErrUnsupportedCodec, sh.Handler.String())
		}
		vf, err := p.parseVideoFormat()
		if err != nil {
			return err
		}
		stream.Video = vf
		if !p.info.HasVideo {
			p.info.HasVideo = true
			p.info.Video = *vf
			p.info.FPS = sh.Rate / sh.Scale
		}
	case FccAUDS:
		stream.Type = StreamTypeAudio
		af, err := p.parseAudioFormat()
		if err != nil {
			return err
		}
		stream.Audio = af
		if !p.info.HasAudio {
			p.info.HasAudio = true
			p.info.Audio = *af
		}
	default:
		p.log.WithFields(logrus.Fields{
			"stream": index,
			"type":   sh.Type.String(),
		}).Debug("Ignoring unsupported stream type")
	}

	if sh.Rate > 0 && sh.Scale > 0 && sh.Length > 0 {
		stream.Duration = time.Duration(uint64(sh.Length) * uint64(sh.Scale) * uint64(time.Second) / uint64(sh.Rate))
	}
	p.info.Streams = append(p.info.Streams, stream)

	// strd, strn, vprp and JUNK may follow strf; the list size says where it ends.
	if end < int64(p.c.off) || end > int64(len(p.c.buf)) {
		return ErrTruncatedHeader
	}
	p.c.off = int(end)
	return nil
}

func (p *parser) parseStreamHeader(sh *StreamHeader) error {
	h, err := p.c.chunkHeader()
	if err != nil {
		return err
	}
	if h.FourCC != FccSTRH || h.Size != StreamHeaderSize {
		return ErrInvalidStrh
	}
	if sh.Type, err = p.c.fourCC(); err != nil {
		return err
	}
	if sh.Handler, err = p.c.fourCC(); err != nil {
		return err
	}
	if sh.Flags, err = p.c.u32(); err != nil {
		return err
	}
	if sh.Priority, err = p.c.u16(); err != nil {
		return err
	}
	if sh.Language, err = p.c.u16(); err != nil {
		return err
	}
	if err := p.c.u32s(
		&sh.InitialFrames, &sh.Scale, &sh.Rate, &sh.Start, &sh.Length,
		&sh.SuggestedBufferSize, &sh.Quality, &sh.SampleSize,
	); err != nil {
		return err
	}
	for _, v := range []*uint16{&sh.Frame.Left, &sh.Frame.Top, &sh.Frame.Right, &sh.Frame.Bottom} {
		if *v, err = p.c.u16(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseVideoFormat() (*VideoFormat, error) {
	h, err := p.c.chunkHeader()
	if err != nil {
		return nil, err
	}
	if h.FourCC != FccSTRF || h.Size < BitmapInfoSize {
		return nil, ErrInvalidStrf
	}
	body := p.c.off

	var size, width, height, compression uint32
	var bitCount uint16
	if err := p.c.u32s(&size, &width, &height); err != nil {
		return nil, err
	}
	// biPlanes
	if err := p.c.skip(2); err != nil {
		return nil, err
	}
	if bitCount, err = p.c.u16(); err != nil {
		return nil, err
	}
	if compression, err = p.c.u32(); err != nil {
		return nil, err
	}

	vf := &VideoFormat{
		Width:       int(int32(width)),
		Height:      int(int32(height)),
		BitCount:    bitCount,
		Compression: FourCC(compression),
		Codec:       videoCodecOf(FourCC(compression)),
	}
	if vf.Height < 0 {
		vf.Height = -vf.Height
	}
	if vf.Codec == VideoCodecUnknown {
		return nil, fmt.Errorf("%w: video compression %q", ErrUnsupportedCodec, vf.Compression.String())
	}

	// Codec extradata may trail the BITMAPINFOHEADER.
	rest := int64(body) + paddedSize(h.Size) - int64(p.c.off)
	if rest > int64(p.c.remaining()) {
		return nil, ErrTruncatedHeader
	}
	if err := p.c.skip(int(rest)); err != nil {
		return nil, err
	}
	return vf, nil
}

func videoCodecOf(f FourCC) VideoCodec {
	switch f.String() {
	case "MJPG", "mjpg":
		return VideoCodecMJPEG
	case "H264", "h264", "X264", "x264", "avc1", "AVC1":
		return VideoCodecH264
	default:
		return VideoCodecUnknown
	}
}

func (p *parser) parseAudioFormat() (*AudioFormat, error) {
	h, err := p.c.chunkHeader()
	if err != nil {
		return nil, err
	}
	// WAVEFORMAT writers disagree on whether cbSize is present.
	if h.FourCC != FccSTRF || (h.Size != WaveFormatSize && h.Size != WaveFormatExSize) {
		return nil, ErrInvalidStrf
	}

	af := &AudioFormat{}
	var channels, bits uint16
	var rate uint32
	if af.FormatTag, err = p.c.u16(); err != nil {
		return nil, err
	}
	if channels, err = p.c.u16(); err != nil {
		return nil, err
	}
	if rate, err = p.c.u32(); err != nil {
		return nil, err
	}
	if af.AvgBytesPerSec, err = p.c.u32(); err != nil {
		return nil, err
	}
	if af.BlockAlign, err = p.c.u16(); err != nil {
		return nil, err
	}
	if bits, err = p.c.u16(); err != nil {
		return nil, err
	}
	if h.Size == WaveFormatExSize {
		if err := p.c.skip(2); err != nil {
			return nil, err
		}
	}
	af.Channels = int(channels)
	af.SampleRate = int(rate)
	af.BitsPerSample = int(bits)

	if af.FormatTag != WaveFormatPCM {
		return nil, fmt.Errorf("%w: audio format tag 0x%04x", ErrUnsupportedCodec, af.FormatTag)
	}
	af.Codec = AudioCodecPCM
	return af, nil
}

// findMovi scans forward byte by byte for the 'movi' list type and reads the
// LIST header that encloses it. A match not preceded by a LIST header is
// recorded as a warning and skipped; if no enclosed match follows, the result
// is ErrInvalidMovi rather than ErrMoviNotFound.
func (p *parser) findMovi() error {
	tag := FccMOVI.Bytes()
	from := p.c.off
	stray := false
	for from < len(p.c.buf) {
		i := bytes.Index(p.c.buf[from:], tag[:])
		if i < 0 {
			break
		}
		pos := from + i
		from = pos + 1
		if pos < ChunkHeaderSize {
			continue
		}
		list, err := ReadListHeader(p.c.buf[pos-ChunkHeaderSize:])
		if err != nil {
			return err
		}
		if list.Tag != FccLIST {
			msg := fmt.Sprintf("movi tag at offset %d is not inside a LIST", pos)
			p.info.Warnings = append(p.info.Warnings, msg)
			p.log.WithField("offset", pos).Warn("Skipping movi tag outside a LIST header")
			stray = true
			continue
		}
		p.info.MoviStart = int64(pos + 4)
		p.info.MoviSize = list.Size
		p.c.off = pos + 4
		return nil
	}
	if stray {
		return ErrInvalidMovi
	}
	return ErrMoviNotFound
}

package avi

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleMJPEGStream(t *testing.T) {
	frame := payload(1200, 7)
	buf := buildFixture(fixtureOptions{
		chunks: []fixtureChunk{{id: "00dc", data: frame}},
		total:  64 * 1024,
	})
	require.Len(t, buf, 64*1024)

	info, err := Parse(buf)
	require.NoError(t, err)

	assert.Equal(t, uint32(30), info.FPS)
	assert.True(t, info.HasVideo)
	assert.False(t, info.HasAudio)
	assert.Equal(t, 320, info.Video.Width)
	assert.Equal(t, 240, info.Video.Height)
	assert.Equal(t, VideoCodecMJPEG, info.Video.Codec)
	assert.Equal(t, uint32(1), info.Main.Streams)
	assert.Empty(t, info.Warnings)

	// 'movi' + '00dc' + size + payload
	assert.Equal(t, uint32(4+8+1200), info.MoviSize)
	assert.Equal(t, int64(8+1200), info.DataSize())
	assert.Equal(t, FccMOVI, FourCC(binary.LittleEndian.Uint32(buf[info.MoviStart-4:])))
	assert.Equal(t, 33333*time.Microsecond, info.FrameInterval())

	require.Len(t, info.Streams, 1)
	s := info.Streams[0]
	assert.Equal(t, StreamTypeVideo, s.Type)
	assert.Equal(t, FccMJPG, s.Header.Handler)
	assert.Equal(t, time.Second/30, s.Duration)

	src := NewMemorySource(buf)
	_, err = src.Seek(info.MoviStart, io.SeekStart)
	require.NoError(t, err)

	dst := make([]byte, 4096)
	n, id, err := ReadFrame(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
	assert.Equal(t, "00dc", id.String())
	assert.Equal(t, frame, dst[:n])
}

func TestParseUnsupportedVideoCodec(t *testing.T) {
	buf := buildFixture(fixtureOptions{
		compression: "XVID",
		chunks:      []fixtureChunk{{id: "00dc", data: payload(1200, 0)}},
		total:       64 * 1024,
	})

	for _, strict := range []bool{false, true} {
		info, err := ParseWithOptions(buf, ParseOptions{Strict: strict})
		assert.ErrorIs(t, err, ErrUnsupportedCodec)
		assert.Nil(t, info)
	}
}

func TestParseAcceptedVideoCodecs(t *testing.T) {
	tests := map[string]VideoCodec{
		"MJPG": VideoCodecMJPEG,
		"mjpg": VideoCodecMJPEG,
		"H264": VideoCodecH264,
		"x264": VideoCodecH264,
		"avc1": VideoCodecH264,
	}
	for fcc, codec := range tests {
		info, err := Parse(buildFixture(fixtureOptions{compression: fcc}))
		require.NoError(t, err, fcc)
		assert.Equal(t, codec, info.Video.Codec, fcc)
		assert.Equal(t, ParseFourCC(fcc), info.Video.Compression)
	}
}

func TestParseAudioStream(t *testing.T) {
	for _, size := range []int{WaveFormatSize, WaveFormatExSize} {
		info, err := Parse(buildFixture(fixtureOptions{audio: true, audioStrfLen: size}))
		require.NoError(t, err)
		require.True(t, info.HasAudio)
		assert.Equal(t, AudioFormat{
			FormatTag:      WaveFormatPCM,
			Channels:       1,
			SampleRate:     8000,
			AvgBytesPerSec: 16000,
			BlockAlign:     2,
			BitsPerSample:  16,
			Codec:          AudioCodecPCM,
		}, info.Audio)
		require.Len(t, info.Streams, 2)
		assert.Equal(t, StreamTypeAudio, info.Streams[1].Type)
	}
}

func TestParseUnsupportedAudioCodec(t *testing.T) {
	// 0x55 is MPEG layer 3.
	info, err := Parse(buildFixture(fixtureOptions{audio: true, audioTag: 0x55}))
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
	assert.Nil(t, info)
}

func TestParseHeaderErrors(t *testing.T) {
	good := buildFixture(fixtureOptions{})

	t.Run("riff", func(t *testing.T) {
		buf := bytes.Clone(good)
		copy(buf[8:], "WAVE")
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrInvalidRIFF)
		assert.ErrorIs(t, err, ErrContainerFormat)
	})

	t.Run("hdrl", func(t *testing.T) {
		buf := bytes.Clone(good)
		copy(buf[20:], "hdrx")
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrInvalidHdrl)
	})

	t.Run("avih size", func(t *testing.T) {
		_, err := Parse(buildFixture(fixtureOptions{avihSize: 52}))
		assert.ErrorIs(t, err, ErrInvalidAvih)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Parse(good[:40])
		assert.ErrorIs(t, err, ErrTruncatedHeader)
		assert.ErrorIs(t, err, ErrContainerTruncated)
	})

	t.Run("no movi", func(t *testing.T) {
		i := bytes.Index(good, []byte("movi"))
		require.Greater(t, i, 0)
		_, err := Parse(good[:i])
		assert.ErrorIs(t, err, ErrMoviNotFound)
	})
}

func TestParseZeroScale(t *testing.T) {
	buf := buildFixture(fixtureOptions{scale: 0, rate: 30})

	_, err := ParseWithOptions(buf, ParseOptions{Strict: true})
	assert.ErrorIs(t, err, ErrDivideByZero)

	logger, hook := test.NewNullLogger()
	info, err := ParseWithOptions(buf, ParseOptions{Logger: logger})
	require.NoError(t, err)
	assert.False(t, info.HasVideo)
	assert.Zero(t, info.FPS)
	require.Len(t, info.Warnings, 1)
	assert.Contains(t, info.Warnings[0], "stream 0")
	assert.NotZero(t, info.MoviStart)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestParseLenientStreamFailure(t *testing.T) {
	// A third stream with a broken strh after two good ones.
	bad := rawList("LIST", "strl", rawChunk("strh", make([]byte, 20)))
	buf := buildFixture(fixtureOptions{
		audio:        true,
		extraStreams: [][]byte{bad},
		chunks:       []fixtureChunk{{id: "00dc", data: payload(10, 0)}},
	})

	logger, _ := test.NewNullLogger()
	info, err := ParseWithOptions(buf, ParseOptions{Logger: logger})
	require.NoError(t, err)
	assert.True(t, info.HasVideo)
	assert.True(t, info.HasAudio)
	assert.Len(t, info.Streams, 2)
	require.Len(t, info.Warnings, 1)
	assert.Contains(t, info.Warnings[0], "stream 2")
	assert.Equal(t, uint32(4+8+10), info.MoviSize)

	_, err = ParseWithOptions(buf, ParseOptions{Strict: true, Logger: logger})
	assert.ErrorIs(t, err, ErrInvalidStrh)
}

func TestParseSkipsOtherStreamTypes(t *testing.T) {
	text := rawList("LIST", "strl",
		rawChunk("strh", strhPayload("txts", "\x00\x00\x00\x00", 1, 1, 0)),
		rawChunk("strf", nil),
		rawChunk("strn", []byte("subtitles")),
	)
	logger, _ := test.NewNullLogger()
	info, err := ParseWithOptions(buildFixture(fixtureOptions{extraStreams: [][]byte{text}}), ParseOptions{Strict: true, Logger: logger})
	require.NoError(t, err)
	require.Len(t, info.Streams, 2)
	assert.Equal(t, StreamTypeOther, info.Streams[1].Type)
	assert.Equal(t, FccTXTS, info.Streams[1].Header.Type)
	assert.Empty(t, info.Warnings)
}

func TestParseVideoExtradata(t *testing.T) {
	strf := cat(
		le32(BitmapInfoSize+6), le32(640), le32(uint32(0xFFFFFE20)), // height -480
		le16(1), le16(24), []byte("H264"),
		le32(0), le32(0), le32(0), le32(0), le32(0),
		[]byte{1, 2, 3, 4, 5, 6},
	)
	strl := rawList("LIST", "strl",
		rawChunk("strh", strhPayload("vids", "H264", 1001, 30000, 1)),
		rawChunk("strf", strf),
	)
	movi := rawList("LIST", "movi", rawChunk("00dc", payload(4, 0)))
	avih := rawChunk("avih", cat(make([]byte, 24), le32(1), make([]byte, 28)))
	body := cat(rawList("LIST", "hdrl", avih, strl), movi)
	buf := cat([]byte("RIFF"), le32(uint32(4+len(body))), []byte("AVI "), body)

	info, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, 640, info.Video.Width)
	assert.Equal(t, 480, info.Video.Height)
	assert.Equal(t, VideoCodecH264, info.Video.Codec)
	assert.Equal(t, uint32(29), info.FPS)
}

func TestParseVideoHandler(t *testing.T) {
	build := func(handler string) []byte {
		strf := cat(
			le32(BitmapInfoSize), le32(320), le32(240),
			le16(1), le16(24), []byte("H264"),
			le32(0), le32(0), le32(0), le32(0), le32(0),
		)
		strl := rawList("LIST", "strl",
			rawChunk("strh", strhPayload("vids", handler, 1, 25, 1)),
			rawChunk("strf", strf),
		)
		movi := rawList("LIST", "movi", rawChunk("00dc", payload(4, 0)))
		avih := rawChunk("avih", cat(make([]byte, 24), le32(1), make([]byte, 28)))
		body := cat(rawList("LIST", "hdrl", avih, strl), movi)
		return cat([]byte("RIFF"), le32(uint32(4+len(body))), []byte("AVI "), body)
	}

	for _, handler := range []string{"\x00\x00\x00\x00", "H264", "avc1"} {
		info, err := Parse(build(handler))
		require.NoError(t, err, "handler %q", handler)
		assert.Equal(t, VideoCodecH264, info.Video.Codec)
	}

	for _, handler := range []string{"XVID", "DIVX"} {
		_, err := Parse(build(handler))
		assert.ErrorIs(t, err, ErrUnsupportedCodec, "handler %q", handler)
	}
}

func TestParseMoviTagOutsideList(t *testing.T) {
	junk := rawChunk("JUNK", []byte("padmovi!"))
	buf := buildFixture(fixtureOptions{
		beforeMovi: [][]byte{junk},
		chunks:     []fixtureChunk{{id: "00dc", data: payload(2, 0)}},
	})

	logger, hook := test.NewNullLogger()
	info, err := ParseWithOptions(buf, ParseOptions{Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, uint32(4+8+2), info.MoviSize)
	require.Len(t, info.Warnings, 1)
	assert.Contains(t, info.Warnings[0], "not inside a LIST")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hdr, err := ReadListHeader(buf[info.MoviStart-ListHeaderSize:])
	require.NoError(t, err)
	assert.Equal(t, FccLIST, hdr.Tag)
	assert.Equal(t, FccMOVI, hdr.FourCC)

	t.Run("no enclosed movi", func(t *testing.T) {
		i := bytes.Index(buf, []byte("padmovi!"))
		require.Positive(t, i)
		end := i + len("padmovi!")
		_, err := Parse(buf[:end])
		assert.ErrorIs(t, err, ErrInvalidMovi)
		assert.ErrorIs(t, err, ErrContainerFormat)
	})
}

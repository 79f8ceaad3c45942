package avi

import (
	"bytes"
	"encoding/binary"
)

// Hand-built containers for exercising the parser on inputs the Writer
// would never produce.

type fixtureChunk struct {
	id   string
	data []byte
}

type fixtureOptions struct {
	compression string // video strf biCompression, default MJPG
	scale, rate uint32 // video strh, default 1/30
	width       int32
	height      int32
	avihSize    uint32 // default 56

	audio        bool
	audioTag     uint16 // default PCM
	audioStrfLen int    // 16 or 18, default 18

	extraStreams [][]byte // raw strl lists appended after the declared ones
	beforeMovi   [][]byte // chunks placed between hdrl and movi
	chunks       []fixtureChunk
	total        int // pad the buffer with zeros up to this length
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func rawChunk(id string, payload []byte) []byte {
	out := cat([]byte(id), le32(uint32(len(payload))), payload)
	if len(payload)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func rawList(tag, typ string, parts ...[]byte) []byte {
	body := cat(parts...)
	return cat([]byte(tag), le32(uint32(4+len(body))), []byte(typ), body)
}

func strhPayload(typ, handler string, scale, rate, length uint32) []byte {
	return cat(
		[]byte(typ), []byte(handler),
		le32(0),          // flags
		le16(0), le16(0), // priority, language
		le32(0), le32(scale), le32(rate), le32(0), le32(length),
		le32(0), le32(0xFFFFFFFF), le32(0),
		le16(0), le16(0), le16(0), le16(0),
	)
}

func videoStrl(compression string, scale, rate uint32, width, height int32) []byte {
	strf := cat(
		le32(BitmapInfoSize), le32(uint32(width)), le32(uint32(height)),
		le16(1), le16(24), []byte(compression),
		le32(0), le32(0), le32(0), le32(0), le32(0),
	)
	return rawList("LIST", "strl",
		rawChunk("strh", strhPayload("vids", compression, scale, rate, 1)),
		rawChunk("strf", strf),
	)
}

func audioStrl(tag uint16, strfLen int) []byte {
	strf := cat(le16(tag), le16(1), le32(8000), le32(16000), le16(2), le16(16))
	if strfLen == WaveFormatExSize {
		strf = append(strf, le16(0)...)
	} else if strfLen > WaveFormatSize {
		strf = append(strf, make([]byte, strfLen-WaveFormatSize)...)
	}
	return rawList("LIST", "strl",
		rawChunk("strh", strhPayload("auds", "\x00\x00\x00\x00", 2, 16000, 0)),
		rawChunk("strf", strf),
	)
}

func buildFixture(o fixtureOptions) []byte {
	if o.compression == "" {
		o.compression = "MJPG"
	}
	if o.scale == 0 && o.rate == 0 {
		o.scale, o.rate = 1, 30
	}
	if o.width == 0 && o.height == 0 {
		o.width, o.height = 320, 240
	}
	if o.avihSize == 0 {
		o.avihSize = MainHeaderSize
	}
	if o.audioTag == 0 {
		o.audioTag = WaveFormatPCM
	}
	if o.audioStrfLen == 0 {
		o.audioStrfLen = WaveFormatExSize
	}

	streams := [][]byte{videoStrl(o.compression, o.scale, o.rate, o.width, o.height)}
	if o.audio {
		streams = append(streams, audioStrl(o.audioTag, o.audioStrfLen))
	}
	streams = append(streams, o.extraStreams...)

	avih := cat(
		le32(33333), le32(0), le32(0), le32(0x10),
		le32(uint32(len(o.chunks))), le32(0), le32(uint32(len(streams))), le32(0),
		le32(uint32(o.width)), le32(uint32(o.height)),
		make([]byte, 16),
	)
	avihChunk := cat([]byte("avih"), le32(o.avihSize), avih)

	hdrl := rawList("LIST", "hdrl", append([][]byte{avihChunk}, streams...)...)

	var data [][]byte
	for _, c := range o.chunks {
		data = append(data, rawChunk(c.id, c.data))
	}
	movi := rawList("LIST", "movi", data...)

	body := cat(append(append([][]byte{hdrl}, o.beforeMovi...), movi)...)
	out := cat([]byte("RIFF"), le32(uint32(4+len(body))), []byte("AVI "), body)
	if o.total > len(out) {
		out = append(out, make([]byte, o.total-len(out))...)
	}
	return out
}

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeClip writes an MJPEG 64x48 + mono PCM file with n video frames.
func writeClip(t *testing.T, fps uint32, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.avi")
	w, err := avi.CreateFile(path)
	require.NoError(t, err)
	video, err := w.AddVideoStream(avi.VideoCodecMJPEG, 64, 48, fps)
	require.NoError(t, err)
	audio, err := w.AddAudioStream(1, 8000, 16)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, w.WriteFrame(audio, make([]byte, 160), true))
		require.NoError(t, w.WriteFrame(video, make([]byte, 301+i), i == 0))
	}
	require.NoError(t, w.Close())
	return path
}

func TestInspectJSON(t *testing.T) {
	path := writeClip(t, 25, 4)

	var out bytes.Buffer
	require.NoError(t, runInspect(&out, path, inspectOptions{format: "json", headerSize: avi.DefaultHeaderSize, showIndex: true}))

	var report FileOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, uint32(25), report.FPS)
	require.Len(t, report.Streams, 2)
	assert.Equal(t, "video", report.Streams[0].CodecType)
	assert.Equal(t, "MJPEG", report.Streams[0].CodecName)
	assert.Equal(t, "MJPG", report.Streams[0].CodecTag)
	assert.Equal(t, 64, report.Streams[0].Width)
	assert.Equal(t, "25/1", report.Streams[0].FrameRate)
	assert.Equal(t, "audio", report.Streams[1].CodecType)
	assert.Equal(t, 8000, report.Streams[1].SampleRate)
	require.Len(t, report.Index, 8)
	assert.Equal(t, "01wb", report.Index[0].ChunkID)
	assert.Equal(t, "00dc", report.Index[1].ChunkID)
	assert.True(t, report.Index[1].Keyframe)
	assert.False(t, report.Index[3].Keyframe)
}

func TestInspectText(t *testing.T) {
	path := writeClip(t, 25, 2)

	var out bytes.Buffer
	require.NoError(t, runInspect(&out, path, inspectOptions{format: "TEXT", headerSize: avi.DefaultHeaderSize}))
	assert.Contains(t, out.String(), "Stream #0: video (MJPEG) 64x48 @ 25/1")
	assert.Contains(t, out.String(), "Stream #1: audio (PCM) 8000 Hz, 1 channels, 16 bit")
}

func TestInspectErrors(t *testing.T) {
	path := writeClip(t, 25, 1)

	err := runInspect(&bytes.Buffer{}, path, inspectOptions{format: "xml", headerSize: avi.DefaultHeaderSize})
	assert.ErrorContains(t, err, "unsupported output format")

	err = runInspect(&bytes.Buffer{}, path, inspectOptions{format: "json", headerSize: 4})
	assert.ErrorContains(t, err, "--header-size")

	err = runInspect(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.avi"), inspectOptions{format: "json", headerSize: avi.DefaultHeaderSize})
	assert.ErrorContains(t, err, "failed to open file")
}

func TestFrames(t *testing.T) {
	path := writeClip(t, 25, 3)

	var out bytes.Buffer
	require.NoError(t, runFrames(&out, path, framesOptions{bufferSize: 4096}))
	assert.Contains(t, out.String(), "00dc")
	assert.Contains(t, out.String(), "6 chunks (3 video, 3 audio)")

	out.Reset()
	require.NoError(t, runFrames(&out, path, framesOptions{bufferSize: 4096, limit: 2}))
	assert.Contains(t, out.String(), "2 chunks (1 video, 1 audio)")
}

func TestPlay(t *testing.T) {
	path := writeClip(t, 100, 5)

	for _, poll := range []bool{false, true} {
		var out bytes.Buffer
		err := runPlay(context.Background(), &out, path, playOptions{bufferSize: 4096, poll: poll, verbose: !poll}, true, false)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Audio: PCM 8000 Hz, 1 channels, 16 bit")
		if !poll {
			assert.Contains(t, out.String(), "Video: 5 frames")
			assert.Contains(t, out.String(), "Audio: 5 chunks")
			assert.Contains(t, out.String(), "video 00dc #5")
		}
	}
}

func TestPlayInterrupted(t *testing.T) {
	path := writeClip(t, 2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, runPlay(ctx, &out, path, playOptions{bufferSize: 4096}, true, false))
	assert.Contains(t, out.String(), "Played")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}

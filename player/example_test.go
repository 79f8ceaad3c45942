package player_test

import (
	"fmt"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/charlescerisier/aviplayer/player"
	"github.com/sirupsen/logrus/hooks/test"
)

func Example() {
	buf := avi.NewSeekableBuffer()
	w := avi.NewWriter(buf)
	video, _ := w.AddVideoStream(avi.VideoCodecMJPEG, 320, 240, 100)
	audio, _ := w.AddAudioStream(1, 8000, 16)
	for i := 0; i < 3; i++ {
		_ = w.WriteFrame(audio, make([]byte, 160), true)
		_ = w.WriteFrame(video, make([]byte, 1200), i == 0)
	}
	_ = w.Finalize()

	logger, _ := test.NewNullLogger()
	done := make(chan error, 1)

	cfg := player.DefaultConfig()
	cfg.Logger = logger
	cfg.OnAudioFormat = func(f avi.AudioFormat, _ any) {
		fmt.Printf("audio: %d Hz, %d bit, %d ch\n", f.SampleRate, f.BitsPerSample, f.Channels)
	}
	cfg.OnVideoFrame = func(frame []byte, info player.VideoFrameInfo, _ any) {
		fmt.Printf("video %s #%d: %d bytes\n", info.FourCC, info.Sequence, len(frame))
	}
	cfg.OnPlaybackEnd = func(err error, _ any) {
		done <- err
	}

	p, err := player.New(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer p.Close()

	if err := p.PlayFromMemory(buf.Bytes()); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("end:", <-done)

	// Output:
	// audio: 8000 Hz, 16 bit, 1 ch
	// video 00dc #1: 1200 bytes
	// video 00dc #2: 1200 bytes
	// video 00dc #3: 1200 bytes
	// end: <nil>
}

func ExamplePlayer_GetVideoFrame() {
	buf := avi.NewSeekableBuffer()
	w := avi.NewWriter(buf)
	_, _ = w.AddVideoStream(avi.VideoCodecH264, 64, 64, 50)
	for i := 0; i < 2; i++ {
		_ = w.WriteFrame(0, []byte("frame"), i == 0)
	}
	_ = w.Finalize()

	logger, _ := test.NewNullLogger()
	cfg := player.DefaultConfig()
	cfg.Logger = logger

	p, _ := player.New(cfg)
	defer p.Close()
	_ = p.PlayFromMemory(buf.Bytes())

	dst := make([]byte, 64)
	info, err := p.GetVideoFrame(dst, -1)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s %dx%d %q\n", info.Codec, info.Width, info.Height, dst[:info.Size])

	// Output:
	// H264 64x64 "frame"
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/charlescerisier/aviplayer/player"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type playOptions struct {
	configFile string
	bufferSize int
	strict     bool
	poll       bool
	verbose    bool
}

var playOpts playOptions

var playCmd = &cobra.Command{
	Use:   "play <file.avi>",
	Short: "Play a file at its frame rate and report what was delivered",
	Long: `Play paces the file at the rate in its header. Frames are received
through callbacks, or with --poll by consumers calling GetVideoFrame and
GetAudioFrame. Nothing is decoded or rendered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runPlay(ctx, cmd.OutOrStdout(), args[0], playOpts, cmd.Flags().Changed("buffer-size"), cmd.Flags().Changed("strict"))
	},
}

func init() {
	f := playCmd.Flags()
	f.StringVarP(&playOpts.configFile, "config", "c", "", "YAML player configuration")
	f.IntVar(&playOpts.bufferSize, "buffer-size", player.DefaultBufferSize, "Frame buffer size in bytes")
	f.BoolVar(&playOpts.strict, "strict", false, "Fail on malformed stream entries instead of skipping them")
	f.BoolVar(&playOpts.poll, "poll", false, "Receive frames by polling instead of callbacks")
	f.BoolVarP(&playOpts.verbose, "verbose", "v", false, "Print every delivered frame")
}

// playStats is updated from the scheduler goroutine or the polling
// consumers and read once playback has ended.
type playStats struct {
	video      atomic.Uint64
	audio      atomic.Uint64
	videoBytes atomic.Uint64
	audioBytes atomic.Uint64
	tooSmall   atomic.Uint64
}

func runPlay(ctx context.Context, stdout io.Writer, path string, opts playOptions, bufferSet, strictSet bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg := player.DefaultConfig()
	if opts.configFile != "" {
		if cfg, err = player.LoadConfig(opts.configFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if bufferSet || opts.configFile == "" {
		cfg.BufferSize = opts.bufferSize
	}
	if strictSet {
		cfg.Strict = opts.strict
	}
	cfg.Logger = logger

	var (
		stats playStats
		out   sync.Mutex
		ended = make(chan error, 1)
	)
	printf := func(format string, args ...any) {
		out.Lock()
		fmt.Fprintf(stdout, format, args...)
		out.Unlock()
	}
	recordVideo := func(info player.FrameInfo) {
		stats.video.Add(1)
		stats.videoBytes.Add(uint64(info.Size))
		if opts.verbose {
			printf("video %s #%d offset %d size %d\n", info.FourCC, info.Sequence, info.Offset, info.Size)
		}
	}
	recordAudio := func(info player.FrameInfo) {
		stats.audio.Add(1)
		stats.audioBytes.Add(uint64(info.Size))
		if opts.verbose {
			printf("audio %s #%d offset %d size %d\n", info.FourCC, info.Sequence, info.Offset, info.Size)
		}
	}

	cfg.OnAudioFormat = func(f avi.AudioFormat, _ any) {
		printf("Audio: %s %d Hz, %d channels, %d bit\n", f.Codec, f.SampleRate, f.Channels, f.BitsPerSample)
	}
	cfg.OnPlaybackEnd = func(err error, _ any) {
		ended <- err
	}
	if !opts.poll {
		cfg.OnVideoFrame = func(_ []byte, info player.VideoFrameInfo, _ any) {
			recordVideo(info.FrameInfo)
		}
		cfg.OnAudioFrame = func(_ []byte, info player.AudioFrameInfo, _ any) {
			recordAudio(info.FrameInfo)
		}
	}

	p, err := player.New(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	if err := p.PlayFromFile(path); err != nil {
		return err
	}

	quit := make(chan struct{})
	var wg sync.WaitGroup
	if opts.poll {
		getVideo := func(dst []byte, timeout time.Duration) (player.FrameInfo, error) {
			info, err := p.GetVideoFrame(dst, timeout)
			return info.FrameInfo, err
		}
		getAudio := func(dst []byte, timeout time.Duration) (player.FrameInfo, error) {
			info, err := p.GetAudioFrame(dst, timeout)
			return info.FrameInfo, err
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			pollFrames(quit, cfg.BufferSize, getVideo, recordVideo, &stats.tooSmall, logger.WithField("kind", "video"))
		}()
		go func() {
			defer wg.Done()
			pollFrames(quit, cfg.BufferSize, getAudio, recordAudio, &stats.tooSmall, logger.WithField("kind", "audio"))
		}()
	}

	var playErr error
	select {
	case playErr = <-ended:
	case <-ctx.Done():
		logger.Info("Interrupted, stopping playback")
		_ = p.Stop()
		playErr = <-ended
	}
	close(quit)
	wg.Wait()

	printf("\nPlayed %s in %v\n", path, time.Since(start).Round(time.Millisecond))
	printf("  Video: %d frames, %s\n", stats.video.Load(), formatBytes(int64(stats.videoBytes.Load())))
	printf("  Audio: %d chunks, %s\n", stats.audio.Load(), formatBytes(int64(stats.audioBytes.Load())))
	if n := stats.tooSmall.Load(); n > 0 {
		printf("  Dropped: %d frames larger than the poll buffer\n", n)
	}
	return playErr
}

// pollFrames collects frames until quit is closed or the player is released.
func pollFrames(quit <-chan struct{}, size int, get func([]byte, time.Duration) (player.FrameInfo, error),
	record func(player.FrameInfo), tooSmall *atomic.Uint64, log *logrus.Entry) {
	dst := make([]byte, size)
	for {
		select {
		case <-quit:
			return
		default:
		}

		info, err := get(dst, 50*time.Millisecond)
		switch {
		case err == nil:
			record(info)
		case errors.Is(err, player.ErrTimeout):
		case errors.Is(err, player.ErrBufferTooSmall):
			tooSmall.Add(1)
			log.WithField("error", err.Error()).Warn("Frame dropped")
		default:
			return
		}
	}
}

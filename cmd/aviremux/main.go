// Command aviremux rewrites the movi data of an AVI file into a fresh file
// with normalized headers and a rebuilt idx1 index.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Config holds CLI configuration
type Config struct {
	InputFile  string
	OutputFile string
	BufferSize int
	LogLevel   string
	Verbose    bool
	Progress   bool
	DryRun     bool
	Strict     bool
}

// Version can be set at build time
var version = "dev"

var config Config

var rootCmd = &cobra.Command{
	Use:   "aviremux [options] <input.avi>",
	Short: "AVI file remuxer",
	Example: `  aviremux video.avi                    # Remux to video_remuxed.avi
  aviremux -o output.avi video.avi      # Specify output file
  aviremux -v -p video.avi              # Verbose with progress
  aviremux --dry-run video.avi          # Analyze without remuxing`,
	Args:          cobra.ExactArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.InputFile = args[0]
		if config.OutputFile == "" {
			config.OutputFile = defaultOutput(config.InputFile)
		}
		return remuxFile(cmd.OutOrStdout(), config)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&config.OutputFile, "output", "o", "", "Output AVI file (default: input_remuxed.avi)")
	f.IntVar(&config.BufferSize, "buffer-size", 1<<20, "Largest chunk payload that can be copied")
	f.StringVar(&config.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	f.BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose output")
	f.BoolVarP(&config.Progress, "progress", "p", false, "Show progress")
	f.BoolVar(&config.DryRun, "dry-run", false, "Remux into memory without creating output")
	f.BoolVar(&config.Strict, "strict", false, "Fail on malformed stream entries instead of skipping them")
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultOutput(input string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(dir, name+"_remuxed"+ext)
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

// remuxStats summarizes one remux run.
type remuxStats struct {
	Info    *avi.ContainerInfo
	Video   int
	Audio   int
	Skipped int
	Bytes   int64
}

func remuxFile(stdout io.Writer, config Config) error {
	startTime := time.Now()

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}

	if config.Verbose {
		fmt.Fprintf(stdout, "Opening input file: %s\n", config.InputFile)
	}
	src, err := avi.OpenFileSource(config.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	demuxer := avi.NewDemuxer(src)
	defer demuxer.Close()

	var (
		out    io.WriteSeeker
		memory *avi.SeekableBuffer
		file   *os.File
	)
	if config.DryRun {
		memory = avi.NewSeekableBuffer()
		out = memory
	} else {
		if config.Verbose {
			fmt.Fprintf(stdout, "Creating output file: %s\n", config.OutputFile)
		}
		if file, err = os.Create(config.OutputFile); err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	var progress func(done, total int64)
	if config.Progress {
		progress = func(done, total int64) {
			fmt.Fprintf(stdout, "\r  Progress: %s/%s (%.1f%%)", formatBytes(done), formatBytes(total), float64(done)/float64(total)*100)
		}
	}

	stats, err := remux(demuxer, out, config, logger.WithField("input", filepath.Base(config.InputFile)), progress)
	if config.Progress {
		fmt.Fprintln(stdout)
	}
	if err != nil {
		return err
	}

	var outputSize int64
	if memory != nil {
		outputSize = memory.Size()
	} else {
		if err := file.Sync(); err != nil {
			return fmt.Errorf("failed to sync output: %w", err)
		}
		outputInfo, err := file.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat output file: %w", err)
		}
		outputSize = outputInfo.Size()
	}

	if config.Verbose || config.DryRun {
		info := stats.Info
		fmt.Fprintf(stdout, "\nInput file information:\n")
		fmt.Fprintf(stdout, "  File: %s\n", filepath.Base(config.InputFile))
		fmt.Fprintf(stdout, "  Size: %s\n", formatBytes(src.Size()))
		fmt.Fprintf(stdout, "  Video: %s %dx%d @ %d fps\n", info.Video.Codec, info.Video.Width, info.Video.Height, info.FPS)
		if info.HasAudio {
			fmt.Fprintf(stdout, "  Audio: %s %d Hz, %d channels, %d bit\n",
				info.Audio.Codec, info.Audio.SampleRate, info.Audio.Channels, info.Audio.BitsPerSample)
		}
		for _, w := range info.Warnings {
			fmt.Fprintf(stdout, "  Warning: %s\n", w)
		}
	}

	if config.DryRun {
		fmt.Fprintf(stdout, "\nDry run complete: %d video, %d audio chunks, %s output. No output file created.\n",
			stats.Video, stats.Audio, formatBytes(outputSize))
		return nil
	}

	fmt.Fprintf(stdout, "\nRemuxing completed successfully!\n")
	fmt.Fprintf(stdout, "\nSummary:\n")
	fmt.Fprintf(stdout, "  Input:  %s (%s)\n", filepath.Base(config.InputFile), formatBytes(src.Size()))
	fmt.Fprintf(stdout, "  Output: %s (%s)\n", filepath.Base(config.OutputFile), formatBytes(outputSize))
	fmt.Fprintf(stdout, "  Chunks: %d video, %d audio, %d skipped\n", stats.Video, stats.Audio, stats.Skipped)
	fmt.Fprintf(stdout, "  Time: %v\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// remux copies the video and audio chunks of the selected streams from
// demuxer into a new file written to out. Chunks of other streams are
// dropped. Keyframe flags come from the input idx1 when there is one.
func remux(demuxer *avi.Demuxer, out io.WriteSeeker, config Config, log *logrus.Entry, progress func(done, total int64)) (remuxStats, error) {
	var stats remuxStats

	buf := make([]byte, max(config.BufferSize, avi.DefaultHeaderSize))
	info, err := demuxer.ReadHeader(buf, avi.ParseOptions{Strict: config.Strict, Logger: log})
	if err != nil {
		return stats, fmt.Errorf("failed to parse header: %w", err)
	}
	stats.Info = info

	fps := info.FPS
	if fps == 0 && info.Main.MicroSecPerFrame > 0 {
		fps = (1000*1000 + info.Main.MicroSecPerFrame/2) / info.Main.MicroSecPerFrame
	}

	keyframes, err := loadKeyframes(demuxer, info)
	if err != nil {
		return stats, err
	}

	// Input stream index to output stream index, first video and audio only.
	writer := avi.NewWriter(out)
	mapping := make(map[int]int)
	var haveVideo, haveAudio bool
	for _, s := range info.Streams {
		switch {
		case s.Video != nil && !haveVideo:
			idx, err := writer.AddVideoStream(s.Video.Codec, s.Video.Width, s.Video.Height, fps)
			if err != nil {
				return stats, fmt.Errorf("failed to add video stream: %w", err)
			}
			mapping[s.Index] = idx
			haveVideo = true
		case s.Audio != nil && !haveAudio:
			idx, err := writer.AddAudioStream(s.Audio.Channels, s.Audio.SampleRate, s.Audio.BitsPerSample)
			if err != nil {
				return stats, fmt.Errorf("failed to add audio stream: %w", err)
			}
			mapping[s.Index] = idx
			haveAudio = true
		}
	}

	log.WithFields(logrus.Fields{
		"function": "remux",
		"streams":  len(mapping),
		"index":    keyframes != nil,
		"fps":      fps,
	}).Debug("Output streams declared")

	total := info.DataSize()
	for {
		c, err := demuxer.ReadChunk(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read chunk at offset %d: %w", c.Offset, err)
		}

		stream, ok := mapping[c.FourCC.StreamIndex()]
		if !ok || c.Kind == avi.FrameUnknown {
			stats.Skipped++
			log.WithFields(logrus.Fields{
				"function": "remux",
				"fourcc":   c.FourCC.String(),
				"offset":   c.Offset,
			}).Debug("Skipping chunk")
			continue
		}

		keyframe := keyframes == nil || keyframes[c.Offset]
		if err := writer.WriteFrame(stream, buf[:c.Size], keyframe); err != nil {
			return stats, err
		}
		if c.Kind == avi.FrameVideo {
			stats.Video++
		} else {
			stats.Audio++
		}
		stats.Bytes += int64(c.Size)

		if progress != nil && (stats.Video+stats.Audio)%100 == 0 {
			progress(demuxer.Consumed(), total)
		}
	}
	if progress != nil {
		progress(demuxer.Consumed(), total)
	}

	if err := writer.Finalize(); err != nil {
		return stats, fmt.Errorf("failed to finalize output: %w", err)
	}
	return stats, nil
}

// loadKeyframes returns the absolute offsets of the chunks idx1 flags as
// keyframes, or nil when the file has no index. Index offsets are usually
// relative to the 'movi' tag but some writers store absolute ones.
func loadKeyframes(demuxer *avi.Demuxer, info *avi.ContainerInfo) (map[int64]bool, error) {
	entries, err := demuxer.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	base := info.MoviStart - 4
	if int64(entries[0].Offset) == info.MoviStart {
		base = 0
	}
	keyframes := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if e.Flags&avi.IndexFlagKeyframe != 0 {
			keyframes[base+int64(e.Offset)] = true
		}
	}
	return keyframes, nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

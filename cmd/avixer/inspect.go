package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/spf13/cobra"
)

// OutputFormat represents different output formats
type OutputFormat string

const (
	OutputJSON OutputFormat = "json"
	OutputText OutputFormat = "text"
)

type inspectOptions struct {
	format     string
	outputFile string
	headerSize int
	strict     bool
	showIndex  bool
}

// StreamInfo represents stream information for JSON output
type StreamInfo struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name,omitempty"`
	CodecTag   string `json:"codec_tag,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FrameRate  string `json:"r_frame_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
	Frames     uint32 `json:"nb_frames,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// IndexInfo represents one idx1 entry for JSON output
type IndexInfo struct {
	ChunkID  string `json:"chunk_id"`
	Keyframe bool   `json:"keyframe"`
	Offset   uint32 `json:"offset"`
	Size     uint32 `json:"size"`
}

// FileOutput represents the complete file information for JSON output
type FileOutput struct {
	File      string       `json:"file"`
	Size      int64        `json:"size"`
	FPS       uint32       `json:"fps"`
	Frames    uint32       `json:"total_frames"`
	MoviStart int64        `json:"movi_start"`
	MoviSize  uint32       `json:"movi_size"`
	Streams   []StreamInfo `json:"streams"`
	Index     []IndexInfo  `json:"index,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
}

var inspectOpts inspectOptions

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.avi>",
	Short: "Report the container header and streams",
	Example: `  avixer inspect video.avi
  avixer inspect -f text video.avi
  avixer inspect --show-index -o info.json video.avi`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0], inspectOpts)
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVarP(&inspectOpts.format, "format", "f", "json", "Output format (json, text)")
	f.StringVarP(&inspectOpts.outputFile, "output", "o", "", "Output file (default: stdout)")
	f.IntVar(&inspectOpts.headerSize, "header-size", avi.DefaultHeaderSize, "Bytes of the file handed to the header parser")
	f.BoolVar(&inspectOpts.strict, "strict", false, "Fail on malformed stream entries instead of skipping them")
	f.BoolVar(&inspectOpts.showIndex, "show-index", false, "Include the idx1 entries")
}

func runInspect(stdout io.Writer, path string, opts inspectOptions) error {
	var format OutputFormat
	switch strings.ToLower(opts.format) {
	case "json":
		format = OutputJSON
	case "text":
		format = OutputText
	default:
		return fmt.Errorf("unsupported output format '%s'", opts.format)
	}
	if opts.headerSize < avi.ListHeaderSize {
		return fmt.Errorf("--header-size must be at least %d", avi.ListHeaderSize)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	src, err := avi.OpenFileSource(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	demuxer := avi.NewDemuxer(src)
	defer demuxer.Close()

	info, err := demuxer.ReadHeader(make([]byte, opts.headerSize), avi.ParseOptions{
		Strict: opts.strict,
		Logger: logger.WithField("file", filepath.Base(path)),
	})
	if err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	output := FileOutput{
		File:      path,
		Size:      src.Size(),
		FPS:       info.FPS,
		Frames:    info.Main.TotalFrames,
		MoviStart: info.MoviStart,
		MoviSize:  info.MoviSize,
		Streams:   convertStreams(info.Streams),
		Warnings:  info.Warnings,
	}

	if opts.showIndex {
		entries, err := demuxer.ReadIndex()
		if err != nil {
			return fmt.Errorf("failed to read index: %w", err)
		}
		for _, e := range entries {
			output.Index = append(output.Index, IndexInfo{
				ChunkID:  e.ChunkID.String(),
				Keyframe: e.Flags&avi.IndexFlagKeyframe != 0,
				Offset:   e.Offset,
				Size:     e.Size,
			})
		}
	}

	w := stdout
	if opts.outputFile != "" {
		file, err := os.Create(opts.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if format == OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "    ")
		return encoder.Encode(output)
	}
	writeTextReport(w, output)
	return nil
}

func convertStreams(streams []avi.Stream) []StreamInfo {
	out := make([]StreamInfo, 0, len(streams))
	for _, stream := range streams {
		si := StreamInfo{
			Index:     stream.Index,
			CodecType: string(stream.Type),
			Frames:    stream.Header.Length,
		}
		if stream.Duration > 0 {
			si.Duration = fmt.Sprintf("%.6f", stream.Duration.Seconds())
		}

		switch {
		case stream.Video != nil:
			si.CodecName = stream.Video.Codec.String()
			si.CodecTag = stream.Video.Compression.String()
			si.Width = stream.Video.Width
			si.Height = stream.Video.Height
			if stream.Header.Scale != 0 {
				si.FrameRate = fmt.Sprintf("%d/%d", stream.Header.Rate, stream.Header.Scale)
			}
		case stream.Audio != nil:
			si.CodecName = stream.Audio.Codec.String()
			si.Channels = stream.Audio.Channels
			si.SampleRate = stream.Audio.SampleRate
			si.BitDepth = stream.Audio.BitsPerSample
		}
		out = append(out, si)
	}
	return out
}

func writeTextReport(w io.Writer, output FileOutput) {
	fmt.Fprintf(w, "File: %s\n", filepath.Base(output.File))
	fmt.Fprintf(w, "Size: %s\n", formatBytes(output.Size))
	fmt.Fprintf(w, "Frame rate: %d fps, %d frames\n", output.FPS, output.Frames)
	fmt.Fprintf(w, "Movi: offset %d, %d bytes\n\n", output.MoviStart, output.MoviSize)

	fmt.Fprintf(w, "Streams:\n")
	for _, stream := range output.Streams {
		fmt.Fprintf(w, "  Stream #%d: %s", stream.Index, stream.CodecType)
		switch stream.CodecType {
		case string(avi.StreamTypeVideo):
			fmt.Fprintf(w, " (%s) %dx%d", stream.CodecName, stream.Width, stream.Height)
			if stream.FrameRate != "" {
				fmt.Fprintf(w, " @ %s", stream.FrameRate)
			}
		case string(avi.StreamTypeAudio):
			fmt.Fprintf(w, " (%s) %d Hz, %d channels, %d bit", stream.CodecName, stream.SampleRate, stream.Channels, stream.BitDepth)
		}
		if stream.Duration != "" {
			fmt.Fprintf(w, ", duration: %ss", stream.Duration)
		}
		fmt.Fprintln(w)
	}

	if len(output.Index) > 0 {
		keyframes := 0
		for _, e := range output.Index {
			if e.Keyframe {
				keyframes++
			}
		}
		fmt.Fprintf(w, "\nIndex: %d entries, %d keyframes\n", len(output.Index), keyframes)
	}

	for _, warning := range output.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
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

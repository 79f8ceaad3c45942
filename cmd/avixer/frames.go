package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/spf13/cobra"
)

type framesOptions struct {
	bufferSize int
	limit      int
	strict     bool
}

var framesOpts framesOptions

var framesCmd = &cobra.Command{
	Use:   "frames <file.avi>",
	Short: "List the movi chunks in file order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFrames(cmd.OutOrStdout(), args[0], framesOpts)
	},
}

func init() {
	f := framesCmd.Flags()
	f.IntVar(&framesOpts.bufferSize, "buffer-size", 1<<20, "Largest chunk payload that can be read")
	f.IntVarP(&framesOpts.limit, "limit", "n", 0, "Stop after this many chunks (0 lists all)")
	f.BoolVar(&framesOpts.strict, "strict", false, "Fail on malformed stream entries instead of skipping them")
}

func runFrames(stdout io.Writer, path string, opts framesOptions) error {
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

	buf := make([]byte, max(opts.bufferSize, avi.DefaultHeaderSize))
	info, err := demuxer.ReadHeader(buf, avi.ParseOptions{
		Strict: opts.strict,
		Logger: logger.WithField("file", filepath.Base(path)),
	})
	if err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tOFFSET\tCHUNK\tKIND\tSIZE")

	var count, video, audio int
	for opts.limit == 0 || count < opts.limit {
		c, err := demuxer.ReadChunk(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tw.Flush()
			return fmt.Errorf("chunk %d at offset %d: %w", count, c.Offset, err)
		}

		count++
		switch c.Kind {
		case avi.FrameVideo:
			video++
		case avi.FrameAudio:
			audio++
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\n", count, c.Offset, c.FourCC, c.Kind, c.Size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\n%d chunks (%d video, %d audio), %d of %d movi bytes read\n",
		count, video, audio, demuxer.Consumed(), info.DataSize())
	return nil
}

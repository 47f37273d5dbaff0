package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsrc/internal/camsrc"
)

// captureResult summarizes a capture run.
type captureResult struct {
	Buffers  int
	Bytes    int64
	FirstPTS time.Duration
	LastPTS  time.Duration
	Elapsed  time.Duration
}

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var src SourceOptions
	var count int
	var output string
	var timeout time.Duration
	var logLevel string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Pull raw frames from a capture device",
		Long: `Opens the device, negotiates the requested caps, pulls --count buffers and ` +
			`optionally writes their payloads back to back to --output.`,
		RunE: func(c *cobra.Command, _ []string) error {
			initLogging(logLevel, false)

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opener, err := NewOpener(ctx, src)
			if err != nil {
				return err
			}
			e := camsrc.New(opener, camsrc.WithName("capture"))
			defer func() { _ = e.SetState(camsrc.StateNull) }()

			f, err := StartElement(e, src.Caps)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "Negotiated %s\n", f)

			var w io.Writer = io.Discard
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer file.Close()
				w = file
			}

			res, err := pull(ctx, e, w, count, timeout)
			fmt.Fprintf(c.OutOrStdout(), "Captured %d buffers (%d bytes) in %s, pts %s..%s\n",
				res.Buffers, res.Bytes, res.Elapsed.Round(time.Millisecond), res.FirstPTS, res.LastPTS)
			return err
		},
	}

	addSourceFlags(cmd, &src)
	cmd.Flags().StringVar(&src.Caps, "caps", "", "Requested caps, e.g. \"video/x-raw, format=YUY2, width=640, height=480, framerate=30/1\"")
	cmd.Flags().IntVarP(&count, "count", "n", 30, "Number of buffers to pull")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write raw frames to this file")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Maximum wait for a single buffer")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	return cmd
}

// pull reads count buffers from e into w. A cancelled ctx ends the run early
// without an error.
func pull(ctx context.Context, e *camsrc.Element, w io.Writer, count int, timeout time.Duration) (captureResult, error) {
	var res captureResult
	start := time.Now()

	for res.Buffers < count {
		pullCtx, cancel := context.WithTimeout(ctx, timeout)
		buf, err := e.Create(pullCtx)
		cancel()
		if err != nil {
			res.Elapsed = time.Since(start)
			if ctx.Err() != nil || errors.Is(err, camsrc.ErrShuttingDown) {
				return res, nil
			}
			return res, fmt.Errorf("pull %d: %w", res.Buffers, err)
		}

		if res.Buffers == 0 {
			res.FirstPTS = buf.PTS
		}
		res.LastPTS = buf.PTS
		n, werr := w.Write(buf.Bytes())
		buf.Unref()
		res.Bytes += int64(n)
		res.Buffers++
		if werr != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("failed to write frame: %w", werr)
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

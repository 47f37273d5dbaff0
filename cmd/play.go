//go:build gst

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsrc/internal/camsrc"
	"github.com/smazurov/camsrc/internal/gstbridge"
)

func init() {
	extraCommands = append(extraCommands, CreatePlayCmd)
}

// CreatePlayCmd creates the play command.
func CreatePlayCmd() *cobra.Command {
	var src SourceOptions
	var downstream string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Feed captured frames into a GStreamer pipeline",
		Long:  `Negotiates the device and pushes every pulled buffer into "appsrc ! <downstream>".`,
		RunE: func(c *cobra.Command, _ []string) error {
			initLogging(logLevel, false)

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opener, err := NewOpener(ctx, src)
			if err != nil {
				return err
			}
			e := camsrc.New(opener, camsrc.WithName("play"))
			defer func() { _ = e.SetState(camsrc.StateNull) }()

			if _, err := StartElement(e, src.Caps); err != nil {
				return err
			}

			bridge, err := gstbridge.New(e, downstream)
			if err != nil {
				return err
			}

			// Wake the pull loop once the pipeline is told to stop.
			go func() {
				<-ctx.Done()
				e.Unlock()
			}()
			return bridge.Run(ctx)
		},
	}

	addSourceFlags(cmd, &src)
	cmd.Flags().StringVar(&src.Caps, "caps", "", "Requested caps")
	cmd.Flags().StringVar(&downstream, "pipeline", "videoconvert ! autovideosink", "Elements placed after the appsrc")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	return cmd
}

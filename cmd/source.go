// Package cmd holds the camsrc subcommands and the wiring they share with the
// default serve command.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsrc/internal/backend/v4l2cap"
	"github.com/smazurov/camsrc/internal/camsrc"
	"github.com/smazurov/camsrc/internal/logging"
	"github.com/smazurov/camsrc/pkg/capturefw"
	"github.com/smazurov/camsrc/pkg/capturefw/fake"
)

// Capture backends selectable with --backend.
const (
	BackendV4L2 = "v4l2"
	BackendFake = "fake"
)

// Synthetic frames match the fake backend's 640x480 packed 4:2:2 entry.
const (
	fakeFrameInterval = 33 * time.Millisecond
	fakeFrameSize     = 640 * 480 * 2
)

// SourceOptions selects and configures the capture backend.
type SourceOptions struct {
	Backend string
	Device  string
	Buffers uint32
	Caps    string
}

// NewOpener returns the opener for o.Backend. The fake backend produces
// frames until ctx is done.
func NewOpener(ctx context.Context, o SourceOptions) (capturefw.Opener, error) {
	switch o.Backend {
	case "", BackendV4L2:
		buffers := o.Buffers
		if buffers == 0 {
			buffers = v4l2cap.DefaultBuffers
		}
		return v4l2cap.Opener(o.Device, v4l2cap.WithBuffers(buffers)), nil
	case BackendFake:
		b := fake.New()
		go b.Run(ctx, fakeFrameInterval, fakeFrameSize)
		return b.Opener(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", o.Backend, BackendV4L2, BackendFake)
	}
}

// StartElement opens e, negotiates caps and enters the streaming state. An
// empty caps string picks the first catalog entry.
func StartElement(e *camsrc.Element, caps string) (camsrc.Format, error) {
	if err := e.SetState(camsrc.StateReady); err != nil {
		return camsrc.Format{}, err
	}

	var request camsrc.Caps
	if caps == "" {
		available := e.Caps()
		if len(available) == 0 {
			return camsrc.Format{}, fmt.Errorf("%w: device reports no usable formats", camsrc.ErrFormatNotSupported)
		}
		request = available[:1]
	} else {
		parsed, err := camsrc.ParseCaps(caps)
		if err != nil {
			return camsrc.Format{}, err
		}
		request = parsed
	}

	if err := e.Negotiate(request); err != nil {
		return camsrc.Format{}, err
	}

	clock := camsrc.NewSystemClock()
	e.SetClock(clock)
	e.SetBaseTime(clock.Time())

	if err := e.SetState(camsrc.StateStreaming); err != nil {
		return camsrc.Format{}, err
	}
	f, _ := e.Selected()
	return f, nil
}

// addSourceFlags registers the flags every element-driving subcommand shares.
func addSourceFlags(c *cobra.Command, o *SourceOptions) {
	c.Flags().StringVar(&o.Backend, "backend", BackendV4L2, "Capture backend (v4l2, fake)")
	c.Flags().StringVarP(&o.Device, "device", "d", "/dev/video0", "V4L2 device node or stable device ID")
	c.Flags().Uint32Var(&o.Buffers, "buffers", v4l2cap.DefaultBuffers, "Number of driver buffers")
}

func initLogging(level string, json bool) {
	cfg := logging.Config{Level: level, Format: "text"}
	if json {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

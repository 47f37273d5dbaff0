//go:build gst

// Package gstbridge feeds buffers pulled from a camera source element into a
// GStreamer pipeline through appsrc.
package gstbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/smazurov/camsrc/internal/camsrc"
	"github.com/smazurov/camsrc/internal/logging"
)

// SourceName is the name of the appsrc placed at the head of the pipeline.
const SourceName = "camsrc"

// Bridge owns a pipeline whose appsrc is fed by an element's pull loop.
type Bridge struct {
	element  *camsrc.Element
	pipeline *gst.Pipeline
	src      *app.Source
	logger   *slog.Logger
}

// New builds "appsrc ! <downstream>". The element must already have a
// selected format; its caps are fixed on the appsrc.
func New(e *camsrc.Element, downstream string) (*Bridge, error) {
	f, ok := e.Selected()
	if !ok {
		return nil, camsrc.ErrNotNegotiated
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipelineFromString(fmt.Sprintf("appsrc name=%s ! %s", SourceName, downstream))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(SourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to find appsrc: %w", err)
	}

	src := app.SrcFromElement(elem)
	src.SetCaps(gst.NewCapsFromString(f.Structure().String()))
	if err := src.SetProperty("is-live", true); err != nil {
		return nil, fmt.Errorf("appsrc is-live: %w", err)
	}
	if err := src.SetProperty("format", gst.FormatTime); err != nil {
		return nil, fmt.Errorf("appsrc format: %w", err)
	}

	return &Bridge{
		element:  e,
		pipeline: pipeline,
		src:      src,
		logger:   logging.GetLogger("gstbridge").With("element", e.Name()),
	}, nil
}

// Run plays the pipeline until ctx is done, the pipeline posts an error,
// or the element stops delivering buffers.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer func() {
		if err := b.pipeline.SetState(gst.StateNull); err != nil {
			b.logger.Warn("Failed to stop pipeline", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pumped := make(chan error, 1)
	go func() { pumped <- b.pump(ctx) }()

	bus := b.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-pumped:
			if err != nil {
				return err
			}
			pumped = nil // EOS was sent; wait for the bus to report it
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			b.logger.Info("End of stream")
			return nil
		case gst.MessageError:
			gerr := msg.ParseError()
			b.logger.Error("Pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			return fmt.Errorf("pipeline error: %s", gerr.Error())
		}
	}
}

// pump pulls until the element flushes, then ends the stream.
func (b *Bridge) pump(ctx context.Context) error {
	var pushed uint64
	for {
		buf, err := b.element.Create(ctx)
		if err != nil {
			b.logger.Debug("Pull loop finished", "buffers", pushed, "reason", err)
			b.src.EndStream()
			if errors.Is(err, camsrc.ErrShuttingDown) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		gb := toGstBuffer(buf)
		buf.Unref()

		if ret := b.src.PushBuffer(gb); ret != gst.FlowOK {
			b.logger.Debug("appsrc refused buffer", "flow", ret)
			return nil
		}
		pushed++
	}
}

func toGstBuffer(buf *camsrc.Buffer) *gst.Buffer {
	gb := gst.NewBufferFromBytes(buf.Bytes())
	gb.SetPresentationTimestamp(buf.PTS)
	gb.SetDuration(buf.Duration)
	gb.SetOffset(int64(buf.Offset))
	gb.SetOffsetEnd(int64(buf.OffsetEnd))
	if buf.Discont() {
		gb.SetFlags(gst.BufferFlagDiscont)
	}
	return gb
}

//go:build linux

package v4l2cap

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camsrc/internal/logging"
	"github.com/smazurov/camsrc/pkg/capturefw"
	"github.com/smazurov/camsrc/pkg/linuxav/v4l2"
)

var logger = logging.GetLogger("v4l2cap")

// DefaultBuffers is the number of driver buffers requested on start.
const DefaultBuffers = 4

// pollInterval bounds how long the producer waits before rechecking stop.
const pollInterval = 200 * time.Millisecond

// Option configures an Opener.
type Option func(*framework)

// WithBuffers sets the number of driver buffers requested on start.
func WithBuffers(n uint32) Option {
	return func(f *framework) {
		if n > 0 {
			f.buffers = n
		}
	}
}

// Opener returns a capturefw.Opener for device, which is either a device
// node path or a stable ID from /dev/v4l/by-id.
func Opener(device string, opts ...Option) capturefw.Opener {
	return func() (capturefw.Framework, error) {
		path, err := v4l2.ResolveDevice(device)
		if err != nil {
			return nil, err
		}
		f := &framework{path: path, buffers: DefaultBuffers}
		for _, opt := range opts {
			opt(f)
		}
		return f, nil
	}
}

type framework struct {
	path    string
	buffers uint32
}

func (f *framework) CreateDeviceAndStream(preset string) (capturefw.Device, capturefw.Stream, error) {
	if preset != capturefw.PresetVideoRecording {
		return nil, nil, capturefw.StatusInvalidParameter
	}

	c, err := v4l2.OpenCapture(f.path)
	if err != nil {
		return nil, nil, statusFor(err)
	}

	d := &device{capture: c, colorRange: capturefw.ColorRangeSDVideo, formatIndex: -1}
	s := &stream{
		device:  d,
		buffers: f.buffers,
		queue:   capturefw.NewBufferQueue(int(f.buffers)),
	}
	logger.Debug("Opened capture device", "path", f.path)
	return d, s, nil
}

func (f *framework) Close() error { return nil }

type device struct {
	capture *v4l2.Capture

	mu          sync.Mutex
	entries     []entry
	formatIndex int32
	minRate     int32
	colorRange  string
	finalized   bool
}

func (d *device) catalog() ([]entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries == nil {
		entries, err := buildCatalog(d.capture)
		if err != nil {
			return nil, statusFor(err)
		}
		d.entries = entries
	}
	return d.entries, nil
}

func (d *device) SupportedFormats() ([]capturefw.NativeFormat, error) {
	entries, err := d.catalog()
	if err != nil {
		return nil, err
	}
	out := make([]capturefw.NativeFormat, len(entries))
	for i, e := range entries {
		out[i] = e.native
	}
	return out, nil
}

func (d *device) Property(name string) (any, error) {
	switch name {
	case capturefw.PropertyFormatIndex:
		return d.currentIndex()
	case capturefw.PropertyFrameRate:
		rate, err := d.capture.FrameInterval()
		if err != nil {
			return nil, statusFor(err)
		}
		return int32(v4l2.MaxFPS([]v4l2.Framerate{rate})), nil
	case capturefw.PropertyMinimumFrameRate:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.minRate, nil
	case capturefw.PropertyColorRange:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.colorRange, nil
	default:
		return nil, capturefw.StatusPropertyNotFound
	}
}

func (d *device) currentIndex() (any, error) {
	d.mu.Lock()
	idx := d.formatIndex
	d.mu.Unlock()
	if idx >= 0 {
		return idx, nil
	}

	entries, err := d.catalog()
	if err != nil {
		return nil, err
	}
	pix, err := d.capture.Format()
	if err != nil {
		return nil, statusFor(err)
	}
	i := indexOf(entries, pix.PixelFormat, pix.Width, pix.Height)
	if i < 0 {
		i = 0
	}
	return int32(i), nil
}

func (d *device) SetProperty(name string, value any) error {
	switch name {
	case capturefw.PropertyFormatIndex:
		idx, ok := value.(int32)
		if !ok {
			return capturefw.StatusInvalidParameter
		}
		return d.applyFormat(idx)
	case capturefw.PropertyFrameRate:
		fps, ok := value.(int32)
		if !ok || fps <= 0 {
			return capturefw.StatusInvalidParameter
		}
		if err := d.capture.SetFrameInterval(1, uint32(fps)); err != nil {
			return statusFor(err)
		}
		return nil
	case capturefw.PropertyMinimumFrameRate:
		// V4L2 has no minimum rate; the value is kept for readback.
		fps, ok := value.(int32)
		if !ok {
			return capturefw.StatusInvalidParameter
		}
		d.mu.Lock()
		d.minRate = fps
		d.mu.Unlock()
		return nil
	case capturefw.PropertyColorRange:
		r, ok := value.(string)
		if !ok {
			return capturefw.StatusInvalidParameter
		}
		d.mu.Lock()
		d.colorRange = r
		d.mu.Unlock()
		return nil
	default:
		return capturefw.StatusPropertyNotFound
	}
}

func (d *device) applyFormat(idx int32) error {
	entries, err := d.catalog()
	if err != nil {
		return err
	}
	if idx < 0 || int(idx) >= len(entries) {
		return capturefw.StatusInvalidParameter
	}
	e := entries[idx]

	pix, err := d.capture.SetFormat(e.pixelFormat, uint32(e.native.Width), uint32(e.native.Height))
	if err != nil {
		return statusFor(err)
	}
	if pix.PixelFormat != e.pixelFormat || pix.Width != uint32(e.native.Width) || pix.Height != uint32(e.native.Height) {
		return fmt.Errorf("%w: driver applied %s %dx%d", capturefw.StatusInvalidParameter,
			v4l2.FormatFourCC(pix.PixelFormat), pix.Width, pix.Height)
	}

	d.mu.Lock()
	d.formatIndex = idx
	d.mu.Unlock()
	logger.Debug("Applied capture format", "index", idx, "format", e.native.String(), "sizeimage", pix.SizeImage)
	return nil
}

func (d *device) Finalize() error {
	d.mu.Lock()
	if d.finalized {
		d.mu.Unlock()
		return nil
	}
	d.finalized = true
	d.mu.Unlock()
	return d.capture.Close()
}

type stream struct {
	device  *device
	buffers uint32
	queue   *capturefw.BufferQueue

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	dropped bool
}

func (s *stream) BufferQueue() (capturefw.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped {
		return nil, capturefw.StatusNotStreaming
	}
	return s.queue.Retain(), nil
}

func (s *stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return nil
	}
	if err := s.device.capture.Start(s.buffers); err != nil {
		return statusFor(err)
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.produce(s.stop, s.done)
	return nil
}

func (s *stream) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return statusFor(s.device.capture.Stop())
}

func (s *stream) Finalize() error {
	err := s.Stop()
	s.mu.Lock()
	dropped := s.dropped
	s.dropped = true
	s.mu.Unlock()
	if !dropped {
		s.queue.Release()
	}
	return err
}

// produce copies frames into samples until stop is closed.
func (s *stream) produce(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	c := s.device.capture
	var frames uint64
	for {
		select {
		case <-stop:
			logger.Debug("Producer stopped", "frames", frames)
			return
		default:
		}

		if err := c.Wait(pollInterval); err != nil {
			if errors.Is(err, v4l2.ErrTimeout) {
				continue
			}
			logger.Error("Capture wait failed", "path", c.Path(), "error", err)
			return
		}

		frame, err := c.Dequeue()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			logger.Error("Dequeue failed", "path", c.Path(), "error", err)
			return
		}

		data := make([]byte, frame.BytesUsed)
		copy(data, frame.Data[:frame.BytesUsed])
		if err := c.Requeue(frame.Index); err != nil {
			logger.Warn("Requeue failed", "index", frame.Index, "error", err)
		}

		s.queue.Enqueue(capturefw.NewSample(data, frame.Timestamp, nil))
		frames++
	}
}

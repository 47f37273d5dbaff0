// Package fake provides a scriptable in-memory capture framework.
//
// It records every lifecycle call so tests can assert ordering, lets tests
// inject failures at each step, and produces samples on demand (Push) or on a
// timer (Run).
package fake

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

// DefaultFormats is a small catalog mixing supported and unsupported subtypes.
func DefaultFormats() []capturefw.NativeFormat {
	return []capturefw.NativeFormat{
		{Subtype: capturefw.SubtypeComponentVideoUnsigned, Width: 640, Height: 480, MaxFrameRate: 30},
		{Subtype: capturefw.SubtypeMJPEG, Width: 1280, Height: 720, MaxFrameRate: 30},
		{Subtype: capturefw.SubtypeYUV420v, Width: 1280, Height: 720, MaxFrameRate: 30},
		{Subtype: capturefw.SubtypeYUV420v, Width: 1920, Height: 1080, MaxFrameRate: 15},
	}
}

// DefaultQueueCapacity bounds the stream queue of a new Backend.
const DefaultQueueCapacity = 8

// Backend is a fake capture framework. Exported fields configure failures and
// must be set before the backend is opened.
type Backend struct {
	Formats    []capturefw.NativeFormat
	FormatsErr error
	OpenErr    error // returned by the Opener
	CreateErr  error // returned by CreateDeviceAndStream
	QueueErr   error // returned by Stream.BufferQueue
	StartErr   error
	// QueueCapacity bounds the stream queue; zero leaves it unbounded.
	QueueCapacity int
	// PropertyErr fails SetProperty for the named property.
	PropertyErr map[string]error

	mu       sync.Mutex
	props    map[string]any
	writes   []Write
	calls    []string
	queue    *capturefw.BufferQueue
	started  bool
	produced atomic.Uint64
	freed    atomic.Uint64
}

// Write records one SetProperty call.
type Write struct {
	Name  string
	Value any
}

// New returns a backend advertising formats (DefaultFormats when empty).
func New(formats ...capturefw.NativeFormat) *Backend {
	if len(formats) == 0 {
		formats = DefaultFormats()
	}
	return &Backend{
		Formats:       formats,
		QueueCapacity: DefaultQueueCapacity,
		PropertyErr:   make(map[string]error),
		props: map[string]any{
			capturefw.PropertyFormatIndex:      int32(0),
			capturefw.PropertyFrameRate:        int32(30),
			capturefw.PropertyMinimumFrameRate: int32(15),
			capturefw.PropertyColorRange:       "ColorRangeFullRange",
		},
	}
}

// Opener returns a capturefw.Opener yielding this backend.
func (b *Backend) Opener() capturefw.Opener {
	return func() (capturefw.Framework, error) {
		if b.OpenErr != nil {
			return nil, b.OpenErr
		}
		b.record("framework.open")
		return &framework{b: b}, nil
	}
}

// Calls returns the ordered lifecycle log.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

// Writes returns the ordered SetProperty log.
func (b *Backend) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Write, len(b.writes))
	copy(out, b.writes)
	return out
}

// PropertyValue returns the current value of a device property.
func (b *Backend) PropertyValue(name string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.props[name]
}

// Started reports whether the stream is running.
func (b *Backend) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Produced returns how many samples were pushed.
func (b *Backend) Produced() uint64 { return b.produced.Load() }

// Freed returns how many pushed samples reached a zero reference count.
func (b *Backend) Freed() uint64 { return b.freed.Load() }

// Queued returns the number of samples waiting in the stream queue.
func (b *Backend) Queued() int {
	b.mu.Lock()
	q := b.queue
	b.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.Len()
}

// Push enqueues one sample as the producer would. It returns nil when no
// stream queue exists.
func (b *Backend) Push(data []byte) *capturefw.RefSample {
	b.mu.Lock()
	q := b.queue
	b.mu.Unlock()
	if q == nil {
		return nil
	}
	s := capturefw.NewSample(data, time.Duration(b.produced.Load()), func() { b.freed.Add(1) })
	b.produced.Add(1)
	q.Enqueue(s)
	return s
}

// Run pushes a synthetic frame of size bytes every interval while the stream
// is started, until ctx is done.
func (b *Backend) Run(ctx context.Context, interval time.Duration, size int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !b.Started() {
				continue
			}
			frame := make([]byte, size)
			for i := range frame {
				frame[i] = byte(b.produced.Load())
			}
			b.Push(frame)
		}
	}
}

func (b *Backend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

type framework struct {
	b *Backend
}

func (f *framework) CreateDeviceAndStream(preset string) (capturefw.Device, capturefw.Stream, error) {
	b := f.b
	if preset != capturefw.PresetVideoRecording {
		return nil, nil, capturefw.StatusInvalidParameter
	}
	if b.CreateErr != nil {
		return nil, nil, b.CreateErr
	}
	b.mu.Lock()
	b.queue = capturefw.NewBufferQueue(b.QueueCapacity)
	b.queue.OnFree(func() { b.record("queue.free") })
	b.calls = append(b.calls, "framework.create")
	b.mu.Unlock()
	return &device{b: b}, &stream{b: b}, nil
}

func (f *framework) Close() error {
	f.b.record("framework.close")
	return nil
}

type device struct {
	b *Backend
}

func (d *device) SupportedFormats() ([]capturefw.NativeFormat, error) {
	if d.b.FormatsErr != nil {
		return nil, d.b.FormatsErr
	}
	out := make([]capturefw.NativeFormat, len(d.b.Formats))
	copy(out, d.b.Formats)
	return out, nil
}

func (d *device) Property(name string) (any, error) {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()
	v, ok := d.b.props[name]
	if !ok {
		return nil, capturefw.StatusPropertyNotFound
	}
	return v, nil
}

func (d *device) SetProperty(name string, value any) error {
	if err := d.b.PropertyErr[name]; err != nil {
		return err
	}
	switch value.(type) {
	case int32, string:
	default:
		return capturefw.StatusInvalidParameter
	}
	d.b.mu.Lock()
	d.b.props[name] = value
	d.b.writes = append(d.b.writes, Write{Name: name, Value: value})
	d.b.mu.Unlock()
	return nil
}

func (d *device) Finalize() error {
	d.b.record("device.finalize")
	return nil
}

type stream struct {
	b *Backend
}

func (s *stream) BufferQueue() (capturefw.Queue, error) {
	if s.b.QueueErr != nil {
		return nil, s.b.QueueErr
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.queue == nil {
		return nil, errors.New("fake: stream has no queue")
	}
	return s.b.queue.Retain(), nil
}

func (s *stream) Start() error {
	if s.b.StartErr != nil {
		return s.b.StartErr
	}
	s.b.mu.Lock()
	s.b.started = true
	s.b.calls = append(s.b.calls, "stream.start")
	s.b.mu.Unlock()
	return nil
}

func (s *stream) Stop() error {
	s.b.mu.Lock()
	s.b.started = false
	s.b.calls = append(s.b.calls, "stream.stop")
	s.b.mu.Unlock()
	return nil
}

func (s *stream) Finalize() error {
	s.b.mu.Lock()
	q := s.b.queue
	s.b.queue = nil
	s.b.calls = append(s.b.calls, "stream.finalize")
	s.b.mu.Unlock()
	if q != nil {
		q.Release()
	}
	return nil
}

// Package capturefw defines the contract between the camera source element
// and the capture framework that owns the physical device.
//
// A backend exposes a device/stream pair created for a capture preset. The
// device answers format and property queries, the stream owns a sample queue
// that the backend fills asynchronously from its own producer goroutine.
//
//	fw, err := opener()
//	device, stream, err := fw.CreateDeviceAndStream(capturefw.PresetVideoRecording)
//	formats, err := device.SupportedFormats()
//	queue, err := stream.BufferQueue()
//	queue.SetValidationCallback(func(q capturefw.Queue, s capturefw.Sample) bool {
//		// observe the enqueue, return false to keep the sample
//		return false
//	})
//
// Two backends ship with the module: a V4L2 backend for Linux
// (internal/backend/v4l2cap) and a scriptable in-memory backend (fake).
package capturefw

import "fmt"

// Capture presets understood by CreateDeviceAndStream.
const (
	PresetVideoRecording = "VideoRecording"
)

// Device property names.
const (
	// PropertyFormatIndex selects a native format by its enumeration index (int32).
	PropertyFormatIndex = "ImagerFormatDescription"
	// PropertyFrameRate is the target frame rate in whole frames per second (int32).
	PropertyFrameRate = "ImagerFrameRate"
	// PropertyMinimumFrameRate is the lowest frame rate the device may fall back to (int32).
	PropertyMinimumFrameRate = "ImagerMinimumFrameRate"
	// PropertyColorRange is a string-valued color range selector.
	PropertyColorRange = "ColorRange"
)

// ColorRangeSDVideo is the standard video (limited) color range.
const ColorRangeSDVideo = "ColorRangeSDVideo"

// Opener loads a capture framework. An error here means the framework itself
// could not be initialized.
type Opener func() (Framework, error)

// Framework creates devices and streams. Close releases the framework context
// and must be called after every device and stream obtained from it has been
// finalized.
type Framework interface {
	CreateDeviceAndStream(preset string) (Device, Stream, error)
	Close() error
}

// Device is a physical capture device.
type Device interface {
	// SupportedFormats returns the native formats in enumeration order.
	SupportedFormats() ([]NativeFormat, error)
	// Property reads a named property. Values are int32 or string.
	Property(name string) (any, error)
	// SetProperty writes a named property. Values are int32 or string.
	SetProperty(name string, value any) error
	Finalize() error
}

// Stream is the capture stream attached to a device.
type Stream interface {
	// BufferQueue returns a retained reference to the stream's sample queue.
	BufferQueue() (Queue, error)
	Start() error
	Stop() error
	Finalize() error
}

// ValidationFunc is invoked by a queue for every enqueued sample. Returning
// true marks the sample invalid and the queue drops it.
type ValidationFunc func(q Queue, s Sample) bool

// Queue is a FIFO of samples filled by the backend.
type Queue interface {
	SetValidationCallback(fn ValidationFunc)
	// DequeueAndRetain removes the head sample and hands its reference to the
	// caller. It returns nil when the queue is empty.
	DequeueAndRetain() Sample
	IsEmpty() bool
	// Release drops the reference obtained from Stream.BufferQueue.
	Release()
}

// Sample is a reference-counted captured frame.
type Sample interface {
	Bytes() []byte
	Retain() Sample
	Release()
}

// NativeFormat is one entry of a device's supported format list.
type NativeFormat struct {
	Subtype      FourCC
	Width        int32
	Height       int32
	MaxFrameRate int32
}

func (f NativeFormat) String() string {
	return fmt.Sprintf("%s %dx%d@%d", f.Subtype, f.Width, f.Height, f.MaxFrameRate)
}

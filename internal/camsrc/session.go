package camsrc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/smazurov/camsrc/internal/device"
	"github.com/smazurov/camsrc/pkg/capturefw"
)

// session is one open device. Every field is owned until close.
type session struct {
	id     string
	lease  *device.Lease
	fw     capturefw.Framework
	device capturefw.Device
	stream capturefw.Stream
	queue  capturefw.Queue
}

// openSession acquires, in order: the framework, the device and stream, the
// sample queue. On failure everything acquired so far, including lease, is
// released in reverse order.
func openSession(lease *device.Lease, opener capturefw.Opener, notify capturefw.ValidationFunc) (_ *session, err error) {
	var cleanup []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()
	cleanup = append(cleanup, lease.Release)

	fw, err := opener()
	if err != nil {
		return nil, &APIError{Err: err}
	}
	cleanup = append(cleanup, func() { _ = fw.Close() })

	dev, stream, err := fw.CreateDeviceAndStream(capturefw.PresetVideoRecording)
	if err != nil {
		var status capturefw.Status
		if errors.As(err, &status) && status == capturefw.StatusResourceBusy {
			return nil, fmt.Errorf("%w: %w", ErrResourceBusy, err)
		}
		return nil, &UnexpectedDeviceError{Status: capturefw.StatusOf(err), Err: err}
	}
	cleanup = append(cleanup,
		func() { _ = dev.Finalize() },
		func() { _ = stream.Finalize() },
	)

	queue, err := stream.BufferQueue()
	if err != nil {
		return nil, &UnexpectedDeviceError{Status: capturefw.StatusOf(err), Err: err}
	}
	queue.SetValidationCallback(notify)

	return &session{
		id:     uuid.NewString(),
		lease:  lease,
		fw:     fw,
		device: dev,
		stream: stream,
		queue:  queue,
	}, nil
}

// close releases the session. The caller has already dropped the catalog.
func (s *session) close(logger *slog.Logger) {
	if err := s.stream.Stop(); err != nil {
		logger.Debug("Stream stop on close", "error", err)
	}
	if err := s.stream.Finalize(); err != nil {
		logger.Warn("Failed to finalize stream", "error", err)
	}
	if err := s.device.Finalize(); err != nil {
		logger.Warn("Failed to finalize device", "error", err)
	}
	s.queue.SetValidationCallback(nil)
	s.queue.Release()
	if err := s.fw.Close(); err != nil {
		logger.Warn("Failed to close capture framework", "error", err)
	}
	s.lease.Release()
}

//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotCapture is returned when a device lacks streaming video capture.
	ErrNotCapture = errors.New("device does not support streaming capture")
	// ErrTimeout is returned by Wait when no frame became ready in time.
	ErrTimeout = errors.New("timed out waiting for frame")
	// ErrNotStreaming is returned when a streaming call is made before Start.
	ErrNotStreaming = errors.New("capture not streaming")
)

// Frame is one dequeued, memory-mapped capture buffer. Data aliases the
// mapping and is only valid until the buffer is requeued.
type Frame struct {
	Index     uint32
	Data      []byte
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Duration
}

// Capture is an open capture device node. Configuration calls must not race
// with Start or Stop; Dequeue and Requeue may be called from one streaming
// goroutine while another calls Requeue.
type Capture struct {
	path string
	fd   int

	mu        sync.Mutex
	buffers   [][]byte
	streaming bool
}

// OpenCapture opens devicePath and verifies it supports streaming capture.
func OpenCapture(devicePath string) (*Capture, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", devicePath, err)
	}

	c := &v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(c)); err != nil {
		_ = closeFD(fd)
		return nil, fmt.Errorf("failed to query %s: %w", devicePath, err)
	}
	caps := effectiveCaps(c)
	if caps&capVideoCapture == 0 || caps&capStreaming == 0 {
		_ = closeFD(fd)
		return nil, fmt.Errorf("%s: %w", devicePath, ErrNotCapture)
	}

	return &Capture{path: devicePath, fd: fd}, nil
}

// Path returns the device node path.
func (c *Capture) Path() string { return c.path }

// Formats enumerates pixel formats on the open handle.
func (c *Capture) Formats() ([]FormatInfo, error) { return enumFormats(c.fd) }

// Resolutions enumerates frame sizes for pixelFormat on the open handle.
func (c *Capture) Resolutions(pixelFormat uint32) ([]Resolution, error) {
	return enumResolutions(c.fd, pixelFormat)
}

// Framerates enumerates frame intervals on the open handle.
func (c *Capture) Framerates(pixelFormat, width, height uint32) ([]Framerate, error) {
	return enumFramerates(c.fd, pixelFormat, width, height)
}

// Format returns the current capture format.
func (c *Capture) Format() (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(c.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	return toPixFormat(&f.pix), nil
}

// SetFormat requests a capture format. The driver may adjust the request;
// the applied format is returned.
func (c *Capture) SetFormat(pixelFormat, width, height uint32) (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	f.pix.pixelformat = pixelFormat
	f.pix.width = width
	f.pix.height = height
	f.pix.field = fieldNone

	if err := ioctl(c.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	return toPixFormat(&f.pix), nil
}

// FrameInterval returns the current time per frame.
func (c *Capture) FrameInterval() (Framerate, error) {
	p := v4l2Streamparm{typ: bufTypeVideoCapture}
	if err := ioctl(c.fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	return Framerate{
		Numerator:   p.capture.timeperframe.numerator,
		Denominator: p.capture.timeperframe.denominator,
	}, nil
}

// SetFrameInterval sets the time per frame to num/den seconds.
func (c *Capture) SetFrameInterval(num, den uint32) error {
	p := v4l2Streamparm{typ: bufTypeVideoCapture}
	if err := ioctl(c.fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	if p.capture.capability&capTimePerFrame == 0 {
		return fmt.Errorf("VIDIOC_S_PARM: %w", unix.ENOTTY)
	}
	p.capture.timeperframe = v4l2Fract{numerator: num, denominator: den}
	if err := ioctl(c.fd, vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return fmt.Errorf("VIDIOC_S_PARM: %w", err)
	}
	return nil
}

// Start allocates and maps count buffers, queues them and turns streaming on.
func (c *Capture) Start(count uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming {
		return nil
	}

	req := v4l2Requestbuffers{count: count, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	if req.count == 0 {
		return fmt.Errorf("VIDIOC_REQBUFS: driver granted no buffers")
	}

	for i := uint32(0); i < req.count; i++ {
		b := v4l2Buffer{index: i, typ: bufTypeVideoCapture, memory: memoryMmap}
		if err := ioctl(c.fd, vidiocQuerybuf, unsafe.Pointer(&b)); err != nil {
			c.unmapLocked()
			return fmt.Errorf("VIDIOC_QUERYBUF %d: %w", i, err)
		}
		data, err := unix.Mmap(c.fd, b.offset(), int(b.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			c.unmapLocked()
			return fmt.Errorf("mmap buffer %d: %w", i, err)
		}
		c.buffers = append(c.buffers, data)

		if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&b)); err != nil {
			c.unmapLocked()
			return fmt.Errorf("VIDIOC_QBUF %d: %w", i, err)
		}
	}

	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		c.unmapLocked()
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	c.streaming = true
	return nil
}

// Wait blocks until a frame can be dequeued or timeout elapses.
func (c *Capture) Wait(timeout time.Duration) error {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return fmt.Errorf("poll: %w", unix.ENODEV)
		}
		return nil
	}
}

// Dequeue takes the next filled buffer from the driver. It returns
// unix.EAGAIN when none is ready.
func (c *Capture) Dequeue() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return Frame{}, ErrNotStreaming
	}

	b := v4l2Buffer{typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(c.fd, vidiocDqbuf, unsafe.Pointer(&b)); err != nil {
		return Frame{}, err
	}
	if int(b.index) >= len(c.buffers) {
		return Frame{}, fmt.Errorf("VIDIOC_DQBUF: index %d out of range", b.index)
	}

	return Frame{
		Index:     b.index,
		Data:      c.buffers[b.index],
		BytesUsed: b.bytesused,
		Sequence:  b.sequence,
		Timestamp: b.stamp(),
	}, nil
}

// Requeue hands buffer index back to the driver.
func (c *Capture) Requeue(index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return ErrNotStreaming
	}
	b := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&b)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

// Stop turns streaming off and releases all buffers. Frame data from
// earlier Dequeue calls becomes invalid.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return nil
	}
	c.streaming = false

	typ := uint32(bufTypeVideoCapture)
	err := ioctl(c.fd, vidiocStreamoff, unsafe.Pointer(&typ))
	c.unmapLocked()
	if err != nil {
		return fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	return nil
}

// Close stops streaming and closes the device.
func (c *Capture) Close() error {
	stopErr := c.Stop()
	if err := closeFD(c.fd); err != nil {
		return err
	}
	return stopErr
}

func (c *Capture) unmapLocked() {
	for _, data := range c.buffers {
		_ = unix.Munmap(data)
	}
	c.buffers = nil

	req := v4l2Requestbuffers{typ: bufTypeVideoCapture, memory: memoryMmap}
	_ = ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&req))
}

func toPixFormat(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		PixelFormat:  p.pixelformat,
		Width:        p.width,
		Height:       p.height,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
	}
}

package camsrc

import (
	"sync"
	"time"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

// BufferFlags annotate an output buffer.
type BufferFlags uint32

// Buffer flags.
const (
	// FlagDiscont marks the first buffer after a start.
	FlagDiscont BufferFlags = 1 << iota
)

// Buffer is one output frame. It holds a reference on the captured sample
// until Unref.
type Buffer struct {
	Offset    uint64
	OffsetEnd uint64
	// PTS is the presentation time, ClockTimeNone without a clock.
	PTS      time.Duration
	Duration time.Duration
	Flags    BufferFlags

	sample capturefw.Sample
	once   sync.Once
}

func newBuffer(s capturefw.Sample) *Buffer {
	return &Buffer{sample: s.Retain()}
}

// Bytes returns the frame payload. It must not be used after Unref.
func (b *Buffer) Bytes() []byte {
	return b.sample.Bytes()
}

// Size returns the payload length.
func (b *Buffer) Size() int {
	return len(b.sample.Bytes())
}

// Discont reports whether the buffer starts a new run.
func (b *Buffer) Discont() bool {
	return b.Flags&FlagDiscont != 0
}

// Unref drops the buffer's sample reference. Further calls do nothing.
func (b *Buffer) Unref() {
	b.once.Do(b.sample.Release)
}

package camsrc

import (
	"sync/atomic"
	"time"
)

// Clock is the pipeline clock used to stamp buffers.
type Clock interface {
	Time() time.Duration
}

// SystemClock is a monotonic clock counting from its creation.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock reading zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Time implements Clock.
func (c *SystemClock) Time() time.Duration {
	return time.Since(c.start)
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	now atomic.Int64
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) { c.now.Store(int64(t)) }

// Time implements Clock.
func (c *ManualClock) Time() time.Duration { return time.Duration(c.now.Load()) }

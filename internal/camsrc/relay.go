package camsrc

import (
	"context"
	"time"

	"github.com/smazurov/camsrc/internal/metrics"
	"github.com/smazurov/camsrc/pkg/capturefw"
)

// onEnqueue runs on the producer goroutine for every sample the framework
// enqueues. It only records that work is pending and wakes one waiter; the
// sample always stays in the queue.
func (e *Element) onEnqueue(_ capturefw.Queue, _ capturefw.Sample) bool {
	e.mu.Lock()
	e.pending = true
	e.cond.Signal()
	e.mu.Unlock()
	return false
}

// wake unblocks every waiter without changing state.
func (e *Element) wake() {
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Create blocks until a sample is available and returns it as a stamped
// buffer. It returns ErrShuttingDown once Unlock or a stop has cleared the
// running flag, and ctx.Err() when ctx is cancelled first. Any sample dequeued
// on those paths is released.
func (e *Element) Create(ctx context.Context) (*Buffer, error) {
	stop := context.AfterFunc(ctx, e.wake)
	defer stop()

	began := time.Now()

	e.mu.Lock()
	if e.running && e.duration == ClockTimeNone {
		e.mu.Unlock()
		return nil, ErrNotNegotiated
	}

	var sample capturefw.Sample
	for {
		for e.running && !e.pending && ctx.Err() == nil {
			e.cond.Wait()
		}
		if e.queue != nil {
			sample = e.queue.DequeueAndRetain()
			e.pending = !e.queue.IsEmpty()
		}
		if sample != nil || !e.running || ctx.Err() != nil {
			break
		}
	}

	if !e.running || ctx.Err() != nil {
		running := e.running
		e.mu.Unlock()
		if sample != nil {
			sample.Release()
		}
		if !running {
			if e.doStats.Load() {
				metrics.RecordShutdown(e.name)
			}
			return nil, ErrShuttingDown
		}
		return nil, ctx.Err()
	}

	buf := newBuffer(sample)
	buf.PTS = e.timestampLocked()
	buf.Duration = e.duration
	buf.Offset = e.offset
	buf.OffsetEnd = e.offset + 1
	if e.offset == 0 {
		buf.Flags |= FlagDiscont
	}
	e.offset++
	stillPending := e.pending
	e.mu.Unlock()

	sample.Release()

	if e.doStats.Load() {
		metrics.RecordBuffer(e.name, buf.Size(), time.Since(began), stillPending)
	}
	return buf, nil
}

// timestampLocked is clock time minus base time minus one frame, clamped to
// zero. Without a clock it is ClockTimeNone.
func (e *Element) timestampLocked() time.Duration {
	if e.clock == nil {
		return ClockTimeNone
	}
	ts := e.clock.Time()
	if ts > e.baseTime {
		ts -= e.baseTime
	} else {
		ts = 0
	}
	if ts > e.duration {
		ts -= e.duration
	} else {
		ts = 0
	}
	return ts
}

// Unlock requests cancellation of a blocked Create. Every waiter wakes and
// returns ErrShuttingDown.
func (e *Element) Unlock() {
	e.mu.Lock()
	e.running = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

// UnlockStop clears a cancellation request. Running is restored by the next
// start, so there is nothing to undo here.
func (e *Element) UnlockStop() {}

// Latency reports the element as live with one frame of latency. ok is false
// until a format has been selected.
func (e *Element) Latency() (minLatency, maxLatency time.Duration, ok bool) {
	e.mu.Lock()
	d := e.duration
	open := e.queue != nil
	e.mu.Unlock()

	if !open || d == ClockTimeNone {
		return 0, 0, false
	}
	return d, d, true
}

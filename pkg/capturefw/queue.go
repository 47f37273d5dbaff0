package capturefw

import (
	"sync"
	"sync/atomic"
	"time"
)

// BufferQueue is an in-process Queue that backends fill with Enqueue.
//
// The validation callback runs after the sample is visible to
// DequeueAndRetain and outside the queue lock, so a callback may take locks
// that a consumer holds while dequeuing.
//
// A queue with a positive capacity holds at most that many samples. When a
// new sample would exceed it, the oldest queued sample is dropped.
type BufferQueue struct {
	mu       sync.Mutex
	items    []Sample
	capacity int
	validate ValidationFunc
	refs     atomic.Int32
	onFree   func()
	dropped  atomic.Uint64
}

// NewBufferQueue returns a queue holding one reference. A capacity of zero or
// less leaves the queue unbounded.
func NewBufferQueue(capacity int) *BufferQueue {
	q := &BufferQueue{capacity: max(capacity, 0)}
	q.refs.Store(1)
	return q
}

// Capacity returns the maximum number of queued samples, or 0 if unbounded.
func (q *BufferQueue) Capacity() int { return q.capacity }

// Dropped returns how many samples were evicted because the queue was full.
func (q *BufferQueue) Dropped() uint64 { return q.dropped.Load() }

// OnFree registers a hook called when the last reference is released.
func (q *BufferQueue) OnFree(fn func()) {
	q.mu.Lock()
	q.onFree = fn
	q.mu.Unlock()
}

// Retain adds a reference and returns the queue.
func (q *BufferQueue) Retain() *BufferQueue {
	q.refs.Add(1)
	return q
}

// Release implements Queue.
func (q *BufferQueue) Release() {
	if q.refs.Add(-1) != 0 {
		return
	}
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.validate = nil
	onFree := q.onFree
	q.mu.Unlock()

	for _, s := range items {
		s.Release()
	}
	if onFree != nil {
		onFree()
	}
}

// SetValidationCallback implements Queue.
func (q *BufferQueue) SetValidationCallback(fn ValidationFunc) {
	q.mu.Lock()
	q.validate = fn
	q.mu.Unlock()
}

// Enqueue appends s, taking over the caller's reference. It reports whether
// the sample was kept. On a full queue the oldest sample is released first.
func (q *BufferQueue) Enqueue(s Sample) bool {
	q.mu.Lock()
	var evicted []Sample
	for q.capacity > 0 && len(q.items) >= q.capacity {
		evicted = append(evicted, q.items[0])
		q.items[0] = nil
		q.items = q.items[1:]
	}
	q.items = append(q.items, s)
	validate := q.validate
	q.mu.Unlock()

	for _, old := range evicted {
		q.dropped.Add(1)
		old.Release()
	}

	if validate == nil || !validate(q, s) {
		return true
	}

	q.mu.Lock()
	removed := false
	for i, item := range q.items {
		if item == s {
			q.items = append(q.items[:i], q.items[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()

	if removed {
		s.Release()
	}
	return false
}

// DequeueAndRetain implements Queue.
func (q *BufferQueue) DequeueAndRetain() Sample {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	s := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return s
}

// IsEmpty implements Queue.
func (q *BufferQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of queued samples.
func (q *BufferQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RefSample is a Sample backed by a byte slice.
type RefSample struct {
	data      []byte
	timestamp time.Duration
	refs      atomic.Int32
	onFree    func()
}

// NewSample returns a sample holding one reference. onFree, if set, runs when
// the last reference is released.
func NewSample(data []byte, timestamp time.Duration, onFree func()) *RefSample {
	s := &RefSample{data: data, timestamp: timestamp, onFree: onFree}
	s.refs.Store(1)
	return s
}

// Bytes implements Sample.
func (s *RefSample) Bytes() []byte { return s.data }

// Timestamp is the backend capture time of the sample.
func (s *RefSample) Timestamp() time.Duration { return s.timestamp }

// Refs returns the current reference count.
func (s *RefSample) Refs() int32 { return s.refs.Load() }

// Retain implements Sample.
func (s *RefSample) Retain() Sample {
	s.refs.Add(1)
	return s
}

// Release implements Sample.
func (s *RefSample) Release() {
	n := s.refs.Add(-1)
	if n == 0 && s.onFree != nil {
		s.onFree()
	}
	if n < 0 {
		panic("capturefw: sample released more times than retained")
	}
}

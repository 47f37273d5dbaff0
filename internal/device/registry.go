// Package device tracks which capture devices are checked out by an element.
//
// A capture device serves exactly one session at a time. Elements check a
// device out before asking the capture framework to open it, so a second
// element sees ErrBusy without touching the framework.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrBusy is returned when a device is already checked out.
var ErrBusy = errors.New("device is already in use")

// State of a device slot.
type State string

// Slot states.
const (
	StateFree       State = "free"
	StateCheckedOut State = "checked-out"
)

// Slot describes one known device.
type Slot struct {
	ID        string
	State     State
	Owner     string
	Since     time.Time
	Checkouts int
}

// Registry is an arena of device slots.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*Slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*Slot)}
}

// Default is the process-wide registry used by elements unless overridden.
var Default = NewRegistry()

// Lease is a checked-out device. Release is idempotent.
type Lease struct {
	registry *Registry
	id       string
	once     sync.Once
}

// ID returns the leased device identifier.
func (l *Lease) ID() string { return l.id }

// Release returns the device to the registry.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.registry.release(l.id)
	})
}

// Checkout claims device id for owner.
func (r *Registry) Checkout(id, owner string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		slot = &Slot{ID: id, State: StateFree}
		r.slots[id] = slot
	}
	if slot.State == StateCheckedOut {
		return nil, fmt.Errorf("%w: %s held by %s", ErrBusy, id, slot.Owner)
	}

	slot.State = StateCheckedOut
	slot.Owner = owner
	slot.Since = time.Now()
	slot.Checkouts++

	return &Lease{registry: r, id: id}, nil
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot, ok := r.slots[id]; ok {
		slot.State = StateFree
		slot.Owner = ""
		slot.Since = time.Now()
	}
}

// Slots returns a snapshot of all known slots sorted by ID.
func (r *Registry) Slots() []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

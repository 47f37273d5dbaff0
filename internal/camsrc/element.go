// Package camsrc implements a live camera source element.
//
// An element opens a capture device through a capturefw backend, advertises
// the raw formats the device supports, commits one of them to the device when
// the host negotiates, and hands out frames as timestamped buffers from a
// blocking pull.
//
//	el := camsrc.New(backend.Opener(), camsrc.WithName("camsrc0"))
//	if err := el.SetState(camsrc.StateReady); err != nil { ... }
//	caps := el.Caps()
//	if err := el.Negotiate(camsrc.Caps{format.Structure()}); err != nil { ... }
//	if err := el.SetState(camsrc.StateStreaming); err != nil { ... }
//	buf, err := el.Create(ctx)
//	...
//	buf.Unref()
//
// Negotiation and state changes are serialized by the element. Create runs
// on a single streaming goroutine; Unlock may be called from any goroutine.
package camsrc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camsrc/internal/device"
	"github.com/smazurov/camsrc/internal/events"
	"github.com/smazurov/camsrc/internal/logging"
	"github.com/smazurov/camsrc/internal/metrics"
	"github.com/smazurov/camsrc/pkg/capturefw"
)

// State is the element lifecycle state.
type State int

// Lifecycle states.
const (
	StateNull State = iota
	StateReady
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState parses the String form of a state.
func ParseState(s string) (State, error) {
	switch s {
	case "null":
		return StateNull, nil
	case "ready":
		return StateReady, nil
	case "streaming", "playing":
		return StateStreaming, nil
	default:
		return StateNull, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, s)
	}
}

// Property names accepted by SetProperty.
const (
	PropertyDoStats           = "do-stats"
	PropertyRollbackOnFailure = "rollback-on-failure"
	PropertyDevice            = "device"
)

// DefaultDeviceID is the device checked out when none is configured.
const DefaultDeviceID = "default"

// Element is a camera source element.
type Element struct {
	name     string
	opener   capturefw.Opener
	registry *device.Registry
	bus      *events.Bus
	logger   *slog.Logger

	doStats  atomic.Bool
	rollback atomic.Bool

	// stateMu serializes state changes and negotiation.
	stateMu  sync.Mutex
	state    State
	deviceID string
	session  *session
	catalog  catalog

	// mu guards the relay and timing fields below.
	mu        sync.Mutex
	cond      *sync.Cond
	queue     capturefw.Queue
	running   bool
	pending   bool
	offset    uint64
	duration  time.Duration
	clock     Clock
	baseTime  time.Duration
	selected  *Format
	sessionID string
}

// Option configures an Element.
type Option func(*Element)

// WithName sets the element name used in logs, events and metrics.
func WithName(name string) Option {
	return func(e *Element) { e.name = name }
}

// WithRegistry sets the device registry. Defaults to device.Default.
func WithRegistry(r *device.Registry) Option {
	return func(e *Element) { e.registry = r }
}

// WithBus publishes element events on bus.
func WithBus(bus *events.Bus) Option {
	return func(e *Element) { e.bus = bus }
}

// WithDevice sets the device identifier checked out on open.
func WithDevice(id string) Option {
	return func(e *Element) { e.deviceID = id }
}

// WithStats enables metrics recording.
func WithStats(enabled bool) Option {
	return func(e *Element) { e.doStats.Store(enabled) }
}

// WithRollback restores device properties when a format selection fails.
func WithRollback(enabled bool) Option {
	return func(e *Element) { e.rollback.Store(enabled) }
}

// New creates an element in StateNull.
func New(opener capturefw.Opener, opts ...Option) *Element {
	e := &Element{
		name:     "camsrc0",
		opener:   opener,
		registry: device.Default,
		deviceID: DefaultDeviceID,
		duration: ClockTimeNone,
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.GetLogger("camsrc").With("element", e.name)
	return e
}

// Name returns the element name.
func (e *Element) Name() string { return e.name }

// State returns the current lifecycle state.
func (e *Element) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// SetState walks the element one step at a time to target. It stops at the
// first failing step, leaving the element in the last state it reached.
func (e *Element) SetState(target State) error {
	if target < StateNull || target > StateStreaming {
		return fmt.Errorf("%w: unknown state %d", ErrInvalidTransition, int(target))
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	for e.state != target {
		from := e.state
		to := from + 1
		if target < from {
			to = from - 1
		}

		var err error
		switch {
		case from == StateNull && to == StateReady:
			err = e.open()
		case from == StateReady && to == StateStreaming:
			e.start()
		case from == StateStreaming && to == StateReady:
			e.Unlock()
			e.stop()
		case from == StateReady && to == StateNull:
			e.close()
		}
		if err != nil {
			return err
		}

		e.state = to
		e.logger.Info("State changed", "from", from.String(), "to", to.String())
		e.publish(events.StateChangedEvent{
			Element:   e.name,
			SessionID: e.currentSessionID(),
			From:      from.String(),
			To:        to.String(),
			Timestamp: now(),
		})
	}
	return nil
}

func (e *Element) open() error {
	e.logger.Debug("Opening device", "device", e.deviceID)

	lease, err := e.registry.Checkout(e.deviceID, e.name)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrResourceBusy, err)
		e.postError(events.DomainResource, events.CodeBusy, "Device is already in use.", err)
		return err
	}

	e.mu.Lock()
	e.pending = false
	e.mu.Unlock()

	s, err := openSession(lease, e.opener, e.onEnqueue)
	if err != nil {
		code := events.CodeFailed
		if errors.Is(err, ErrResourceBusy) {
			code = events.CodeBusy
		}
		e.postError(events.DomainResource, code, openFailureMessage(err), err)
		return err
	}

	e.session = s
	e.mu.Lock()
	e.queue = s.queue
	e.duration = ClockTimeNone
	e.selected = nil
	e.sessionID = s.id
	e.mu.Unlock()

	e.logger.Info("Device opened", "device", e.deviceID, "session_id", s.id)
	return nil
}

func openFailureMessage(err error) string {
	var apiErr *APIError
	var devErr *UnexpectedDeviceError
	switch {
	case errors.Is(err, ErrResourceBusy):
		return "Device is already in use."
	case errors.As(err, &apiErr):
		return "API error"
	case errors.As(err, &devErr):
		return fmt.Sprintf("Unexpected error while opening device (%d)", int32(devErr.Status))
	default:
		return "Failed to open device"
	}
}

func (e *Element) close() {
	s := e.session
	if s == nil {
		return
	}
	e.catalog.release()

	e.mu.Lock()
	e.running = false
	e.queue = nil
	e.duration = ClockTimeNone
	e.selected = nil
	e.sessionID = ""
	e.cond.Broadcast()
	e.mu.Unlock()

	s.close(e.logger)
	e.session = nil

	if e.doStats.Load() {
		metrics.Delete(e.name)
	}
	e.logger.Info("Device closed", "device", e.deviceID, "session_id", s.id)
}

func (e *Element) start() {
	e.mu.Lock()
	e.running = true
	e.offset = 0
	id := e.sessionID
	e.mu.Unlock()

	e.publish(events.StreamStatusEvent{
		Element:   e.name,
		SessionID: id,
		Status:    "started",
		Timestamp: now(),
	})
}

func (e *Element) stop() {
	e.mu.Lock()
	e.running = false
	e.cond.Broadcast()
	delivered := e.offset
	id := e.sessionID
	e.mu.Unlock()

	e.publish(events.StreamStatusEvent{
		Element:   e.name,
		SessionID: id,
		Status:    "stopped",
		Buffers:   delivered,
		Timestamp: now(),
	})
}

// Caps returns the formats the open device supports, or nil when no device
// is open. The catalog is built on first use.
func (e *Element) Caps() Caps {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.session == nil {
		return nil
	}
	e.catalog.ensureBuilt(e.session.device, e.logger)
	return e.catalog.capsCopy()
}

// Formats returns the catalog entries of the open device.
func (e *Element) Formats() []Format {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.session == nil {
		return nil
	}
	e.catalog.ensureBuilt(e.session.device, e.logger)
	return e.catalog.snapshot()
}

// Negotiate commits the first structure of caps to the device. The request
// must exactly match a catalog entry.
func (e *Element) Negotiate(caps Caps) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.session == nil {
		e.negotiationFailed("no-device", "No device.", ErrNoDevice)
		return ErrNoDevice
	}
	if len(caps) == 0 {
		err := fmt.Errorf("%w: empty caps", ErrInvalidFormat)
		e.negotiationFailed("invalid-format", "Invalid format.", err)
		return err
	}

	req, err := FormatFromStructure(caps[0])
	if err != nil {
		e.negotiationFailed("invalid-format", "Invalid format.", err)
		return err
	}

	e.catalog.ensureBuilt(e.session.device, e.logger)
	f, ok := e.catalog.lookup(req)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrFormatNotSupported, caps[0])
		e.negotiationFailed("not-supported", "Invalid format.", err)
		return err
	}

	d, err := selectFormat(e.session.device, e.session.stream, f, e.rollback.Load(), e.logger)
	if err != nil {
		e.negotiationFailed("configuration", "Failed to select format.", err)
		return err
	}
	e.catalog.release()

	e.mu.Lock()
	latencyChanged := e.duration != d
	e.duration = d
	e.selected = &f
	id := e.sessionID
	e.mu.Unlock()

	if e.doStats.Load() {
		metrics.SetFrameDuration(e.name, d)
	}
	e.logger.Info("Format selected", "format", f.String(), "frame_duration", d)
	e.publish(events.FormatSelectedEvent{
		Element:       e.name,
		SessionID:     id,
		Index:         f.Index,
		Caps:          f.Structure().String(),
		FrameDuration: d.String(),
		Timestamp:     now(),
	})
	if latencyChanged {
		e.publish(events.LatencyEvent{Element: e.name, Live: true, Min: d.String(), Max: d.String()})
	}
	return nil
}

func (e *Element) negotiationFailed(reason, message string, err error) {
	if e.doStats.Load() {
		metrics.RecordNegotiationFailure(e.name, reason)
	}
	e.postError(events.DomainResource, events.CodeFailed, message, err)
}

// SetClock sets the clock used for timestamps. nil disables timestamps.
func (e *Element) SetClock(c Clock) {
	e.mu.Lock()
	e.clock = c
	e.mu.Unlock()
}

// SetBaseTime sets the clock reading that maps to running time zero.
func (e *Element) SetBaseTime(t time.Duration) {
	e.mu.Lock()
	e.baseTime = t
	e.mu.Unlock()
}

// Selected returns the negotiated format, if any.
func (e *Element) Selected() (Format, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return Format{}, false
	}
	return *e.selected, true
}

// FrameDuration returns the duration of one frame, ClockTimeNone before
// negotiation.
func (e *Element) FrameDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Status is a point-in-time view of an element.
type Status struct {
	Name          string
	State         State
	Device        string
	SessionID     string
	Selected      *Format
	FrameDuration time.Duration
	Running       bool
	Pending       bool
	Offset        uint64
}

// Status returns a snapshot of the element.
func (e *Element) Status() Status {
	e.stateMu.Lock()
	st := Status{Name: e.name, State: e.state, Device: e.deviceID}
	e.stateMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	st.SessionID = e.sessionID
	if e.selected != nil {
		f := *e.selected
		st.Selected = &f
	}
	st.FrameDuration = e.duration
	st.Running = e.running
	st.Pending = e.pending
	st.Offset = e.offset
	return st
}

// SetProperty sets a named element property.
func (e *Element) SetProperty(name string, value any) error {
	switch name {
	case PropertyDoStats, PropertyRollbackOnFailure:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("property %s: want bool, got %T", name, value)
		}
		if name == PropertyDoStats {
			e.doStats.Store(b)
		} else {
			e.rollback.Store(b)
		}
		return nil
	case PropertyDevice:
		id, ok := value.(string)
		if !ok || id == "" {
			return fmt.Errorf("property %s: want non-empty string, got %v", name, value)
		}
		e.stateMu.Lock()
		defer e.stateMu.Unlock()
		if e.state != StateNull {
			return fmt.Errorf("%w: %s", ErrReadOnlyProperty, name)
		}
		e.deviceID = id
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
}

// Property returns a named element property.
func (e *Element) Property(name string) (any, error) {
	switch name {
	case PropertyDoStats:
		return e.doStats.Load(), nil
	case PropertyRollbackOnFailure:
		return e.rollback.Load(), nil
	case PropertyDevice:
		e.stateMu.Lock()
		defer e.stateMu.Unlock()
		return e.deviceID, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
}

func (e *Element) currentSessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

func (e *Element) postError(domain, code, message string, err error) {
	e.logger.Error(message, "domain", domain, "code", code, "error", err)
	e.publish(events.ElementErrorEvent{
		Element:   e.name,
		SessionID: e.currentSessionID(),
		Domain:    domain,
		Code:      code,
		Message:   message,
		Debug:     err.Error(),
		Timestamp: now(),
	})
}

func (e *Element) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/camsrc/internal/camsrc"
	"github.com/smazurov/camsrc/internal/events"
)

// Controller is the part of an element reachable over NATS.
type Controller interface {
	Name() string
	State() camsrc.State
	SetState(target camsrc.State) error
	Unlock()
	UnlockStop()
}

// Bridge publishes an element's bus events to NATS and serves control
// requests addressed to it.
type Bridge struct {
	url      string
	eventBus *events.Bus
	element  Controller
	conn     *nats.Conn
	sub      *nats.Subscription
	unsubs   []func()
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewBridge creates a bridge for element. Nothing is connected until Start.
func NewBridge(url string, eventBus *events.Bus, element Controller, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		url:      url,
		eventBus: eventBus,
		element:  element,
		logger:   logger.With("component", "nats-bridge", "element", element.Name()),
	}
}

// Start connects to NATS, subscribes to the control subject and begins
// forwarding events.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := b.element.Name()
	conn, err := nats.Connect(b.url,
		nats.Name("camsrc-"+name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(SubjectControl(name), b.handleControl)
	if err != nil {
		conn.Close()
		return err
	}
	b.conn = conn
	b.sub = sub

	b.unsubs = append(b.unsubs,
		b.eventBus.Subscribe(func(e events.StateChangedEvent) {
			if e.Element == name {
				b.publish(SubjectElementState(name), e)
			}
		}),
		b.eventBus.Subscribe(func(e events.ElementErrorEvent) {
			if e.Element == name {
				b.publish(SubjectElementErrors(name), e)
			}
		}),
		b.eventBus.Subscribe(func(e events.FormatSelectedEvent) {
			if e.Element == name {
				b.publish(SubjectElementFormat(name), e)
			}
		}),
		b.eventBus.Subscribe(func(e events.StreamStatusEvent) {
			if e.Element == name {
				b.publish(SubjectElementStream(name), e)
			}
		}),
		b.eventBus.Subscribe(func(e events.DeviceEvent) {
			b.publish(SubjectDevices, e)
		}),
	)

	b.logger.Info("NATS bridge connected", "url", b.url, "control", SubjectControl(name))
	return nil
}

func (b *Bridge) publish(subject string, v any) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("Failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		b.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// handleControl applies a control request and answers when a reply subject
// is set.
func (b *Bridge) handleControl(msg *nats.Msg) {
	var reply ControlReply
	m, err := UnmarshalControl(msg.Data)
	if err != nil {
		b.logger.Warn("Failed to unmarshal control message", "error", err)
		reply = ControlReply{Error: err.Error()}
	} else {
		b.logger.Info("Received control command", "action", m.Action, "reason", m.Reason)
		reply = b.apply(m)
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		b.logger.Warn("Failed to marshal control reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		b.logger.Warn("Failed to send control reply", "error", err)
	}
}

func (b *Bridge) apply(m ControlMessage) ControlReply {
	switch m.Action {
	case ActionUnlock:
		b.element.Unlock()
	case ActionUnlockStop:
		b.element.UnlockStop()
	case ActionState:
		target, err := camsrc.ParseState(m.State)
		if err != nil {
			return ControlReply{State: b.element.State().String(), Error: err.Error()}
		}
		if err := b.element.SetState(target); err != nil {
			return ControlReply{State: b.element.State().String(), Error: err.Error()}
		}
	default:
		return ControlReply{
			State: b.element.State().String(),
			Error: fmt.Sprintf("unknown action %q", m.Action),
		}
	}
	return ControlReply{OK: true, State: b.element.State().String()}
}

// Stop unsubscribes from the bus and closes the connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
		b.sub = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.logger.Info("NATS bridge stopped")
}

// IsConnected reports whether the bridge holds a live connection.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}

package events

// Event type constants for kelindar/event.
const (
	TypeElementError uint32 = iota + 1
	TypeStateChanged
	TypeFormatSelected
	TypeStreamStatus
	TypeLatency
	TypeDevice
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Error domains and codes posted by elements.
const (
	DomainResource = "resource"
	DomainStream   = "stream"

	CodeBusy          = "busy"
	CodeFailed        = "failed"
	CodeNotNegotiated = "not-negotiated"
)

// ElementErrorEvent is the host error-reporting channel. Message is meant for
// users, Debug carries the underlying cause.
type ElementErrorEvent struct {
	Element   string `json:"element" example:"camsrc0" doc:"Element name"`
	SessionID string `json:"session_id,omitempty" doc:"Capture session identifier"`
	Domain    string `json:"domain" example:"resource" doc:"Error domain"`
	Code      string `json:"code" example:"busy" doc:"Error code within the domain"`
	Message   string `json:"message" example:"device is already in use" doc:"User facing message"`
	Debug     string `json:"debug,omitempty" doc:"Debug details"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ElementErrorEvent.
func (e ElementErrorEvent) Type() uint32 { return TypeElementError }

// StateChangedEvent is published after an element completes a state transition.
type StateChangedEvent struct {
	Element   string `json:"element"`
	SessionID string `json:"session_id,omitempty"`
	From      string `json:"from" example:"null"`
	To        string `json:"to" example:"ready"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// FormatSelectedEvent is published when negotiation commits a format to the device.
type FormatSelectedEvent struct {
	Element       string `json:"element"`
	SessionID     string `json:"session_id"`
	Index         int    `json:"index"`
	Caps          string `json:"caps" example:"video/x-raw, format=(string)YUY2, width=(int)640"`
	FrameDuration string `json:"frame_duration" example:"33.333333ms"`
	Timestamp     string `json:"timestamp"`
}

// Type returns the event type identifier for FormatSelectedEvent.
func (e FormatSelectedEvent) Type() uint32 { return TypeFormatSelected }

// StreamStatusEvent is published when a pull loop starts or stops delivering buffers.
type StreamStatusEvent struct {
	Element   string `json:"element"`
	SessionID string `json:"session_id"`
	Status    string `json:"status" example:"flowing"`
	Buffers   uint64 `json:"buffers"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StreamStatusEvent.
func (e StreamStatusEvent) Type() uint32 { return TypeStreamStatus }

// LatencyEvent is published when negotiation changes an element's latency.
type LatencyEvent struct {
	Element string `json:"element"`
	Live    bool   `json:"live"`
	Min     string `json:"min"`
	Max     string `json:"max"`
}

// Type returns the event type identifier for LatencyEvent.
func (e LatencyEvent) Type() uint32 { return TypeLatency }

// DeviceEvent is published when a capture node appears or disappears.
type DeviceEvent struct {
	Action    string `json:"action" example:"remove" doc:"Kernel action"`
	Node      string `json:"node" example:"/dev/video0" doc:"Device node"`
	Active    bool   `json:"active" doc:"True when the node backs the running element"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceEvent.
func (e DeviceEvent) Type() uint32 { return TypeDevice }

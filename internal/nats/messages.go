package nats

import (
	"encoding/json"
	"fmt"
)

// Subject prefixes for NATS topics.
const (
	SubjectElementsPrefix = "camsrc.elements"
	SubjectControlPrefix  = "camsrc.control"
	SubjectDevices        = "camsrc.devices"
)

// Control actions.
const (
	ActionUnlock     = "unlock"
	ActionUnlockStop = "unlock-stop"
	ActionState      = "state"
)

// SubjectElementState returns the subject carrying an element's state changes.
func SubjectElementState(element string) string {
	return fmt.Sprintf("%s.%s.state", SubjectElementsPrefix, element)
}

// SubjectElementErrors returns the subject carrying an element's errors.
func SubjectElementErrors(element string) string {
	return fmt.Sprintf("%s.%s.errors", SubjectElementsPrefix, element)
}

// SubjectElementFormat returns the subject carrying format selections.
func SubjectElementFormat(element string) string {
	return fmt.Sprintf("%s.%s.format", SubjectElementsPrefix, element)
}

// SubjectElementStream returns the subject carrying pull loop status.
func SubjectElementStream(element string) string {
	return fmt.Sprintf("%s.%s.stream", SubjectElementsPrefix, element)
}

// SubjectControl returns the request subject for controlling an element.
func SubjectControl(element string) string {
	return fmt.Sprintf("%s.%s", SubjectControlPrefix, element)
}

// ControlMessage asks an element to act.
type ControlMessage struct {
	Action    string `json:"action"`          // unlock, unlock-stop, state
	State     string `json:"state,omitempty"` // target for the state action
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlReply answers a ControlMessage.
type ControlReply struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"` // element state after the action
	Error string `json:"error,omitempty"`
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalReply deserializes a ControlReply from JSON.
func UnmarshalReply(data []byte) (ControlReply, error) {
	var r ControlReply
	err := json.Unmarshal(data, &r)
	return r, err
}

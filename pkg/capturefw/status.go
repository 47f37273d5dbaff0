package capturefw

import (
	"errors"
	"fmt"
)

// Status is a numeric status code returned by a capture framework.
type Status int32

// Known status codes.
const (
	StatusOK               Status = 0
	StatusResourceBusy     Status = -12780
	StatusInvalidParameter Status = -12781
	StatusPropertyNotFound Status = -12782
	StatusNotStreaming     Status = -12783
	StatusDeviceGone       Status = -12784
)

func (s Status) Error() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusResourceBusy:
		return "resource busy"
	case StatusInvalidParameter:
		return "invalid parameter"
	case StatusPropertyNotFound:
		return "property not found"
	case StatusNotStreaming:
		return "stream not started"
	case StatusDeviceGone:
		return "device gone"
	default:
		return fmt.Sprintf("capture framework status %d", int32(s))
	}
}

// StatusOf extracts the status code carried by err. Errors that carry no
// status map to StatusOK when nil and -1 otherwise.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return -1
}

package camsrc

import (
	"errors"
	"fmt"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

// Errors returned by the element.
var (
	ErrResourceBusy        = errors.New("device is already in use")
	ErrFormatNotSupported  = errors.New("format not supported by device")
	ErrDeviceConfiguration = errors.New("failed to select format")
	ErrShuttingDown        = errors.New("element is shutting down")
	ErrNoDevice            = errors.New("no device")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrNotNegotiated       = errors.New("format not negotiated")
	ErrUnknownProperty     = errors.New("unknown property")
	ErrReadOnlyProperty    = errors.New("property can only be set while closed")
	ErrInvalidTransition   = errors.New("invalid state transition")
)

// APIError means the capture framework itself could not be loaded.
type APIError struct {
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %v", e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// UnexpectedDeviceError carries the framework status of a failed device open.
type UnexpectedDeviceError struct {
	Status capturefw.Status
	Err    error
}

func (e *UnexpectedDeviceError) Error() string {
	return fmt.Sprintf("unexpected error while opening device (%d): %v", int32(e.Status), e.Err)
}

func (e *UnexpectedDeviceError) Unwrap() error { return e.Err }

//go:build !linux

package v4l2cap

import (
	"errors"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

// DefaultBuffers is the number of driver buffers requested on start.
const DefaultBuffers = 4

// ErrUnsupported is returned by the opener on platforms without V4L2.
var ErrUnsupported = errors.New("v4l2cap: video4linux is only available on linux")

// Option configures an Opener.
type Option func()

// WithBuffers is accepted for API parity and has no effect.
func WithBuffers(uint32) Option { return func() {} }

// Opener returns an opener that always fails.
func Opener(string, ...Option) capturefw.Opener {
	return func() (capturefw.Framework, error) {
		return nil, ErrUnsupported
	}
}

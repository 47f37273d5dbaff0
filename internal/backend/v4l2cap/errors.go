//go:build linux

package v4l2cap

import (
	"errors"
	"fmt"

	"github.com/smazurov/camsrc/pkg/capturefw"
	"golang.org/x/sys/unix"
)

// statusFor maps device node errors onto framework status codes.
func statusFor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %w", capturefw.StatusResourceBusy, err)
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("%w: %w", capturefw.StatusDeviceGone, err)
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ERANGE):
		return fmt.Errorf("%w: %w", capturefw.StatusInvalidParameter, err)
	default:
		return err
	}
}

package camsrc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

type propertyWrite struct {
	name  string
	value any
}

// formatWrites lists the device writes that select f, in order.
func formatWrites(f Format) []propertyWrite {
	fps := int32(f.FrameRate.Num / f.FrameRate.Den)
	return []propertyWrite{
		{capturefw.PropertyFormatIndex, int32(f.Index)},
		{capturefw.PropertyFrameRate, fps},
		{capturefw.PropertyMinimumFrameRate, fps},
		{capturefw.PropertyColorRange, capturefw.ColorRangeSDVideo},
	}
}

// selectFormat configures dev for f and starts stream. Writes already applied
// stay in place on failure unless rollback is set, in which case the previous
// values are restored in reverse order.
func selectFormat(dev capturefw.Device, stream capturefw.Stream, f Format, rollback bool, logger *slog.Logger) (time.Duration, error) {
	var applied []propertyWrite

	fail := func(err error) (time.Duration, error) {
		if rollback {
			restore(dev, applied, logger)
		}
		return ClockTimeNone, fmt.Errorf("%w: %w", ErrDeviceConfiguration, err)
	}

	for _, w := range formatWrites(f) {
		var previous any
		if rollback {
			v, err := dev.Property(w.name)
			if err != nil {
				logger.Debug("Cannot read property for rollback", "property", w.name, "error", err)
			}
			previous = v
		}
		if err := dev.SetProperty(w.name, w.value); err != nil {
			return fail(fmt.Errorf("set %s=%v: %w", w.name, w.value, err))
		}
		if previous != nil {
			applied = append(applied, propertyWrite{w.name, previous})
		}
	}

	if err := stream.Start(); err != nil {
		return fail(fmt.Errorf("start stream: %w", err))
	}

	return FrameDuration(f.FrameRate), nil
}

func restore(dev capturefw.Device, applied []propertyWrite, logger *slog.Logger) {
	for i := len(applied) - 1; i >= 0; i-- {
		w := applied[i]
		if err := dev.SetProperty(w.name, w.value); err != nil {
			logger.Warn("Failed to restore device property", "property", w.name, "error", err)
		}
	}
}

package camsrc

import (
	"log/slog"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

// catalog caches the device's supported formats. It is built on first use
// and dropped after a successful selection or on close.
type catalog struct {
	built   bool
	formats []Format
	caps    Caps
}

// ensureBuilt enumerates dev once. A failed query leaves an empty catalog
// that stays empty until released.
func (c *catalog) ensureBuilt(dev capturefw.Device, logger *slog.Logger) {
	if c.built {
		return
	}
	c.built = true
	c.formats = nil
	c.caps = Caps{}

	natives, err := dev.SupportedFormats()
	if err != nil {
		logger.Warn("Failed to query supported formats", "error", err)
		return
	}

	for i, native := range natives {
		f, ok := translateNative(i, native)
		if !ok {
			logger.Warn("Skipping unsupported native format", "index", i, "format", native.String())
			continue
		}
		logger.Debug("Device format", "index", i, "format", f.String())
		c.formats = append(c.formats, f)
		c.caps = append(c.caps, f.Structure())
	}
}

func (c *catalog) release() {
	c.built = false
	c.formats = nil
	c.caps = nil
}

// lookup returns the first entry matching req exactly.
func (c *catalog) lookup(req Format) (Format, bool) {
	for _, f := range c.formats {
		if f.Matches(req) {
			return f, true
		}
	}
	return Format{}, false
}

func (c *catalog) snapshot() []Format {
	out := make([]Format, len(c.formats))
	copy(out, c.formats)
	return out
}

func (c *catalog) capsCopy() Caps {
	out := make(Caps, len(c.caps))
	copy(out, c.caps)
	return out
}

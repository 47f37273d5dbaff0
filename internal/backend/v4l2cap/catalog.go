//go:build linux

package v4l2cap

import (
	"github.com/smazurov/camsrc/pkg/capturefw"
	"github.com/smazurov/camsrc/pkg/linuxav/v4l2"
)

// Pixel format codes as reported by V4L2.
const (
	pixFmtYUYV  = uint32(capturefw.SubtypeYUYV)
	pixFmtYU12  = uint32(capturefw.SubtypeYU12)
	pixFmtI420  = 0x30323449 // 'I420'
	pixFmtNV12  = uint32(capturefw.SubtypeNV12)
	pixFmtMJPEG = uint32(capturefw.SubtypeMJPEG)
)

type enumerator interface {
	Formats() ([]v4l2.FormatInfo, error)
	Resolutions(pixelFormat uint32) ([]v4l2.Resolution, error)
	Framerates(pixelFormat, width, height uint32) ([]v4l2.Framerate, error)
}

// entry is one catalog position and the V4L2 request that realizes it.
type entry struct {
	native      capturefw.NativeFormat
	pixelFormat uint32
}

func subtypeFor(pixelFormat uint32) capturefw.FourCC {
	if pixelFormat == pixFmtI420 {
		return capturefw.SubtypeYU12
	}
	return capturefw.FourCC(pixelFormat)
}

// buildCatalog flattens the device enumeration. A size whose intervals
// cannot be listed is still reported, with a zero rate.
func buildCatalog(e enumerator) ([]entry, error) {
	formats, err := e.Formats()
	if err != nil {
		return nil, err
	}

	var entries []entry
	for _, f := range formats {
		sizes, err := e.Resolutions(f.PixelFormat)
		if err != nil {
			logger.Debug("frame size enumeration failed", "format", capturefw.FourCC(f.PixelFormat), "error", err)
			continue
		}
		for _, size := range sizes {
			rates, err := e.Framerates(f.PixelFormat, size.Width, size.Height)
			if err != nil {
				logger.Debug("frame interval enumeration failed",
					"format", capturefw.FourCC(f.PixelFormat), "width", size.Width, "height", size.Height, "error", err)
			}
			entries = append(entries, entry{
				native: capturefw.NativeFormat{
					Subtype:      subtypeFor(f.PixelFormat),
					Width:        int32(size.Width),
					Height:       int32(size.Height),
					MaxFrameRate: int32(v4l2.MaxFPS(rates)),
				},
				pixelFormat: f.PixelFormat,
			})
		}
	}
	return entries, nil
}

func indexOf(entries []entry, pixelFormat, width, height uint32) int {
	for i, e := range entries {
		if e.pixelFormat == pixelFormat && uint32(e.native.Width) == width && uint32(e.native.Height) == height {
			return i
		}
	}
	return -1
}

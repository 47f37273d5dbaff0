package camsrc

import (
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

// ClockTimeNone marks an unset time value.
const ClockTimeNone time.Duration = -1

// PixelLayout is a raw video layout the element can produce.
type PixelLayout int

// Supported layouts.
const (
	LayoutUnknown   PixelLayout = iota
	LayoutPacked422             // YUY2
	LayoutPlanar420             // I420
)

func (l PixelLayout) String() string {
	switch l {
	case LayoutPacked422:
		return "YUY2"
	case LayoutPlanar420:
		return "I420"
	default:
		return "unknown"
	}
}

// ParsePixelLayout maps a caps format name to a layout.
func ParsePixelLayout(name string) (PixelLayout, bool) {
	switch strings.ToUpper(name) {
	case "YUY2", "YUYV":
		return LayoutPacked422, true
	case "I420", "IYUV":
		return LayoutPlanar420, true
	default:
		return LayoutUnknown, false
	}
}

// layoutForSubtype translates native media subtypes.
var layoutForSubtype = map[capturefw.FourCC]PixelLayout{
	capturefw.SubtypeComponentVideoUnsigned: LayoutPacked422,
	capturefw.SubtypeYUYV:                   LayoutPacked422,
	capturefw.SubtypeYUV420v:                LayoutPlanar420,
	capturefw.SubtypeYU12:                   LayoutPlanar420,
}

// Fraction is a rational number such as a frame rate.
type Fraction struct {
	Num int
	Den int
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Format is one catalog entry.
type Format struct {
	// Index is the position in the device's native enumeration.
	Index     int
	Layout    PixelLayout
	Width     int
	Height    int
	FrameRate Fraction
}

func (f Format) String() string {
	return fmt.Sprintf("#%d %s %dx%d@%s", f.Index, f.Layout, f.Width, f.Height, f.FrameRate)
}

// Matches reports whether f has the same layout, size and frame rate as req.
// Frame rates compare field by field, 60/2 does not match 30/1.
func (f Format) Matches(req Format) bool {
	return f.Layout == req.Layout &&
		f.Width == req.Width && f.Height == req.Height &&
		f.FrameRate == req.FrameRate
}

// Structure renders f as a caps structure.
func (f Format) Structure() Structure {
	return NewStructure(MediaTypeRaw,
		Field{Name: "format", Type: "string", Value: f.Layout.String()},
		Field{Name: "width", Type: "int", Value: fmt.Sprint(f.Width)},
		Field{Name: "height", Type: "int", Value: fmt.Sprint(f.Height)},
		Field{Name: "framerate", Type: "fraction", Value: f.FrameRate.String()},
		Field{Name: "pixel-aspect-ratio", Type: "fraction", Value: "1/1"},
	)
}

// FrameDuration returns one second scaled by den/num, truncated to the
// nanosecond. It returns ClockTimeNone for non-positive rates.
func FrameDuration(rate Fraction) time.Duration {
	if rate.Num <= 0 || rate.Den <= 0 {
		return ClockTimeNone
	}
	hi, lo := bits.Mul64(uint64(time.Second), uint64(rate.Den))
	if hi >= uint64(rate.Num) {
		return ClockTimeNone
	}
	q, _ := bits.Div64(hi, lo, uint64(rate.Num))
	if q > uint64(1<<63-1) {
		return ClockTimeNone
	}
	return time.Duration(q)
}

// translateNative converts a native format. It reports false for subtypes the
// element cannot produce.
func translateNative(index int, native capturefw.NativeFormat) (Format, bool) {
	layout, ok := layoutForSubtype[native.Subtype]
	if !ok {
		return Format{}, false
	}
	if native.Width <= 0 || native.Height <= 0 || native.MaxFrameRate <= 0 {
		return Format{}, false
	}
	return Format{
		Index:     index,
		Layout:    layout,
		Width:     int(native.Width),
		Height:    int(native.Height),
		FrameRate: Fraction{Num: int(native.MaxFrameRate), Den: 1},
	}, true
}

// FormatFromStructure extracts a negotiation request from a fixed caps structure.
func FormatFromStructure(s Structure) (Format, error) {
	if s.Name != MediaTypeRaw {
		return Format{}, fmt.Errorf("%w: media type %q", ErrInvalidFormat, s.Name)
	}
	name, ok := s.Value("format")
	if !ok {
		return Format{}, fmt.Errorf("%w: missing format", ErrInvalidFormat)
	}
	layout, ok := ParsePixelLayout(name)
	if !ok {
		return Format{}, fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, name)
	}
	width, err := s.Int("width")
	if err != nil {
		return Format{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	height, err := s.Int("height")
	if err != nil {
		return Format{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	rate, err := s.Fraction("framerate")
	if err != nil {
		return Format{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return Format{Index: -1, Layout: layout, Width: width, Height: height, FrameRate: rate}, nil
}

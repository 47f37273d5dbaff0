package camsrc

import (
	"errors"
	"testing"
	"time"

	"github.com/smazurov/camsrc/pkg/capturefw"
)

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		rate Fraction
		want time.Duration
	}{
		{Fraction{30, 1}, 33333333 * time.Nanosecond},
		{Fraction{15, 1}, 66666666 * time.Nanosecond},
		{Fraction{60, 1}, 16666666 * time.Nanosecond},
		{Fraction{30000, 1001}, 33366666 * time.Nanosecond},
		{Fraction{1, 1}, time.Second},
		{Fraction{1, 3}, 3 * time.Second},
		{Fraction{0, 1}, ClockTimeNone},
		{Fraction{30, 0}, ClockTimeNone},
	}

	for _, tt := range tests {
		t.Run(tt.rate.String(), func(t *testing.T) {
			if got := FrameDuration(tt.rate); got != tt.want {
				t.Errorf("FrameDuration(%s) = %d, want %d", tt.rate, got, tt.want)
			}
		})
	}
}

func TestTranslateNative(t *testing.T) {
	tests := []struct {
		name   string
		native capturefw.NativeFormat
		want   PixelLayout
		ok     bool
	}{
		{"yuvs", capturefw.NativeFormat{Subtype: capturefw.SubtypeComponentVideoUnsigned, Width: 640, Height: 480, MaxFrameRate: 30}, LayoutPacked422, true},
		{"YUYV", capturefw.NativeFormat{Subtype: capturefw.SubtypeYUYV, Width: 640, Height: 480, MaxFrameRate: 30}, LayoutPacked422, true},
		{"420v", capturefw.NativeFormat{Subtype: capturefw.SubtypeYUV420v, Width: 1280, Height: 720, MaxFrameRate: 30}, LayoutPlanar420, true},
		{"YU12", capturefw.NativeFormat{Subtype: capturefw.SubtypeYU12, Width: 1280, Height: 720, MaxFrameRate: 30}, LayoutPlanar420, true},
		{"MJPG", capturefw.NativeFormat{Subtype: capturefw.SubtypeMJPEG, Width: 1280, Height: 720, MaxFrameRate: 30}, LayoutUnknown, false},
		{"NV12", capturefw.NativeFormat{Subtype: capturefw.SubtypeNV12, Width: 1280, Height: 720, MaxFrameRate: 30}, LayoutUnknown, false},
		{"zero rate", capturefw.NativeFormat{Subtype: capturefw.SubtypeYUYV, Width: 640, Height: 480}, LayoutUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := translateNative(7, tt.native)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if f.Layout != tt.want {
				t.Errorf("Layout = %s, want %s", f.Layout, tt.want)
			}
			if f.Index != 7 {
				t.Errorf("Index = %d, want 7", f.Index)
			}
			if f.FrameRate != (Fraction{int(tt.native.MaxFrameRate), 1}) {
				t.Errorf("FrameRate = %s", f.FrameRate)
			}
		})
	}
}

func TestFormatMatches(t *testing.T) {
	f := Format{Index: 2, Layout: LayoutPlanar420, Width: 1280, Height: 720, FrameRate: Fraction{30, 1}}

	tests := []struct {
		name string
		req  Format
		want bool
	}{
		{"exact", Format{Layout: LayoutPlanar420, Width: 1280, Height: 720, FrameRate: Fraction{30, 1}}, true},
		{"layout", Format{Layout: LayoutPacked422, Width: 1280, Height: 720, FrameRate: Fraction{30, 1}}, false},
		{"width", Format{Layout: LayoutPlanar420, Width: 1920, Height: 720, FrameRate: Fraction{30, 1}}, false},
		{"rate", Format{Layout: LayoutPlanar420, Width: 1280, Height: 720, FrameRate: Fraction{15, 1}}, false},
		{"unreduced rate", Format{Layout: LayoutPlanar420, Width: 1280, Height: 720, FrameRate: Fraction{60, 2}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.req); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCapsRoundTrip(t *testing.T) {
	f := Format{Index: 0, Layout: LayoutPacked422, Width: 640, Height: 480, FrameRate: Fraction{30, 1}}
	want := "video/x-raw, format=(string)YUY2, width=(int)640, height=(int)480, framerate=(fraction)30/1, pixel-aspect-ratio=(fraction)1/1"

	if got := f.Structure().String(); got != want {
		t.Fatalf("Structure = %q\nwant %q", got, want)
	}

	caps, err := ParseCaps(want)
	if err != nil {
		t.Fatalf("ParseCaps: %v", err)
	}
	if len(caps) != 1 {
		t.Fatalf("len(caps) = %d, want 1", len(caps))
	}
	req, err := FormatFromStructure(caps[0])
	if err != nil {
		t.Fatalf("FormatFromStructure: %v", err)
	}
	if !f.Matches(req) {
		t.Errorf("parsed %s does not match %s", req, f)
	}
}

func TestParseCapsUntyped(t *testing.T) {
	caps, err := ParseCaps("video/x-raw,format=I420,width=1280,height=720,framerate=30/1; video/x-raw, format=YUY2")
	if err != nil {
		t.Fatalf("ParseCaps: %v", err)
	}
	if len(caps) != 2 {
		t.Fatalf("len(caps) = %d, want 2", len(caps))
	}
	req, err := FormatFromStructure(caps[0])
	if err != nil {
		t.Fatalf("FormatFromStructure: %v", err)
	}
	if req.Layout != LayoutPlanar420 || req.Width != 1280 || req.Height != 720 || req.FrameRate != (Fraction{30, 1}) {
		t.Errorf("unexpected request %+v", req)
	}
	if _, err := FormatFromStructure(caps[1]); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("structure without size: err = %v, want ErrInvalidFormat", err)
	}
}

func TestFormatFromStructureErrors(t *testing.T) {
	tests := []string{
		"video/x-h264, width=640, height=480, framerate=30/1",
		"video/x-raw, width=640, height=480, framerate=30/1",
		"video/x-raw, format=NV12, width=640, height=480, framerate=30/1",
		"video/x-raw, format=YUY2, width=abc, height=480, framerate=30/1",
		"video/x-raw, format=YUY2, width=640, height=480, framerate=0/1",
	}

	for _, text := range tests {
		caps, err := ParseCaps(text)
		if err != nil {
			t.Fatalf("ParseCaps(%q): %v", text, err)
		}
		if _, err := FormatFromStructure(caps[0]); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("%q: err = %v, want ErrInvalidFormat", text, err)
		}
	}
}

func TestParseCapsMalformed(t *testing.T) {
	for _, text := range []string{", format=YUY2", "video/x-raw, format", "video/x-raw, format=(string YUY2"} {
		if _, err := ParseCaps(text); err == nil {
			t.Errorf("ParseCaps(%q) succeeded, want error", text)
		}
	}
}

func TestTemplateCaps(t *testing.T) {
	want := "video/x-raw, format=(string)YUY2; video/x-raw, format=(string)I420"
	if got := TemplateCaps().String(); got != want {
		t.Errorf("TemplateCaps = %q, want %q", got, want)
	}
}

//go:build linux

package v4l2

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/sys/unix"
)

// TestErrnoComparison verifies that errors.Is works with unix.Errno, which
// the enumeration loops rely on to detect end of list.
func TestErrnoComparison(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "ENOLINK matches ENOLINK",
			err:      unix.ENOLINK,
			target:   unix.ENOLINK,
			expected: true,
		},
		{
			name:     "ENOLCK matches ENOLCK",
			err:      unix.ENOLCK,
			target:   unix.ENOLCK,
			expected: true,
		},
		{
			name:     "ERANGE matches ERANGE",
			err:      unix.ERANGE,
			target:   unix.ERANGE,
			expected: true,
		},
		{
			name:     "ENOTTY matches ENOTTY",
			err:      unix.ENOTTY,
			target:   unix.ENOTTY,
			expected: true,
		},
		{
			name:     "ENOLINK does not match ENOTTY",
			err:      unix.ENOLINK,
			target:   unix.ENOTTY,
			expected: false,
		},
		{
			name:     "EINVAL matches EINVAL",
			err:      unix.EINVAL,
			target:   unix.EINVAL,
			expected: true,
		},
		{
			name:     "ENODEV matches ENODEV",
			err:      unix.ENODEV,
			target:   unix.ENODEV,
			expected: true,
		},
		{
			name:     "ENXIO matches ENXIO",
			err:      unix.ENXIO,
			target:   unix.ENXIO,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errors.Is(tt.err, tt.target)
			if result != tt.expected {
				t.Errorf("errors.Is(%v, %v) = %v, want %v",
					tt.err, tt.target, result, tt.expected)
			}
		})
	}
}

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "YU12 format",
			format:   PixFmtYUV420,
			expected: "YU12",
		},
		{
			name:     "NV12 format",
			format:   PixFmtNV12,
			expected: "NV12",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "all 0xFF bytes",
			format:   0xFFFFFFFF,
			expected: "\xFF\xFF\xFF\xFF",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{
			name:        "60 fps (1/60)",
			framerate:   Framerate{Numerator: 1, Denominator: 60},
			expectedFPS: 60.0,
		},
		{
			name:        "30 fps (1/30)",
			framerate:   Framerate{Numerator: 1, Denominator: 30},
			expectedFPS: 30.0,
		},
		{
			name:        "29.97 fps (1001/30000)",
			framerate:   Framerate{Numerator: 1001, Denominator: 30000},
			expectedFPS: 30000.0 / 1001.0, // ~29.97
		},
		{
			name:        "25 fps (1/25)",
			framerate:   Framerate{Numerator: 1, Denominator: 25},
			expectedFPS: 25.0,
		},
		{
			name:        "zero numerator returns 0",
			framerate:   Framerate{Numerator: 0, Denominator: 60},
			expectedFPS: 0.0,
		},
		{
			name:        "zero denominator with non-zero numerator",
			framerate:   Framerate{Numerator: 1, Denominator: 0},
			expectedFPS: 0.0, // Division by numerator=1 gives 0/1=0
		},
		{
			name:        "both zero",
			framerate:   Framerate{Numerator: 0, Denominator: 0},
			expectedFPS: 0.0,
		},
		{
			name:        "large values",
			framerate:   Framerate{Numerator: 1000000, Denominator: 60000000},
			expectedFPS: 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			// Use approximate comparison for floating point
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("Framerate{%d, %d}.FPS() = %f, want %f",
					tt.framerate.Numerator, tt.framerate.Denominator,
					result, tt.expectedFPS)
			}
		})
	}
}

func TestMaxFPS(t *testing.T) {
	tests := []struct {
		name  string
		rates []Framerate
		want  uint32
	}{
		{"empty", nil, 0},
		{"discrete", []Framerate{{1, 15}, {1, 30}, {1, 5}}, 30},
		{"ntsc rounds down", []Framerate{{1001, 30000}}, 29},
		{"zero numerator skipped", []Framerate{{0, 60}, {1, 10}}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxFPS(tt.rates); got != tt.want {
				t.Errorf("MaxFPS = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStepwiseResolutions(t *testing.T) {
	s := &v4l2FrmsizeStepwise{minWidth: 320, maxWidth: 1280, stepWidth: 16, minHeight: 240, maxHeight: 720, stepHeight: 16}

	got := stepwiseResolutions(s)
	want := []Resolution{{320, 240}, {640, 480}, {800, 600}, {1280, 720}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resolution %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSyntheticID(t *testing.T) {
	tests := []struct {
		bus  string
		want string
	}{
		{"usb-0000:00:14.0-1", "usb-0000:00:14.0-1-video-index0"},
		{"platform:rkcif", "platform-platform:rkcif-video-index0"},
	}
	for _, tt := range tests {
		if got := syntheticID(tt.bus, 0); got != tt.want {
			t.Errorf("syntheticID(%q) = %q, want %q", tt.bus, got, tt.want)
		}
	}
}

func TestCstr(t *testing.T) {
	if got := cstr([]byte{'u', 'v', 'c', 0, 'x'}); got != "uvc" {
		t.Errorf("cstr = %q, want uvc", got)
	}
	if got := cstr([]byte("full")); got != "full" {
		t.Errorf("cstr = %q, want full", got)
	}
}

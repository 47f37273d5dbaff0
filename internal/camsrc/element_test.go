package camsrc

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/smazurov/camsrc/internal/device"
	"github.com/smazurov/camsrc/internal/events"
	"github.com/smazurov/camsrc/pkg/capturefw"
	"github.com/smazurov/camsrc/pkg/capturefw/fake"
)

// vga is the YUY2 entry of fake.DefaultFormats.
var vga = Format{Layout: LayoutPacked422, Width: 640, Height: 480, FrameRate: Fraction{30, 1}}

func newTestElement(t *testing.T, b *fake.Backend, opts ...Option) *Element {
	t.Helper()
	opts = append([]Option{WithName(t.Name()), WithRegistry(device.NewRegistry())}, opts...)
	e := New(b.Opener(), opts...)
	t.Cleanup(func() { _ = e.SetState(StateNull) })
	return e
}

func mustSetState(t *testing.T, e *Element, s State) {
	t.Helper()
	if err := e.SetState(s); err != nil {
		t.Fatalf("SetState(%s): %v", s, err)
	}
}

func TestElement_OpenClose(t *testing.T) {
	b := fake.New()
	e := newTestElement(t, b)

	mustSetState(t, e, StateReady)
	if e.Status().SessionID == "" {
		t.Error("expected a session id after open")
	}
	mustSetState(t, e, StateNull)

	want := []string{
		"framework.open",
		"framework.create",
		"stream.stop",
		"stream.finalize",
		"device.finalize",
		"queue.free",
		"framework.close",
	}
	if got := b.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v\nwant %v", got, want)
	}
	if e.Caps() != nil {
		t.Error("Caps after close should be nil")
	}
}

func TestElement_OpenFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(b *fake.Backend)
		check     func(t *testing.T, err error)
		wantCalls []string
	}{
		{
			name:  "framework unavailable",
			setup: func(b *fake.Backend) { b.OpenErr = errors.New("no framework") },
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Errorf("err = %v, want *APIError", err)
				}
			},
			wantCalls: []string{},
		},
		{
			name:  "device busy",
			setup: func(b *fake.Backend) { b.CreateErr = capturefw.StatusResourceBusy },
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrResourceBusy) {
					t.Errorf("err = %v, want ErrResourceBusy", err)
				}
			},
			wantCalls: []string{"framework.open", "framework.close"},
		},
		{
			name:  "device gone",
			setup: func(b *fake.Backend) { b.CreateErr = capturefw.StatusDeviceGone },
			check: func(t *testing.T, err error) {
				var devErr *UnexpectedDeviceError
				if !errors.As(err, &devErr) {
					t.Fatalf("err = %v, want *UnexpectedDeviceError", err)
				}
				if devErr.Status != capturefw.StatusDeviceGone {
					t.Errorf("Status = %d, want %d", devErr.Status, capturefw.StatusDeviceGone)
				}
			},
			wantCalls: []string{"framework.open", "framework.close"},
		},
		{
			name:  "no queue",
			setup: func(b *fake.Backend) { b.QueueErr = capturefw.StatusNotStreaming },
			check: func(t *testing.T, err error) {
				var devErr *UnexpectedDeviceError
				if !errors.As(err, &devErr) {
					t.Errorf("err = %v, want *UnexpectedDeviceError", err)
				}
			},
			wantCalls: []string{
				"framework.open",
				"framework.create",
				"stream.finalize",
				"queue.free",
				"device.finalize",
				"framework.close",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fake.New()
			tt.setup(b)
			reg := device.NewRegistry()
			e := New(b.Opener(), WithName("src"), WithRegistry(reg))

			err := e.SetState(StateReady)
			if err == nil {
				t.Fatal("expected open to fail")
			}
			tt.check(t, err)

			if e.State() != StateNull {
				t.Errorf("State = %s, want null", e.State())
			}
			if got := b.Calls(); !reflect.DeepEqual(got, tt.wantCalls) {
				t.Errorf("calls = %v\nwant %v", got, tt.wantCalls)
			}

			// The device slot must be free again.
			lease, err := reg.Checkout(DefaultDeviceID, "checker")
			if err != nil {
				t.Fatalf("device still checked out: %v", err)
			}
			lease.Release()
		})
	}
}

func TestElement_SecondElementBusy(t *testing.T) {
	reg := device.NewRegistry()
	bus := events.New()
	errs := make(chan events.ElementErrorEvent, 4)
	unsub := events.SubscribeToChannel[events.ElementErrorEvent](bus, errs)
	defer unsub()

	first := New(fake.New().Opener(), WithName("first"), WithRegistry(reg))
	second := New(fake.New().Opener(), WithName("second"), WithRegistry(reg), WithBus(bus))
	defer func() { _ = first.SetState(StateNull) }()

	mustSetState(t, first, StateReady)

	err := second.SetState(StateReady)
	if !errors.Is(err, ErrResourceBusy) {
		t.Fatalf("err = %v, want ErrResourceBusy", err)
	}
	if !errors.Is(err, device.ErrBusy) {
		t.Errorf("err = %v, want wrapped device.ErrBusy", err)
	}

	select {
	case ev := <-errs:
		if ev.Element != "second" || ev.Domain != events.DomainResource || ev.Code != events.CodeBusy {
			t.Errorf("unexpected error event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event published")
	}

	mustSetState(t, first, StateNull)
	if err := second.SetState(StateReady); err != nil {
		t.Fatalf("open after release: %v", err)
	}
	_ = second.SetState(StateNull)
}

func TestElement_StateEvents(t *testing.T) {
	bus := events.New()
	changes := make(chan events.StateChangedEvent, 8)
	unsub := events.SubscribeToChannel[events.StateChangedEvent](bus, changes)
	defer unsub()

	e := newTestElement(t, fake.New(), WithBus(bus))
	mustSetState(t, e, StateStreaming)
	mustSetState(t, e, StateNull)

	want := []string{"null>ready", "ready>streaming", "streaming>ready", "ready>null"}
	for i, w := range want {
		select {
		case ev := <-changes:
			if got := ev.From + ">" + ev.To; got != w {
				t.Errorf("event %d = %s, want %s", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing state event %d (%s)", i, w)
		}
	}
}

func TestElement_Caps(t *testing.T) {
	b := fake.New()
	e := newTestElement(t, b)

	if e.Caps() != nil {
		t.Fatal("Caps before open should be nil")
	}
	mustSetState(t, e, StateReady)

	formats := e.Formats()
	if len(formats) != 3 {
		t.Fatalf("len(formats) = %d, want 3", len(formats))
	}
	seen := make(map[int]bool)
	for _, f := range formats {
		if seen[f.Index] {
			t.Errorf("duplicate index %d", f.Index)
		}
		seen[f.Index] = true
	}
	if !seen[0] || seen[1] || !seen[2] || !seen[3] {
		t.Errorf("indices = %v, want 0, 2 and 3", seen)
	}

	caps := e.Caps()
	if len(caps) != len(formats) {
		t.Errorf("len(caps) = %d, want %d", len(caps), len(formats))
	}
	if got := caps[0].String(); got != vga.Structure().String() {
		t.Errorf("caps[0] = %q", got)
	}
}

func TestElement_CapsQueryFailure(t *testing.T) {
	b := fake.New()
	b.FormatsErr = capturefw.StatusDeviceGone
	e := newTestElement(t, b)
	mustSetState(t, e, StateReady)

	caps := e.Caps()
	if caps == nil || len(caps) != 0 {
		t.Fatalf("Caps = %v, want empty", caps)
	}
	if err := e.Negotiate(Caps{vga.Structure()}); !errors.Is(err, ErrFormatNotSupported) {
		t.Errorf("err = %v, want ErrFormatNotSupported", err)
	}
}

func TestElement_Properties(t *testing.T) {
	e := newTestElement(t, fake.New())

	if err := e.SetProperty(PropertyDoStats, true); err != nil {
		t.Fatalf("SetProperty(do-stats): %v", err)
	}
	if v, _ := e.Property(PropertyDoStats); v != true {
		t.Errorf("do-stats = %v, want true", v)
	}
	if err := e.SetProperty(PropertyDoStats, "yes"); err == nil {
		t.Error("expected type error for do-stats")
	}
	if err := e.SetProperty("bogus", 1); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("err = %v, want ErrUnknownProperty", err)
	}
	if err := e.SetProperty(PropertyDevice, "cam1"); err != nil {
		t.Fatalf("SetProperty(device): %v", err)
	}

	mustSetState(t, e, StateReady)
	if err := e.SetProperty(PropertyDevice, "cam2"); !errors.Is(err, ErrReadOnlyProperty) {
		t.Errorf("err = %v, want ErrReadOnlyProperty", err)
	}
	if v, _ := e.Property(PropertyDevice); v != "cam1" {
		t.Errorf("device = %v, want cam1", v)
	}
}

func TestParseState(t *testing.T) {
	for _, s := range []State{StateNull, StateReady, StateStreaming} {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Errorf("ParseState(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseState("paused"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestSetStateOutOfRange(t *testing.T) {
	e := newTestElement(t, fake.New())
	if err := e.SetState(State(7)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if e.State() != StateNull {
		t.Errorf("State = %s, want null", e.State())
	}
}

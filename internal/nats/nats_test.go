package nats

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/smazurov/camsrc/internal/camsrc"
	"github.com/smazurov/camsrc/internal/device"
	"github.com/smazurov/camsrc/internal/events"
	"github.com/smazurov/camsrc/pkg/capturefw/fake"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(ServerOptions{Port: server.RANDOM_PORT, Name: "test-server", Logger: quietLogger()})
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func startBridge(t *testing.T, url string) (*Bridge, *camsrc.Element, *events.Bus) {
	t.Helper()
	bus := events.New()
	e := camsrc.New(fake.New().Opener(),
		camsrc.WithName("cam0"),
		camsrc.WithRegistry(device.NewRegistry()),
		camsrc.WithBus(bus),
	)
	t.Cleanup(func() { _ = e.SetState(camsrc.StateNull) })

	b := NewBridge(url, bus, e, quietLogger())
	if err := b.Start(); err != nil {
		t.Fatalf("Failed to start bridge: %v", err)
	}
	t.Cleanup(b.Stop)
	return b, e, bus
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(ServerOptions{Port: server.RANDOM_PORT, Logger: quietLogger()})
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !s.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if s.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
}

func TestBridgeUnreachable(t *testing.T) {
	e := camsrc.New(fake.New().Opener(), camsrc.WithName("cam0"), camsrc.WithRegistry(device.NewRegistry()))
	b := NewBridge("nats://127.0.0.1:59999", events.New(), e, quietLogger())
	if err := b.Start(); err == nil {
		b.Stop()
		t.Fatal("Start should fail without a server")
	}
	if b.IsConnected() {
		t.Error("bridge should not be connected")
	}
}

func TestBridgeForwardsEvents(t *testing.T) {
	s := startServer(t)
	b, e, bus := startBridge(t, s.ClientURL())
	if !b.IsConnected() {
		t.Fatal("bridge should be connected")
	}

	conn, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	states, err := conn.SubscribeSync(SubjectElementState("cam0"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	devices, err := conn.SubscribeSync(SubjectDevices)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := e.SetState(camsrc.StateReady); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	msg, err := states.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("no state message: %v", err)
	}
	var changed events.StateChangedEvent
	if err := json.Unmarshal(msg.Data, &changed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if changed.From != "null" || changed.To != "ready" {
		t.Errorf("state event = %+v", changed)
	}

	bus.Publish(events.DeviceEvent{Action: "remove", Node: "/dev/video0"})
	msg, err = devices.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("no device message: %v", err)
	}
	var dev events.DeviceEvent
	if err := json.Unmarshal(msg.Data, &dev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dev.Node != "/dev/video0" || dev.Action != "remove" {
		t.Errorf("device event = %+v", dev)
	}
}

func TestControl(t *testing.T) {
	s := startServer(t)
	_, e, _ := startBridge(t, s.ClientURL())

	client, err := Dial(s.ClientURL(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	tests := []struct {
		name      string
		msg       ControlMessage
		wantErr   bool
		wantState string
	}{
		{"open", ControlMessage{Action: ActionState, State: "ready"}, false, "ready"},
		{"unlock", ControlMessage{Action: ActionUnlock, Reason: "test"}, false, "ready"},
		{"unlock stop", ControlMessage{Action: ActionUnlockStop}, false, "ready"},
		{"bad state", ControlMessage{Action: ActionState, State: "paused"}, true, "ready"},
		{"unknown action", ControlMessage{Action: "restart"}, true, "ready"},
		{"close", ControlMessage{Action: ActionState, State: "null"}, false, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := client.Control("cam0", tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if reply.OK == tt.wantErr {
				t.Errorf("reply = %+v", reply)
			}
			if reply.State != tt.wantState {
				t.Errorf("State = %q, want %q", reply.State, tt.wantState)
			}
		})
	}

	if e.State() != camsrc.StateNull {
		t.Errorf("element state = %s, want null", e.State())
	}
}

func TestControlNoResponder(t *testing.T) {
	s := startServer(t)

	client, err := Dial(s.ClientURL(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Control("missing", ControlMessage{Action: ActionUnlock}); err == nil {
		t.Error("expected error without a bridge")
	}
}

func TestSubjects(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{SubjectElementState("cam0"), "camsrc.elements.cam0.state"},
		{SubjectElementErrors("cam0"), "camsrc.elements.cam0.errors"},
		{SubjectElementFormat("cam0"), "camsrc.elements.cam0.format"},
		{SubjectElementStream("cam0"), "camsrc.elements.cam0.stream"},
		{SubjectControl("cam0"), "camsrc.control.cam0"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("subject = %q, want %q", tt.got, tt.want)
		}
	}
}

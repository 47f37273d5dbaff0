package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type sourceOptions struct {
	Config string `help:"Config file path"`

	Port          int           `toml:"server.port" env:"PORT"`
	SourceBackend string        `toml:"source.backend" env:"SOURCE_BACKEND"`
	SourceDevice  string        `toml:"source.device" env:"SOURCE_DEVICE"`
	SourceDoStats bool          `toml:"source.do_stats" env:"SOURCE_DO_STATS"`
	SourceTimeout time.Duration `toml:"source.timeout" env:"SOURCE_TIMEOUT"`
	SourceCaps    []string      `toml:"source.caps" env:"SOURCE_CAPS"`
}

const sampleConfig = `
[server]
port = 9090

[source]
backend = "v4l2"
device = "/dev/video2"
do_stats = true
timeout = "2s"
caps = ["video/x-raw, format=YUY2", "video/x-raw, format=I420"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camsrc.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &sourceOptions{Config: writeConfig(t, sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := sourceOptions{
		Config:        opts.Config,
		Port:          9090,
		SourceBackend: "v4l2",
		SourceDevice:  "/dev/video2",
		SourceDoStats: true,
		SourceTimeout: 2 * time.Second,
		SourceCaps:    []string{"video/x-raw, format=YUY2", "video/x-raw, format=I420"},
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got  %+v\nwant %+v", *opts, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("CAMSRC_SOURCE_DEVICE", "/dev/video0")
	t.Setenv("CAMSRC_SOURCE_DO_STATS", "false")
	t.Setenv("CAMSRC_SOURCE_TIMEOUT", "250ms")
	t.Setenv("CAMSRC_SOURCE_CAPS", " a , b ")

	opts := &sourceOptions{Config: writeConfig(t, sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.SourceDevice != "/dev/video0" {
		t.Errorf("SourceDevice = %q", opts.SourceDevice)
	}
	if opts.SourceDoStats {
		t.Error("SourceDoStats should be overridden to false")
	}
	if opts.SourceTimeout != 250*time.Millisecond {
		t.Errorf("SourceTimeout = %v", opts.SourceTimeout)
	}
	if !reflect.DeepEqual(opts.SourceCaps, []string{"a", "b"}) {
		t.Errorf("SourceCaps = %v", opts.SourceCaps)
	}
	if opts.Port != 9090 {
		t.Errorf("Port = %d, want TOML value 9090", opts.Port)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("CAMSRC_PORT", "7000")

	opts := &sourceOptions{Config: writeConfig(t, sampleConfig)}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.Port, "port", 8090, "")
	cmd.Flags().StringVar(&opts.SourceDevice, "source-device", "", "")
	if err := cmd.Flags().Parse([]string{"--port", "6000"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Port != 6000 {
		t.Errorf("Port = %d, want flag value 6000", opts.Port)
	}
	if opts.SourceDevice != "/dev/video2" {
		t.Errorf("SourceDevice = %q, want TOML value", opts.SourceDevice)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &sourceOptions{Config: filepath.Join(t.TempDir(), "missing.toml"), Port: 8090}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should ignore a missing file: %v", err)
	}
	if opts.Port != 8090 {
		t.Errorf("Port = %d, want default", opts.Port)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"invalid toml", "[source\nbroken", nil},
		{"wrong type", "[server]\nport = \"eighty\"\n", nil},
		{"bad env bool", "", map[string]string{"CAMSRC_SOURCE_DO_STATS": "maybe"}},
		{"bad env duration", "", map[string]string{"CAMSRC_SOURCE_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := &sourceOptions{Config: writeConfig(t, tt.content)}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if err := LoadConfig(sourceOptions{}, nil); err == nil {
		t.Error("expected an error for a non-pointer")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"source": map[string]any{
			"device": "/dev/video0",
			"stats":  map[string]any{"enabled": true},
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"source.device", "/dev/video0"},
		{"source.stats.enabled", true},
		{"missing", nil},
		{"root.child", nil},
		{"source.missing", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":          "port",
		"SourceDevice":  "source-device",
		"SourceDoStats": "source-do-stats",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"

[logging.modules]
camsrc = "debug"
api = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "text" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Modules["camsrc"] != "debug" || cfg.Modules["api"] != "error" {
		t.Errorf("Modules = %v", cfg.Modules)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" {
		t.Errorf("default level = %q", def.Level)
	}
	if def := LoadLoggingConfig(writeConfig(t, "[[[")); def.Level != "info" {
		t.Errorf("level for invalid file = %q", def.Level)
	}
}

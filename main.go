package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/camsrc/cmd"
	"github.com/smazurov/camsrc/internal/api"
	"github.com/smazurov/camsrc/internal/camsrc"
	"github.com/smazurov/camsrc/internal/config"
	"github.com/smazurov/camsrc/internal/device"
	"github.com/smazurov/camsrc/internal/events"
	"github.com/smazurov/camsrc/internal/logging"
	"github.com/smazurov/camsrc/internal/metrics"
	"github.com/smazurov/camsrc/internal/nats"
	"github.com/smazurov/camsrc/internal/systemd"
	"github.com/smazurov/camsrc/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Source settings
	SourceBackend           string `help:"Capture backend (v4l2, fake)" default:"v4l2" toml:"source.backend" env:"SOURCE_BACKEND"`
	SourceDevice            string `help:"V4L2 device node or stable device ID" default:"/dev/video0" toml:"source.device" env:"SOURCE_DEVICE"`
	SourceCaps              string `help:"Caps negotiated at startup; empty leaves the element in ready" default:"" toml:"source.caps" env:"SOURCE_CAPS"`
	SourceBuffers           int    `help:"Number of driver buffers" default:"4" toml:"source.buffers" env:"SOURCE_BUFFERS"`
	SourceDoStats           bool   `help:"Record buffer statistics" default:"false" toml:"source.do_stats" env:"SOURCE_DO_STATS"`
	SourceRollbackOnFailure bool   `help:"Restore device properties when format selection fails" default:"false" toml:"source.rollback_on_failure" env:"SOURCE_ROLLBACK_ON_FAILURE"`

	// Features settings
	FeaturesHotplug bool `help:"Watch for capture devices being added or removed" default:"true" toml:"features.hotplug" env:"FEATURES_HOTPLUG"`
	FeaturesNats    bool `help:"Mirror element events to NATS and accept control requests" default:"false" toml:"features.nats" env:"FEATURES_NATS"`

	// NATS settings
	NatsAddress string `help:"External NATS server URL; empty runs an embedded server" default:"" toml:"nats.url" env:"NATS_URL"`
	NatsPort    int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamsrc  string `help:"Element logging level" default:"info" toml:"logging.modules.camsrc" env:"LOGGING_CAMSRC"`
	LoggingBackend string `help:"V4L2 backend logging level" default:"info" toml:"logging.modules.v4l2cap" env:"LOGGING_BACKEND"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.modules.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP access logging level" default:"info" toml:"logging.modules.http" env:"LOGGING_HTTP"`
}

func main() {
	var root *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camsrc":  opts.LoggingCamsrc,
				"v4l2cap": opts.LoggingBackend,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")
		logger.Info("Starting", "version", version.String())

		ctx, cancel := context.WithCancel(context.Background())

		eventBus := events.New()
		registry := device.NewRegistry()

		opener, err := cmd.NewOpener(ctx, cmd.SourceOptions{
			Backend: opts.SourceBackend,
			Device:  opts.SourceDevice,
			Buffers: uint32(max(opts.SourceBuffers, 1)),
		})
		if err != nil {
			logger.Error("Invalid source configuration", "error", err)
			os.Exit(1)
		}

		element := camsrc.New(opener,
			camsrc.WithName("camsrc0"),
			camsrc.WithRegistry(registry),
			camsrc.WithBus(eventBus),
			camsrc.WithStats(opts.SourceDoStats),
			camsrc.WithRollback(opts.SourceRollbackOnFailure),
		)

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Element:           element,
			Registry:          registry,
			EventBus:          eventBus,
			ListDevices:       cmd.ListDevices,
			PrometheusHandler: metrics.Handler(),
		})

		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		if opts.FeaturesNats {
			natsLogger := logging.GetLogger("nats")
			url := opts.NatsAddress
			if url == "" {
				natsServer = nats.NewServer(nats.ServerOptions{Port: opts.NatsPort, Logger: natsLogger})
				url = natsServer.ClientURL()
			}
			natsBridge = nats.NewBridge(url, eventBus, element, natsLogger)
		}

		var watcher *config.Watcher[config.Runtime]
		if opts.Config != "" {
			if _, statErr := os.Stat(opts.Config); statErr == nil {
				watcher = config.NewConfigWatcher(opts.Config, config.LoadRuntime, logging.GetLogger("config"))
				watcher.OnReload(func(rt config.Runtime) {
					applyRuntime(element, rt, logger)
				})
			}
		}

		hooks.OnStart(func() {
			if watcher != nil {
				if startErr := watcher.Start(ctx); startErr != nil {
					logger.Warn("Config hot reload disabled", "error", startErr)
				}
			}

			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start NATS server", "error", startErr)
					natsBridge = nil
				}
			}
			if natsBridge != nil {
				if startErr := natsBridge.Start(); startErr != nil {
					logger.Warn("NATS bridge unavailable", "error", startErr)
					natsBridge = nil
				}
			}

			if opts.FeaturesHotplug && opts.SourceBackend != cmd.BackendFake {
				go func() {
					watchErr := cmd.WatchDevices(ctx, eventBus, opts.SourceDevice, func() {
						logger.Warn("Active capture device removed", "device", opts.SourceDevice)
						element.Unlock()
					})
					if watchErr != nil && !errors.Is(watchErr, context.Canceled) {
						logger.Warn("Device hotplug monitoring stopped", "error", watchErr)
					}
				}()
			}

			if opts.SourceCaps != "" {
				go runSource(ctx, element, opts.SourceCaps, logger)
			}

			go func() {
				healthy := func() bool {
					return opts.SourceCaps == "" || element.State() == camsrc.StateStreaming
				}
				if wdErr := systemd.Watchdog(ctx, healthy); wdErr != nil {
					logger.Warn("Systemd watchdog stopped", "error", wdErr)
				}
			}()
			if _, notifyErr := systemd.Ready(); notifyErr != nil {
				logger.Debug("Systemd notification failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = systemd.Stopping()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if stopErr := server.Stop(shutdownCtx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			cancel()
			if natsBridge != nil {
				natsBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}

			element.Unlock()
			if stateErr := element.SetState(camsrc.StateNull); stateErr != nil {
				logger.Error("Error closing element", "error", stateErr)
			}
		})
	})

	root = cli.Root()
	root.Use = "camsrc"
	root.Version = version.String()
	for _, c := range cmd.Commands() {
		root.AddCommand(c)
	}

	cli.Run()
}

// applyRuntime pushes reloaded settings into the logging system and the
// running element.
func applyRuntime(element *camsrc.Element, rt config.Runtime, logger *slog.Logger) {
	logging.SetLevels(rt.Logging.Level, rt.Logging.Modules)
	if err := element.SetProperty(camsrc.PropertyDoStats, rt.Source.DoStats); err != nil {
		logger.Warn("Failed to apply do-stats", "error", err)
	}
	if err := element.SetProperty(camsrc.PropertyRollbackOnFailure, rt.Source.RollbackOnFailure); err != nil {
		logger.Warn("Failed to apply rollback-on-failure", "error", err)
	}
	logger.Info("Runtime configuration applied", "level", rt.Logging.Level, "do_stats", rt.Source.DoStats)
}

// runSource negotiates caps and drains the element until ctx is done, so
// statistics and events flow without an external consumer.
func runSource(ctx context.Context, element *camsrc.Element, caps string, logger *slog.Logger) {
	f, err := cmd.StartElement(element, caps)
	if err != nil {
		logger.Error("Failed to start source", "caps", caps, "error", err)
		return
	}
	logger.Info("Source streaming", "format", f.String())
	_, _ = systemd.Status("streaming %s", f)

	for {
		buf, err := element.Create(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, camsrc.ErrShuttingDown) {
				logger.Info("Source unlocked, pull loop stopped")
				return
			}
			logger.Error("Pull failed", "error", err)
			return
		}
		buf.Unref()
	}
}

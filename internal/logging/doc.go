// Package logging provides structured logging with per-module log levels.
//
// Records are routed to stdout (text or json) when it is connected, to the
// systemd journal when journald is running, and always to an in-memory
// history served by the diagnostics API.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camsrc": "debug",
//			"api":    "warn",
//		},
//	})
//
// and get a logger per module:
//
//	logger := logging.GetLogger("camsrc").With("element", name)
//	logger.Info("Format selected", "format", f)
//
// Levels can be changed later with SetLevels; loggers already handed out
// follow the change.
//
// Journal entries carry SYSLOG_IDENTIFIER=camsrc:
//
//	journalctl -t camsrc -f
//	journalctl -t camsrc MODULE=camsrc ELEMENT=camsrc0
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	camsrc = "debug"
package logging

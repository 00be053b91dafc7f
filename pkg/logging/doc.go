// Package logging's companion file to logging.go: package-level
// documentation only, kept separate so logging.go stays focused on the
// logger constructors themselves.
//
// # Overview
//
// This package wraps the standard library slog package with qmemd-specific
// defaults: structured JSON logging to stderr, module/version context on
// every record, and an environment-controlled level (LOG_LEVEL).
//
// # Usage
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("qmemd", version)
//	    slog.Info("tick scheduler starting", "interval", interval)
//	}
//
// Explicit level, bypassing LOG_LEVEL:
//
//	logging.SetDefaultStructuredLoggerWithLevel("qmemd", version, "debug")
//
// Adapting to a standard library logger, e.g. for net/http.Server.ErrorLog:
//
//	stdLogger := logging.NewLogLogger(slog.LevelWarn, false)
//
// # Output
//
// Records are JSON on stderr:
//
//	{"time":"2026-07-31T10:30:00Z","level":"INFO","msg":"tick complete","module":"qmemd","version":"dev","tick":42}
//
// Debug-level records additionally carry a "source" field with the call
// site's function/file/line.
//
// # Integration
//
// Used by cmd/qmemd at startup, and by every package that
// logs through the slog default (pkg/manager, pkg/scheduler, pkg/plugin,
// pkg/ipc, pkg/httpapi).
package logging

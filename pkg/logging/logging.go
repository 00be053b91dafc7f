package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// NewStructuredLogger returns a *slog.Logger that writes JSON to stderr,
// tagging every record with module and version attributes. level is
// parsed case-insensitively (debug/info/warn/warning/error); an
// unrecognized value falls back to info. Debug-level records include
// the call site's source location.
func NewStructuredLogger(module, version, level string) *slog.Logger {
	lvl := parseLevel(level)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(h).With(slog.String("module", module), slog.String("version", version))
}

// SetDefaultStructuredLogger installs a structured logger for module at
// the level named by the LOG_LEVEL environment variable (defaulting to
// info when unset or unrecognized) as the slog default.
func SetDefaultStructuredLogger(module, version string) {
	SetDefaultStructuredLoggerWithLevel(module, version, os.Getenv("LOG_LEVEL"))
}

// SetDefaultStructuredLoggerWithLevel installs a structured logger for
// module at the given explicit level as the slog default, ignoring
// LOG_LEVEL.
func SetDefaultStructuredLoggerWithLevel(module, version, level string) {
	slog.SetDefault(NewStructuredLogger(module, version, level))
}

// NewLogLogger adapts the current default slog logger to a standard
// library *log.Logger at the given level, for dependencies (notably
// net/http.Server.ErrorLog) that require one. withSource does not change
// the result: a record carries a source location only when the default
// handler adds one itself (at debug level, see NewStructuredLogger).
func NewLogLogger(level slog.Level, withSource bool) *log.Logger {
	h := slog.Default().Handler()
	if withSource {
		return slog.NewLogLogger(h, level)
	}
	return slog.NewLogLogger(h, level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "INFO", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

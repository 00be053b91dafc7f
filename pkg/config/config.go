// Package config loads the daemon's two config surfaces (SPEC_FULL.md §10):
// daemon-wide settings from QMEMD_*-prefixed environment variables, in the
// teacher's pkg/server/config.go style, and optional per-collector tuning
// from a YAML file via gopkg.in/yaml.v3, mirroring
// original_source/src/daemon/config.c's [daemon]/[thresholds]/[services]/
// [web]/[history] sections.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qscuio/qmemd/pkg/collector"
)

// Daemon holds process-wide settings read from the environment.
// original_source/src/daemon/config.c's [daemon] section, minus the
// pidfile/foreground flags a systemd-managed service doesn't need.
type Daemon struct {
	Interval       time.Duration
	SocketPath     string
	PluginDir      string
	EnablePlugins  bool
	HTTPListenAddr string
	HistoryDepth   int
	LogLevel       string
}

// defaultDaemon mirrors config_init_defaults's daemon-wide fields.
func defaultDaemon() Daemon {
	return Daemon{
		Interval:       10 * time.Second,
		SocketPath:     "/run/qmemd.sock",
		PluginDir:      "/usr/lib/qmemd/plugins",
		EnablePlugins:  true,
		HTTPListenAddr: "0.0.0.0:8080",
		HistoryDepth:   360,
		LogLevel:       "",
	}
}

// LoadDaemon reads Daemon settings from defaults overridden by QMEMD_*
// environment variables, matching pkg/server/config.go's
// override-if-set pattern.
func LoadDaemon() Daemon {
	d := defaultDaemon()

	if v := os.Getenv("QMEMD_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			d.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("QMEMD_SOCKET_PATH"); v != "" {
		d.SocketPath = v
	}
	if v := os.Getenv("QMEMD_PLUGIN_DIR"); v != "" {
		d.PluginDir = v
	}
	if v := os.Getenv("QMEMD_ENABLE_PLUGINS"); v != "" {
		d.EnablePlugins = parseBool(v)
	}
	if v := os.Getenv("QMEMD_HTTP_LISTEN_ADDR"); v != "" {
		d.HTTPListenAddr = v
	}
	if v := os.Getenv("QMEMD_HISTORY_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.HistoryDepth = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		d.LogLevel = v
	}
	return d
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// Collectors is the optional YAML document overriding per-collector
// tuning (SPEC_FULL.md §10), keyed by collector name. A name absent
// from the file keeps its own hardcoded default.
type Collectors struct {
	Collectors map[string]CollectorTuning `yaml:"collectors"`
}

// CollectorTuning mirrors config.c's [thresholds]/[services] fields,
// scoped per collector instead of by a fixed handful of names.
type CollectorTuning struct {
	Enabled  *bool  `yaml:"enabled"`
	TopN     int    `yaml:"top_n"`
	MinDelta int64  `yaml:"min_delta"`
}

// LoadCollectors reads path as YAML. A missing file is not an error --
// config.c's config_load logs and falls back to defaults rather than
// failing the daemon's startup.
func LoadCollectors(path string) (Collectors, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Collectors{}, nil
		}
		return Collectors{}, fmt.Errorf("read collector config %q: %w", path, err)
	}
	var c Collectors
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return Collectors{}, fmt.Errorf("parse collector config %q: %w", path, err)
	}
	return c, nil
}

// Apply overrides rec's enabled flag and builds the collector.Config
// Init receives, folding in any tuning this collector's name has in
// the loaded YAML document.
func (c Collectors) Apply(name string, base collector.Config) (collector.Config, bool) {
	enabled := true
	cfg := base
	cfg.Name = name

	if t, ok := c.Collectors[name]; ok {
		if t.Enabled != nil {
			enabled = *t.Enabled
		}
		if t.TopN > 0 {
			cfg.TopN = t.TopN
		}
		if t.MinDelta > 0 {
			cfg.MinDelta = t.MinDelta
		}
	}
	return cfg, enabled
}

// Command qmemd is the sampling daemon: it wires the Service Manager, Tick
// Scheduler, History Ring, Plugin Loader, IPC Server, and HTTP surface
// together and runs them until terminated. Adapted from the teacher's
// pkg/server/server.go Run/errgroup/signal.NotifyContext shutdown idiom,
// generalized from one HTTP server to this daemon's four concurrent
// subsystems.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/collectors"
	qconfig "github.com/qscuio/qmemd/pkg/config"
	"github.com/qscuio/qmemd/pkg/history"
	"github.com/qscuio/qmemd/pkg/httpapi"
	"github.com/qscuio/qmemd/pkg/ipc"
	"github.com/qscuio/qmemd/pkg/logging"
	"github.com/qscuio/qmemd/pkg/manager"
	"github.com/qscuio/qmemd/pkg/plugin"
	"github.com/qscuio/qmemd/pkg/qmemerrors"
	"github.com/qscuio/qmemd/pkg/scheduler"
)

// version is set at build time via -ldflags; "dev" when built plainly.
var version = "dev"

func main() {
	logging.SetDefaultStructuredLogger("qmemd", version)

	if err := run(); err != nil {
		slog.Error("qmemd exiting with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	daemonCfg := qconfig.LoadDaemon()
	if daemonCfg.LogLevel != "" {
		logging.SetDefaultStructuredLoggerWithLevel("qmemd", version, daemonCfg.LogLevel)
	}

	collectorCfgPath := os.Getenv("QMEMD_CONFIG_FILE")
	if collectorCfgPath == "" {
		collectorCfgPath = "/etc/qmemd/qmemd.yaml"
	}
	collectorOverrides, err := qconfig.LoadCollectors(collectorCfgPath)
	if err != nil {
		return fmt.Errorf("load collector config: %w", err)
	}

	mgr := manager.New()
	for _, rec := range collectors.Default() {
		cfg, enabled := collectorOverrides.Apply(rec.Name, collector.Config{})
		rec.Enabled = enabled
		if err := mgr.Register(rec, cfg); err != nil {
			return fmt.Errorf("register collector %q: %w", rec.Name, err)
		}
	}

	hist := history.NewRing(daemonCfg.HistoryDepth)

	var loader *plugin.Loader
	var pluginEvents scheduler.PluginEvents
	if daemonCfg.EnablePlugins {
		loader = plugin.NewLoader(daemonCfg.PluginDir, mgr, collector.Config{})
		if _, err := loader.LoadAll(); err != nil {
			slog.Warn("initial plugin load failed", slog.String("error", err.Error()))
		}
		if err := loader.StartWatcher(); err != nil {
			slog.Warn("plugin directory watcher unavailable", slog.String("error", err.Error()))
		}
		pluginEvents = loader
	}

	sched := scheduler.New(daemonCfg.Interval, 0, mgr, hist, pluginEvents)

	ipcServer, err := newIPCServer(daemonCfg.SocketPath, sched, mgr, hist)
	if err != nil {
		return qmemerrors.Wrap(qmemerrors.CodeFatal, "start ipc server", err)
	}

	httpServer := httpapi.New(httpapi.DefaultConfig(daemonCfg.HTTPListenAddr), sched)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// serveCtx is canceled whenever sched.Run returns, for any reason --
	// an OS signal via gctx, or a scheduler shutdown requested over IPC
	// (ipc/server.go's SHUTDOWN handler, which only closes the
	// scheduler's own shutdown channel and never touches gctx). Handing
	// serveCtx rather than gctx to the IPC and HTTP servers is what lets
	// an IPC-issued SHUTDOWN actually unblock their Accept/ListenAndServe
	// loops and let g.Wait return (spec §8 scenario 6).
	serveCtx, cancelServe := context.WithCancel(gctx)
	defer cancelServe()

	g.Go(func() error {
		defer cancelServe()
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return ipcServer.Serve(serveCtx)
	})
	g.Go(func() error {
		return httpServer.Run(serveCtx)
	})

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		g.Go(func() error {
			return runWatchdog(serveCtx, interval/2)
		})
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Debug("systemd notify READY failed (likely not running under systemd)", slog.String("error", err.Error()))
	}

	runErr := g.Wait()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		slog.Debug("systemd notify STOPPING failed", slog.String("error", err.Error()))
	}
	mgr.Shutdown()
	if loader != nil {
		loader.Close()
	}

	return runErr
}

// runWatchdog pings systemd's watchdog at period until ctx is canceled,
// keeping the service alive past its WatchdogSec setting as long as this
// process is still scheduling ticks.
func runWatchdog(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = time.Second
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				slog.Debug("systemd watchdog ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

// newIPCServer binds the socket, preferring one handed down via systemd
// socket activation (LISTEN_FDS) when present, falling back to binding
// path directly otherwise.
func newIPCServer(path string, snapshots ipc.SnapshotSource, services ipc.ServicesLister, hist *history.Ring) (*ipc.Server, error) {
	listeners, err := activation.Listeners()
	if err == nil && len(listeners) > 0 {
		if ln, ok := listeners[0].(*net.UnixListener); ok {
			return ipc.NewServerFromListener(ln, snapshots, services, hist), nil
		}
	}
	return ipc.NewServer(path, snapshots, services, hist)
}

// Package scheduler implements the Tick Scheduler (spec §4.5): a single
// cooperative loop that drives the Service Manager on a fixed cadence,
// publishes the resulting snapshot, pushes it into the History Ring, and
// applies plugin load/unload events at tick boundaries only.
//
// Grounded on the ticker-driven poll loop in
// _examples/other_examples' theirongolddev-cburn daemon/service.go (seed
// snapshot before the loop, select over ticker/ctx.Done/errCh) and on the
// teacher's graceful-shutdown idiom in pkg/server/server.go.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/history"
	"github.com/qscuio/qmemd/pkg/manager"
	"github.com/qscuio/qmemd/pkg/metrics"
)

// PluginEvents is the narrow surface the Scheduler needs from the Plugin
// Loader: pending directory-watch events, applied only between ticks
// (spec §4.7's "Events are processed only at tick boundaries").
type PluginEvents interface {
	Drain() []func()
}

// Scheduler drives the sampling loop.
type Scheduler struct {
	Interval    time.Duration
	MaxDocBytes int
	Manager     *manager.Manager
	History     *history.Ring
	Plugins     PluginEvents

	tick    atomic.Uint64
	current atomic.Pointer[[]byte]

	shutdownCh chan struct{}
	reloadCh   chan struct{}
}

// New returns a Scheduler ready to Run.
func New(interval time.Duration, maxDocBytes int, mgr *manager.Manager, hist *history.Ring, plugins PluginEvents) *Scheduler {
	return &Scheduler{
		Interval:    interval,
		MaxDocBytes: maxDocBytes,
		Manager:     mgr,
		History:     hist,
		Plugins:     plugins,
		shutdownCh:  make(chan struct{}),
		reloadCh:    make(chan struct{}, 1),
	}
}

// Current returns the most recently published snapshot document, or nil
// before the first tick completes.
func (s *Scheduler) Current() []byte {
	p := s.current.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Tick returns the number of ticks completed so far.
func (s *Scheduler) Tick() uint64 { return s.tick.Load() }

// RequestShutdown breaks the Run loop at the next check point (within
// <=1s, per spec §4.5/§5).
func (s *Scheduler) RequestShutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// RequestReload flags a reload for the next tick boundary, where Run logs
// it. Configuration is not re-read and no collector is enabled or
// disabled by it.
func (s *Scheduler) RequestReload() {
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// Run executes the sampling loop until ctx is canceled or RequestShutdown
// is called. Sleeping between ticks happens in <=1s increments so shutdown
// is never delayed by more than that, regardless of the configured
// interval (spec §4.5).
func (s *Scheduler) Run(ctx context.Context) error {
	s.runTick()

	for {
		if done, err := s.sleepInterval(ctx); done {
			return err
		}

		select {
		case <-s.reloadCh:
			slog.Info("tick scheduler processing reload signal")
		default:
		}

		if s.Plugins != nil {
			for _, apply := range s.Plugins.Drain() {
				apply()
			}
		}

		s.runTick()
	}
}

// sleepInterval sleeps for s.Interval in increments of at most one second,
// re-checking ctx and the shutdown flag between increments. Returns
// done=true if the loop should exit.
func (s *Scheduler) sleepInterval(ctx context.Context) (done bool, err error) {
	remaining := s.Interval
	const step = time.Second
	timer := time.NewTimer(step)
	defer timer.Stop()

	for remaining > 0 {
		wait := step
		if remaining < step {
			wait = remaining
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-s.shutdownCh:
			return true, nil
		case <-timer.C:
			remaining -= wait
		}
	}
	return false, nil
}

func (s *Scheduler) runTick() {
	start := time.Now()
	failures := s.Manager.CollectAll()

	w := document.NewWriter(s.MaxDocBytes)
	tick := s.tick.Add(1)
	s.Manager.SnapshotAll(w, tick, time.Now().Unix())

	var buf []byte
	if w.Overflowed() {
		slog.Warn("snapshot document exceeded size bound, truncated", slog.Uint64("tick", tick))
		// The writer latched mid-document, leaving an unbalanced partial
		// buffer; publish a minimal, well-formed replacement carrying the
		// spec §7 Capacity error's truncation indicator instead.
		tw := document.NewWriter(0)
		tw.BeginObject()
		tw.Key("tick")
		tw.Int64(int64(tick))
		tw.Key("timestamp")
		tw.Int64(time.Now().Unix())
		tw.Key("truncated")
		tw.Bool(true)
		tw.EndObject()
		buf = tw.Bytes()
	} else {
		buf = w.Bytes()
	}
	s.current.Store(&buf)
	s.History.Push(buf, time.Now())

	metrics.TickDuration.Observe(time.Since(start).Seconds())
	metrics.HistoryDepth.Set(float64(s.History.Count()))

	slog.Debug("tick complete",
		slog.Uint64("tick", tick),
		slog.Int("failures", failures),
		slog.Duration("duration", time.Since(start)),
	)
}

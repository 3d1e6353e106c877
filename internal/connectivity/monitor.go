package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeInterval is how often the backend is probed.
const DefaultProbeInterval = 2 * time.Second

// Probe checks whether the backend is reachable. Implemented by
// pgxpool.Pool.Ping.
type Probe func(ctx context.Context) error

// Monitor tracks a binary online/offline state from periodic probes. The
// state flips on the first failed probe and back on the first successful
// one; there is no quality or latency signal. Transition callbacks fire
// once per flip, never per probe.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *zap.SugaredLogger

	online atomic.Bool

	mu        sync.Mutex
	onOnline  []func()
	onOffline []func()
}

// New builds a monitor and evaluates the initial state with one
// synchronous probe, so callers can read Online before Start.
func New(probe Probe, interval time.Duration, logger *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	m := &Monitor{probe: probe, interval: interval, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()
	m.online.Store(probe(ctx) == nil)

	return m
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnTransition registers callbacks for state flips. May be called before
// or after Start.
func (m *Monitor) OnTransition(onOnline, onOffline func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if onOnline != nil {
		m.onOnline = append(m.onOnline, onOnline)
	}
	if onOffline != nil {
		m.onOffline = append(m.onOffline, onOffline)
	}
}

// Start runs the probe loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.probe(probeCtx)
	cancel()

	now := err == nil
	if !m.online.CompareAndSwap(!now, now) {
		return
	}

	m.mu.Lock()
	var callbacks []func()
	if now {
		m.logger.Infow("connection restored, reloading catalog")
		callbacks = append(callbacks, m.onOnline...)
	} else {
		m.logger.Warnw("connection lost", "error", err)
		callbacks = append(callbacks, m.onOffline...)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

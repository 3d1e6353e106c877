package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyProbe struct {
	healthy atomic.Bool
}

func (p *flakyProbe) probe(ctx context.Context) error {
	if p.healthy.Load() {
		return nil
	}
	return errors.New("dial tcp: connection refused")
}

func TestMonitor_InitialState(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		p := &flakyProbe{}
		p.healthy.Store(true)
		m := New(p.probe, time.Second, zap.NewNop().Sugar())
		assert.True(t, m.Online())
	})

	t.Run("Unreachable", func(t *testing.T) {
		p := &flakyProbe{}
		m := New(p.probe, time.Second, zap.NewNop().Sugar())
		assert.False(t, m.Online())
	})
}

func TestMonitor_TransitionsFireOncePerFlip(t *testing.T) {
	p := &flakyProbe{}
	p.healthy.Store(true)
	m := New(p.probe, time.Second, zap.NewNop().Sugar())

	var onlineCalls, offlineCalls atomic.Int32
	m.OnTransition(
		func() { onlineCalls.Add(1) },
		func() { offlineCalls.Add(1) },
	)

	ctx := context.Background()

	// Steady state: repeated healthy probes never fire callbacks.
	m.check(ctx)
	m.check(ctx)
	assert.Equal(t, int32(0), onlineCalls.Load())
	assert.Equal(t, int32(0), offlineCalls.Load())

	// First failure flips to offline once.
	p.healthy.Store(false)
	m.check(ctx)
	m.check(ctx)
	require.False(t, m.Online())
	assert.Equal(t, int32(1), offlineCalls.Load())
	assert.Equal(t, int32(0), onlineCalls.Load())

	// Recovery flips back once.
	p.healthy.Store(true)
	m.check(ctx)
	m.check(ctx)
	require.True(t, m.Online())
	assert.Equal(t, int32(1), onlineCalls.Load())
	assert.Equal(t, int32(1), offlineCalls.Load())
}

func TestMonitor_StartStopsOnCancel(t *testing.T) {
	p := &flakyProbe{}
	p.healthy.Store(true)
	m := New(p.probe, 10*time.Millisecond, zap.NewNop().Sugar())

	var offlineCalls atomic.Int32
	m.OnTransition(nil, func() { offlineCalls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	p.healthy.Store(false)
	require.Eventually(t, func() bool {
		return offlineCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)

	// The loop is gone; flipping the probe back changes nothing.
	p.healthy.Store(true)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, m.Online())
}

package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFeed is an in-memory Feed the tests drive by hand.
type fakeFeed struct {
	mu      sync.Mutex
	events  chan Event
	opens   int
	closes  int
	openErr error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{}
}

func (f *fakeFeed) Open(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	f.events = make(chan Event, 16)
	return f.events, nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes++
	if f.events != nil {
		close(f.events)
		f.events = nil
	}
	return nil
}

func (f *fakeFeed) emit(ev Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- ev
}

func (f *fakeFeed) stats() (opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.closes
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestDispatcher_FeedLifecycle(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	require.False(t, d.Connected())

	// First subscriber opens the feed; the second rides along.
	require.NoError(t, d.Subscribe("a", func(Event) {}))
	require.NoError(t, d.Subscribe("b", func(Event) {}))
	require.True(t, d.Connected())

	opens, closes := feed.stats()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 0, closes)

	// The feed stays open until the last listener leaves.
	d.Unsubscribe("a")
	require.True(t, d.Connected())

	d.Unsubscribe("b")
	waitFor(t, func() bool { return !d.Connected() })

	_, closes = feed.stats()
	assert.Equal(t, 1, closes)
}

func TestDispatcher_OpenFailure(t *testing.T) {
	feed := newFakeFeed()
	feed.openErr = errors.New("listen refused")
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	err := d.Subscribe("a", func(Event) {})
	require.Error(t, err)
	assert.False(t, d.Connected())

	// The handler stays registered; a later Resume retries the feed.
	feed.mu.Lock()
	feed.openErr = nil
	feed.mu.Unlock()

	require.NoError(t, d.Resume())
	assert.True(t, d.Connected())
}

func TestDispatcher_DeliveryOrder(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	var mu sync.Mutex
	var got []string
	record := func(name string) Handler {
		return func(Event) {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
		}
	}

	require.NoError(t, d.Subscribe("first", record("first")))
	require.NoError(t, d.Subscribe("second", record("second")))
	require.NoError(t, d.Subscribe("third", record("third")))

	feed.emit(Event{Table: "products", Type: EventInsert})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})

	mu.Lock()
	assert.Equal(t, []string{"first", "second", "third"}, got)
	mu.Unlock()

	t.Run("ResubscribeKeepsPosition", func(t *testing.T) {
		mu.Lock()
		got = nil
		mu.Unlock()

		require.NoError(t, d.Subscribe("second", record("second-replaced")))
		feed.emit(Event{Table: "products", Type: EventUpdate})

		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 3
		})

		mu.Lock()
		assert.Equal(t, []string{"first", "second-replaced", "third"}, got)
		mu.Unlock()
	})
}

func TestDispatcher_PanicIsolation(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	var mu sync.Mutex
	var delivered []string

	require.NoError(t, d.Subscribe("angry", func(Event) {
		panic("handler exploded")
	}))
	require.NoError(t, d.Subscribe("calm", func(Event) {
		mu.Lock()
		delivered = append(delivered, "calm")
		mu.Unlock()
	}))

	feed.emit(Event{Table: "products", Type: EventDelete})
	feed.emit(Event{Table: "products", Type: EventDelete})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 2
	})
}

func TestDispatcher_PauseResume(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	var count sync.WaitGroup
	var mu sync.Mutex
	received := 0

	require.NoError(t, d.Subscribe("a", func(Event) {
		mu.Lock()
		received++
		mu.Unlock()
		count.Done()
	}))

	count.Add(1)
	feed.emit(Event{Table: "products", Type: EventInsert})
	count.Wait()

	// Paused: events are dropped, not queued.
	d.Pause()
	feed.emit(Event{Table: "products", Type: EventInsert})
	feed.emit(Event{Table: "products", Type: EventInsert})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, received)
	mu.Unlock()

	require.NoError(t, d.Resume())

	count.Add(1)
	feed.emit(Event{Table: "products", Type: EventInsert})
	count.Wait()

	mu.Lock()
	assert.Equal(t, 2, received)
	mu.Unlock()
}

// lingeringFeed hands out a fresh channel per Open and leaves old channels
// alive on Close, modelling a teardown whose reader drains later.
type lingeringFeed struct {
	mu       sync.Mutex
	channels []chan Event
}

func (f *lingeringFeed) Open(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Event, 16)
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *lingeringFeed) Close() error { return nil }

func (f *lingeringFeed) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *lingeringFeed) finish(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.channels[i])
}

func TestDispatcher_StaleReaderDoesNotDropLiveFeed(t *testing.T) {
	feed := &lingeringFeed{}
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	// Churn: the first connection is torn down and a second one opened
	// while the first reader has not yet observed its channel closing.
	require.NoError(t, d.Subscribe("a", func(Event) {}))
	d.Unsubscribe("a")
	require.NoError(t, d.Subscribe("a", func(Event) {}))
	require.Equal(t, 2, feed.openCount())
	require.True(t, d.Connected())

	// The first reader drains now. It must not clear the state of the
	// live second connection.
	feed.finish(0)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, d.Connected())

	// With the state intact, neither a resume nor a resubscribe opens a
	// concurrent feed.
	require.NoError(t, d.Resume())
	require.NoError(t, d.Subscribe("b", func(Event) {}))
	assert.Equal(t, 2, feed.openCount())

	// The live connection's own reader still closes things down normally.
	feed.finish(1)
	waitFor(t, func() bool { return !d.Connected() })
}

func TestDispatcher_ResumeWithoutListeners(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, zap.NewNop().Sugar())

	d.Pause()
	require.NoError(t, d.Resume())
	assert.False(t, d.Connected())

	opens, _ := feed.stats()
	assert.Equal(t, 0, opens)
}

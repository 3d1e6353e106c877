package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Feed is one change-feed connection to the backend. Open returns a channel
// that carries events until the context is cancelled or Close is called.
type Feed interface {
	Open(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Handler receives one normalized change event.
type Handler func(Event)

// Dispatcher keeps exactly one open feed no matter how many views are
// interested: the feed opens when the first listener subscribes and closes
// when the last one unsubscribes. Events are delivered synchronously in
// registration order; a panicking handler is recovered and logged so its
// siblings still run.
//
// If opening the feed fails the dispatcher stays disconnected and does not
// retry by itself. The connectivity monitor's online transition is the
// re-subscribe trigger.
type Dispatcher struct {
	feed   Feed
	logger *zap.SugaredLogger

	mu        sync.Mutex
	handlers  map[string]Handler
	order     []string
	paused    bool
	connected bool
	cancel    context.CancelFunc

	// gen identifies the current connection. The reader goroutine of a
	// torn-down feed may outlive its successor's connect; it only gets to
	// clear connected while its generation is still the live one.
	gen uint64
}

func NewDispatcher(feed Feed, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		feed:     feed,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Subscribe registers a handler under listenerID. The first subscriber
// opens the underlying feed. Re-subscribing under the same id replaces the
// handler but keeps its position.
func (d *Dispatcher) Subscribe(listenerID string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[listenerID]; !exists {
		d.order = append(d.order, listenerID)
	}
	d.handlers[listenerID] = h

	if d.connected {
		return nil
	}
	return d.connectLocked()
}

// connectLocked opens the feed and starts the delivery loop. Caller holds
// the mutex.
func (d *Dispatcher) connectLocked() error {
	ctx, cancel := context.WithCancel(context.Background())

	events, err := d.feed.Open(ctx)
	if err != nil {
		cancel()
		d.logger.Errorw("opening change feed failed", "error", err)
		return err
	}

	d.cancel = cancel
	d.connected = true
	d.gen++
	gen := d.gen

	go func() {
		for ev := range events {
			d.broadcast(ev)
		}
		d.mu.Lock()
		if d.gen == gen {
			d.connected = false
		}
		d.mu.Unlock()
	}()

	return nil
}

// Unsubscribe removes a listener. When the set becomes empty the
// underlying feed is closed.
func (d *Dispatcher) Unsubscribe(listenerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[listenerID]; !exists {
		return
	}
	delete(d.handlers, listenerID)
	for i, id := range d.order {
		if id == listenerID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	if len(d.handlers) == 0 && d.connected {
		d.disconnectLocked()
	}
}

func (d *Dispatcher) disconnectLocked() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.feed.Close(); err != nil {
		d.logger.Warnw("closing change feed", "error", err)
	}
	d.connected = false
}

// Pause stops events from reaching listeners without tearing down the
// feed. Used while offline so stale patches never hit the reconciler.
func (d *Dispatcher) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume re-enables delivery and reconnects the feed if it dropped while
// paused.
func (d *Dispatcher) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paused = false
	if d.connected || len(d.handlers) == 0 {
		return nil
	}
	return d.connectLocked()
}

// Connected reports whether the underlying feed is open.
func (d *Dispatcher) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *Dispatcher) broadcast(ev Event) {
	d.mu.Lock()
	if d.paused {
		d.mu.Unlock()
		return
	}
	ids := append([]string(nil), d.order...)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, d.handlers[id])
	}
	d.mu.Unlock()

	for i, h := range handlers {
		d.invoke(ids[i], h, ev)
	}
}

// invoke isolates one handler so a panic never starves the others.
func (d *Dispatcher) invoke(listenerID string, h Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Errorw("realtime handler panicked",
				"listener", listenerID, "table", ev.Table, "type", ev.Type, "panic", rec)
		}
	}()
	h(ev)
}

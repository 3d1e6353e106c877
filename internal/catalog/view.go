package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"souq/internal/realtime"
)

// reloadTimeout bounds the fetch a realtime event or reconnect triggers.
const reloadTimeout = 30 * time.Second

// View is one mounted catalog: a materialized product list kept fresh by
// the change dispatcher, windowed for incremental rendering and filtered
// by a debounced search query. Each view owns its own list copy; views
// share nothing but the dispatcher.
type View struct {
	id         string
	loader     *Loader
	reconciler *Reconciler
	dispatcher *realtime.Dispatcher
	logger     *zap.SugaredLogger
	opts       LoadOptions
	debounce   *Debouncer
	offline    atomic.Bool
}

func NewView(loader *Loader, dispatcher *realtime.Dispatcher, logger *zap.SugaredLogger, opts LoadOptions) *View {
	return &View{
		id:         "catalog-view-" + uuid.NewString(),
		loader:     loader,
		reconciler: NewReconciler(),
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
		debounce:   NewDebouncer(SearchDebounce),
	}
}

// Start performs the initial load and registers with the dispatcher. A
// failed feed subscription is not fatal; the monitor's online transition
// retries it.
func (v *View) Start(ctx context.Context) {
	v.Reload(ctx)

	if err := v.dispatcher.Subscribe(v.id, v.onEvent); err != nil {
		v.logger.Warnw("catalog view starts without realtime updates", "view", v.id, "error", err)
	}
}

// Stop unregisters the view and cancels any pending search.
func (v *View) Stop() {
	v.debounce.Stop()
	v.dispatcher.Unsubscribe(v.id)
}

// Reload fetches the full list and rebuilds the window from page one.
// Failures degrade to an empty list; going offline flips the view into its
// offline terminal state instead.
func (v *View) Reload(ctx context.Context) {
	list, err := v.loader.Load(ctx, v.opts)
	switch {
	case errors.Is(err, ErrOffline):
		v.offline.Store(true)
		return
	case err != nil:
		v.offline.Store(false)
		v.reconciler.Reset(nil)
		return
	}

	v.offline.Store(false)
	v.reconciler.Reset(list)
}

// HandleOnline is wired to the connectivity monitor: reconnecting means
// the in-memory list may be arbitrarily stale, so reload everything.
func (v *View) HandleOnline() {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	v.Reload(ctx)
}

// HandleOffline flips the view into its offline state. Patch suppression
// happens at the dispatcher, which the monitor pauses in the same
// transition.
func (v *View) HandleOffline() {
	v.offline.Store(true)
}

// Search applies a free-text query after the debounce delay.
func (v *View) Search(query string) {
	v.debounce.Trigger(func() {
		v.reconciler.SetQuery(query)
	})
}

// FlushSearch applies any pending query immediately.
func (v *View) FlushSearch() {
	v.debounce.Flush()
}

// LoadMore reveals the next page, reporting whether anything was added.
func (v *View) LoadMore() bool {
	return v.reconciler.AppendPage()
}

// Snapshot returns the current list state.
func (v *View) Snapshot() Snapshot {
	return v.reconciler.Snapshot()
}

// Offline reports whether the view is in its offline terminal state.
func (v *View) Offline() bool {
	return v.offline.Load()
}

func (v *View) onEvent(ev realtime.Event) {
	// The feed dropped and recovered; anything may have been missed.
	if ev.Type == realtime.EventResync {
		v.logger.Infow("change feed resynced, reloading catalog", "view", v.id)
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		v.Reload(ctx)
		return
	}

	if ev.Table != "products" {
		return
	}

	switch ev.Type {
	case realtime.EventInsert:
		// Inserts are never patched locally: the new row's sort
		// position against active filters and limits is only known to
		// a full load. Accepted latency-for-correctness tradeoff.
		v.logger.Infow("product inserted, reloading catalog", "view", v.id)
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		v.Reload(ctx)

	case realtime.EventUpdate:
		var p Product
		if err := json.Unmarshal(ev.New, &p); err != nil || p.ID == "" {
			v.logger.Errorw("undecodable product update, reloading", "view", v.id, "error", err)
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			defer cancel()
			v.Reload(ctx)
			return
		}
		v.reconciler.ApplyUpdate(p)

	case realtime.EventDelete:
		var p Product
		if err := json.Unmarshal(ev.Old, &p); err != nil || p.ID == "" {
			v.logger.Errorw("undecodable product delete", "view", v.id, "error", err)
			return
		}
		v.reconciler.ApplyDelete(p.ID)
	}
}

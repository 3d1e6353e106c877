package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"souq/internal/realtime"
)

type stubFeed struct {
	mu     sync.Mutex
	events chan realtime.Event
}

func (f *stubFeed) Open(ctx context.Context) (<-chan realtime.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = make(chan realtime.Event, 16)
	return f.events, nil
}

func (f *stubFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events != nil {
		close(f.events)
		f.events = nil
	}
	return nil
}

func (f *stubFeed) emit(ev realtime.Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- ev
}

type switchableSource struct {
	mu       sync.Mutex
	products []Product
	loads    int
}

func (s *switchableSource) ListProducts(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return append([]Product(nil), s.products...), nil
}

func (s *switchableSource) set(products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

func (s *switchableSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func rawProduct(t *testing.T, p Product) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return data
}

type viewFixture struct {
	view   *View
	feed   *stubFeed
	source *switchableSource
	online *bool
}

func newViewFixture(t *testing.T, products []Product) *viewFixture {
	t.Helper()

	online := true
	source := &switchableSource{products: products}
	feed := &stubFeed{}
	logger := zap.NewNop().Sugar()

	loader := NewLoader(source, func() bool { return online }, logger)
	dispatcher := realtime.NewDispatcher(feed, logger)
	view := NewView(loader, dispatcher, logger, LoadOptions{})

	view.Start(context.Background())
	t.Cleanup(view.Stop)

	return &viewFixture{view: view, feed: feed, source: source, online: &online}
}

func TestView_StartLoadsCatalog(t *testing.T) {
	f := newViewFixture(t, productList(20))

	snap := f.view.Snapshot()
	assert.Len(t, snap.All, 20)
	assert.Len(t, snap.Visible, 8)
	assert.False(t, f.view.Offline())
}

func TestView_InsertEventReloads(t *testing.T) {
	f := newViewFixture(t, productList(5))
	require.Len(t, f.view.Snapshot().All, 5)

	inserted := Product{ID: "p-new", Name: "منتج جديد", PiecePrice: 7, CreatedAt: time.Now()}
	f.source.set(append(productList(5), inserted))
	f.feed.emit(realtime.Event{
		Table: "products",
		Type:  realtime.EventInsert,
		New:   rawProduct(t, inserted),
	})

	require.Eventually(t, func() bool {
		return len(f.view.Snapshot().All) == 6
	}, time.Second, 5*time.Millisecond)
}

func TestView_UpdateEventPatchesInPlace(t *testing.T) {
	f := newViewFixture(t, productList(20))
	loadsBefore := f.source.loadCount()

	updated := f.view.Snapshot().Visible[0]
	updated.PiecePrice = 12
	f.feed.emit(realtime.Event{
		Table: "products",
		Type:  realtime.EventUpdate,
		New:   rawProduct(t, updated),
	})

	require.Eventually(t, func() bool {
		return f.view.Snapshot().Visible[0].PiecePrice == 12
	}, time.Second, 5*time.Millisecond)

	snap := f.view.Snapshot()
	assert.Equal(t, float64(72), snap.Visible[0].PackPrice)
	assert.Len(t, snap.All, 20)
	// A patch never goes back to storage.
	assert.Equal(t, loadsBefore, f.source.loadCount())
}

func TestView_UndecodableUpdateFallsBackToReload(t *testing.T) {
	f := newViewFixture(t, productList(5))
	loadsBefore := f.source.loadCount()

	f.feed.emit(realtime.Event{
		Table: "products",
		Type:  realtime.EventUpdate,
		New:   json.RawMessage(`{broken`),
	})

	require.Eventually(t, func() bool {
		return f.source.loadCount() > loadsBefore
	}, time.Second, 5*time.Millisecond)
}

func TestView_DeleteEventRemoves(t *testing.T) {
	f := newViewFixture(t, productList(20))

	f.feed.emit(realtime.Event{
		Table: "products",
		Type:  realtime.EventDelete,
		Old:   rawProduct(t, Product{ID: "p2"}),
	})

	require.Eventually(t, func() bool {
		return len(f.view.Snapshot().All) == 19
	}, time.Second, 5*time.Millisecond)

	for _, p := range f.view.Snapshot().Visible {
		assert.NotEqual(t, "p2", p.ID)
	}
}

func TestView_ResyncEventReloads(t *testing.T) {
	f := newViewFixture(t, productList(5))
	require.Len(t, f.view.Snapshot().All, 5)

	// The feed recovered from a connection drop; a delete was missed.
	f.source.set(productList(4))
	f.feed.emit(realtime.Event{Type: realtime.EventResync})

	require.Eventually(t, func() bool {
		return len(f.view.Snapshot().All) == 4
	}, time.Second, 5*time.Millisecond)
}

func TestView_IgnoresOtherTables(t *testing.T) {
	f := newViewFixture(t, productList(5))
	loadsBefore := f.source.loadCount()

	f.feed.emit(realtime.Event{
		Table: "categories",
		Type:  realtime.EventInsert,
		New:   json.RawMessage(`{"id":"c1"}`),
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, loadsBefore, f.source.loadCount())
	assert.Len(t, f.view.Snapshot().All, 5)
}

func TestView_OfflineTransitions(t *testing.T) {
	f := newViewFixture(t, productList(20))
	require.False(t, f.view.Offline())

	// Going offline freezes the current list rather than clearing it.
	*f.online = false
	f.view.HandleOffline()
	assert.True(t, f.view.Offline())
	assert.Len(t, f.view.Snapshot().All, 20)

	// A reload attempt while offline keeps the offline state.
	f.view.Reload(context.Background())
	assert.True(t, f.view.Offline())

	// Coming back refreshes from storage.
	f.source.set(productList(3))
	*f.online = true
	f.view.HandleOnline()

	assert.False(t, f.view.Offline())
	assert.Len(t, f.view.Snapshot().All, 3)
}

func TestView_SearchDebounces(t *testing.T) {
	list := productList(20)
	list[0].Name = "شاي أخضر"
	f := newViewFixture(t, list)

	f.view.Search("شا")
	f.view.Search("شاي")

	// Nothing applied before the quiet period.
	assert.Len(t, f.view.Snapshot().Filtered, 20)

	f.view.FlushSearch()

	snap := f.view.Snapshot()
	require.Len(t, snap.Filtered, 1)
	assert.Equal(t, "شاي أخضر", snap.Filtered[0].Name)
	assert.Equal(t, 1, snap.Page)
}

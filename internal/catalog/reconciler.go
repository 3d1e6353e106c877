package catalog

import "sync"

// Snapshot is a consistent view of the reconciler state. The slices it
// carries are never mutated after being handed out; patches and page
// appends always build replacement slices.
type Snapshot struct {
	All      []Product
	Filtered []Product
	Visible  []Product
	Page     int
	HasMore  bool
}

// Reconciler owns the visible-window state for incremental rendering of
// one catalog view: it splits the materialized list into pages, reveals
// pages on demand, and patches the list in place when the change feed
// reports an update or delete. Inserts are not patched locally; the caller
// performs a full reload instead, because the new row's position relative
// to active filters and limits cannot be derived client-side.
type Reconciler struct {
	mu          sync.Mutex
	all         []Product
	filtered    []Product
	visible     []Product
	page        int
	hasMore     bool
	loadingMore bool
	query       string
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reset installs a freshly loaded list, reapplies the current search query
// and rebuilds the visible window from page one.
func (r *Reconciler) Reset(all []Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = all
	r.rebuildLocked()
}

// SetQuery changes the search query and rebuilds the window from page one.
func (r *Reconciler) SetQuery(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.query = query
	r.rebuildLocked()
}

// rebuildLocked recomputes filtered and the first visible page. Caller
// holds the mutex.
func (r *Reconciler) rebuildLocked() {
	r.filtered = FilterByName(r.all, r.query)

	end := PageSize
	if end > len(r.filtered) {
		end = len(r.filtered)
	}
	r.visible = append([]Product(nil), r.filtered[:end]...)
	r.page = 1
	r.hasMore = len(r.filtered) > PageSize
}

// AppendPage reveals the next page of the filtered list. It reports
// whether anything was appended. Only one append runs at a time; overlap
// attempts are dropped rather than queued, matching the viewport-sentinel
// trigger that simply fires again later.
func (r *Reconciler) AppendPage() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadingMore || !r.hasMore {
		return false
	}
	r.loadingMore = true
	defer func() { r.loadingMore = false }()

	start := len(r.visible)
	end := start + PageSize
	if end > len(r.filtered) {
		end = len(r.filtered)
	}
	if start >= end {
		r.hasMore = false
		return false
	}

	next := make([]Product, 0, end)
	next = append(next, r.visible...)
	next = append(next, r.filtered[start:end]...)
	r.visible = next
	r.page++
	r.hasMore = end < len(r.filtered)
	return true
}

// ApplyUpdate replaces the matching product in place, recomputing derived
// prices from the updated row. List order and the pagination window are
// untouched. Applying the same update twice is a no-op the second time.
func (r *Reconciler) ApplyUpdate(updated Product) {
	updated = updated.WithDerivedPrices()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = replaceByID(r.all, updated)
	r.filtered = replaceByID(r.filtered, updated)
	r.visible = replaceByID(r.visible, updated)
}

// ApplyDelete removes the matching product from every list. Deleting an id
// that is not present is a no-op.
func (r *Reconciler) ApplyDelete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = removeByID(r.all, id)
	r.filtered = removeByID(r.filtered, id)
	r.visible = removeByID(r.visible, id)
	r.hasMore = len(r.visible) < len(r.filtered)
}

// Snapshot returns the current state. Safe to hold across later patches:
// the returned slices are never written to again.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		All:      r.all,
		Filtered: r.filtered,
		Visible:  r.visible,
		Page:     r.page,
		HasMore:  r.hasMore,
	}
}

// replaceByID returns a new slice with the product whose id matches
// swapped for updated. The input slice is left untouched so renders
// holding a snapshot stay consistent.
func replaceByID(list []Product, updated Product) []Product {
	for i, p := range list {
		if p.ID == updated.ID {
			next := append([]Product(nil), list...)
			next[i] = updated
			return next
		}
	}
	return list
}

func removeByID(list []Product, id string) []Product {
	for i, p := range list {
		if p.ID == id {
			next := make([]Product, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			return next
		}
	}
	return list
}

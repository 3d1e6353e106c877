package catalog

import (
	"strings"
	"sync"
	"time"
)

// SearchDebounce is how long after the last keystroke the search query is
// actually applied.
const SearchDebounce = 300 * time.Millisecond

// FilterByName derives the filtered view for a free-text query:
// case-insensitive substring match against the display name. An empty or
// whitespace query keeps the whole list. Products with an empty name never
// match.
func FilterByName(list []Product, query string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list
	}

	matched := list[:0:0]
	for _, p := range list {
		if p.Name == "" {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), query) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Debouncer coalesces rapid triggers into one callback after a quiet
// period. Each instance owns its own timer, so two search inputs never
// interfere with each other.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the quiet period, replacing any
// previously scheduled callback.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		run := d.pending
		d.pending = nil
		d.mu.Unlock()
		if run != nil {
			run()
		}
	})
}

// Flush runs the pending callback immediately, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	run := d.pending
	d.pending = nil
	d.mu.Unlock()

	if run != nil {
		run()
	}
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}

package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrOffline is returned by Load when the connectivity check reports the
// backend as unreachable. Callers render the offline state instead of the
// empty one.
var ErrOffline = errors.New("offline, skipping catalog load")

// Source is the slice of the storage layer the loader needs. Implemented by
// store.ProductsStore.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// LoadOptions narrows a load to a category, to recent products only, or to
// a fixed number of rows. The zero value loads everything.
type LoadOptions struct {
	CategoryID string
	NewOnly    bool
	Limit      int
}

// Loader fetches the product collection and materializes the fully
// filtered, sorted, price-derived list the reconciler works on.
type Loader struct {
	source Source
	online func() bool
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewLoader(source Source, online func() bool, logger *zap.SugaredLogger) *Loader {
	return &Loader{
		source: source,
		online: online,
		logger: logger,
		now:    time.Now,
	}
}

// Load materializes the product list. On any storage failure it returns a
// nil list and the error; callers must degrade to an empty state rather
// than propagate into the render path.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) ([]Product, error) {
	if l.online != nil && !l.online() {
		return nil, ErrOffline
	}

	rows, err := l.source.ListProducts(ctx)
	if err != nil {
		l.logger.Errorw("loading products failed", "error", err)
		return nil, err
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		// Rows without an id are treated as absent, not as an error.
		if row.ID == "" {
			continue
		}
		products = append(products, row.WithDerivedPrices())
	}

	if opts.CategoryID != "" {
		products = filterByCategory(products, opts.CategoryID)
	}

	if opts.NewOnly {
		products = filterNew(products, l.now())
	}

	// Newest first. Products without a creation timestamp sort as epoch
	// zero, i.e. at the end. Stable so equal timestamps keep their
	// storage order.
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})

	if opts.Limit > 0 && len(products) > opts.Limit {
		products = products[:opts.Limit]
	}

	return products, nil
}

func filterByCategory(products []Product, categoryID string) []Product {
	kept := products[:0:0]
	for _, p := range products {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			kept = append(kept, p)
		}
	}
	return kept
}

func filterNew(products []Product, now time.Time) []Product {
	window := NewProductWindowDays * 24 * time.Hour
	kept := products[:0:0]
	for _, p := range products {
		if !p.IsNew || p.CreatedAt.IsZero() {
			continue
		}
		if now.Sub(p.CreatedAt) <= window {
			kept = append(kept, p)
		}
	}
	return kept
}

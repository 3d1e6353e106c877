package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	products []Product
	err      error
}

func (s *fakeSource) ListProducts(ctx context.Context) ([]Product, error) {
	return s.products, s.err
}

func testProduct(id string, createdAt time.Time) Product {
	return Product{
		ID:          id,
		Name:        "منتج " + id,
		ProductCode: "code-" + id,
		BoxQuantity: 12,
		PiecePrice:  10,
		CreatedAt:   createdAt,
	}
}

func newTestLoader(source Source, online func() bool) *Loader {
	return NewLoader(source, online, zap.NewNop().Sugar())
}

func TestLoader_Load(t *testing.T) {
	now := time.Now()

	t.Run("OfflineShortCircuits", func(t *testing.T) {
		source := &fakeSource{products: []Product{testProduct("p1", now)}}
		loader := newTestLoader(source, func() bool { return false })

		list, err := loader.Load(context.Background(), LoadOptions{})
		require.ErrorIs(t, err, ErrOffline)
		assert.Nil(t, list)
	})

	t.Run("FetchErrorReturnsNil", func(t *testing.T) {
		source := &fakeSource{err: errors.New("connection refused")}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{})
		require.Error(t, err)
		assert.Nil(t, list)
	})

	t.Run("DerivesPrices", func(t *testing.T) {
		source := &fakeSource{products: []Product{testProduct("p1", now)}}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, float64(60), list[0].PackPrice)
		assert.Equal(t, float64(120), list[0].BoxPrice)
	})

	t.Run("DropsRowsWithoutID", func(t *testing.T) {
		source := &fakeSource{products: []Product{
			testProduct("p1", now),
			{Name: "orphan"},
			testProduct("p2", now),
		}}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("SortsNewestFirstZeroTimestampsLast", func(t *testing.T) {
		source := &fakeSource{products: []Product{
			testProduct("old", now.Add(-48*time.Hour)),
			testProduct("undated", time.Time{}),
			testProduct("fresh", now),
		}}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "fresh", list[0].ID)
		assert.Equal(t, "old", list[1].ID)
		assert.Equal(t, "undated", list[2].ID)
	})

	t.Run("FiltersByCategory", func(t *testing.T) {
		toys := "cat-toys"
		food := "cat-food"
		p1 := testProduct("p1", now)
		p1.CategoryID = &toys
		p2 := testProduct("p2", now)
		p2.CategoryID = &food
		p3 := testProduct("p3", now)

		source := &fakeSource{products: []Product{p1, p2, p3}}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{CategoryID: toys})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "p1", list[0].ID)
	})

	t.Run("NewOnlyWindow", func(t *testing.T) {
		inWindow := testProduct("recent", now.Add(-13*24*time.Hour))
		inWindow.IsNew = true
		expired := testProduct("expired", now.Add(-15*24*time.Hour))
		expired.IsNew = true
		notFlagged := testProduct("plain", now)
		undated := testProduct("undated", time.Time{})
		undated.IsNew = true

		source := &fakeSource{products: []Product{inWindow, expired, notFlagged, undated}}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{NewOnly: true})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "recent", list[0].ID)
	})

	t.Run("LimitTruncatesAfterSort", func(t *testing.T) {
		var products []Product
		for i := 0; i < 10; i++ {
			products = append(products, testProduct(
				fmt.Sprintf("p%d", i), now.Add(-time.Duration(i)*time.Hour)))
		}
		source := &fakeSource{products: products}
		loader := newTestLoader(source, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{Limit: 3})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "p0", list[0].ID)
	})

	t.Run("EmptyTableIsEmptyList", func(t *testing.T) {
		loader := newTestLoader(&fakeSource{}, func() bool { return true })

		list, err := loader.Load(context.Background(), LoadOptions{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestProduct_WithDerivedPrices(t *testing.T) {
	p := Product{ID: "p1", PiecePrice: 10, BoxQuantity: 24, PackPrice: 1, BoxPrice: 1}
	derived := p.WithDerivedPrices()

	assert.Equal(t, float64(60), derived.PackPrice)
	assert.Equal(t, float64(240), derived.BoxPrice)
	// The receiver is untouched.
	assert.Equal(t, float64(1), p.PackPrice)
}

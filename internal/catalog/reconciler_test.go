package catalog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productList(n int) []Product {
	now := time.Now()
	list := make([]Product, 0, n)
	for i := 0; i < n; i++ {
		p := Product{
			ID:          fmt.Sprintf("p%d", i+1),
			Name:        fmt.Sprintf("منتج %d", i+1),
			BoxQuantity: 10,
			PiecePrice:  10,
			CreatedAt:   now.Add(-time.Duration(i) * time.Minute),
		}
		list = append(list, p.WithDerivedPrices())
	}
	return list
}

// visibleIsPrefix asserts the core windowing invariant: whatever happens,
// the visible slice is always a prefix of the filtered slice.
func visibleIsPrefix(t *testing.T, snap Snapshot) {
	t.Helper()
	require.LessOrEqual(t, len(snap.Visible), len(snap.Filtered))
	for i, p := range snap.Visible {
		assert.Equal(t, snap.Filtered[i].ID, p.ID)
	}
}

func TestReconciler_Pagination(t *testing.T) {
	r := NewReconciler()
	r.Reset(productList(20))

	snap := r.Snapshot()
	assert.Len(t, snap.Visible, 8)
	assert.Equal(t, 1, snap.Page)
	assert.True(t, snap.HasMore)
	visibleIsPrefix(t, snap)

	require.True(t, r.AppendPage())
	snap = r.Snapshot()
	assert.Len(t, snap.Visible, 16)
	assert.Equal(t, 2, snap.Page)
	assert.True(t, snap.HasMore)
	visibleIsPrefix(t, snap)

	require.True(t, r.AppendPage())
	snap = r.Snapshot()
	assert.Len(t, snap.Visible, 20)
	assert.Equal(t, 3, snap.Page)
	assert.False(t, snap.HasMore)
	visibleIsPrefix(t, snap)

	// Nothing left.
	assert.False(t, r.AppendPage())
	assert.Len(t, r.Snapshot().Visible, 20)
}

func TestReconciler_Reset(t *testing.T) {
	t.Run("ShortListHasNoMore", func(t *testing.T) {
		r := NewReconciler()
		r.Reset(productList(5))

		snap := r.Snapshot()
		assert.Len(t, snap.Visible, 5)
		assert.False(t, snap.HasMore)
		assert.False(t, r.AppendPage())
	})

	t.Run("NilListIsEmptyState", func(t *testing.T) {
		r := NewReconciler()
		r.Reset(productList(20))
		r.Reset(nil)

		snap := r.Snapshot()
		assert.Empty(t, snap.Visible)
		assert.False(t, snap.HasMore)
	})

	t.Run("ReappliesActiveQuery", func(t *testing.T) {
		r := NewReconciler()
		list := productList(10)
		list[0].Name = "شاي أخضر"
		r.Reset(list)
		r.SetQuery("شاي")
		require.Len(t, r.Snapshot().Filtered, 1)

		// A reload keeps the query in force.
		refreshed := productList(10)
		refreshed[0].Name = "شاي أسود"
		refreshed[1].Name = "شاي بالنعناع"
		r.Reset(refreshed)

		snap := r.Snapshot()
		assert.Len(t, snap.Filtered, 2)
		assert.Equal(t, 1, snap.Page)
		visibleIsPrefix(t, snap)
	})
}

func TestReconciler_SetQuery(t *testing.T) {
	r := NewReconciler()
	list := productList(50)
	list[3].Name = "شاي أخضر"
	list[17].Name = "علبة شاي"
	list[42].Name = "شاي بالحليب"
	r.Reset(list)
	require.True(t, r.AppendPage())
	require.Equal(t, 2, r.Snapshot().Page)

	r.SetQuery("شاي")

	snap := r.Snapshot()
	assert.Len(t, snap.Filtered, 3)
	assert.Len(t, snap.Visible, 3)
	// The window always restarts from page one on a query change.
	assert.Equal(t, 1, snap.Page)
	assert.False(t, snap.HasMore)
	visibleIsPrefix(t, snap)

	t.Run("ClearingQueryRestoresFullList", func(t *testing.T) {
		r.SetQuery("")
		snap := r.Snapshot()
		assert.Len(t, snap.Filtered, 50)
		assert.Len(t, snap.Visible, 8)
		assert.True(t, snap.HasMore)
	})
}

func TestReconciler_ApplyUpdate(t *testing.T) {
	r := NewReconciler()
	r.Reset(productList(20))
	before := r.Snapshot()

	updated := before.Visible[0]
	updated.PiecePrice = 12
	r.ApplyUpdate(updated)

	after := r.Snapshot()
	require.Len(t, after.All, 20)
	require.Len(t, after.Visible, 8)

	assert.Equal(t, float64(12), after.Visible[0].PiecePrice)
	assert.Equal(t, float64(72), after.Visible[0].PackPrice)
	assert.Equal(t, float64(120), after.Visible[0].BoxPrice)

	// The earlier snapshot still reads the old price: patches build new
	// slices rather than writing through shared backing arrays.
	assert.Equal(t, float64(10), before.Visible[0].PiecePrice)

	t.Run("SecondApplyIsNoOp", func(t *testing.T) {
		r.ApplyUpdate(updated)
		again := r.Snapshot()
		assert.Equal(t, after.Visible[0], again.Visible[0])
		assert.Len(t, again.All, 20)
	})

	t.Run("UnknownIDLeavesListsAlone", func(t *testing.T) {
		ghost := Product{ID: "ghost", PiecePrice: 99}
		r.ApplyUpdate(ghost)
		snap := r.Snapshot()
		assert.Len(t, snap.All, 20)
		for _, p := range snap.All {
			assert.NotEqual(t, "ghost", p.ID)
		}
	})
}

func TestReconciler_ApplyDelete(t *testing.T) {
	r := NewReconciler()
	r.Reset(productList(20))

	r.ApplyDelete("p3")

	snap := r.Snapshot()
	assert.Len(t, snap.All, 19)
	assert.Len(t, snap.Visible, 7)
	for _, p := range snap.Visible {
		assert.NotEqual(t, "p3", p.ID)
	}
	assert.True(t, snap.HasMore)
	visibleIsPrefix(t, snap)

	t.Run("DeletingAgainIsNoOp", func(t *testing.T) {
		r.ApplyDelete("p3")
		assert.Len(t, r.Snapshot().All, 19)
	})

	t.Run("HasMoreClearsWhenListsConverge", func(t *testing.T) {
		r := NewReconciler()
		r.Reset(productList(9))
		require.True(t, r.Snapshot().HasMore)

		r.ApplyDelete("p9")
		snap := r.Snapshot()
		assert.Len(t, snap.Visible, 8)
		assert.Len(t, snap.Filtered, 8)
		assert.False(t, snap.HasMore)
	})
}

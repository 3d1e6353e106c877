package catalog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterByName(t *testing.T) {
	list := []Product{
		{ID: "p1", Name: "شاي أخضر"},
		{ID: "p2", Name: "قهوة عربية"},
		{ID: "p3", Name: "علبة شاي"},
		{ID: "p4", Name: ""},
		{ID: "p5", Name: "Green Tea"},
	}

	t.Run("ArabicSubstring", func(t *testing.T) {
		matched := FilterByName(list, "شاي")
		require.Len(t, matched, 2)
		assert.Equal(t, "p1", matched[0].ID)
		assert.Equal(t, "p3", matched[1].ID)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		matched := FilterByName(list, "green tea")
		require.Len(t, matched, 1)
		assert.Equal(t, "p5", matched[0].ID)
	})

	t.Run("EmptyQueryKeepsEverything", func(t *testing.T) {
		assert.Len(t, FilterByName(list, ""), len(list))
		assert.Len(t, FilterByName(list, "   "), len(list))
	})

	t.Run("EmptyNamesNeverMatch", func(t *testing.T) {
		for _, p := range FilterByName(list, "ا") {
			assert.NotEqual(t, "p4", p.ID)
		}
	})

	t.Run("NoMatches", func(t *testing.T) {
		assert.Empty(t, FilterByName(list, "خبز"))
	})
}

func TestDebouncer(t *testing.T) {
	t.Run("CoalescesRapidTriggers", func(t *testing.T) {
		d := NewDebouncer(30 * time.Millisecond)
		defer d.Stop()

		var calls atomic.Int32
		var last atomic.Value
		for _, q := range []string{"ش", "شا", "شاي"} {
			q := q
			d.Trigger(func() {
				calls.Add(1)
				last.Store(q)
			})
		}

		require.Eventually(t, func() bool {
			return calls.Load() == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, "شاي", last.Load())
	})

	t.Run("FlushRunsPendingImmediately", func(t *testing.T) {
		d := NewDebouncer(time.Hour)
		defer d.Stop()

		var calls atomic.Int32
		d.Trigger(func() { calls.Add(1) })
		d.Flush()

		assert.Equal(t, int32(1), calls.Load())

		// A flush with nothing pending does nothing.
		d.Flush()
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("StopCancelsPending", func(t *testing.T) {
		d := NewDebouncer(20 * time.Millisecond)

		var calls atomic.Int32
		d.Trigger(func() { calls.Add(1) })
		d.Stop()

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("IndependentInstances", func(t *testing.T) {
		d1 := NewDebouncer(20 * time.Millisecond)
		d2 := NewDebouncer(20 * time.Millisecond)
		defer d1.Stop()
		defer d2.Stop()

		var first, second atomic.Int32
		d1.Trigger(func() { first.Add(1) })
		d2.Trigger(func() { second.Add(1) })

		require.Eventually(t, func() bool {
			return first.Load() == 1 && second.Load() == 1
		}, time.Second, 5*time.Millisecond)
	})
}

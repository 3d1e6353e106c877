package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"Simple", "Hot Drinks", "hot-drinks"},
		{"Arabic", "مشروبات ساخنة", "مشروبات-ساخنة"},
		{"CollapsesRuns", "a  b__c--d", "a-b-c-d"},
		{"TrimsEdges", "  tea  ", "tea"},
		{"DropsPunctuation", "tea & coffee!", "tea-coffee"},
		{"KeepsDigits", "Aisle 7", "aisle-7"},
		{"Empty", "", ""},
		{"OnlySymbols", "@#$", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	g, err := NewGenerator("test-salt")
	require.NoError(t, err)

	t.Run("PrefixedWithSlugifiedName", func(t *testing.T) {
		s := g.Generate("Hot Drinks")
		assert.True(t, strings.HasPrefix(s, "hot-drinks-"), s)
	})

	t.Run("SameNameDiffers", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			seen[g.Generate("مشروبات")] = true
		}
		// Random suffixes: twenty generations collapsing into one slug
		// would mean the suffix is not being applied at all.
		assert.Greater(t, len(seen), 1)
	})

	t.Run("EmptyNameStillYieldsSlug", func(t *testing.T) {
		assert.NotEmpty(t, g.Generate(""))
	})
}

func TestGenerator_Disambiguate(t *testing.T) {
	g, err := NewGenerator("test-salt")
	require.NoError(t, err)

	base := "hot-drinks-ab12"
	d := g.Disambiguate(base)
	assert.True(t, strings.HasPrefix(d, base+"-"), d)
	assert.Greater(t, len(d), len(base)+1)
}

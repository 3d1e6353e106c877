package slug

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/speps/go-hashids/v2"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generator derives URL-safe, collision-resistant slugs from display
// names. Uniqueness comes from an independent random suffix rather than a
// round-trip collision check; the store's unique constraint is the
// backstop.
type Generator struct {
	h *hashids.HashID
}

func NewGenerator(salt string) (*Generator, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 4
	data.Alphabet = suffixAlphabet

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("slug generator: %w", err)
	}
	return &Generator{h: h}, nil
}

// Generate returns the slugified name with a random suffix appended, so
// two categories created with the same name still get distinct slugs.
func (g *Generator) Generate(name string) string {
	suffix, err := g.h.Encode([]int{rand.Intn(10000)})
	if err != nil {
		// Encode only fails on negative input; keep a usable slug anyway.
		suffix = fmt.Sprintf("%04d", rand.Intn(10000))
	}

	base := Slugify(name)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Disambiguate extends a slug that hit the unique constraint with a
// timestamp part. Used for the single retry before failing terminally.
func (g *Generator) Disambiguate(s string) string {
	return fmt.Sprintf("%s-%d", s, time.Now().UnixMilli())
}

// Slugify lowercases the name, keeps letters and digits, and collapses
// whitespace, underscores and dash runs into single dashes.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case unicode.IsSpace(r) || r == '_' || r == '-':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

package dictionary

import (
	"slices"
	"strings"

	"github.com/japaniel/tokisama/pkg/lexicon"
)

// Surfacer renders lexicon ids back to words.
type Surfacer interface {
	Surface(id lexicon.ID) string
}

// Lexicon is the subset of *lexicon.Lexicon this package needs.
type Lexicon interface {
	Surfacer
	Lookup(word string) (lexicon.ID, bool)
}

// CompoundWord is an ordered multi-word Toki Pona phrase. Almost all
// compounds have four or fewer words; an empty compound is valid.
type CompoundWord []lexicon.ID

// Len returns the number of words.
func (c CompoundWord) Len() int { return len(c) }

// Equal reports sequence equality; order matters.
func (c CompoundWord) Equal(other CompoundWord) bool {
	return slices.Equal(c, other)
}

// Render joins the surface forms of the compound with single spaces.
func (c CompoundWord) Render(lx Surfacer) string {
	var b strings.Builder
	for i, id := range c {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(lx.Surface(id))
	}
	return b.String()
}

// ParseCompound resolves whitespace separated surface words. The second
// return value is the first word the lexicon does not know.
func ParseCompound(text string, lx Lexicon) (CompoundWord, string, bool) {
	fields := strings.Fields(text)
	c := make(CompoundWord, 0, len(fields))
	for _, f := range fields {
		id, ok := lx.Lookup(f)
		if !ok {
			return nil, f, false
		}
		c = append(c, id)
	}
	return c, "", true
}

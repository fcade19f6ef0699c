package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	english  string
	compound string
}

func pairs(d *Dictionary, lx Lexicon) map[pair]int {
	out := make(map[pair]int)
	for _, e := range d.Entries {
		out[pair{e.English, e.Compound.Render(lx)}]++
	}
	return out
}

func TestMerge_FirstWins(t *testing.T) {
	t.Parallel()
	lx := testLexicon()
	lape := compound(t, lx, "lape")

	canonical := &Dictionary{Entries: []Translation{{English: "sleep", Compound: lape, Weight: 100, Source: Canonical}}}
	generated := &Dictionary{Entries: []Translation{{English: "sleep", Compound: lape, Weight: 7, Source: Generated}}}

	got := MergeTiers(canonical, generated)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, Canonical, got.Entries[0].Source)
	assert.Equal(t, uint32(100), got.Entries[0].Weight)

	// Reversing the order keeps the generated copy instead.
	got = MergeTiers(generated, canonical)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, Generated, got.Entries[0].Source)
	assert.Equal(t, uint32(7), got.Entries[0].Weight)
}

func TestMerge_PairSetIndependentOfOrder(t *testing.T) {
	t.Parallel()
	lx := testLexicon()

	a := New()
	a.Add(
		Translation{English: "car", Compound: compound(t, lx, "tomo tawa"), Weight: 80},
		Translation{English: "house", Compound: compound(t, lx, "tomo"), Weight: 90},
		Translation{English: "car", Compound: compound(t, lx, "tomo tawa"), Weight: 10},
	)
	b := New()
	b.Add(
		Translation{English: "car", Compound: compound(t, lx, "tomo tawa"), Weight: 5, Source: Generated},
		Translation{English: "car", Compound: compound(t, lx, "tawa tomo"), Weight: 5, Source: Generated},
		Translation{English: "menu", Compound: compound(t, lx, "lipu moku"), Weight: 5, Source: Generated},
	)

	ab := MergeTiers(a, b)
	ba := MergeTiers(b, a)

	assert.Equal(t, pairs(ab, lx), pairs(ba, lx))
	for p, n := range pairs(ab, lx) {
		assert.Equal(t, 1, n, "duplicate pair %v", p)
	}
	assert.Equal(t, 4, ab.Len())
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()
	lx := testLexicon()

	d := New()
	d.Add(
		Translation{English: "food", Compound: compound(t, lx, "moku")},
		Translation{English: "food", Compound: compound(t, lx, "moku")},
		Translation{English: "food", Compound: CompoundWord{}},
		Translation{English: "food", Compound: nil},
	)
	d.Merge(nil)
	require.Equal(t, 2, d.Len())

	before := append([]Translation(nil), d.Entries...)
	d.Merge(New())
	assert.Equal(t, before, d.Entries)
}

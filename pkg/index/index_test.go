package index

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/tokisama/pkg/dictionary"
	"github.com/japaniel/tokisama/pkg/lexicon"
)

func testLexicon() *lexicon.Lexicon {
	return lexicon.FromPairs([][2]string{
		{"tomo", "house"},
		{"tawa", "move"},
		{"lipu", "paper"},
		{"moku", "food"},
		{"lape", "sleep"},
		{"jan", "person"},
		{"pona", "good"},
		{"sona", "knowledge"},
		{"ilo", "tool"},
		{"pali", "work"},
	})
}

func cw(t *testing.T, lx *lexicon.Lexicon, text string) dictionary.CompoundWord {
	t.Helper()
	c, unknown, ok := dictionary.ParseCompound(text, lx)
	require.True(t, ok, "unknown word %q", unknown)
	return c
}

func tr(t *testing.T, lx *lexicon.Lexicon, english, tp string, weight uint32, src dictionary.Source) dictionary.Translation {
	t.Helper()
	return dictionary.Translation{English: english, Compound: cw(t, lx, tp), Weight: weight, Source: src}
}

func sampleIndex(t *testing.T) (*Index, *lexicon.Lexicon) {
	t.Helper()
	lx := testLexicon()
	d := dictionary.New()
	d.Add(
		tr(t, lx, "car", "tomo tawa", 10, dictionary.Generated),
		tr(t, lx, "car", "tomo tawa", 80, dictionary.Curated),
		tr(t, lx, "house", "tomo", 100, dictionary.Canonical),
		tr(t, lx, "home", "tomo", 60, dictionary.Canonical),
		tr(t, lx, "homework", "tomo pali", 0, dictionary.Curated),
		tr(t, lx, "menu", "lipu moku", 50, dictionary.Curated),
		tr(t, lx, "food", "moku", 100, dictionary.Canonical),
		tr(t, lx, "sleep", "lape", 100, dictionary.Canonical),
		tr(t, lx, "school", "tomo sona", 70, dictionary.Curated),
		tr(t, lx, "library", "tomo lipu", 60, dictionary.Curated),
		tr(t, lx, "ho", "jan", 1, dictionary.Generated),
	)
	return Build(d, lx), lx
}

func TestBuild_SortInvariant(t *testing.T) {
	t.Parallel()
	ix, _ := sampleIndex(t)

	entries := ix.Entries()
	require.NotEmpty(t, entries)
	for i := 0; i+1 < len(entries); i++ {
		a, b := entries[i], entries[i+1]
		require.LessOrEqual(t, uint8(a.Source), uint8(b.Source), "rank %d", i)
		if a.Source == b.Source {
			require.GreaterOrEqual(t, a.Weight, b.Weight, "rank %d", i)
		}
	}
}

func TestBuild_DoesNotModifyDictionary(t *testing.T) {
	t.Parallel()
	lx := testLexicon()
	d := dictionary.New()
	d.Add(
		tr(t, lx, "a", "jan", 1, dictionary.Generated),
		tr(t, lx, "b", "jan", 1, dictionary.Canonical),
	)

	ix := Build(d, lx)
	assert.Equal(t, "a", d.Entries[0].English)
	assert.Equal(t, "b", ix.Entries()[0].English)
	assert.Equal(t, 2, ix.Keys())
}

func TestLookup_PrefixCorrectness(t *testing.T) {
	t.Parallel()
	ix, _ := sampleIndex(t)

	for _, prefix := range []string{"ho", "HO", "h", "c", "s", "li", "menu", "zzz", ""} {
		got := ix.Lookup(prefix)
		require.NotNil(t, got, prefix)
		assert.LessOrEqual(t, len(got), DefaultMaxResults)
		for _, c := range got {
			assert.True(t, strings.HasPrefix(c.English, strings.ToLower(prefix)), "%q does not start with %q", c.English, prefix)
			assert.Equal(t, prefix, c.Search)
		}
	}

	assert.Empty(t, ix.Lookup("zzz"))
}

func TestLookup_Order(t *testing.T) {
	t.Parallel()
	ix, _ := sampleIndex(t)

	got := ix.Lookup("ho")
	require.Len(t, got, 4)
	assert.Equal(t, "ho", got[0].English, "exact match first")
	assert.Equal(t, []string{"ho", "home", "homework", "house"}, englishOf(got))
}

func TestHitOrder_ExactKeyFirst(t *testing.T) {
	t.Parallel()

	// uppercase sorts before lowercase, so only the exact rule lifts a later key
	hits := []hit{{key: "a", rank: 0}, {key: "Bo", rank: 1}, {key: "Bo", rank: 2}, {key: "c", rank: 3}}
	slices.SortStableFunc(hits, hitOrder("c"))
	assert.Equal(t, []hit{{key: "c", rank: 3}, {key: "Bo", rank: 1}, {key: "Bo", rank: 2}, {key: "a", rank: 0}}, hits)

	slices.SortStableFunc(hits, hitOrder("a"))
	assert.Equal(t, []hit{{key: "a", rank: 0}, {key: "Bo", rank: 1}, {key: "Bo", rank: 2}, {key: "c", rank: 3}}, hits)

	slices.SortStableFunc(hits, hitOrder("zz"))
	assert.Equal(t, []hit{{key: "Bo", rank: 1}, {key: "Bo", rank: 2}, {key: "a", rank: 0}, {key: "c", rank: 3}}, hits)
}

func TestLookup_PostingOrderAndCap(t *testing.T) {
	t.Parallel()
	ix, lx := sampleIndex(t)

	got := ix.Lookup("car")
	require.Len(t, got, 2)
	assert.Equal(t, dictionary.Curated, got[0].Source)
	assert.Equal(t, uint32(80), got[0].Weight)
	assert.Equal(t, dictionary.Generated, got[1].Source)
	assert.Equal(t, "tomo tawa", got[1].Translation)

	all := ix.Lookup("")
	assert.Len(t, all, DefaultMaxResults)

	small := Build(&dictionary.Dictionary{Entries: ix.Entries()}, lx, WithMaxResults(2))
	assert.Len(t, small.Lookup(""), 2)
}

func TestLookup_Similar(t *testing.T) {
	t.Parallel()
	ix, _ := sampleIndex(t)

	got := ix.Lookup("house")
	require.Len(t, got, 1)
	house := got[0]
	assert.Equal(t, "tomo", house.Translation)
	assert.Equal(t, dictionary.Canonical, house.Source)

	require.NotEmpty(t, house.Similar)
	assert.LessOrEqual(t, len(house.Similar), DefaultMaxSimilar)

	// "home" shares the exact compound and must rank first.
	assert.Equal(t, "home", house.Similar[0].English)
	assert.Equal(t, 0, house.Similar[0].Distance)

	for i, s := range house.Similar {
		assert.LessOrEqual(t, s.Distance, 1)
		assert.NotEqual(t, "house", s.English)
		if i > 0 {
			prev := house.Similar[i-1]
			assert.True(t, prev.Distance < s.Distance ||
				(prev.Distance == s.Distance && prev.Length <= s.Length))
		}
	}
}

func TestLookup_EmptyCompound(t *testing.T) {
	t.Parallel()
	lx := testLexicon()
	d := dictionary.New()
	d.Add(
		dictionary.Translation{English: "nothing", Compound: nil, Weight: 1, Source: dictionary.Generated},
		tr(t, lx, "person", "jan", 10, dictionary.Canonical),
	)
	ix := Build(d, lx)

	got := ix.Lookup("nothing")
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Translation)
	// |A| = 0 allows distance 1: the single-word "jan" qualifies.
	require.Len(t, got[0].Similar, 1)
	assert.Equal(t, "person", got[0].Similar[0].English)
}

func TestWithMetric(t *testing.T) {
	t.Parallel()
	ix, lx := sampleIndex(t)

	never := MetricFunc(func(a, b dictionary.CompoundWord) int { return 1 << 20 })
	custom := Build(&dictionary.Dictionary{Entries: ix.Entries()}, lx, WithMetric(never))

	got := custom.Lookup("house")
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Similar)
}

func TestOverlapBounds(t *testing.T) {
	t.Parallel()
	lx := testLexicon()

	compounds := []string{"tomo", "tomo tawa", "tawa tomo", "lipu moku", "jan pona sona", "ilo", "tomo sona lipu moku"}
	var m Overlap
	for _, x := range compounds {
		for _, y := range compounds {
			a, b := cw(t, lx, x), cw(t, lx, y)
			d := m.Distance(a, b)
			diff := a.Len() - b.Len()
			if diff < 0 {
				diff = -diff
			}
			assert.GreaterOrEqual(t, d, diff, "%q vs %q", x, y)
			assert.LessOrEqual(t, d, a.Len()+b.Len(), "%q vs %q", x, y)
		}
	}

	assert.Equal(t, 0, m.Distance(cw(t, lx, "tomo tawa"), cw(t, lx, "tawa tomo")))
	assert.Equal(t, 1, m.Distance(cw(t, lx, "tomo"), cw(t, lx, "tomo tawa")))
	// a repeated word in the longer compound is counted twice, and the
	// result is clamped at zero, which falls below the length difference
	short, long := cw(t, lx, "jan"), cw(t, lx, "jan jan")
	assert.Equal(t, 0, m.Distance(short, long))
	assert.Equal(t, 1, m.Distance(long, short), "the metric is not symmetric")
	assert.Less(t, m.Distance(short, long), long.Len()-short.Len())
}

func TestCompletionJSON(t *testing.T) {
	t.Parallel()
	ix, _ := sampleIndex(t)

	raw, err := json.Marshal(ix.Lookup("menu"))
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "menu", decoded[0]["english"])
	assert.Equal(t, "curated", decoded[0]["source"])
	assert.Equal(t, "lipu moku", decoded[0]["translation"])
	assert.Contains(t, decoded[0], "similar")
}

func TestLookup_Concurrent(t *testing.T) {
	t.Parallel()
	ix, _ := sampleIndex(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = ix.Lookup("ho")
			}
		}()
	}
	wg.Wait()
}

func englishOf(cs []Completion) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.English)
	}
	return out
}

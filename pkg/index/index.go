// Package index ranks a merged dictionary and serves prefix lookups over
// its English keys.
package index

import (
	"cmp"
	"slices"
	"strings"

	"github.com/armon/go-radix"

	"github.com/japaniel/tokisama/pkg/dictionary"
)

const (
	// DefaultMaxResults caps the completions returned by Lookup.
	DefaultMaxResults = 5
	// DefaultMaxSimilar caps the similar translations per completion.
	DefaultMaxSimilar = 5
)

// Option configures Build.
type Option func(*Index)

// WithMetric replaces the Overlap distance.
func WithMetric(m Metric) Option {
	return func(ix *Index) { ix.metric = m }
}

// WithMaxResults overrides DefaultMaxResults.
func WithMaxResults(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxResults = n
		}
	}
}

// WithMaxSimilar overrides DefaultMaxSimilar.
func WithMaxSimilar(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxSimilar = n
		}
	}
}

// Index is immutable once built and safe for concurrent Lookup calls.
type Index struct {
	entries  []dictionary.Translation
	postings [][]int
	keys     *radix.Tree
	lx       dictionary.Surfacer
	metric   Metric

	maxResults int
	maxSimilar int
}

// Build ranks d's entries by (source ascending, weight descending) and
// indexes every English key with the ranks of its entries. d is not modified.
func Build(d *dictionary.Dictionary, lx dictionary.Surfacer, opts ...Option) *Index {
	ix := &Index{
		keys:       radix.New(),
		lx:         lx,
		metric:     Overlap{},
		maxResults: DefaultMaxResults,
		maxSimilar: DefaultMaxSimilar,
	}
	for _, opt := range opts {
		opt(ix)
	}

	if d != nil {
		ix.entries = slices.Clone(d.Entries)
	}
	slices.SortStableFunc(ix.entries, compareRank)

	for rank, e := range ix.entries {
		if v, ok := ix.keys.Get(e.English); ok {
			p := v.(int)
			ix.postings[p] = append(ix.postings[p], rank)
			continue
		}
		ix.keys.Insert(e.English, len(ix.postings))
		ix.postings = append(ix.postings, []int{rank})
	}

	return ix
}

func compareRank(a, b dictionary.Translation) int {
	if c := a.Source.Compare(b.Source); c != 0 {
		return c
	}
	return cmp.Compare(b.Weight, a.Weight)
}

// Len returns the number of ranked entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns the entries in rank order. The slice must not be modified.
func (ix *Index) Entries() []dictionary.Translation { return ix.entries }

// Keys returns the number of distinct English keys.
func (ix *Index) Keys() int { return ix.keys.Len() }

type hit struct {
	key  string
	rank int
}

// hitOrder puts hits whose key equals exact first and the rest in key order.
// Ties keep their incoming order under a stable sort.
func hitOrder(exact string) func(a, b hit) int {
	return func(a, b hit) int {
		aExact, bExact := a.key == exact, b.key == exact
		switch {
		case aExact && !bExact:
			return -1
		case bExact && !aExact:
			return 1
		}
		return cmp.Compare(a.key, b.key)
	}
}

// Lookup returns up to the configured number of completions for every key
// starting with the lowercased prefix. A key equal to the raw prefix comes
// first, then keys in lexicographic order, each key's entries in rank order.
// Keys are stored lowercased and every hit extends the prefix, so the exact
// key already sorts first; the explicit ordering only decides the result
// when stored keys are not in lowercase order.
func (ix *Index) Lookup(prefix string) []Completion {
	normalized := strings.ToLower(prefix)

	var hits []hit
	ix.keys.WalkPrefix(normalized, func(key string, v interface{}) bool {
		for _, rank := range ix.postings[v.(int)] {
			hits = append(hits, hit{key: key, rank: rank})
		}
		return false
	})

	slices.SortStableFunc(hits, hitOrder(prefix))

	if len(hits) > ix.maxResults {
		hits = hits[:ix.maxResults]
	}

	out := make([]Completion, 0, len(hits))
	for _, h := range hits {
		out = append(out, ix.complete(prefix, h))
	}
	return out
}

func (ix *Index) complete(search string, h hit) Completion {
	e := ix.entries[h.rank]
	return Completion{
		Search:      search,
		English:     h.key,
		Weight:      e.Weight,
		Source:      e.Source,
		Translation: e.Compound.Render(ix.lx),
		Similar:     ix.similar(h.rank),
	}
}

// similar scans the whole dictionary; fine for the hundreds to low
// thousands of entries this index is built for.
func (ix *Index) similar(rank int) []Similar {
	current := ix.entries[rank].Compound
	limit := max(current.Len(), 1)

	out := []Similar{}
	for i, e := range ix.entries {
		if i == rank {
			continue
		}
		d := ix.metric.Distance(e.Compound, current)
		if d > limit {
			continue
		}
		out = append(out, Similar{
			English:     e.English,
			Length:      e.Compound.Len(),
			Translation: e.Compound.Render(ix.lx),
			Source:      e.Source,
			Distance:    d,
		})
	}

	slices.SortStableFunc(out, func(a, b Similar) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Length, b.Length)
	})

	if len(out) > ix.maxSimilar {
		out = out[:ix.maxSimilar]
	}
	return out
}

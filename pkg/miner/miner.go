package miner

import (
	"bufio"
	"cmp"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/japaniel/tokisama/pkg/lexicon"
)

// DefaultCutoff is the score a candidate must exceed to be emitted.
const DefaultCutoff = 100.0

// Candidate is one scored Toki Pona word for an English query.
type Candidate struct {
	Word  lexicon.ID
	Score float64
}

// Miner holds the corpus bags and the global counts derived from them.
// It is read-only after New.
type Miner struct {
	bags    []Bag
	counts  Counts[lexicon.ID]
	english map[string]struct{}
}

// New aggregates global Toki Pona counts and the English vocabulary of bags.
func New(bags []Bag) *Miner {
	m := &Miner{
		bags:    bags,
		counts:  make(Counts[lexicon.ID]),
		english: make(map[string]struct{}),
	}
	for _, b := range bags {
		m.counts.AddAll(b.TokiPona)
		for w := range b.English {
			m.english[w] = struct{}{}
		}
	}
	return m
}

// BagCount returns the number of bags in the corpus.
func (m *Miner) BagCount() int { return len(m.bags) }

// GlobalCount returns how often id occurs across the whole corpus.
func (m *Miner) GlobalCount(id lexicon.ID) uint32 { return m.counts[id] }

// EnglishWords returns every distinct English token, sorted.
func (m *Miner) EnglishWords() []string {
	words := make([]string, 0, len(m.english))
	for w := range m.english {
		words = append(words, w)
	}
	slices.Sort(words)
	return words
}

// Score ranks Toki Pona words by association with the English word:
//
//	score(w) = bags * c / (global[w] + 1)
//
// where c counts w across the bags containing the lowercased word. Results
// are sorted by descending score, ties by id.
func (m *Miner) Score(word string) []Candidate {
	word = strings.ToLower(word)

	local := make(Counts[lexicon.ID])
	for _, b := range m.bags {
		if b.HasEnglish(word) {
			local.AddAll(b.TokiPona)
		}
	}

	total := float64(len(m.bags))
	out := make([]Candidate, 0, len(local))
	for id, c := range local {
		out = append(out, Candidate{
			Word:  id,
			Score: total * float64(c) / float64(m.counts[id]+1),
		})
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Word, b.Word)
	})
	return out
}

// ModelEntry is one emitted model row.
type ModelEntry struct {
	English    string
	Candidates []Candidate
}

// Model scores every English word and keeps the candidates above cutoff,
// truncating at the first one that is not. Words left with no candidate are
// omitted.
func (m *Miner) Model(cutoff float64) []ModelEntry {
	var out []ModelEntry
	for _, w := range m.EnglishWords() {
		scored := m.Score(w)
		n := 0
		for n < len(scored) && scored[n].Score > cutoff {
			n++
		}
		if n == 0 {
			continue
		}
		out = append(out, ModelEntry{English: w, Candidates: scored[:n]})
	}
	return out
}

// Format renders e as "english\ttoki:score..." with floored integer scores.
func (e ModelEntry) Format(lx Lexicon) string {
	var b strings.Builder
	b.WriteString(e.English)
	for _, c := range e.Candidates {
		b.WriteByte('\t')
		b.WriteString(lx.Surface(c.Word))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(math.Floor(c.Score), 'f', 0, 64))
	}
	return b.String()
}

// WriteModel writes one line per model entry and returns the number written.
func WriteModel(w io.Writer, entries []ModelEntry, lx Lexicon) (int, error) {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		if _, err := bw.WriteString(e.Format(lx) + "\n"); err != nil {
			return i, err
		}
	}
	return len(entries), bw.Flush()
}

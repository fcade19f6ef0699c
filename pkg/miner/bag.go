// Package miner mines weighted English → Toki Pona word associations from
// aligned bilingual text and emits them as a tab separated model.
package miner

import (
	"strings"

	"github.com/japaniel/tokisama/pkg/lexicon"
)

// DefaultIgnoreWords are grammatical particles that carry no meaning of
// their own and would otherwise dominate every association.
var DefaultIgnoreWords = []string{"pi", "li", "la", "a", "e"}

// Lexicon is the subset of *lexicon.Lexicon the miner needs.
type Lexicon interface {
	Lookup(word string) (lexicon.ID, bool)
	Surface(id lexicon.ID) string
}

// Counts is a frequency map.
type Counts[K comparable] map[K]uint32

// Incr adds n to k.
func (c Counts[K]) Incr(k K, n uint32) { c[k] += n }

// AddAll adds every count of other into c.
func (c Counts[K]) AddAll(other Counts[K]) {
	for k, v := range other {
		c[k] += v
	}
}

// IgnoreSet is the fixed set of lexicon ids excluded from bag counts.
type IgnoreSet map[lexicon.ID]struct{}

// NewIgnoreSet resolves words through lx; words the lexicon does not know
// are left out.
func NewIgnoreSet(lx Lexicon, words []string) IgnoreSet {
	s := make(IgnoreSet, len(words))
	for _, w := range words {
		if id, ok := lx.Lookup(w); ok {
			s[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is ignored.
func (s IgnoreSet) Contains(id lexicon.ID) bool {
	_, ok := s[id]
	return ok
}

// Bag is the word frequency snapshot of one aligned pair.
type Bag struct {
	English  Counts[string]
	TokiPona Counts[lexicon.ID]
}

// NewBag counts whitespace separated tokens of both sides. English tokens
// are kept as written; Toki Pona tokens unknown to lx or in ignore are dropped.
func NewBag(english, tokiPona string, lx Lexicon, ignore IgnoreSet) Bag {
	b := Bag{
		English:  make(Counts[string]),
		TokiPona: make(Counts[lexicon.ID]),
	}
	for _, w := range strings.Fields(english) {
		b.English.Incr(w, 1)
	}
	for _, w := range strings.Fields(tokiPona) {
		id, ok := lx.Lookup(w)
		if !ok || ignore.Contains(id) {
			continue
		}
		b.TokiPona.Incr(id, 1)
	}
	return b
}

// HasEnglish reports whether word occurs on the English side.
func (b Bag) HasEnglish(word string) bool {
	_, ok := b.English[word]
	return ok
}

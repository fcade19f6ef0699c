// Package lexicon maps Toki Pona surface words to small stable ids and back.
//
// A Lexicon is read once (usually from the pu CSV file) and is immutable
// afterwards, so a single instance can be shared by any number of goroutines.
package lexicon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// ID identifies one word of a single Lexicon instance. Ids from different
// instances must not be mixed.
type ID uint16

// Entry is one lexicon row.
type Entry struct {
	Word        string
	Alternative string
	Gloss       string
}

// Lexicon is a bijection between surface text and ID.
type Lexicon struct {
	lookup  map[string]ID
	entries []Entry
}

// ErrTooManyWords is returned when a file holds more words than ID can address.
var ErrTooManyWords = errors.New("lexicon: too many words")

// FromPairs builds a lexicon from (word, gloss) pairs, assigning ids in order.
func FromPairs(pairs [][2]string) *Lexicon {
	lx := &Lexicon{
		lookup:  make(map[string]ID, len(pairs)),
		entries: make([]Entry, 0, len(pairs)),
	}
	for _, p := range pairs {
		lx.add(Entry{Word: p[0], Gloss: p[1]})
	}
	return lx
}

// Read parses the lexicon CSV format: a header row followed by
// "word,alternative,definition" rows. Blank words are skipped and a repeated
// word keeps the id of its first occurrence.
func Read(r io.Reader) (*Lexicon, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	lx := &Lexicon{lookup: make(map[string]ID)}

	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lexicon: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 {
			continue
		}

		e := Entry{Word: strings.TrimSpace(rec[0])}
		if e.Word == "" {
			continue
		}
		if len(rec) > 1 {
			e.Alternative = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			e.Gloss = strings.TrimSpace(rec[2])
		}
		if len(lx.entries) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyWords, math.MaxUint16+1)
		}
		lx.add(e)
	}

	return lx, nil
}

// Load opens path and reads it with Read.
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lx, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lx, nil
}

func (lx *Lexicon) add(e Entry) {
	if _, ok := lx.lookup[e.Word]; ok {
		return
	}
	lx.lookup[e.Word] = ID(len(lx.entries))
	lx.entries = append(lx.entries, e)
}

// Lookup returns the id of a surface word.
func (lx *Lexicon) Lookup(word string) (ID, bool) {
	id, ok := lx.lookup[word]
	return id, ok
}

// Surface returns the surface text of id, or "" for an id this lexicon never issued.
func (lx *Lexicon) Surface(id ID) string {
	if int(id) >= len(lx.entries) {
		return ""
	}
	return lx.entries[id].Word
}

// Gloss returns the English definition of id.
func (lx *Lexicon) Gloss(id ID) string {
	if int(id) >= len(lx.entries) {
		return ""
	}
	return lx.entries[id].Gloss
}

// Len reports the number of words.
func (lx *Lexicon) Len() int { return len(lx.entries) }

package dictionary

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/japaniel/tokisama/pkg/lexicon"
)

const (
	// ModelDropoff bounds how far below the best score a mined candidate may
	// fall and still join the compound.
	ModelDropoff = 2.25
	// ModelWeightDivisor scales the best mined score down to a record weight.
	ModelWeightDivisor = 10
	// MaxGeneratedLen is the garbage filter: mined compounds this long are dropped.
	MaxGeneratedLen = 8
)

// ErrMalformedLine marks a curated or model line that cannot be parsed.
var ErrMalformedLine = errors.New("malformed line")

// Translation maps one normalised English key to a Toki Pona compound.
// Two translations are duplicates when English and Compound match, whatever
// their weight or source.
type Translation struct {
	English  string
	Compound CompoundWord
	Weight   uint32
	Source   Source
}

// SameAs reports whether t and other are duplicates.
func (t Translation) SameAs(other Translation) bool {
	return t.English == other.English && t.Compound.Equal(other.Compound)
}

// NormalizeKey lowercases and trims an English key.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedLine, fmt.Sprintf(format, args...))
}

// ParseLine parses a curated wordset line:
//
//	lipu moku: [menu 50, restaurant card 20]
//
// Empty lines and lines starting with '#' yield no translations and no error.
// Any unknown Toki Pona word or bad weight fails the whole line.
func ParseLine(line string, lx Lexicon, source Source) ([]Translation, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	tokiPona, definitions, ok := strings.Cut(line, ":")
	if !ok {
		return nil, malformed("missing ':' separator")
	}

	compound, unknown, ok := ParseCompound(tokiPona, lx)
	if !ok {
		return nil, malformed("unknown toki pona word %q", unknown)
	}

	start := strings.IndexByte(definitions, '[')
	end := strings.IndexByte(definitions, ']')
	if start < 0 || end < 0 || end < start {
		return nil, malformed("missing [...] definition list")
	}

	parts := strings.Split(definitions[start+1:end], ",")
	out := make([]Translation, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		i := strings.LastIndexByte(part, ' ')
		if i < 0 {
			return nil, malformed("definition %q has no weight", part)
		}
		weight, err := strconv.ParseUint(part[i+1:], 10, 32)
		if err != nil {
			return nil, malformed("definition %q: weight: %v", part, err)
		}
		english := NormalizeKey(part[:i])
		if english == "" {
			return nil, malformed("definition %q has no english text", part)
		}
		out = append(out, Translation{
			English:  english,
			Compound: compound,
			Weight:   uint32(weight),
			Source:   source,
		})
	}

	return out, nil
}

// FromModelLine rebuilds a Generated translation from one mined model line:
//
//	english\ttoki1:score1\ttoki2:score2...
//
// Candidates join the compound while their score exceeds best/ModelDropoff;
// the first one that does not ends the compound. ok is false without an
// error when the line has no candidates or hits the MaxGeneratedLen filter.
func FromModelLine(line string, lx Lexicon) (t Translation, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Translation{}, false, nil
	}

	fields := strings.Split(line, "\t")
	english := NormalizeKey(fields[0])
	if english == "" {
		return Translation{}, false, malformed("missing english word")
	}

	type candidate struct {
		id     lexicon.ID
		weight uint32
	}
	candidates := make([]candidate, 0, len(fields)-1)
	for _, f := range fields[1:] {
		word, score, found := strings.Cut(f, ":")
		if !found {
			return Translation{}, false, malformed("candidate %q has no score", f)
		}
		w, err := strconv.ParseUint(score, 10, 32)
		if err != nil {
			return Translation{}, false, malformed("candidate %q: score: %v", f, err)
		}
		id, known := lx.Lookup(word)
		if !known {
			return Translation{}, false, malformed("unknown toki pona word %q", word)
		}
		candidates = append(candidates, candidate{id: id, weight: uint32(w)})
	}
	if len(candidates) == 0 {
		return Translation{}, false, nil
	}

	initial := candidates[0].weight
	threshold := float64(initial) / ModelDropoff

	var compound CompoundWord
	for _, c := range candidates {
		if float64(c.weight) <= threshold {
			break
		}
		compound = append(compound, c.id)
	}

	if len(compound) >= MaxGeneratedLen {
		return Translation{}, false, nil
	}

	return Translation{
		English:  english,
		Compound: compound,
		Weight:   initial / ModelWeightDivisor,
		Source:   Generated,
	}, true, nil
}

package dictionary

import (
	"cmp"
	"fmt"
	"strings"
)

// Source is the trust tier a translation came from. Tiers are totally
// ordered and a lower value means more trusted; ranking everywhere sorts
// by Source first.
type Source uint8

const (
	// Canonical is the hand-authored core vocabulary.
	Canonical Source = iota
	// Curated is hand-authored compound phrases.
	Curated
	// Generated is mined from corpora.
	Generated
)

// Sources lists every tier in priority order.
var Sources = []Source{Canonical, Curated, Generated}

var sourceNames = [...]string{
	Canonical: "canonical",
	Curated:   "curated",
	Generated: "generated",
}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

// Valid reports whether s is one of the declared tiers.
func (s Source) Valid() bool { return int(s) < len(sourceNames) }

// Compare returns -1 if s is more trusted than other, 1 if less, 0 if equal.
func (s Source) Compare(other Source) int { return cmp.Compare(s, other) }

// ParseSource is the inverse of String.
func ParseSource(name string) (Source, error) {
	for i, n := range sourceNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Source(i), nil
		}
	}
	return 0, fmt.Errorf("unknown source tier %q", name)
}

func (s Source) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid source tier %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	v, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

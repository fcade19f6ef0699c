// Package dictionary holds the translation data model: compounds, source
// tiers, translation records and the Dictionary that merges them.
package dictionary

// Dictionary accumulates translations. After any Merge it holds no two
// records with the same (English, Compound) pair.
type Dictionary struct {
	Entries []Translation
}

// New returns an empty dictionary.
func New() *Dictionary {
	return &Dictionary{}
}

// Add appends translations without deduplicating.
func (d *Dictionary) Add(ts ...Translation) {
	d.Entries = append(d.Entries, ts...)
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.Entries) }

// Merge appends incoming's entries and then drops every record that
// duplicates an earlier one. The first occurrence wins, so the weight and
// tier kept for a duplicated pair depend on merge order, not on priority.
func (d *Dictionary) Merge(incoming *Dictionary) {
	if incoming != nil {
		d.Entries = append(d.Entries, incoming.Entries...)
	}
	d.dedup()
}

// MergeTiers merges tiers left to right into a new dictionary. Pass tiers
// in priority order (Canonical, Curated, Generated) to keep the most
// trusted copy of each duplicate; changing the order changes which copy
// survives.
func MergeTiers(tiers ...*Dictionary) *Dictionary {
	out := New()
	for _, t := range tiers {
		out.Merge(t)
	}
	return out
}

// dedup keeps the first record of each (English, Compound) pair. Records
// are bucketed by English key and compared within the bucket, which stays
// small for real dictionaries.
func (d *Dictionary) dedup() {
	seen := make(map[string][]int, len(d.Entries))
	kept := d.Entries[:0]

	for _, e := range d.Entries {
		dup := false
		for _, i := range seen[e.English] {
			if kept[i].Compound.Equal(e.Compound) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[e.English] = append(seen[e.English], len(kept))
		kept = append(kept, e)
	}

	clear(d.Entries[len(kept):])
	d.Entries = kept
}

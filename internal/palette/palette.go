// Package palette holds the closed set of bead colors a design may use and
// answers nearest-color queries in CIE Lab space.
package palette

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/beadcraft/beadcore/internal/colorspace"
)

// ID identifies a palette entry by brand and name; it is unique within a
// Palette.
type ID struct {
	Brand string `json:"brand"`
	Name  string `json:"name"`
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%s", id.Brand, id.Name)
}

// Entry is an immutable palette record. Lab is derived from RGB at
// construction and cached.
type Entry struct {
	ID  ID
	RGB colorspace.RGB8
	Lab colorspace.Lab
}

// Palette is an ordered, append-only sequence of Entry with unique IDs.
type Palette struct {
	entries []Entry
	byID    map[ID]int
}

// New builds a Palette from brand/name/rgb triples, computing Lab for each
// entry. Insertion order is preserved and used as the nearest-match tiebreak.
func New(entries []Entry) (*Palette, error) {
	p := &Palette{byID: make(map[ID]int, len(entries))}
	for _, e := range entries {
		if err := p.add(e); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Palette) add(e Entry) error {
	if _, exists := p.byID[e.ID]; exists {
		return fmt.Errorf("palette: duplicate entry id %s", e.ID)
	}
	e.Lab = colorspace.ToLab(e.RGB)
	p.byID[e.ID] = len(p.entries)
	p.entries = append(p.entries, e)
	return nil
}

// Len reports the number of entries in the palette.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Entries returns the palette entries in insertion order. The returned
// slice must not be mutated.
func (p *Palette) Entries() []Entry {
	if p == nil {
		return nil
	}
	return p.entries
}

// ErrEmptyPalette is returned by Nearest when the palette has no entries.
type ErrEmptyPalette struct{}

func (ErrEmptyPalette) Error() string { return "palette: empty palette" }

// Nearest returns the entry whose Lab is closest to lab by ΔE2000, and the
// ΔE2000 distance to it. Ties are broken by first insertion order: a later
// entry only replaces the current best when it is strictly closer.
func (p *Palette) Nearest(lab colorspace.Lab) (Entry, float64, error) {
	if p == nil || len(p.entries) == 0 {
		return Entry{}, 0, ErrEmptyPalette{}
	}
	best := p.entries[0]
	bestDE := colorspace.DeltaE2000(lab, best.Lab)
	for _, e := range p.entries[1:] {
		de := colorspace.DeltaE2000(lab, e.Lab)
		if de < bestDE {
			bestDE = de
			best = e
		}
	}
	return best, bestDE, nil
}

// Confidence maps a ΔE2000 distance to a [0,1] match-quality score used by
// callers when reporting how good a palette match is.
func Confidence(deltaE float64) float64 {
	if deltaE < 2 {
		return 1
	}
	c := 1 - (deltaE-2)/15
	if c < 0 {
		return 0
	}
	return c
}

// fileEntry mirrors the on-disk palette file shape: a brand name mapped to
// a list of {name, 6-digit uppercase hex without '#'}.
type fileEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LoadJSON parses a palette file shaped as {brand: [{name, color}, ...]}.
// The loader prepends '#' for convenience and computes Lab on load; it
// rejects malformed hex colors and duplicate (brand, name) ids before
// returning. Brands are inserted in sorted order so Nearest's
// insertion-order tiebreak is deterministic regardless of Go's randomized
// map iteration.
func LoadJSON(data []byte) (*Palette, error) {
	var raw map[string][]fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("palette: parse file: %w", err)
	}

	brands := make([]string, 0, len(raw))
	for brand := range raw {
		brands = append(brands, brand)
	}
	sort.Strings(brands)

	p := &Palette{byID: make(map[ID]int)}
	for _, brand := range brands {
		for _, item := range raw[brand] {
			rgb, err := parseHex6(item.Color)
			if err != nil {
				return nil, fmt.Errorf("palette: %s/%s: %w", brand, item.Name, err)
			}
			entry := Entry{ID: ID{Brand: brand, Name: item.Name}, RGB: rgb}
			if err := p.add(entry); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func parseHex6(hex string) (colorspace.RGB8, error) {
	if len(hex) != 6 {
		return colorspace.RGB8{}, fmt.Errorf("color %q must be 6 hex digits without '#'", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return colorspace.RGB8{}, fmt.Errorf("color %q is not valid hex: %w", hex, err)
	}
	return colorspace.RGB8{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// Package design is the persisted design record: the JSON-serializable
// state a bead-craft project saves between sessions, grounded on the
// teacher's own JSON spec-file shape (marshal/validate/save/load). This
// package is data model only — no store service lives here.
package design

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/beadcraft/beadcore/internal/sampler"
)

// PaletteSelection is a brand's selected bead names, e.g. "Hama" -> ["H1",
// "H2", ...].
type PaletteSelection map[string][]string

// Record is a saved design: grid dimensions, the Quantizer settings used
// to produce it, which palette entries are in play, and display hints.
type Record struct {
	ID         string `json:"id"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	CellSizePx int    `json:"cell_size_px"`

	QuantizerMode     sampler.Mode `json:"quantizer_mode"`
	QuantizerEdgeTrim bool         `json:"quantizer_edge_trim"`

	Palette PaletteSelection `json:"palette"`

	ShowText           bool `json:"show_text"`
	ShowReferenceLines bool `json:"show_reference_lines"`

	CreatedAtMS int64 `json:"created_at_ms"`
	UpdatedAtMS int64 `json:"updated_at_ms"`
}

// ErrInvalidRecord is returned by Validate when a design record is
// structurally unusable.
type ErrInvalidRecord struct {
	Reason string
}

func (e ErrInvalidRecord) Error() string {
	return fmt.Sprintf("design: invalid record: %s", e.Reason)
}

// Validate checks the structural invariants a Record must satisfy to be
// usable by the Quantizer/Recognition pipeline: positive dimensions and a
// non-empty palette selection.
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrInvalidRecord{Reason: "id is required"}
	}
	if r.Rows <= 0 || r.Cols <= 0 {
		return ErrInvalidRecord{Reason: "rows and cols must be positive"}
	}
	if r.CellSizePx <= 0 {
		return ErrInvalidRecord{Reason: "cell_size_px must be positive"}
	}
	if len(r.Palette) == 0 {
		return ErrInvalidRecord{Reason: "at least one palette brand must be selected"}
	}
	for brand, names := range r.Palette {
		if len(names) == 0 {
			return ErrInvalidRecord{Reason: fmt.Sprintf("brand %q has no selected colors", brand)}
		}
	}
	return nil
}

// Marshal serializes the record to indented JSON, matching the teacher's
// SaveToFile formatting.
func (r *Record) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Unmarshal parses a Record from JSON and validates it.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("design: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveToFile writes the record as indented JSON to path.
func (r *Record) SaveToFile(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile reads and validates a Record from a JSON file.
func LoadFromFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Package grid holds the shared pixel-grid data model produced by both the
// Quantizer and the Recognition Pipeline: a rows x cols matrix of cells,
// each either empty or bound to a palette entry.
package grid

import (
	"github.com/beadcraft/beadcore/internal/colorspace"
	"github.com/beadcraft/beadcore/internal/palette"
)

// Cell is a PixelCell: either empty (Occupied == false) or a value bound to
// a palette entry of the active palette.
type Cell struct {
	Occupied  bool
	RGB       colorspace.RGB8
	PaletteID palette.ID
	Conf      float64 // confidence in [0,1]
}

// PixelGrid is a dense rows x cols matrix of Cell, stored row-major.
// Invariants: rows>=1, cols>=1, the grid is rectangular by construction
// (no ragged rows), and every contained PaletteID belongs to the palette
// that produced it (enforced by the caller — this package does not hold a
// palette reference).
type PixelGrid struct {
	Rows, Cols int
	cells      []Cell
}

// New allocates an all-empty rows x cols grid.
func New(rows, cols int) *PixelGrid {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &PixelGrid{Rows: rows, Cols: cols, cells: make([]Cell, rows*cols)}
}

func (g *PixelGrid) index(r, c int) int { return r*g.Cols + c }

// At returns the cell at (row, col).
func (g *PixelGrid) At(r, c int) Cell {
	return g.cells[g.index(r, c)]
}

// Set assigns the cell at (row, col).
func (g *PixelGrid) Set(r, c int, cell Cell) {
	g.cells[g.index(r, c)] = cell
}

// Each visits every cell in row-major (row, col) order.
func (g *PixelGrid) Each(fn func(r, c int, cell Cell)) {
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			fn(r, c, g.At(r, c))
		}
	}
}

// Model is the result of Grid Detection: the recovered lattice pitch,
// origin, dimensions, and confidence.
type Model struct {
	PitchX, PitchY   float64
	OriginX, OriginY float64
	Rows, Cols       int
	Confidence       float64
}

// CellCenter returns the image-space center of cell (row, col) under this
// model.
func (m Model) CellCenter(row, col int) (x, y float64) {
	return m.OriginX + float64(col)*m.PitchX, m.OriginY + float64(row)*m.PitchY
}

// FitsInside reports whether the model's last cell center, plus one
// half-pitch radius, lies strictly inside [0,w)x[0,h).
func (m Model) FitsInside(w, h int) bool {
	lastX, lastY := m.CellCenter(m.Rows-1, m.Cols-1)
	halfX, halfY := m.PitchX/2, m.PitchY/2
	return lastX+halfX < float64(w) && lastX-halfX >= 0 &&
		lastY+halfY < float64(h) && lastY-halfY >= 0
}

// Analysis is the per-cell record produced by the Cell Analyzer.
type Analysis struct {
	Row, Col               int
	CenterX, CenterY       float64
	CenterMean, RingMean   float64
	Contrast               float64
	Saturation             float64
	EdgeDensity            float64
	Occupied               bool
	Confidence             float64
}

// Package sampler picks a single representative RGB8 for a rectangular
// block of a source image under one of five closed sampling modes.
package sampler

import (
	"image"
	"image/color"

	"github.com/beadcraft/beadcore/internal/colorspace"
)

// Mode is a closed tagged variant selecting how a block is reduced to one
// color. The set is closed; callers switch on it rather than extending it.
type Mode int

const (
	// Dominant picks the pixel with the largest exact (R,G,B) count in the
	// trimmed block; ties go to the first pixel seen in scan order.
	Dominant Mode = iota
	// Average takes the channel-wise integer mean of the trimmed block.
	Average
	// Center samples the single pixel at the block's geometric center.
	Center
	// Diagonal45 samples the single pixel at fractional offset (4/5, 4/5)
	// within the trimmed block.
	Diagonal45
	// Original bypasses block sampling entirely: the caller resamples the
	// whole image to the target grid first and this mode is never invoked
	// per-block. It exists here only so callers can validate the tag.
	Original
)

// Block is a half-open rectangle [X0,X1)×[Y0,Y1) in image coordinates.
// trimmed marks whether edgeTrim has already been applied, which is what
// makes a second call to edgeTrim a no-op (see edgeTrim below and the
// edge-trim idempotence property in SPEC_FULL.md §8).
type Block struct {
	X0, Y0, X1, Y1 int
	trimmed        bool
}

// NewBlock constructs an untrimmed block.
func NewBlock(x0, y0, x1, y1 int) Block {
	return Block{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// edgeTrim shrinks b by 15% on each side, minimum 1px, to avoid grid-line
// artifacts in screenshots of printed patterns. Trimming an already-trimmed
// block is a no-op: trim(trim(b)) == trim(b).
func edgeTrim(b Block) Block {
	if b.trimmed {
		return b
	}

	w := b.X1 - b.X0
	h := b.Y1 - b.Y0

	marginX := w * 15 / 100
	if marginX < 1 {
		marginX = 1
	}
	marginY := h * 15 / 100
	if marginY < 1 {
		marginY = 1
	}

	x0, x1 := b.X0+marginX, b.X1-marginX
	if x0 >= x1 {
		x0, x1 = b.X0, b.X1
	}
	y0, y1 := b.Y0+marginY, b.Y1-marginY
	if y0 >= y1 {
		y0, y1 = b.Y0, b.Y1
	}
	return Block{X0: x0, Y0: y0, X1: x1, Y1: y1, trimmed: true}
}

// Sample reduces the block of src under mode to a single RGB8. edgeTrim, if
// true, shrinks the block by 15% per side (min 1px) before sampling. mode
// must not be Original; the Original mode is handled by the caller via a
// whole-image resample (see the quantize package).
func Sample(src image.Image, b Block, mode Mode, edgeTrimEnabled bool) colorspace.RGB8 {
	block := b
	if edgeTrimEnabled {
		block = edgeTrim(b)
	}

	switch mode {
	case Dominant:
		return sampleDominant(src, block)
	case Average:
		return sampleAverage(src, block)
	case Center:
		return samplePoint(src, centerPoint(block))
	case Diagonal45:
		return samplePoint(src, diagonalPoint(block))
	default:
		// Original is resolved by the caller; sampling a block under it
		// degrades to the center pixel so misuse still returns something
		// deterministic rather than panicking.
		return samplePoint(src, centerPoint(block))
	}
}

func centerPoint(b Block) image.Point {
	return image.Point{X: (b.X0 + b.X1) / 2, Y: (b.Y0 + b.Y1) / 2}
}

// diagonalPoint returns the block point at fractional offset (4/5, 4/5),
// applied literally to whatever span (trimmed or not) was passed in — see
// the open question in SPEC_FULL.md §9 about this mode's rounding rule.
func diagonalPoint(b Block) image.Point {
	w := b.X1 - b.X0
	h := b.Y1 - b.Y0
	x := b.X0 + (w-1)*4/5
	y := b.Y0 + (h-1)*4/5
	if w > 0 && x >= b.X1 {
		x = b.X1 - 1
	}
	if h > 0 && y >= b.Y1 {
		y = b.Y1 - 1
	}
	return image.Point{X: x, Y: y}
}

func samplePoint(src image.Image, p image.Point) colorspace.RGB8 {
	r, g, b, _ := src.At(p.X, p.Y).RGBA()
	return colorspace.RGB8{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

func sampleAverage(src image.Image, b Block) colorspace.RGB8 {
	var sumR, sumG, sumB, n uint64
	for y := b.Y0; y < b.Y1; y++ {
		for x := b.X0; x < b.X1; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(bl >> 8)
			n++
		}
	}
	if n == 0 {
		return samplePoint(src, centerPoint(b))
	}
	return colorspace.RGB8{
		R: uint8(sumR / n),
		G: uint8(sumG / n),
		B: uint8(sumB / n),
	}
}

func sampleDominant(src image.Image, b Block) colorspace.RGB8 {
	counts := make(map[color.RGBA]int)
	order := make([]color.RGBA, 0, 16)

	for y := b.Y0; y < b.Y1; y++ {
		for x := b.X0; x < b.X1; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255}
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
	}

	if len(order) == 0 {
		return samplePoint(src, centerPoint(b))
	}

	best := order[0]
	bestCount := counts[best]
	for _, c := range order[1:] {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return colorspace.RGB8{R: best.R, G: best.G, B: best.B}
}

// Package quantize converts a raster image into a grid of cells, each
// assigned the best-matching color from a palette.
package quantize

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/beadcraft/beadcore/internal/colorspace"
	"github.com/beadcraft/beadcore/internal/grid"
	"github.com/beadcraft/beadcore/internal/palette"
	"github.com/beadcraft/beadcore/internal/sampler"
)

// Options configures a single Quantize call.
type Options struct {
	Width, Height int
	Mode          sampler.Mode
	EdgeTrim      bool
}

// DefaultOptions returns typical synthesis-mode defaults.
func DefaultOptions(width, height int) Options {
	return Options{Width: width, Height: height, Mode: sampler.Average, EdgeTrim: true}
}

// ErrInvalidImage is returned for empty, zero-dimension source images.
type ErrInvalidImage struct{ Reason string }

func (e ErrInvalidImage) Error() string { return "quantize: invalid image: " + e.Reason }

// Quantize maps src onto a opts.Width x opts.Height palette-color grid using
// opts.Mode and the palette p. Exactly Width*Height cells are assigned;
// every cell's palette id belongs to p. Given identical inputs (including
// palette order) the output is bitwise identical.
func Quantize(src image.Image, p *palette.Palette, opts Options) (*grid.PixelGrid, error) {
	if src == nil {
		return nil, ErrInvalidImage{Reason: "nil source image"}
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrInvalidImage{Reason: "zero-dimension image"}
	}
	if opts.Width < 1 || opts.Height < 1 {
		return nil, fmt.Errorf("quantize: target grid dimensions must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if p.Len() == 0 {
		return nil, palette.ErrEmptyPalette{}
	}

	g := grid.New(opts.Height, opts.Width)

	if opts.Mode == sampler.Original {
		resampled := resampleExact(src, opts.Width, opts.Height)
		for r := 0; r < opts.Height; r++ {
			for c := 0; c < opts.Width; c++ {
				rgbaR, rgbaG, rgbaB, _ := resampled.At(c, r).RGBA()
				rgb := colorspace.RGB8{R: uint8(rgbaR >> 8), G: uint8(rgbaG >> 8), B: uint8(rgbaB >> 8)}
				if err := assign(g, r, c, rgb, p); err != nil {
					return nil, err
				}
			}
		}
		return g, nil
	}

	iw, ih := bounds.Dx(), bounds.Dy()
	ox, oy := bounds.Min.X, bounds.Min.Y
	for r := 0; r < opts.Height; r++ {
		y0 := roundDiv((r)*ih, opts.Height)
		y1 := roundDiv((r+1)*ih, opts.Height)
		for c := 0; c < opts.Width; c++ {
			x0 := roundDiv((c)*iw, opts.Width)
			x1 := roundDiv((c+1)*iw, opts.Width)
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if y1 <= y0 {
				y1 = y0 + 1
			}
			block := sampler.NewBlock(ox+x0, oy+y0, ox+x1, oy+y1)
			rgb := sampler.Sample(src, block, opts.Mode, opts.EdgeTrim)
			if err := assign(g, r, c, rgb, p); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func assign(g *grid.PixelGrid, r, c int, rgb colorspace.RGB8, p *palette.Palette) error {
	lab := colorspace.ToLab(rgb)
	entry, de, err := p.Nearest(lab)
	if err != nil {
		return fmt.Errorf("quantize: cell (%d,%d): %w", r, c, err)
	}
	g.Set(r, c, grid.Cell{
		Occupied:  true,
		RGB:       entry.RGB,
		PaletteID: entry.ID,
		Conf:      palette.Confidence(de),
	})
	return nil
}

// roundDiv computes round(num/den) using integer arithmetic, matching the
// spec's round((i+1)*iw/W) block-boundary formula.
func roundDiv(num, den int) int {
	if den == 0 {
		return 0
	}
	if num < 0 {
		return -roundDiv(-num, den)
	}
	return (2*num + den) / (2 * den)
}

// resampleExact bilinearly resamples src to exactly w x h pixels.
func resampleExact(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

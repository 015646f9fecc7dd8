package quantize

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beadcraft/beadcore/internal/colorspace"
	"github.com/beadcraft/beadcore/internal/grid"
	"github.com/beadcraft/beadcore/internal/palette"
	"github.com/beadcraft/beadcore/internal/sampler"
)

func redBlueGrayPalette(t *testing.T) *palette.Palette {
	t.Helper()
	p, err := palette.New([]palette.Entry{
		{ID: palette.ID{Brand: "H", Name: "Red"}, RGB: colorspace.RGB8{255, 0, 0}},
		{ID: palette.ID{Brand: "H", Name: "Blue"}, RGB: colorspace.RGB8{0, 0, 255}},
		{ID: palette.ID{Brand: "H", Name: "Gray"}, RGB: colorspace.RGB8{128, 128, 128}},
	})
	require.NoError(t, err)
	return p
}

// Scenario 1 (SPEC_FULL.md §8): checkerboard quantization.
func TestCheckerboardQuantizationOriginalMode(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, red)
			} else {
				img.Set(x, y, blue)
			}
		}
	}

	p := redBlueGrayPalette(t)
	g, err := Quantize(img, p, Options{Width: 4, Height: 4, Mode: sampler.Original})
	require.NoError(t, err)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			cell := g.At(y, x)
			require.True(t, cell.Occupied)
			require.InDelta(t, 1.0, cell.Conf, 1e-9)
			if (x+y)%2 == 0 {
				require.Equal(t, "Red", cell.PaletteID.Name)
			} else {
				require.Equal(t, "Blue", cell.PaletteID.Name)
			}
		}
	}
}

// Scenario 2 (SPEC_FULL.md §8): average mode over a vertically-split image.
func TestAverageModeVerticalSplit(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	black := color.RGBA{0, 0, 0, 255}
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 5 {
				img.Set(x, y, white)
			} else {
				img.Set(x, y, black)
			}
		}
	}

	p, err := palette.New([]palette.Entry{
		{ID: palette.ID{Brand: "H", Name: "White"}, RGB: colorspace.RGB8{255, 255, 255}},
		{ID: palette.ID{Brand: "H", Name: "Black"}, RGB: colorspace.RGB8{0, 0, 0}},
		{ID: palette.ID{Brand: "H", Name: "Gray"}, RGB: colorspace.RGB8{128, 128, 128}},
	})
	require.NoError(t, err)

	g, err := Quantize(img, p, Options{Width: 2, Height: 1, Mode: sampler.Average, EdgeTrim: false})
	require.NoError(t, err)
	require.Equal(t, "White", g.At(0, 0).PaletteID.Name)
	require.Equal(t, "Black", g.At(0, 1).PaletteID.Name)
}

// Scenario 3 (SPEC_FULL.md §8): palette ordering tiebreak.
func TestPaletteOrderingTiebreak(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{100, 100, 100, 255})
		}
	}

	p, err := palette.New([]palette.Entry{
		{ID: palette.ID{Brand: "H", Name: "A"}, RGB: colorspace.RGB8{100, 100, 100}},
		{ID: palette.ID{Brand: "H", Name: "B"}, RGB: colorspace.RGB8{100, 100, 100}},
	})
	require.NoError(t, err)

	g, err := Quantize(img, p, Options{Width: 2, Height: 2, Mode: sampler.Average})
	require.NoError(t, err)
	g.Each(func(r, c int, cell grid.Cell) {
		require.Equal(t, "A", cell.PaletteID.Name)
	})
}

func TestQuantizeDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 17, 13))
	for y := 0; y < 13; y++ {
		for x := 0; x < 17; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 11), uint8(x + y), 255})
		}
	}
	p := redBlueGrayPalette(t)
	opts := Options{Width: 5, Height: 4, Mode: sampler.Dominant, EdgeTrim: true}

	g1, err := Quantize(img, p, opts)
	require.NoError(t, err)
	g2, err := Quantize(img, p, opts)
	require.NoError(t, err)

	g1.Each(func(r, c int, cell grid.Cell) {
		other := g2.At(r, c)
		require.Equal(t, cell, other)
	})
}

func TestQuantizeExactShape(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 9, 7))
	p := redBlueGrayPalette(t)
	g, err := Quantize(img, p, Options{Width: 6, Height: 8, Mode: sampler.Average})
	require.NoError(t, err)
	require.Equal(t, 8, g.Rows)
	require.Equal(t, 6, g.Cols)
}

func TestQuantizeRejectsEmptyPalette(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	p, err := palette.New(nil)
	require.NoError(t, err)
	_, err = Quantize(img, p, Options{Width: 2, Height: 2, Mode: sampler.Average})
	require.Error(t, err)
}

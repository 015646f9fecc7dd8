package sampler

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func checkerboard(w, h int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

func TestEdgeTrimIdempotent(t *testing.T) {
	b := NewBlock(0, 0, 40, 40)
	once := edgeTrim(b)
	twice := edgeTrim(once)
	require.Equal(t, once, twice)
}

func TestEdgeTrimMinimumOnePixel(t *testing.T) {
	b := NewBlock(0, 0, 2, 2)
	trimmed := edgeTrim(b)
	require.GreaterOrEqual(t, trimmed.X0, b.X0)
	require.LessOrEqual(t, trimmed.X1, b.X1)
}

func TestAverageModeSplitsBlackWhite(t *testing.T) {
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

	left := Sample(img, NewBlock(0, 0, 5, 10), Average, false)
	right := Sample(img, NewBlock(5, 0, 10, 10), Average, false)
	require.InDelta(t, 255, int(left.R), 1)
	require.InDelta(t, 0, int(right.R), 1)
}

func TestDominantModeTieBreaksFirstSeen(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{10, 20, 30, 255})
	img.Set(1, 0, color.RGBA{40, 50, 60, 255})

	got := Sample(img, NewBlock(0, 0, 2, 1), Dominant, false)
	require.Equal(t, uint8(10), got.R)
}

func TestCenterModeSamplesGeometricCenter(t *testing.T) {
	img := checkerboard(4, 4, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255})
	got := Sample(img, NewBlock(0, 0, 4, 4), Center, false)
	r, g, b, _ := img.At(2, 2).RGBA()
	require.Equal(t, uint8(r>>8), got.R)
	require.Equal(t, uint8(g>>8), got.G)
	require.Equal(t, uint8(b>>8), got.B)
}

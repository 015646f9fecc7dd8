package imageutil

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestToMatToImageRoundTrip(t *testing.T) {
	src := solidImage(6, 4, color.RGBA{R: 30, G: 140, B: 220, A: 255})

	mat, err := ToMat(src)
	require.NoError(t, err)
	defer mat.Close()

	require.Equal(t, 4, mat.Rows())
	require.Equal(t, 6, mat.Cols())

	got := ToImage(mat)
	require.Equal(t, 6, got.Bounds().Dx())
	require.Equal(t, 4, got.Bounds().Dy())

	r, g, b, a := got.At(2, 1).RGBA()
	require.Equal(t, uint8(30), uint8(r>>8))
	require.Equal(t, uint8(140), uint8(g>>8))
	require.Equal(t, uint8(220), uint8(b>>8))
	require.Equal(t, uint8(255), uint8(a>>8))
}

func TestToMatRejectsZeroDimensionImage(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	_, err := ToMat(empty)
	require.Error(t, err)
}

func TestDeriveProducesGrayAndHSVOfMatchingSize(t *testing.T) {
	src := solidImage(5, 5, color.RGBA{R: 10, G: 200, B: 90, A: 255})

	d, err := Derive(src)
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, 5, d.Gray.Rows())
	require.Equal(t, 5, d.Gray.Cols())
	require.Equal(t, 1, d.Gray.Channels())

	require.Equal(t, 5, d.HSV.Rows())
	require.Equal(t, 5, d.HSV.Cols())
	require.Equal(t, 3, d.HSV.Channels())
}

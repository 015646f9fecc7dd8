package colorextract

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/require"
)

func solidMat(size int, b, g, r uint8) gocv.Mat {
	mat := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC3)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			mat.SetUCharAt(y, x*3+0, b)
			mat.SetUCharAt(y, x*3+1, g)
			mat.SetUCharAt(y, x*3+2, r)
		}
	}
	return mat
}

func TestExtractSolidColorReturnsThatColor(t *testing.T) {
	mat := solidMat(40, 0, 0, 255) // pure red (BGR)
	defer mat.Close()

	res := Extract(mat, 20, 20, 20, 20, 42, DefaultParams())
	require.InDelta(t, 255, int(res.RGB.R), 2)
	require.InDelta(t, 0, int(res.RGB.G), 2)
	require.InDelta(t, 0, int(res.RGB.B), 2)
	require.Greater(t, res.Confidence, 0.5)
}

func TestExtractIsDeterministicForSameSeed(t *testing.T) {
	mat := gocv.NewMatWithSize(40, 40, gocv.MatTypeCV8UC3)
	defer mat.Close()
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if (x+y)%2 == 0 {
				mat.SetUCharAt(y, x*3+0, 0)
				mat.SetUCharAt(y, x*3+1, 0)
				mat.SetUCharAt(y, x*3+2, 255)
			} else {
				mat.SetUCharAt(y, x*3+0, 255)
				mat.SetUCharAt(y, x*3+1, 255)
				mat.SetUCharAt(y, x*3+2, 255)
			}
		}
	}

	a := Extract(mat, 20, 20, 20, 20, 7, DefaultParams())
	b := Extract(mat, 20, 20, 20, 20, 7, DefaultParams())
	require.Equal(t, a, b)
}

func TestExtractFallsBackToNeutralGrayWhenOutOfBounds(t *testing.T) {
	mat := solidMat(4, 10, 10, 10)
	defer mat.Close()

	res := Extract(mat, -100, -100, 20, 20, 1, DefaultParams())
	require.Equal(t, uint8(128), res.RGB.R)
	require.Equal(t, uint8(128), res.RGB.G)
	require.Equal(t, uint8(128), res.RGB.B)
	require.Equal(t, 0.0, res.Confidence)
}

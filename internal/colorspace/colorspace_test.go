package colorspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripError(t *testing.T) {
	samples := []RGB8{
		{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{128, 64, 200}, {17, 200, 3}, {90, 90, 90},
	}
	for _, rgb := range samples {
		lab := ToLab(rgb)
		back := ToRGB8(lab)
		labBack := ToLab(back)
		roundTripErr := DeltaE2000(lab, labBack)
		require.Lessf(t, roundTripErr, 0.5, "round trip error too large for %+v: got %v", rgb, roundTripErr)
	}
}

func TestDeltaESymmetry(t *testing.T) {
	a := ToLab(RGB8{10, 200, 50})
	b := ToLab(RGB8{240, 30, 90})
	require.InDelta(t, DeltaE2000(a, b), DeltaE2000(b, a), 1e-6)
}

func TestDeltaEZeroForIdenticalColors(t *testing.T) {
	lab := ToLab(RGB8{100, 150, 200})
	require.InDelta(t, 0, DeltaE2000(lab, lab), 1e-9)
}

// Reference values from Sharma, Wu & Dua's published CIEDE2000 test data set.
func TestDeltaE2000ReferenceTable(t *testing.T) {
	cases := []struct {
		l1, a1, b1 float64
		l2, a2, b2 float64
		want       float64
	}{
		{50.0000, 2.6772, -79.7751, 50.0000, 0.0000, -82.7485, 2.0425},
		{50.0000, 3.1571, -77.2803, 50.0000, 0.0000, -82.7485, 2.8615},
		{50.0000, 2.8361, -74.0200, 50.0000, 0.0000, -82.7485, 3.4412},
		{50.0000, -1.3802, -84.2814, 50.0000, 0.0000, -82.7485, 1.0000},
		{50.0000, -1.1848, -84.8006, 50.0000, 0.0000, -82.7485, 1.0000},
		{50.0000, -0.9009, -85.5211, 50.0000, 0.0000, -82.7485, 1.0000},
		{50.0000, 0.0000, 0.0000, 50.0000, -1.0000, 2.0000, 2.3669},
		{50.0000, -1.0000, 2.0000, 50.0000, 0.0000, 0.0000, 2.3669},
		{50.0000, 2.5000, 0.0000, 50.0000, 3.1736, 0.5854, 1.0000},
		{50.0000, 2.5000, 0.0000, 50.0000, 3.2972, 0.0000, 1.0000},
	}
	for i, c := range cases {
		got := DeltaE2000(Lab{c.l1, c.a1, c.b1}, Lab{c.l2, c.a2, c.b2})
		require.InDeltaf(t, c.want, got, 0.01, "case %d: want %v got %v", i, c.want, got)
	}
}

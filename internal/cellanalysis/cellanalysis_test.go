package cellanalysis

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/require"

	"github.com/beadcraft/beadcore/internal/grid"
)

// Scenario 5: a 1x3 cell strip with two occupied (high-contrast, saturated)
// cells flanking one empty (flat gray) cell.
func TestAnalyzeClassifiesOccupiedCells(t *testing.T) {
	const pitch = 20.0
	const cells = 3
	size := int(pitch * (cells + 1))

	gray := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC1)
	defer gray.Close()
	hsv := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC3)
	defer hsv.Close()

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			gray.SetUCharAt(y, x, 200)
			hsv.SetUCharAt(y, x*3+0, 0)
			hsv.SetUCharAt(y, x*3+1, 10)
			hsv.SetUCharAt(y, x*3+2, 200)
		}
	}

	occupiedCenters := []int{0, 2}
	for _, cellIdx := range occupiedCenters {
		cx := int(pitch/2 + float64(cellIdx)*pitch)
		cy := int(pitch / 2)
		for dy := -4; dy <= 4; dy++ {
			for dx := -4; dx <= 4; dx++ {
				if dx*dx+dy*dy > 16 {
					continue
				}
				x, y := cx+dx, cy+dy
				gray.SetUCharAt(y, x, 20)
				hsv.SetUCharAt(y, x*3+1, 200)
			}
		}
	}

	model := grid.Model{
		PitchX: pitch, PitchY: pitch,
		OriginX: pitch / 2, OriginY: pitch / 2,
		Rows: 1, Cols: cells,
	}

	analyses, err := Analyze(gray, hsv, model, DefaultParams())
	require.NoError(t, err)
	require.Len(t, analyses, cells)
	require.True(t, analyses[0].Occupied)
	require.False(t, analyses[1].Occupied)
	require.True(t, analyses[2].Occupied)
}

func TestOtsuStatsSeparatesBimodalPopulation(t *testing.T) {
	xs := []float64{1, 2, 3, 90, 92, 95}
	threshold, mean, stddev := otsuStats(xs)
	require.Greater(t, threshold, 3.0)
	require.Less(t, threshold, 90.0)
	require.InDelta(t, 47.1666, mean, 1e-3)
	require.Greater(t, stddev, 0.0)
}

func TestOtsuStatsConstantPopulation(t *testing.T) {
	threshold, mean, stddev := otsuStats([]float64{5, 5, 5})
	require.Equal(t, 5.0, threshold)
	require.Equal(t, 5.0, mean)
	require.Equal(t, 0.0, stddev)
}

func TestFuseScoreDegenerateVariantIgnoresSaturationAndEdges(t *testing.T) {
	params := Params{ContrastWeight: 1, SaturationWeight: 0, EdgeWeight: 0}
	const Tc, Ts = 10.0, 50.0
	withNoise := fuseScore(8, 100, 1.0, Tc, Ts, params)
	withoutNoise := fuseScore(8, 0, 0, Tc, Ts, params)
	require.InDelta(t, withNoise, withoutNoise, 1e-9)
}

func TestClampRatioHandlesNonPositiveDenominator(t *testing.T) {
	require.Equal(t, 0.0, clampRatio(0, 0))
	require.Equal(t, 1.0, clampRatio(5, 0))
	require.Equal(t, 0.0, clampRatio(-5, 0))
	require.InDelta(t, 0.5, clampRatio(5, 10), 1e-9)
}

func TestDespeckleRemovesIsolatedCell(t *testing.T) {
	// 3x3 grid, only the center cell occupied: no neighbors at all, should
	// be despeckled away regardless of confidence.
	occupied := []bool{
		false, false, false,
		false, true, false,
		false, false, false,
	}
	confidence := []float64{0, 0, 0, 0, 0.9, 0, 0, 0, 0}
	out := despeckle(occupied, confidence, 3, 3)
	require.False(t, out[4])
}

func TestDespeckleKeepsCellWithNeighborAndGoodConfidence(t *testing.T) {
	occupied := []bool{
		false, false, false,
		false, true, true,
		false, false, false,
	}
	confidence := []float64{0, 0, 0, 0, 0.9, 0.9, 0, 0, 0}
	out := despeckle(occupied, confidence, 3, 3)
	require.True(t, out[4])
	require.True(t, out[5])
}

func TestDespeckleRemovesWeaklySupportedLowConfidenceCell(t *testing.T) {
	// Center cell has exactly one occupied 4-neighbor but low confidence.
	occupied := []bool{
		false, false, false,
		false, true, true,
		false, false, false,
	}
	confidence := []float64{0, 0, 0, 0, 0.1, 0.9, 0, 0, 0}
	out := despeckle(occupied, confidence, 3, 3)
	require.False(t, out[4])
	require.True(t, out[5])
}

func TestFillHolesFillsSurroundedGapWhenContrastHigh(t *testing.T) {
	// Plus-shape of occupied cells around a hole at the center.
	occupied := []bool{
		false, true, false,
		true, false, true,
		false, true, false,
	}
	contrast := []float64{0, 0, 0, 0, 5, 0, 0, 0, 0}
	confidence := make([]float64, 9)
	out := fillHoles(occupied, contrast, confidence, 3, 3)
	require.True(t, out[4])
	require.Equal(t, 0.5, confidence[4])
}

func TestFillHolesLeavesLowContrastGapUnfilled(t *testing.T) {
	occupied := []bool{
		false, true, false,
		true, false, true,
		false, true, false,
	}
	contrast := []float64{0, 0, 0, 0, 2, 0, 0, 0, 0}
	confidence := make([]float64, 9)
	out := fillHoles(occupied, contrast, confidence, 3, 3)
	require.False(t, out[4])
}

func TestFillHolesLeavesPartialSurroundUnfilled(t *testing.T) {
	occupied := []bool{
		false, true, false,
		true, false, false,
		false, true, false,
	}
	contrast := []float64{0, 0, 0, 0, 5, 0, 0, 0, 0}
	confidence := make([]float64, 9)
	out := fillHoles(occupied, contrast, confidence, 3, 3)
	require.False(t, out[4])
}

func TestClamp01(t *testing.T) {
	require.Equal(t, 0.0, clamp01(-1))
	require.Equal(t, 1.0, clamp01(2))
	require.Equal(t, 0.5, clamp01(0.5))
}

// Package cellanalysis classifies each cell of a detected grid as occupied
// or empty from signed ring/center contrast, HSV saturation, and edge
// density, separating occupied from empty populations with Otsu thresholds
// the way the teacher's board variance detector separates board cells from
// scanner background.
package cellanalysis

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/beadcraft/beadcore/internal/grid"
)

// Params tunes the fused classifier. SaturationWeight and EdgeWeight can
// both be set to zero to fall back to a contrast-only classifier (the
// degenerate variant).
type Params struct {
	ContrastWeight   float64
	SaturationWeight float64
	EdgeWeight       float64
	Verbose          bool
}

// DefaultParams returns the richer contrast+saturation+edge-density
// weighting: 0.6/0.25/0.15.
func DefaultParams() Params {
	return Params{ContrastWeight: 0.6, SaturationWeight: 0.25, EdgeWeight: 0.15}
}

// ErrNoGray is returned when Analyze is given a grid with zero cells.
type ErrNoGray struct{}

func (ErrNoGray) Error() string { return "cellanalysis: grid has zero cells" }

// Analyze computes per-cell Analysis records for every (row, col) in model.
// Occupancy is decided by comparing each cell's signed ring/center contrast
// and HSV saturation against Otsu thresholds raised by population
// mean+0.5*stddev when the raw Otsu cut sits too low, then de-speckles and
// hole-fills the resulting occupancy mask over two passes.
func Analyze(gray, hsv gocv.Mat, model grid.Model, params Params) ([]grid.Analysis, error) {
	if model.Rows < 1 || model.Cols < 1 {
		return nil, ErrNoGray{}
	}

	n := model.Rows * model.Cols
	analyses := make([]grid.Analysis, n)
	contrasts := make([]float64, n)
	saturations := make([]float64, n)
	edgeDensities := make([]float64, n)

	for r := 0; r < model.Rows; r++ {
		for c := 0; c < model.Cols; c++ {
			cx, cy := model.CellCenter(r, c)
			radius := math.Min(model.PitchX, model.PitchY) / 2

			centerMean, ringMean := diskMeans(gray, cx, cy, radius)
			contrast := ringMean - centerMean
			saturation := meanSaturation(hsv, cx, cy, radius)
			edgeDensity := edgeDensityAt(gray, cx, cy, radius)

			idx := r*model.Cols + c
			analyses[idx] = grid.Analysis{
				Row: r, Col: c,
				CenterX: cx, CenterY: cy,
				CenterMean: centerMean, RingMean: ringMean,
				Contrast: contrast, Saturation: saturation, EdgeDensity: edgeDensity,
			}
			contrasts[idx] = contrast
			saturations[idx] = saturation
			edgeDensities[idx] = edgeDensity
		}
	}

	tc, meanC, stddevC := otsuStats(contrasts)
	Tc := math.Max(tc, meanC+0.5*stddevC)
	ts, meanS, stddevS := otsuStats(saturations)
	Ts := math.Max(ts, meanS+0.5*stddevS)

	if params.Verbose {
		fmt.Printf("[CellAnalysis] %dx%d cells, Tc=%.3f Ts=%.3f\n", model.Rows, model.Cols, Tc, Ts)
	}

	occupied := make([]bool, n)
	confidences := make([]float64, n)
	for i := range analyses {
		occupied[i] = contrasts[i] > Tc || (contrasts[i] > 0.6*Tc && saturations[i] > 0.8*Ts)
		score := fuseScore(contrasts[i], saturations[i], edgeDensities[i], Tc, Ts, params)
		if occupied[i] {
			confidences[i] = score
		} else {
			confidences[i] = math.Max(0, 1-score)
		}
	}

	for pass := 0; pass < 2; pass++ {
		occupied = despeckle(occupied, confidences, model.Rows, model.Cols)
		occupied = fillHoles(occupied, contrasts, confidences, model.Rows, model.Cols)
	}

	for i := range analyses {
		analyses[i].Occupied = occupied[i]
		analyses[i].Confidence = confidences[i]
	}

	return analyses, nil
}

// fuseScore combines contrast (relative to Tc), saturation (relative to
// Ts), and edge density into the [0,1] match-quality score reported as
// Confidence.
func fuseScore(contrast, saturation, edgeDensity, Tc, Ts float64, p Params) float64 {
	return p.ContrastWeight*clampRatio(contrast, 1.5*Tc) +
		p.SaturationWeight*clampRatio(saturation, 1.5*Ts) +
		p.EdgeWeight*math.Min(1, 8*edgeDensity)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampRatio returns clamp01(num/denom), treating a non-positive denom as
// the limiting case rather than dividing by zero.
func clampRatio(num, denom float64) float64 {
	if denom == 0 {
		if num > 0 {
			return 1
		}
		return 0
	}
	return clamp01(num / denom)
}

// diskMeans returns the mean grayscale value of the inner disk
// (0..0.35*radius) and of the sampling ring (0.45*radius..0.9*radius),
// centered at (cx, cy).
func diskMeans(gray gocv.Mat, cx, cy, radius float64) (centerMean, ringMean float64) {
	centerR := radius * 0.35
	ringInner := radius * 0.45
	ringOuter := radius * 0.9
	rows, cols := gray.Rows(), gray.Cols()
	maxR := int(ringOuter) + 1

	var centerSum, centerN, ringSum, ringN float64
	icx, icy := int(cx), int(cy)
	for dy := -maxR; dy <= maxR; dy++ {
		for dx := -maxR; dx <= maxR; dx++ {
			x, y := icx+dx, icy+dy
			if x < 0 || x >= cols || y < 0 || y >= rows {
				continue
			}
			d := math.Hypot(float64(dx), float64(dy))
			v := float64(gray.GetUCharAt(y, x))
			if d <= centerR {
				centerSum += v
				centerN++
			} else if d >= ringInner && d <= ringOuter {
				ringSum += v
				ringN++
			}
		}
	}
	if centerN > 0 {
		centerMean = centerSum / centerN
	}
	if ringN > 0 {
		ringMean = ringSum / ringN
	}
	return centerMean, ringMean
}

// meanSaturation is the mean HSV saturation over a disk of the given
// radius, matching the gocv BGR->HSV convention (S channel index 1).
func meanSaturation(hsv gocv.Mat, cx, cy, radius float64) float64 {
	rows, cols := hsv.Rows(), hsv.Cols()
	icx, icy := int(cx), int(cy)
	r := int(radius)

	var sum, n float64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := icx+dx, icy+dy
			if x < 0 || x >= cols || y < 0 || y >= rows {
				continue
			}
			sum += float64(hsv.GetUCharAt(y, x*3+1))
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// edgeDensityAt counts pixels within the sampling ring (0.45*radius..
// 0.9*radius) whose central-difference gradient magnitude |dx|+|dy|
// exceeds 30, and returns that count over the ring's pixel area.
func edgeDensityAt(gray gocv.Mat, cx, cy, radius float64) float64 {
	innerR := radius * 0.45
	outerR := radius * 0.9
	rows, cols := gray.Rows(), gray.Cols()
	r := int(outerR) + 1
	x0, y0 := int(cx)-r, int(cy)-r
	x1, y1 := int(cx)+r, int(cy)+r
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= cols {
		x1 = cols - 1
	}
	if y1 >= rows {
		y1 = rows - 1
	}
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	roi := gray.Region(image.Rect(x0, y0, x1, y1))
	defer roi.Close()

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	// ksize=1 is the unscaled [-1, 0, 1] central-difference kernel.
	gocv.Sobel(roi, &gx, gocv.MatTypeCV32F, 1, 0, 1, 1, 0, gocv.BorderDefault)
	gocv.Sobel(roi, &gy, gocv.MatTypeCV32F, 0, 1, 1, 1, 0, gocv.BorderDefault)

	const gradThreshold = 30.0
	var edgeCount, ringArea float64
	h, w := roi.Rows(), roi.Cols()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x0+x) - cx
			dy := float64(y0+y) - cy
			d := math.Hypot(dx, dy)
			if d < innerR || d > outerR {
				continue
			}
			ringArea++
			vx := float64(gx.GetFloatAt(y, x))
			vy := float64(gy.GetFloatAt(y, x))
			if math.Abs(vx)+math.Abs(vy) > gradThreshold {
				edgeCount++
			}
		}
	}
	if ringArea == 0 {
		return 0
	}
	return edgeCount / ringArea
}

// otsuStats computes the Otsu threshold over xs (maximizing between-class
// variance via a 256-bin histogram spanning xs's own range, in the style
// of the teacher's board-variance gap search) alongside the population
// mean and standard deviation.
func otsuStats(xs []float64) (threshold, mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0, 0
	}

	mean, stddev = stat.MeanStdDev(xs, nil)

	minV, maxV := xs[0], xs[0]
	for _, x := range xs {
		if x < minV {
			minV = x
		}
		if x > maxV {
			maxV = x
		}
	}
	if maxV == minV {
		return minV, mean, stddev
	}

	const bins = 256
	var hist [bins]int
	scale := float64(bins-1) / (maxV - minV)
	for _, x := range xs {
		b := int((x - minV) * scale)
		if b < 0 {
			b = 0
		}
		if b >= bins {
			b = bins - 1
		}
		hist[b]++
	}

	total := len(xs)
	var sumAll float64
	for b, count := range hist {
		sumAll += float64(b) * float64(count)
	}

	var sumB, wB float64
	bestVar := -1.0
	bestBin := 0
	for b := 0; b < bins; b++ {
		wB += float64(hist[b])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(b) * float64(hist[b])
		meanB := sumB / wB
		meanF := (sumAll - sumB) / wF
		betweenVar := wB * wF * (meanB - meanF) * (meanB - meanF)
		if betweenVar > bestVar {
			bestVar = betweenVar
			bestBin = b
		}
	}
	threshold = minV + float64(bestBin)/float64(bins-1)*(maxV-minV)
	return threshold, mean, stddev
}

// despeckle empties an occupied cell that is isolated noise (zero occupied
// 4-neighbors and at most one occupied 8-neighbor) or that is weakly
// supported (at most one occupied 4-neighbor and confidence below 0.4).
func despeckle(occupied []bool, confidence []float64, rows, cols int) []bool {
	out := append([]bool(nil), occupied...)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := r*cols + c
			if !occupied[idx] {
				continue
			}
			n4 := countNeighbors4(occupied, rows, cols, r, c)
			n8 := countNeighbors8(occupied, rows, cols, r, c)
			if n4 == 0 && n8 <= 1 {
				out[idx] = false
				continue
			}
			if n4 <= 1 && confidence[idx] < 0.4 {
				out[idx] = false
			}
		}
	}
	return out
}

// fillHoles fills an empty cell surrounded by occupied cells on all four
// sides, provided its own contrast exceeds 3, assigning it confidence 0.5.
func fillHoles(occupied []bool, contrast []float64, confidence []float64, rows, cols int) []bool {
	out := append([]bool(nil), occupied...)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := r*cols + c
			if occupied[idx] {
				continue
			}
			if contrast[idx] <= 3 {
				continue
			}
			if countNeighbors4(occupied, rows, cols, r, c) == 4 {
				out[idx] = true
				confidence[idx] = 0.5
			}
		}
	}
	return out
}

func countNeighbors4(occupied []bool, rows, cols, r, c int) int {
	count := 0
	deltas := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	for _, d := range deltas {
		nr, nc := r+d[0], c+d[1]
		if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
			continue
		}
		if occupied[nr*cols+nc] {
			count++
		}
	}
	return count
}

func countNeighbors8(occupied []bool, rows, cols, r, c int) int {
	count := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := r+dr, c+dc
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			if occupied[nr*cols+nc] {
				count++
			}
		}
	}
	return count
}

// Package griddetect recovers a bead board's lattice pitch, origin, and
// (rows, cols) from a photograph using a candidate-cloud method backed by a
// projection-autocorrelation fallback.
package griddetect

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/beadcraft/beadcore/internal/grid"
	"github.com/beadcraft/beadcore/internal/imageutil"
	"github.com/beadcraft/beadcore/pkg/geometry"
)

// Params tunes the candidate-cloud and fallback methods. The defaults are
// the constants named in SPEC_FULL.md §4.E.
type Params struct {
	NMSRadius             float64
	MinNeighborDist       float64 // 1.8 * pitch, computed internally if zero
	MinCandidatesForCloud int
	MinPitch, MaxPitch    float64 // candidate-cloud clamp range
	FallbackMinPitch      float64
	FallbackMaxPitch      float64
	Verbose               bool
}

// DefaultParams returns the candidate-cloud/fallback tuning from §4.E.
func DefaultParams() Params {
	return Params{
		NMSRadius:             8,
		MinCandidatesForCloud: 50,
		MinPitch:              10,
		MaxPitch:              40,
		FallbackMinPitch:      12,
		FallbackMaxPitch:      50,
	}
}

// Debug carries diagnostic information for a GridNotFound failure: how
// many candidates each sub-detector produced, the pitch estimate even if
// it fell outside the valid range, and which method was attempted.
type Debug struct {
	HoughCandidates      int
	RingCandidates       int
	SaturationCandidates int
	MergedCandidates     int
	EstimatedPitch       float64
	Method               string
}

// ErrGridNotFound is returned when neither the candidate-cloud method nor
// the autocorrelation fallback finds a pitch in the valid range.
type ErrGridNotFound struct {
	Debug Debug
}

func (e ErrGridNotFound) Error() string {
	return fmt.Sprintf("griddetect: no grid found (method=%s estimated pitch=%.2f, %d candidates)",
		e.Debug.Method, e.Debug.EstimatedPitch, e.Debug.MergedCandidates)
}

// point is the candidate-location type every sub-detector emits; it's an
// alias for geometry.Point2D so candidate merging can lean on its Distance
// helper instead of duplicating it.
type point = geometry.Point2D

// Detect recovers a GridModel from src, an approximately axis-aligned
// photograph of a square bead lattice.
func Detect(src image.Image, params Params) (grid.Model, Debug, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return grid.Model{}, Debug{}, fmt.Errorf("griddetect: zero-dimension image")
	}

	derived, err := imageutil.Derive(src)
	if err != nil {
		return grid.Model{}, Debug{}, err
	}
	defer derived.Close()

	houghPts := houghCandidates(derived.Gray)
	ringPts := ringContrastCandidates(derived.Gray)
	satPts := saturationCandidates(derived.HSV)

	merged := nonMaxSuppress(concat(houghPts, ringPts, satPts), params.NMSRadius)

	dbg := Debug{
		HoughCandidates:      len(houghPts),
		RingCandidates:       len(ringPts),
		SaturationCandidates: len(satPts),
		MergedCandidates:     len(merged),
	}

	if len(merged) >= params.MinCandidatesForCloud {
		model, pitch, ok := candidateCloudMethod(merged, w, h, params)
		if ok {
			dbg.EstimatedPitch = pitch
			dbg.Method = "candidate-cloud"
			return model, dbg, nil
		}
	}

	model, pitch, ok := autocorrelationFallback(derived.Gray, derived.Gray.Rows(), derived.Gray.Cols(), params)
	dbg.EstimatedPitch = pitch
	dbg.Method = "autocorrelation"
	if !ok {
		return grid.Model{}, dbg, ErrGridNotFound{Debug: dbg}
	}
	return model, dbg, nil
}

func concat(lists ...[]point) []point {
	var out []point
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// nonMaxSuppress unions candidate points, keeping the first-seen point in
// any cluster of points mutually within radius.
func nonMaxSuppress(pts []point, radius float64) []point {
	var kept []point
	for _, p := range pts {
		tooClose := false
		for _, k := range kept {
			if dist(p, k) <= radius {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, p)
		}
	}
	return kept
}

func dist(a, b point) float64 {
	return a.Distance(b)
}

// candidateCloudMethod implements §4.E.1 steps 2-5.
func candidateCloudMethod(pts []point, w, h int, params Params) (grid.Model, float64, bool) {
	pitch := medianNearestNeighborDistance(pts)
	pitch = clamp(pitch, params.MinPitch, params.MaxPitch)
	if pitch < params.MinPitch || pitch > params.MaxPitch {
		return grid.Model{}, pitch, false
	}

	minNeighborDist := params.MinNeighborDist
	if minNeighborDist == 0 {
		minNeighborDist = 1.8 * pitch
	}
	survivors := filterByNeighborCount(pts, minNeighborDist, 3)
	if len(survivors) == 0 {
		return grid.Model{}, pitch, false
	}

	xs := make([]float64, len(survivors))
	ys := make([]float64, len(survivors))
	for i, p := range survivors {
		xs[i] = p.X
		ys[i] = p.Y
	}
	minX := percentile(xs, 3) - 0.3*pitch
	maxX := percentile(xs, 97) + 0.3*pitch
	minY := percentile(ys, 3) - 0.3*pitch
	maxY := percentile(ys, 97) + 0.3*pitch

	origin := closestToCorner(survivors, minX, minY)

	rows := int(math.Round((maxY-origin.Y)/pitch)) + 1
	cols := int(math.Round((maxX-origin.X)/pitch)) + 1
	if rows < 1 || cols < 1 {
		return grid.Model{}, pitch, false
	}

	model := grid.Model{
		PitchX: pitch, PitchY: pitch,
		OriginX: origin.X, OriginY: origin.Y,
		Rows: rows, Cols: cols,
	}
	model.Confidence = math.Min(1, float64(len(pts))/(0.5*float64(rows)*float64(cols)))

	if !model.FitsInside(w, h) {
		// Trim the last row/col until the model fits, matching the
		// GridModel invariant in SPEC_FULL.md §3.
		for model.Rows > 1 && !model.FitsInside(w, h) {
			model.Rows--
		}
		for model.Cols > 1 && !model.FitsInside(w, h) {
			model.Cols--
		}
	}
	if !model.FitsInside(w, h) {
		return grid.Model{}, pitch, false
	}

	return model, pitch, true
}

func medianNearestNeighborDistance(pts []point) float64 {
	if len(pts) < 2 {
		return 0
	}
	nn := make([]float64, len(pts))
	for i, p := range pts {
		best := math.Inf(1)
		for j, q := range pts {
			if i == j {
				continue
			}
			if d := dist(p, q); d < best {
				best = d
			}
		}
		nn[i] = best
	}
	return median(nn)
}

func filterByNeighborCount(pts []point, radius float64, minNeighbors int) []point {
	var out []point
	for i, p := range pts {
		count := 0
		for j, q := range pts {
			if i == j {
				continue
			}
			if dist(p, q) <= radius {
				count++
			}
		}
		if count >= minNeighbors {
			out = append(out, p)
		}
	}
	return out
}

func closestToCorner(pts []point, cornerX, cornerY float64) point {
	best := pts[0]
	bestD := math.Abs(best.X-cornerX) + math.Abs(best.Y-cornerY)
	for _, p := range pts[1:] {
		d := math.Abs(p.X-cornerX) + math.Abs(p.Y-cornerY)
		if d < bestD {
			bestD = d
			best = p
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// median is the 50th percentile via gonum/stat's empirical CDF inversion.
func median(xs []float64) float64 {
	return percentile(xs, 50)
}

// percentile returns the p-th percentile (0-100) of xs, via gonum/stat's
// linearly-interpolated quantile over the sorted sample.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}

// houghCandidates runs a Hough circle detector at three presets (varying
// the minimum inter-center distance and accumulator threshold) and unions
// the results.
func houghCandidates(gray gocv.Mat) []point {
	type preset struct {
		minDist   float64
		threshold float32
	}
	presets := []preset{
		{minDist: 15, threshold: 25},
		{minDist: 12, threshold: 20},
		{minDist: 18, threshold: 30},
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 1.5, 1.5, gocv.BorderDefault)

	var out []point
	for _, pr := range presets {
		circles := gocv.NewMat()
		gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
			1.0, pr.minDist, 100, float64(pr.threshold), 5, 25)
		for i := 0; i < circles.Cols(); i++ {
			out = append(out, point{
				X: float64(circles.GetFloatAt(0, i*3)),
				Y: float64(circles.GetFloatAt(0, i*3+1)),
			})
		}
		circles.Close()
	}
	return out
}

// ringContrastCandidates slides a 12px window (step 6) over the grayscale
// image and emits a candidate where ring_mean - center_mean exceeds 15.
func ringContrastCandidates(gray gocv.Mat) []point {
	const window = 12
	const step = 6
	const innerFrac = 0.4
	const outerFrac = 0.8
	const threshold = 15.0

	rows, cols := gray.Rows(), gray.Cols()
	half := window / 2
	innerR := innerFrac * half
	outerR := outerFrac * half

	var out []point
	for cy := half; cy < rows-half; cy += step {
		for cx := half; cx < cols-half; cx += step {
			var innerSum, innerN, ringSum, ringN float64
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					d := math.Hypot(float64(dx), float64(dy))
					x, y := cx+dx, cy+dy
					if x < 0 || x >= cols || y < 0 || y >= rows {
						continue
					}
					v := float64(gray.GetUCharAt(y, x))
					if d <= innerR {
						innerSum += v
						innerN++
					} else if d >= innerR && d <= outerR {
						ringSum += v
						ringN++
					}
				}
			}
			if innerN == 0 || ringN == 0 {
				continue
			}
			contrast := ringSum/ringN - innerSum/innerN
			if contrast > threshold {
				out = append(out, point{X: float64(cx), Y: float64(cy)})
			}
		}
	}
	return out
}

// saturationCandidates slides a 10px window (step 8) over the HSV image
// and emits a candidate where the 7x7-neighborhood mean saturation exceeds
// 50.
func saturationCandidates(hsv gocv.Mat) []point {
	const window = 10
	const step = 8
	const neighborhood = 7
	const threshold = 50.0

	rows, cols := hsv.Rows(), hsv.Cols()
	nHalf := neighborhood / 2
	wHalf := window / 2

	var out []point
	for cy := wHalf; cy < rows-wHalf; cy += step {
		for cx := wHalf; cx < cols-wHalf; cx += step {
			var sum, n float64
			for dy := -nHalf; dy <= nHalf; dy++ {
				for dx := -nHalf; dx <= nHalf; dx++ {
					x, y := cx+dx, cy+dy
					if x < 0 || x >= cols || y < 0 || y >= rows {
						continue
					}
					sum += float64(hsv.GetUCharAt(y, x*3+1))
					n++
				}
			}
			if n == 0 {
				continue
			}
			if sum/n > threshold {
				out = append(out, point{X: float64(cx), Y: float64(cy)})
			}
		}
	}
	return out
}

// Package colorextract recovers the dominant bead color of a detected cell
// by K-means clustering an annular color sample in CIE Lab space, the way
// the teacher's copper detector clusters a whole board in Lab before
// picking the cluster that looks like copper.
package colorextract

import (
	"math"
	"math/rand"

	"gocv.io/x/gocv"

	"github.com/beadcraft/beadcore/internal/colorspace"
)

// Params tunes the K-means dominant-color extraction.
type Params struct {
	K               int
	MaxIterations   int
	Epsilon         float64
	Restarts        int
	RepeatsPerStart int
	InnerFrac       float64 // ring inner radius as a fraction of cell half-pitch
	OuterFrac       float64 // ring outer radius as a fraction of cell half-pitch
}

// DefaultParams: K=3, up to 50 Lloyd iterations, eps 0.001, 3 restarts of
// 5 repeats each, keeping the run whose largest cluster is largest.
func DefaultParams() Params {
	return Params{
		K: 3, MaxIterations: 50, Epsilon: 0.001,
		Restarts: 3, RepeatsPerStart: 5,
		InnerFrac: 0.4, OuterFrac: 0.95,
	}
}

// Result is the extracted dominant color and a confidence in [0,1] derived
// from how much of the sample the winning cluster captured.
type Result struct {
	RGB        colorspace.RGB8
	Confidence float64
}

var neutralGray = colorspace.RGB8{R: 128, G: 128, B: 128}

// Extract samples the BGR pixels in an annulus centered at (cx, cy) with
// the given pitch, falling back to the cell's full bounding square if the
// annulus yields no samples, and clusters them in Lab space to find the
// dominant bead color. seed makes repeated calls over the same cell
// bitwise reproducible.
func Extract(bgr gocv.Mat, cx, cy, pitchX, pitchY float64, seed int64, params Params) Result {
	half := math.Min(pitchX, pitchY) / 2
	samples := ringSamples(bgr, cx, cy, half*params.InnerFrac, half*params.OuterFrac)
	if len(samples) == 0 {
		samples = squareSamples(bgr, cx, cy, half)
	}
	if len(samples) == 0 {
		return Result{RGB: neutralGray, Confidence: 0}
	}
	if len(samples) == 1 {
		return Result{RGB: colorspace.ToRGB8(samples[0]), Confidence: 1}
	}

	best := bestKMeansRun(samples, seed, params)
	if best == nil {
		return Result{RGB: neutralGray, Confidence: 0}
	}
	return *best
}

func ringSamples(bgr gocv.Mat, cx, cy, innerR, outerR float64) []colorspace.Lab {
	rows, cols := bgr.Rows(), bgr.Cols()
	icx, icy := int(cx), int(cy)
	maxR := int(outerR) + 1

	var out []colorspace.Lab
	for dy := -maxR; dy <= maxR; dy++ {
		for dx := -maxR; dx <= maxR; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d < innerR || d > outerR {
				continue
			}
			x, y := icx+dx, icy+dy
			if x < 0 || x >= cols || y < 0 || y >= rows {
				continue
			}
			out = append(out, labAt(bgr, x, y))
		}
	}
	return out
}

func squareSamples(bgr gocv.Mat, cx, cy, half float64) []colorspace.Lab {
	rows, cols := bgr.Rows(), bgr.Cols()
	x0, y0 := int(cx-half), int(cy-half)
	x1, y1 := int(cx+half), int(cy+half)
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

	var out []colorspace.Lab
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out = append(out, labAt(bgr, x, y))
		}
	}
	return out
}

func labAt(bgr gocv.Mat, x, y int) colorspace.Lab {
	b := bgr.GetUCharAt(y, x*3+0)
	g := bgr.GetUCharAt(y, x*3+1)
	r := bgr.GetUCharAt(y, x*3+2)
	return colorspace.ToLab(colorspace.RGB8{R: r, G: g, B: b})
}

// bestKMeansRun performs Restarts independent K-means++-seeded clusterings
// (each itself the best of RepeatsPerStart Lloyd refinements by inertia),
// and keeps the restart whose largest cluster has the most members,
// breaking ties by the first restart found.
func bestKMeansRun(samples []colorspace.Lab, seed int64, params Params) *Result {
	k := params.K
	if k > len(samples) {
		k = len(samples)
	}
	if k < 1 {
		return nil
	}

	var best *Result
	var bestClusterSize int

	for restart := 0; restart < params.Restarts; restart++ {
		rng := rand.New(rand.NewSource(seed + int64(restart)*7919))

		var bestRepeat kmeansResult
		bestInertia := math.Inf(1)
		for repeat := 0; repeat < params.RepeatsPerStart; repeat++ {
			centers := kmeansPlusPlusInit(samples, k, rng)
			res := lloyd(samples, centers, params.MaxIterations, params.Epsilon)
			if res.inertia < bestInertia {
				bestInertia = res.inertia
				bestRepeat = res
			}
		}

		dominant, size := dominantCluster(bestRepeat)
		if best == nil || size > bestClusterSize {
			bestClusterSize = size
			total := len(samples)
			conf := 0.0
			if total > 0 {
				conf = float64(size) / float64(total)
			}
			rgb := colorspace.ToRGB8(dominant)
			best = &Result{RGB: rgb, Confidence: conf}
		}
	}
	return best
}

type kmeansResult struct {
	centers []colorspace.Lab
	counts  []int
	inertia float64
}

func dominantCluster(res kmeansResult) (colorspace.Lab, int) {
	if len(res.centers) == 0 {
		return colorspace.Lab{}, 0
	}
	bestIdx := 0
	for i := 1; i < len(res.counts); i++ {
		if res.counts[i] > res.counts[bestIdx] {
			bestIdx = i
		}
	}
	return res.centers[bestIdx], res.counts[bestIdx]
}

// kmeansPlusPlusInit picks k initial centers: the first uniformly at
// random, each subsequent one with probability proportional to squared
// distance from the nearest already-chosen center.
func kmeansPlusPlusInit(samples []colorspace.Lab, k int, rng *rand.Rand) []colorspace.Lab {
	centers := make([]colorspace.Lab, 0, k)
	centers = append(centers, samples[rng.Intn(len(samples))])

	for len(centers) < k {
		distSq := make([]float64, len(samples))
		var total float64
		for i, s := range samples {
			d := nearestDistSq(s, centers)
			distSq[i] = d
			total += d
		}
		if total == 0 {
			centers = append(centers, samples[rng.Intn(len(samples))])
			continue
		}
		target := rng.Float64() * total
		var cum float64
		chosen := samples[len(samples)-1]
		for i, d := range distSq {
			cum += d
			if cum >= target {
				chosen = samples[i]
				break
			}
		}
		centers = append(centers, chosen)
	}
	return centers
}

func nearestDistSq(s colorspace.Lab, centers []colorspace.Lab) float64 {
	best := math.Inf(1)
	for _, c := range centers {
		d := labDistSq(s, c)
		if d < best {
			best = d
		}
	}
	return best
}

func labDistSq(a, b colorspace.Lab) float64 {
	dl, da, db := a.L-b.L, a.A-b.A, a.B-b.B
	return dl*dl + da*da + db*db
}

// lloyd runs standard K-means refinement from the given initial centers
// until convergence (center movement below epsilon) or maxIter iterations.
func lloyd(samples []colorspace.Lab, centers []colorspace.Lab, maxIter int, epsilon float64) kmeansResult {
	k := len(centers)
	assign := make([]int, len(samples))

	for iter := 0; iter < maxIter; iter++ {
		for i, s := range samples {
			best, bestD := 0, math.Inf(1)
			for ci, c := range centers {
				d := labDistSq(s, c)
				if d < bestD {
					bestD = d
					best = ci
				}
			}
			assign[i] = best
		}

		newCenters := make([]colorspace.Lab, k)
		counts := make([]int, k)
		for i, s := range samples {
			c := assign[i]
			newCenters[c].L += s.L
			newCenters[c].A += s.A
			newCenters[c].B += s.B
			counts[c]++
		}
		var maxShift float64
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				newCenters[c] = centers[c]
				continue
			}
			n := float64(counts[c])
			newCenters[c] = colorspace.Lab{L: newCenters[c].L / n, A: newCenters[c].A / n, B: newCenters[c].B / n}
			maxShift = math.Max(maxShift, math.Sqrt(labDistSq(newCenters[c], centers[c])))
		}
		centers = newCenters
		if maxShift < epsilon {
			break
		}
	}

	counts := make([]int, k)
	var inertia float64
	for i, s := range samples {
		c := assign[i]
		counts[c]++
		inertia += labDistSq(s, centers[c])
	}

	return kmeansResult{centers: centers, counts: counts, inertia: inertia}
}

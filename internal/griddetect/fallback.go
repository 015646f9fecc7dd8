package griddetect

import (
	"math"

	"gocv.io/x/gocv"

	"github.com/beadcraft/beadcore/internal/grid"
)

// autocorrelationFallback implements §4.E.2: projection autocorrelation
// when the candidate cloud has too few survivors.
func autocorrelationFallback(gray gocv.Mat, rows, cols int, params Params) (grid.Model, float64, bool) {
	colProj := columnSumProjection(gray)
	rowProj := rowSumProjection(gray)

	maxLag := int(2 * params.FallbackMaxPitch)
	colPitch, colOK := pitchFromAutocorrelation(colProj, maxLag, int(params.FallbackMinPitch), int(params.FallbackMaxPitch))
	rowPitch, rowOK := pitchFromAutocorrelation(rowProj, maxLag, int(params.FallbackMinPitch), int(params.FallbackMaxPitch))

	if !colOK && !rowOK {
		return grid.Model{}, 0, false
	}

	var pitch float64
	switch {
	case colOK && rowOK:
		pitch = (colPitch + rowPitch) / 2
	case colOK:
		pitch = colPitch
	default:
		pitch = rowPitch
	}

	if pitch < params.FallbackMinPitch || pitch > params.FallbackMaxPitch {
		return grid.Model{}, pitch, false
	}

	originX, originY := scanOriginByRingContrast(gray, pitch, cols, rows)

	modelCols := int(float64(cols)/pitch) - 1
	modelRows := int(float64(rows)/pitch) - 1
	if modelCols < 1 {
		modelCols = 1
	}
	if modelRows < 1 {
		modelRows = 1
	}

	model := grid.Model{
		PitchX: pitch, PitchY: pitch,
		OriginX: originX, OriginY: originY,
		Rows: modelRows, Cols: modelCols,
		Confidence: 0.5,
	}

	for model.Rows > 1 && !model.FitsInside(cols, rows) {
		model.Rows--
	}
	for model.Cols > 1 && !model.FitsInside(cols, rows) {
		model.Cols--
	}
	if !model.FitsInside(cols, rows) {
		return grid.Model{}, pitch, false
	}

	return model, pitch, true
}

func columnSumProjection(gray gocv.Mat) []float64 {
	rows, cols := gray.Rows(), gray.Cols()
	proj := make([]float64, cols)
	for x := 0; x < cols; x++ {
		var sum float64
		for y := 0; y < rows; y++ {
			sum += float64(gray.GetUCharAt(y, x))
		}
		proj[x] = sum
	}
	return subtractMean(proj)
}

func rowSumProjection(gray gocv.Mat) []float64 {
	rows, cols := gray.Rows(), gray.Cols()
	proj := make([]float64, rows)
	for y := 0; y < rows; y++ {
		var sum float64
		for x := 0; x < cols; x++ {
			sum += float64(gray.GetUCharAt(y, x))
		}
		proj[y] = sum
	}
	return subtractMean(proj)
}

func subtractMean(xs []float64) []float64 {
	if len(xs) == 0 {
		return xs
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	mean := sum / float64(len(xs))
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = v - mean
	}
	return out
}

// autocorrelate computes the unnormalized autocorrelation of xs up to lag
// maxLag (inclusive), autocorrelate[0] being the zero-lag (total energy)
// value.
func autocorrelate(xs []float64, maxLag int) []float64 {
	n := len(xs)
	if maxLag >= n {
		maxLag = n - 1
	}
	out := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += xs[i] * xs[i+lag]
		}
		out[lag] = sum
	}
	return out
}

// pitchFromAutocorrelation finds the first local maximum of the
// autocorrelation whose lag lies in [minPitch, maxPitch]. If none is found
// above 0.1 of the zero-lag value, it falls back to the first lag after a
// trough.
func pitchFromAutocorrelation(xs []float64, maxLag, minPitch, maxPitch int) (float64, bool) {
	ac := autocorrelate(xs, maxLag)
	if len(ac) < 3 || ac[0] == 0 {
		return 0, false
	}
	zero := ac[0]

	for lag := 1; lag < len(ac)-1; lag++ {
		if lag < minPitch || lag > maxPitch {
			continue
		}
		if ac[lag] > ac[lag-1] && ac[lag] > ac[lag+1] && ac[lag] > 0.1*zero {
			return float64(lag), true
		}
	}

	// No qualifying local max: look for the first trough, then the first
	// rise after it, within range.
	troughLag := -1
	for lag := 1; lag < len(ac)-1; lag++ {
		if ac[lag] < ac[lag-1] && ac[lag] < ac[lag+1] {
			troughLag = lag
			break
		}
	}
	if troughLag < 0 {
		return 0, false
	}
	for lag := troughLag + 1; lag < len(ac); lag++ {
		if lag < minPitch || lag > maxPitch {
			continue
		}
		return float64(lag), true
	}
	return 0, false
}

// scanOriginByRingContrast exhaustively scans offsets within one pitch
// period (step 2px) and picks the offset maximizing the sum of absolute
// ring-contrasts over all cells it would induce.
func scanOriginByRingContrast(gray gocv.Mat, pitch float64, cols, rows int) (float64, float64) {
	bestScore := math.Inf(-1)
	bestX, bestY := pitch/2, pitch/2

	period := int(pitch)
	if period < 2 {
		period = 2
	}

	for oy := 0; oy < period; oy += 2 {
		for ox := 0; ox < period; ox += 2 {
			score := scoreOffset(gray, float64(ox), float64(oy), pitch, cols, rows)
			if score > bestScore {
				bestScore = score
				bestX, bestY = float64(ox), float64(oy)
			}
		}
	}
	return bestX, bestY
}

func scoreOffset(gray gocv.Mat, ox, oy, pitch float64, cols, rows int) float64 {
	r := pitch / 2
	innerR := 0.45 * r
	outerR := 0.9 * r

	var total float64
	for y := oy; y < float64(rows); y += pitch {
		for x := ox; x < float64(cols); x += pitch {
			total += math.Abs(ringContrastAt(gray, x, y, innerR, outerR, cols, rows))
		}
	}
	return total
}

func ringContrastAt(gray gocv.Mat, cx, cy, innerR, outerR float64, cols, rows int) float64 {
	var centerSum, centerN, ringSum, ringN float64
	maxR := int(outerR) + 1
	for dy := -maxR; dy <= maxR; dy++ {
		for dx := -maxR; dx <= maxR; dx++ {
			x, y := int(cx)+dx, int(cy)+dy
			if x < 0 || x >= cols || y < 0 || y >= rows {
				continue
			}
			d := math.Hypot(float64(dx), float64(dy))
			v := float64(gray.GetUCharAt(y, x))
			if d <= innerR*0.875 { // 0.35/0.4 of radius approximated relative to ring inner bound
				centerSum += v
				centerN++
			} else if d >= innerR && d <= outerR {
				ringSum += v
				ringN++
			}
		}
	}
	if centerN == 0 || ringN == 0 {
		return 0
	}
	return ringSum/ringN - centerSum/centerN
}

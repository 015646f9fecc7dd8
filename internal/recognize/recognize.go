// Package recognize composes grid detection, cell analysis, dominant-color
// extraction, and palette matching into a single pipeline, polling for
// cancellation and reporting progress between phases the way the teacher's
// via detector composes its own phase-by-phase pipeline.
package recognize

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/beadcraft/beadcore/internal/cellanalysis"
	"github.com/beadcraft/beadcore/internal/colorextract"
	"github.com/beadcraft/beadcore/internal/colorspace"
	"github.com/beadcraft/beadcore/internal/grid"
	"github.com/beadcraft/beadcore/internal/griddetect"
	"github.com/beadcraft/beadcore/internal/imageutil"
	"github.com/beadcraft/beadcore/internal/palette"
)

// Phase names reported via the progress callback.
const (
	PhaseLoad     = "load"
	PhaseDetect   = "detect"
	PhaseAnalyze  = "analyze"
	PhaseColor    = "color"
	PhaseFinalize = "finalize"
)

// ErrKind enumerates PipelineError failure categories.
type ErrKind string

const (
	KindCancelled     ErrKind = "cancelled"
	KindDetectFailed  ErrKind = "detect_failed"
	KindAnalyzeFailed ErrKind = "analyze_failed"
	KindBadInput      ErrKind = "bad_input"
)

// PipelineError is the typed error the recognition pipeline returns,
// carrying enough debug context to explain a failure without the caller
// needing to errors.As into every sub-package's own error types.
type PipelineError struct {
	Kind  ErrKind
	Msg   string
	Debug map[string]any
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("recognize: %s: %s", e.Kind, e.Msg)
}

// Progress is reported after each phase completes; Fraction is in [0,1].
type Progress struct {
	Phase    string
	Fraction float64
}

// Params configures a recognition run.
type Params struct {
	GridDetect   griddetect.Params
	CellAnalysis cellanalysis.Params
	ColorExtract colorextract.Params
	Seed         int64 // base seed threaded into colorextract per-cell
	Workers      int   // 0 or 1 = sequential; >1 = bounded worker pool
	OnProgress   func(Progress)
}

// DefaultParams wires each sub-component's own defaults together.
func DefaultParams() Params {
	return Params{
		GridDetect:   griddetect.DefaultParams(),
		CellAnalysis: cellanalysis.DefaultParams(),
		ColorExtract: colorextract.DefaultParams(),
		Seed:         1,
	}
}

// Run executes the full pipeline: detect -> analyze -> per-occupied-cell
// color extract -> palette match, honoring ctx cancellation between phases
// and (in worker-pool mode) between cells. The returned grid is always
// normalized so its row/col origin is (0,0).
func Run(ctx context.Context, src image.Image, pal *palette.Palette, params Params) (*grid.PixelGrid, error) {
	report := func(phase string, frac float64) {
		if params.OnProgress != nil {
			params.OnProgress(Progress{Phase: phase, Fraction: frac})
		}
	}

	if pal == nil || pal.Len() == 0 {
		return nil, PipelineError{Kind: KindBadInput, Msg: "palette is empty"}
	}
	if err := ctx.Err(); err != nil {
		return nil, PipelineError{Kind: KindCancelled, Msg: err.Error()}
	}

	report(PhaseLoad, 0.0)
	derived, err := imageutil.Derive(src)
	if err != nil {
		return nil, PipelineError{Kind: KindBadInput, Msg: err.Error()}
	}
	defer derived.Close()
	report(PhaseLoad, 0.2)

	if err := ctx.Err(); err != nil {
		return nil, PipelineError{Kind: KindCancelled, Msg: err.Error()}
	}

	model, dbg, err := griddetect.Detect(src, params.GridDetect)
	if err != nil {
		return nil, PipelineError{
			Kind: KindDetectFailed, Msg: err.Error(),
			Debug: map[string]any{"griddetect": dbg},
		}
	}
	report(PhaseDetect, 0.45)

	if err := ctx.Err(); err != nil {
		return nil, PipelineError{Kind: KindCancelled, Msg: err.Error()}
	}

	analyses, err := cellanalysis.Analyze(derived.Gray, derived.HSV, model, params.CellAnalysis)
	if err != nil {
		return nil, PipelineError{Kind: KindAnalyzeFailed, Msg: err.Error()}
	}
	report(PhaseAnalyze, 0.55)

	if err := ctx.Err(); err != nil {
		return nil, PipelineError{Kind: KindCancelled, Msg: err.Error()}
	}

	colorPhase := func(a grid.Analysis) grid.Cell {
		if !a.Occupied {
			return grid.Cell{Occupied: false}
		}
		seed := params.Seed + int64(a.Row*model.Cols+a.Col)
		res := colorextract.Extract(derived.BGR, a.CenterX, a.CenterY, model.PitchX, model.PitchY, seed, params.ColorExtract)
		lab := colorspace.ToLab(res.RGB)
		entry, deltaE, err := pal.Nearest(lab)
		if err != nil {
			return grid.Cell{Occupied: false}
		}
		return grid.Cell{
			Occupied:  true,
			RGB:       res.RGB,
			PaletteID: entry.ID,
			Conf:      res.Confidence * palette.Confidence(deltaE),
		}
	}

	var cells []grid.Cell
	if params.Workers > 1 {
		var err error
		cells, err = computeColorPhaseParallel(ctx, analyses, colorPhase, params.Workers)
		if err != nil {
			return nil, err
		}
	} else {
		cells = make([]grid.Cell, len(analyses))
		for i, a := range analyses {
			if i%64 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, PipelineError{Kind: KindCancelled, Msg: err.Error()}
				}
			}
			cells[i] = colorPhase(a)
		}
	}
	report(PhaseColor, 0.95)

	minRow, maxRow, minCol, maxCol, any := occupiedBounds(analyses)
	outRows, outCols, rowOffset, colOffset := model.Rows, model.Cols, 0, 0
	if any {
		outRows, outCols = maxRow-minRow+1, maxCol-minCol+1
		rowOffset, colOffset = minRow, minCol
	}
	out := grid.New(outRows, outCols)
	for i, a := range analyses {
		nr, nc := a.Row-rowOffset, a.Col-colOffset
		if nr < 0 || nr >= outRows || nc < 0 || nc >= outCols {
			continue
		}
		out.Set(nr, nc, cells[i])
	}

	report(PhaseFinalize, 1.0)
	return out, nil
}

// occupiedBounds returns the bounding box of occupied cells in analyses, and
// whether any cell is occupied at all.
func occupiedBounds(analyses []grid.Analysis) (minRow, maxRow, minCol, maxCol int, any bool) {
	first := true
	for _, a := range analyses {
		if !a.Occupied {
			continue
		}
		if first {
			minRow, maxRow, minCol, maxCol = a.Row, a.Row, a.Col, a.Col
			first = false
			continue
		}
		if a.Row < minRow {
			minRow = a.Row
		}
		if a.Row > maxRow {
			maxRow = a.Row
		}
		if a.Col < minCol {
			minCol = a.Col
		}
		if a.Col > maxCol {
			maxCol = a.Col
		}
	}
	return minRow, maxRow, minCol, maxCol, !first
}

// computeColorPhaseParallel distributes per-cell color extraction over a
// bounded worker pool, striped the way the teacher's imageToMat/matToImage
// divide rows across goroutines. Each worker writes directly into its own
// slice index, so the returned slice is in the same order as analyses
// regardless of goroutine scheduling.
func computeColorPhaseParallel(ctx context.Context, analyses []grid.Analysis, colorPhase func(grid.Analysis) grid.Cell, workers int) ([]grid.Cell, error) {
	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	cells := make([]grid.Cell, len(analyses))
	cancelled := make(chan struct{})
	var cancelOnce sync.Once
	var cancelErr error

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-cancelled:
					return
				default:
				}
				if err := ctx.Err(); err != nil {
					cancelOnce.Do(func() {
						cancelErr = PipelineError{Kind: KindCancelled, Msg: err.Error()}
						close(cancelled)
					})
					return
				}
				cells[idx] = colorPhase(analyses[idx])
			}
		}()
	}

sendLoop:
	for i := range analyses {
		select {
		case <-cancelled:
			break sendLoop
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelErr != nil {
		return nil, cancelErr
	}
	return cells, nil
}

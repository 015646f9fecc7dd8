// Package imageutil converts between Go's image.Image and gocv.Mat, and
// provides the grayscale/HSV derivatives the grid detector, cell analyzer,
// and color extractor all need from a decoded photograph.
package imageutil

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// ToMat converts a Go image.Image to a BGR gocv.Mat (OpenCV's native
// channel order), striping the conversion across GOMAXPROCS workers. The
// caller owns the returned Mat and must Close it.
func ToMat(src image.Image) (gocv.Mat, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.Mat{}, fmt.Errorf("imageutil: zero-dimension image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	numWorkers := runtime.NumCPU()
	rowsPerWorker := (h + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				for x := 0; x < w; x++ {
					r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
					mat.SetUCharAt(y, x*3+0, uint8(b>>8))
					mat.SetUCharAt(y, x*3+1, uint8(g>>8))
					mat.SetUCharAt(y, x*3+2, uint8(r>>8))
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return mat, nil
}

// ToImage converts a BGR gocv.Mat back to a Go *image.RGBA.
func ToImage(mat gocv.Mat) *image.RGBA {
	h, w := mat.Rows(), mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := img.Stride

	numWorkers := runtime.NumCPU()
	rowsPerWorker := (h + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				rowOff := y * stride
				for x := 0; x < w; x++ {
					pixOff := rowOff + x*4
					img.Pix[pixOff+0] = mat.GetUCharAt(y, x*3+2) // R
					img.Pix[pixOff+1] = mat.GetUCharAt(y, x*3+1) // G
					img.Pix[pixOff+2] = mat.GetUCharAt(y, x*3+0) // B
					img.Pix[pixOff+3] = 255
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return img
}

// Derived bundles the grayscale and HSV conversions most per-cell and
// grid-detection code needs, so callers convert once and share the result.
type Derived struct {
	BGR  gocv.Mat
	Gray gocv.Mat
	HSV  gocv.Mat
}

// Derive produces BGR/Gray/HSV Mats from a source image. The caller owns
// and must Close all three fields of the result.
func Derive(src image.Image) (Derived, error) {
	bgr, err := ToMat(src)
	if err != nil {
		return Derived{}, err
	}

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	hsv := gocv.NewMat()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	return Derived{BGR: bgr, Gray: gray, HSV: hsv}, nil
}

// Close releases all three Mats.
func (d Derived) Close() {
	d.BGR.Close()
	d.Gray.Close()
	d.HSV.Close()
}

// Command quantize converts a flat pixel-art image to a bead grid using a
// fixed palette, printing a summary report.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"github.com/beadcraft/beadcore/internal/grid"
	"github.com/beadcraft/beadcore/internal/palette"
	"github.com/beadcraft/beadcore/internal/quantize"
	"github.com/beadcraft/beadcore/internal/sampler"
)

func main() {
	imagePath := flag.String("image", "", "Path to source image (TIFF, PNG, or JPEG)")
	palettePath := flag.String("palette", "", "Path to palette JSON (brand -> {name: hex})")
	width := flag.Int("width", 29, "Target grid width in cells")
	height := flag.Int("height", 29, "Target grid height in cells")
	mode := flag.String("mode", "average", "Sample mode: dominant, average, center, diagonal45, original")
	edgeTrim := flag.Bool("edge-trim", true, "Trim 15% of each block's edge before sampling")
	flag.Parse()

	if *imagePath == "" || *palettePath == "" {
		fmt.Println("Usage: quantize -image <path> -palette <path> [-width 29] [-height 29] [-mode average] [-edge-trim]")
		os.Exit(1)
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to decode image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	paletteData, err := os.ReadFile(*palettePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read palette: %v\n", err)
		os.Exit(1)
	}
	pal, err := palette.LoadJSON(paletteData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse palette: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded palette: %d colors\n", pal.Len())

	sampleMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	opts := quantize.Options{Width: *width, Height: *height, Mode: sampleMode, EdgeTrim: *edgeTrim}
	fmt.Printf("\nQuantizing to %dx%d grid, mode=%s, edge-trim=%v\n", opts.Width, opts.Height, *mode, opts.EdgeTrim)

	g, err := quantize.Quantize(img, pal, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quantize failed: %v\n", err)
		os.Exit(1)
	}

	printSummary(g)
}

func parseMode(s string) (sampler.Mode, error) {
	switch s {
	case "dominant":
		return sampler.Dominant, nil
	case "average":
		return sampler.Average, nil
	case "center":
		return sampler.Center, nil
	case "diagonal45":
		return sampler.Diagonal45, nil
	case "original":
		return sampler.Original, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func printSummary(g *grid.PixelGrid) {
	counts := map[string]int{}
	g.Each(func(r, c int, cell grid.Cell) {
		if cell.Occupied {
			counts[cell.PaletteID.String()]++
		}
	})

	fmt.Printf("\nGrid: %dx%d\n", g.Rows, g.Cols)
	fmt.Printf("%-16s %8s\n", "Color", "Count")
	for id, count := range counts {
		fmt.Printf("%-16s %8d\n", id, count)
	}
}

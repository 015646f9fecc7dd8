// Command recognize runs the full recognition pipeline on a photograph of
// a bead board and prints the recovered grid and per-color counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"github.com/beadcraft/beadcore/internal/grid"
	"github.com/beadcraft/beadcore/internal/palette"
	"github.com/beadcraft/beadcore/internal/recognize"
)

func main() {
	imagePath := flag.String("image", "", "Path to photograph (TIFF, PNG, or JPEG)")
	palettePath := flag.String("palette", "", "Path to palette JSON (brand -> {name: hex})")
	workers := flag.Int("workers", 0, "Worker pool size for per-cell color extraction (0 = sequential)")
	verbose := flag.Bool("v", false, "Verbose progress output")
	flag.Parse()

	if *imagePath == "" || *palettePath == "" {
		fmt.Println("Usage: recognize -image <path> -palette <path> [-workers 0] [-v]")
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

	params := recognize.DefaultParams()
	params.Workers = *workers
	if *verbose {
		params.GridDetect.Verbose = true
		params.CellAnalysis.Verbose = true
		params.OnProgress = func(p recognize.Progress) {
			fmt.Printf("[recognize] phase=%s progress=%.0f%%\n", p.Phase, p.Fraction*100)
		}
	}

	g, err := recognize.Run(context.Background(), img, pal, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recognition failed: %v\n", err)
		os.Exit(1)
	}

	printSummary(g)
}

func printSummary(g *grid.PixelGrid) {
	counts := map[string]int{}
	occupied := 0
	g.Each(func(r, c int, cell grid.Cell) {
		if cell.Occupied {
			occupied++
			counts[cell.PaletteID.String()]++
		}
	})

	fmt.Printf("\nGrid: %dx%d (%d occupied cells)\n", g.Rows, g.Cols, occupied)
	fmt.Printf("%-16s %8s\n", "Color", "Count")
	for id, count := range counts {
		fmt.Printf("%-16s %8d\n", id, count)
	}
}

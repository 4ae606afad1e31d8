package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"os"

	"github.com/kwv/geolabel/geo"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "", "Path to YAML configuration file (optional)")

	// Modes (exactly one must be set)
	yolo2shp  = flag.Bool("yolo2shp", false, "Convert YOLO detection files to shapefiles")
	shp2yolo  = flag.Bool("shp2yolo", false, "Convert shapefiles to YOLO labels and PNG images")
	clipMode  = flag.Bool("clip", false, "Clip a raster against square polygons and correlate bounding boxes")
	groupBBox = flag.Bool("group-bbox", false, "Create grouped axis-aligned bounding boxes from shapefiles")
	tif2png   = flag.Bool("tif2png", false, "Convert TIFF rasters to percentile-stretched PNGs")
	squares   = flag.Bool("squares", false, "Convert rasters to PNG and split into square tiles")
	drawMode  = flag.Bool("draw", false, "Draw YOLO boxes onto an image")

	// Directory flags (override config)
	rasterDir = flag.String("raster-dir", "", "Directory containing TIFF rasters")
	detectDir = flag.String("detect-dir", "", "Directory containing YOLO detection .txt files")
	vectorDir = flag.String("vector-dir", "", "Directory containing shapefiles")
	outputDir = flag.String("output-dir", "", "Directory for output files")

	// Single-file flags
	rasterPath  = flag.String("raster", "", "Raster file for -clip")
	squaresPath = flag.String("squares-shp", "", "Square polygon shapefile for -clip")
	boxesPath   = flag.String("boxes-shp", "", "Bounding box shapefile for -clip")
	imagePath   = flag.String("image", "", "Image file for -draw")
	labelPath   = flag.String("labels", "", "YOLO label file for -draw")
	outputPath  = flag.String("output", "", "Output file for -draw")

	// Tuning flags
	groupField    = flag.String("group-field", "", "Attribute field to group by for -group-bbox")
	squareSize    = flag.Int("square-size", 0, "Tile edge length in pixels for -squares")
	previewFormat = flag.String("preview", "", "Write vector previews alongside -group-bbox output: svg or png")
	looseCRS      = flag.Bool("loose-crs", false, "Do not reject raster/vector pairings with differing CRS tags")
)

func main() {
	flag.Parse()
	fmt.Printf("geolabel version: %s\n", Version)

	cfg, err := buildConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	app := NewApp(cfg)
	app.RasterPath = *rasterPath
	app.SquaresPath = *squaresPath
	app.BoxesPath = *boxesPath
	app.ImagePath = *imagePath
	app.LabelPath = *labelPath
	app.OutputPath = *outputPath

	var run func() error
	switch {
	case *yolo2shp:
		run = app.RunYolo2Shp
	case *shp2yolo:
		run = app.RunShp2Yolo
	case *clipMode:
		if app.RasterPath == "" || app.SquaresPath == "" || app.BoxesPath == "" {
			log.Fatal("-clip requires -raster, -squares-shp and -boxes-shp")
		}
		run = app.RunClip
	case *groupBBox:
		run = app.RunGroupBBox
	case *tif2png:
		run = app.RunTif2Png
	case *squares:
		run = app.RunSquares
	case *drawMode:
		if app.ImagePath == "" || app.LabelPath == "" || app.OutputPath == "" {
			log.Fatal("-draw requires -image, -labels and -output")
		}
		run = app.RunDraw
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err := run(); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

// buildConfig loads the config file (or defaults) and applies flag
// overrides.
func buildConfig() (*geo.Config, error) {
	cfg := geo.DefaultConfig()
	if *configFile != "" {
		loaded, err := geo.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *rasterDir != "" {
		cfg.RasterDir = *rasterDir
	}
	if *detectDir != "" {
		cfg.DetectDir = *detectDir
	}
	if *vectorDir != "" {
		cfg.VectorDir = *vectorDir
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *groupField != "" {
		cfg.GroupField = *groupField
	}
	if *squareSize > 0 {
		cfg.SquareSize = *squareSize
	}
	if *previewFormat != "" {
		cfg.PreviewFormat = *previewFormat
	}
	if *looseCRS {
		cfg.StrictCRS = false
	}

	return cfg, cfg.Validate()
}

// loadPNG decodes a PNG into a drawable NRGBA buffer.
func loadPNG(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	b := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	return img, nil
}

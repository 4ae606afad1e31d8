package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kwv/geolabel/geo"
)

// App encapsulates the batch drivers. Each Run* method is one conversion
// mode; per-item failures are logged and skipped so a bad file never takes
// down the rest of the batch, while configuration-level problems return an
// error and stop the run.
type App struct {
	Config *geo.Config

	// CLI flags for the single-file modes
	RasterPath  string
	SquaresPath string
	BoxesPath   string
	ImagePath   string
	LabelPath   string
	OutputPath  string
}

// NewApp creates an App around the given configuration.
func NewApp(cfg *geo.Config) *App {
	return &App{Config: cfg}
}

// RunYolo2Shp converts YOLO detection files into shapefiles, pairing each
// .txt with the .tif of the same stem and georeferencing the boxes through
// the raster's affine model.
func (a *App) RunYolo2Shp() error {
	rasters, err := stemIndex(a.Config.RasterDir, ".tif", ".tiff")
	if err != nil {
		return err
	}
	detections, err := listFiles(a.Config.DetectDir, ".txt")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.Config.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, detectPath := range detections {
		stem := fileStem(detectPath)
		rasterPath, ok := rasters[stem]
		if !ok {
			log.Printf("[YOLO2SHP] %s: no matching TIF, skipping", stem)
			continue
		}
		outPath := filepath.Join(a.Config.OutputDir, stem+".shp")
		if err := a.yolo2shpOne(rasterPath, detectPath, outPath); err != nil {
			log.Printf("[YOLO2SHP] %s: %v, skipping", stem, err)
			continue
		}
		log.Printf("[YOLO2SHP] %s: wrote %s", stem, outPath)
	}
	return nil
}

func (a *App) yolo2shpOne(rasterPath, detectPath, outPath string) error {
	raster, err := geo.OpenRaster(rasterPath)
	if err != nil {
		return err
	}
	if !raster.HasGeoref {
		return fmt.Errorf("%s has no world file", rasterPath)
	}

	f, err := os.Open(detectPath)
	if err != nil {
		return fmt.Errorf("opening detections: %w", err)
	}
	defer f.Close()

	lines, skipped, err := geo.ParseAnnotations(f)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Printf("[YOLO2SHP] %s: %v", detectPath, s)
	}

	rects := make([]geo.PixelRect, 0, len(lines))
	for _, ln := range lines {
		rect, err := geo.DecodeYoloLine(ln, raster.Width, raster.Height)
		if err != nil {
			return err
		}
		rects = append(rects, rect)
	}

	fc := geo.RectsToCollection(rects, raster.Transform, raster.CRS)
	return geo.WriteShapefile(outPath, fc)
}

// RunShp2Yolo converts shapefile annotations into YOLO label files plus
// stretched PNG images, pairing each .tif with the .shp of the same stem.
func (a *App) RunShp2Yolo() error {
	shapes, err := stemIndex(a.Config.VectorDir, ".shp")
	if err != nil {
		return err
	}
	rasters, err := listFiles(a.Config.RasterDir, ".tif", ".tiff")
	if err != nil {
		return err
	}

	imageDir := filepath.Join(a.Config.OutputDir, "images")
	labelDir := filepath.Join(a.Config.OutputDir, "labels")
	for _, dir := range []string{imageDir, labelDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	for _, rasterPath := range rasters {
		stem := fileStem(rasterPath)
		shpPath, ok := shapes[stem]
		if !ok {
			log.Printf("[SHP2YOLO] %s: no matching shapefile, skipping", stem)
			continue
		}
		if err := a.shp2yoloOne(rasterPath, shpPath, imageDir, labelDir, stem); err != nil {
			log.Printf("[SHP2YOLO] %s: %v, skipping", stem, err)
			continue
		}
		log.Printf("[SHP2YOLO] %s: wrote image and labels", stem)
	}
	return nil
}

func (a *App) shp2yoloOne(rasterPath, shpPath, imageDir, labelDir, stem string) error {
	raster, err := geo.OpenRaster(rasterPath)
	if err != nil {
		return err
	}
	if !raster.HasGeoref {
		return fmt.Errorf("%s has no world file", rasterPath)
	}

	fc, err := geo.ReadShapefile(shpPath)
	if err != nil {
		return err
	}
	if a.Config.StrictCRS && !geo.SameCRS(raster.CRS, fc.CRS) {
		return &geo.CRSMismatchError{RasterCRS: raster.CRS, VectorCRS: fc.CRS}
	}

	var lines []geo.YoloLine
	for i, f := range fc.Features {
		class := 0
		if v, ok := f.Attr("class_id"); ok {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				class = n
			}
		}
		ln, clamped, err := geo.GeoPolygonToYolo(f.Geometry, raster.Transform, raster.Width, raster.Height, class)
		if err != nil {
			if errors.Is(err, geo.ErrSingularTransform) {
				return err
			}
			log.Printf("[SHP2YOLO] %s feature %d: %v, skipping feature", stem, i, err)
			continue
		}
		if clamped {
			log.Printf("[SHP2YOLO] %s feature %d: box extends past image edge, clamped", stem, i)
		}
		lines = append(lines, ln)
	}

	labelPath := filepath.Join(labelDir, stem+".txt")
	lf, err := os.Create(labelPath)
	if err != nil {
		return fmt.Errorf("creating labels: %w", err)
	}
	defer lf.Close()
	if err := geo.WriteAnnotations(lf, lines); err != nil {
		return err
	}

	imagePath := filepath.Join(imageDir, stem+".png")
	imgFile, err := os.Create(imagePath)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	defer imgFile.Close()
	return geo.WritePNG(imgFile, geo.StretchToImage(raster.Image))
}

// RunClip clips one raster against every polygon of the squares shapefile,
// writing per-square clipped TIFFs, per-square shapefiles with the bounding
// boxes intersecting that square, and one shapefile of squares with no
// intersecting boxes. Both partitions are always emitted.
func (a *App) RunClip() error {
	raster, err := geo.OpenRaster(a.RasterPath)
	if err != nil {
		return err
	}
	if !raster.HasGeoref {
		return fmt.Errorf("%s has no world file", a.RasterPath)
	}

	squares, err := geo.ReadShapefile(a.SquaresPath)
	if err != nil {
		return err
	}
	boxes, err := geo.ReadShapefile(a.BoxesPath)
	if err != nil {
		return err
	}
	if a.Config.StrictCRS {
		if !geo.SameCRS(raster.CRS, squares.CRS) {
			return &geo.CRSMismatchError{RasterCRS: raster.CRS, VectorCRS: squares.CRS}
		}
		if !geo.SameCRS(raster.CRS, boxes.CRS) {
			return &geo.CRSMismatchError{RasterCRS: raster.CRS, VectorCRS: boxes.CRS}
		}
	}
	if err := os.MkdirAll(a.Config.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for i, square := range squares.Features {
		clip, err := geo.ClipRaster(raster, square.Geometry)
		if err != nil {
			if errors.Is(err, geo.ErrEmptyClip) {
				log.Printf("[CLIP] square %d: outside raster extent, no output", i)
				continue
			}
			if errors.Is(err, geo.ErrSingularTransform) {
				return err
			}
			log.Printf("[CLIP] square %d: %v, skipping", i, err)
			continue
		}

		tifPath := filepath.Join(a.Config.OutputDir, fmt.Sprintf("square_%d.tif", i))
		if err := geo.SaveClip(clip, tifPath); err != nil {
			log.Printf("[CLIP] square %d: %v, skipping", i, err)
			continue
		}

		matched := &geo.FeatureCollection{Fields: boxes.Fields, CRS: boxes.CRS}
		for box := range geo.Matches(boxes.Features, square.Geometry) {
			matched.Features = append(matched.Features, box)
		}
		shpPath := filepath.Join(a.Config.OutputDir, fmt.Sprintf("square_%d.shp", i))
		if err := geo.WriteShapefile(shpPath, matched); err != nil {
			log.Printf("[CLIP] square %d: %v", i, err)
			continue
		}
		log.Printf("[CLIP] square %d: %s (%d intersecting boxes)", i, tifPath, len(matched.Features))
	}

	// The complement set: squares no bounding box touches.
	_, misses := geo.Partition(boxes.Features, squares.Features)
	missFC := &geo.FeatureCollection{Fields: squares.Fields, CRS: squares.CRS, Features: misses}
	missPath := filepath.Join(a.Config.OutputDir, "squares_no_boxes.shp")
	if err := geo.WriteShapefile(missPath, missFC); err != nil {
		return err
	}
	log.Printf("[CLIP] %d of %d squares had no intersecting boxes: %s",
		len(misses), len(squares.Features), missPath)
	return nil
}

// RunGroupBBox aggregates every shapefile in the vector directory into
// grouped axis-aligned bounding boxes keyed by the configured group field.
// A group field missing from a file's schema is a configuration error and
// stops the run.
func (a *App) RunGroupBBox() error {
	files, err := listFiles(a.Config.VectorDir, ".shp")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.Config.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, path := range files {
		fc, err := geo.ReadShapefile(path)
		if err != nil {
			log.Printf("[GROUP] %s: %v, skipping", path, err)
			continue
		}

		groups, err := geo.Aggregate(fc, a.Config.GroupField)
		if err != nil {
			var missing *geo.MissingFieldError
			if errors.As(err, &missing) {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.Printf("[GROUP] %s: %v, skipping", path, err)
			continue
		}

		outPath := filepath.Join(a.Config.OutputDir, filepath.Base(path))
		out := geo.GroupsToCollection(groups, a.Config.GroupField, fc.CRS)
		if err := geo.WriteShapefile(outPath, out); err != nil {
			log.Printf("[GROUP] %s: %v, skipping", path, err)
			continue
		}
		log.Printf("[GROUP] %s: %d groups -> %s", path, len(groups), outPath)

		if a.Config.PreviewFormat != "" {
			if err := a.writePreview(fc, groups, outPath); err != nil {
				log.Printf("[GROUP] %s: preview failed: %v", path, err)
			}
		}
	}
	return nil
}

func (a *App) writePreview(fc *geo.FeatureCollection, groups []geo.BoundingGroup, shpPath string) error {
	preview := geo.NewPreview(fc)
	preview.Groups = groups

	path := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + "." + a.Config.PreviewFormat
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if a.Config.PreviewFormat == "png" {
		return preview.RenderToPNG(f)
	}
	return preview.RenderToSVG(f)
}

// RunTif2Png converts every raster in the raster directory to a stretched
// PNG.
func (a *App) RunTif2Png() error {
	rasters, err := listFiles(a.Config.RasterDir, ".tif", ".tiff")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.Config.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, path := range rasters {
		outPath := filepath.Join(a.Config.OutputDir, fileStem(path)+".png")
		if err := a.tif2pngOne(path, outPath); err != nil {
			log.Printf("[TIF2PNG] %s: %v, skipping", path, err)
			continue
		}
		log.Printf("[TIF2PNG] %s -> %s", path, outPath)
	}
	return nil
}

func (a *App) tif2pngOne(rasterPath, outPath string) error {
	raster, err := geo.OpenRaster(rasterPath)
	if err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating png: %w", err)
	}
	defer f.Close()
	return geo.WritePNG(f, geo.StretchToImage(raster.Image))
}

// RunSquares converts rasters to stretched PNGs and splits each into
// fixed-size square tiles named square_ROW_COL.png under a per-raster
// directory.
func (a *App) RunSquares() error {
	rasters, err := listFiles(a.Config.RasterDir, ".tif", ".tiff")
	if err != nil {
		return err
	}

	for _, path := range rasters {
		raster, err := geo.OpenRaster(path)
		if err != nil {
			log.Printf("[SQUARES] %s: %v, skipping", path, err)
			continue
		}

		stretched := geo.StretchToImage(raster.Image)
		tiles := geo.SplitSquares(stretched, a.Config.SquareSize)

		tileDir := filepath.Join(a.Config.OutputDir, fileStem(path))
		if err := os.MkdirAll(tileDir, 0755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}

		written := 0
		for _, tile := range tiles {
			tilePath := filepath.Join(tileDir, fmt.Sprintf("square_%d_%d.png", tile.Row, tile.Col))
			f, err := os.Create(tilePath)
			if err != nil {
				log.Printf("[SQUARES] %s: %v, skipping tile", tilePath, err)
				continue
			}
			err = geo.WritePNG(f, tile.Image)
			f.Close()
			if err != nil {
				log.Printf("[SQUARES] %s: %v", tilePath, err)
				continue
			}
			written++
		}
		log.Printf("[SQUARES] %s: %d tiles -> %s", path, written, tileDir)
	}
	return nil
}

// RunDraw draws the YOLO boxes of one label file onto one image.
func (a *App) RunDraw() error {
	img, err := loadPNG(a.ImagePath)
	if err != nil {
		return err
	}

	f, err := os.Open(a.LabelPath)
	if err != nil {
		return fmt.Errorf("opening labels: %w", err)
	}
	lines, skipped, err := geo.ParseAnnotations(f)
	f.Close()
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Printf("[DRAW] %s: %v", a.LabelPath, s)
	}

	if err := geo.DrawBoxes(img, lines); err != nil {
		return err
	}

	out, err := os.Create(a.OutputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()
	if err := geo.WritePNG(out, img); err != nil {
		return err
	}
	log.Printf("[DRAW] %d boxes -> %s", len(lines), a.OutputPath)
	return nil
}

// stemIndex maps file stems to full paths for all files in dir with one of
// the given extensions.
func stemIndex(dir string, exts ...string) (map[string]string, error) {
	files, err := listFiles(dir, exts...)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(files))
	for _, f := range files {
		index[fileStem(f)] = f
	}
	return index, nil
}

// listFiles returns the files in dir with one of the given extensions,
// sorted for deterministic processing order.
func listFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

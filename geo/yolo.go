package geo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// clampSlack is how far a normalized value may sit outside [0,1] before the
// encoder flags the clamp as a real out-of-bounds condition rather than
// floating-point drift at the image border.
const clampSlack = 1e-9

// ParseYoloLine parses one detection line: "class cx cy w h", whitespace
// separated, all values except the class normalized to [0,1]. Trailing
// fields (confidence scores) are tolerated and ignored. lineNo is carried
// into the error for reporting.
func ParseYoloLine(line string, lineNo int) (YoloLine, error) {
	malformed := func(reason string) error {
		return &MalformedAnnotationError{Line: lineNo, Content: line, Reason: reason}
	}

	fields := strings.Fields(line)
	if len(fields) < 5 {
		return YoloLine{}, malformed(fmt.Sprintf("got %d fields, want at least 5", len(fields)))
	}

	class, err := strconv.Atoi(fields[0])
	if err != nil || class < 0 {
		return YoloLine{}, malformed("class id must be a non-negative integer")
	}

	var vals [4]float64
	names := [4]string{"center_x", "center_y", "width", "height"}
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return YoloLine{}, malformed(fmt.Sprintf("%s is not a number", names[i]))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return YoloLine{}, malformed(fmt.Sprintf("%s is not finite", names[i]))
		}
		if v < 0 || v > 1 {
			return YoloLine{}, malformed(fmt.Sprintf("%s=%g outside [0,1]", names[i], v))
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return YoloLine{}, malformed("width and height must be positive")
	}

	return YoloLine{
		Class:   class,
		CenterX: vals[0],
		CenterY: vals[1],
		Width:   vals[2],
		Height:  vals[3],
	}, nil
}

// ParseAnnotations reads a whole YOLO annotation file. Malformed lines are
// skipped and returned separately so the caller can report them; a bad line
// never aborts the rest of the file. Blank lines are ignored.
func ParseAnnotations(r io.Reader) ([]YoloLine, []*MalformedAnnotationError, error) {
	var lines []YoloLine
	var skipped []*MalformedAnnotationError

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		ln, err := ParseYoloLine(text, lineNo)
		if err != nil {
			var malformed *MalformedAnnotationError
			if errors.As(err, &malformed) {
				skipped = append(skipped, malformed)
				continue
			}
			return nil, nil, err
		}
		lines = append(lines, ln)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading annotations: %w", err)
	}
	return lines, skipped, nil
}

// DecodeYoloLine converts normalized center/size to an absolute pixel-space
// rectangle on an image of the given dimensions.
func DecodeYoloLine(ln YoloLine, imageWidth, imageHeight int) (PixelRect, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return PixelRect{}, fmt.Errorf("invalid image dimensions %dx%d", imageWidth, imageHeight)
	}
	w := float64(imageWidth)
	h := float64(imageHeight)
	return PixelRect{
		ColMin: (ln.CenterX - ln.Width/2) * w,
		RowMin: (ln.CenterY - ln.Height/2) * h,
		ColMax: (ln.CenterX + ln.Width/2) * w,
		RowMax: (ln.CenterY + ln.Height/2) * h,
		Class:  ln.Class,
	}, nil
}

// EncodePixelRect converts a pixel rectangle back to a normalized YOLO line.
// Normalized values are clamped into [0,1] to absorb rounding drift at image
// borders; this is a documented lossy policy, not silent data loss. The
// second return value reports whether any value was clamped by more than
// floating-point slack, so callers can log the original rectangle.
func EncodePixelRect(r PixelRect, imageWidth, imageHeight int, class int) (YoloLine, bool, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return YoloLine{}, false, fmt.Errorf("invalid image dimensions %dx%d", imageWidth, imageHeight)
	}
	w := float64(imageWidth)
	h := float64(imageHeight)

	vals := [4]float64{
		(r.ColMin + r.ColMax) / 2 / w,
		(r.RowMin + r.RowMax) / 2 / h,
		r.Width() / w,
		r.Height() / h,
	}

	clamped := false
	for i, v := range vals {
		if v < -clampSlack || v > 1+clampSlack {
			clamped = true
		}
		vals[i] = math.Min(1, math.Max(0, v))
	}

	return YoloLine{
		Class:   class,
		CenterX: vals[0],
		CenterY: vals[1],
		Width:   vals[2],
		Height:  vals[3],
	}, clamped, nil
}

// GeoPolygonToYolo reduces a (possibly rotated) geographic polygon to a
// normalized YOLO line on an image of the given dimensions. Every vertex is
// mapped through the inverse affine model and the min/max taken, so rotated
// geographic features become axis-aligned boxes. That axis-alignment step
// loses the rotation on purpose; YOLO has no way to express it.
func GeoPolygonToYolo(poly orb.Polygon, transform AffineMatrix, imageWidth, imageHeight, class int) (YoloLine, bool, error) {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return YoloLine{}, false, fmt.Errorf("empty polygon")
	}

	minCol, minRow := math.MaxFloat64, math.MaxFloat64
	maxCol, maxRow := -math.MaxFloat64, -math.MaxFloat64
	for _, p := range poly[0] {
		col, row, err := transform.GeoToPixel(p[0], p[1])
		if err != nil {
			return YoloLine{}, false, err
		}
		minCol = math.Min(minCol, col)
		minRow = math.Min(minRow, row)
		maxCol = math.Max(maxCol, col)
		maxRow = math.Max(maxRow, row)
	}

	rect := PixelRect{ColMin: minCol, RowMin: minRow, ColMax: maxCol, RowMax: maxRow, Class: class}
	return EncodePixelRect(rect, imageWidth, imageHeight, class)
}

// FormatYoloLine renders one detection in the standard text form.
func FormatYoloLine(ln YoloLine) string {
	return fmt.Sprintf("%d %s %s %s %s",
		ln.Class,
		strconv.FormatFloat(ln.CenterX, 'f', -1, 64),
		strconv.FormatFloat(ln.CenterY, 'f', -1, 64),
		strconv.FormatFloat(ln.Width, 'f', -1, 64),
		strconv.FormatFloat(ln.Height, 'f', -1, 64))
}

// WriteAnnotations writes detections one per line.
func WriteAnnotations(w io.Writer, lines []YoloLine) error {
	bw := bufio.NewWriter(w)
	for _, ln := range lines {
		if _, err := bw.WriteString(FormatYoloLine(ln) + "\n"); err != nil {
			return fmt.Errorf("writing annotations: %w", err)
		}
	}
	return bw.Flush()
}

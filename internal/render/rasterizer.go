// Package render rasterises question regions, stitches their segments and
// runs the cosmetic clean-up passes before writing PNG files.
package render

import (
	"context"
	"image"
	"math"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// Rasterizer renders a rectangle of a PDF page to an image.
type Rasterizer interface {
	// RenderClip renders rect (page-space points) of the zero-based page.
	RenderClip(ctx context.Context, pdfPath string, pageIndex int, rect pageindex.Rect, dpi int) (image.Image, error)
	Close() error
}

// PointsToPixels converts a page-space length to pixels at dpi.
func PointsToPixels(v float64, dpi int) int {
	return int(math.Round(v * float64(dpi) / 72.0))
}

// pixelRect converts a page rectangle to a pixel rectangle clamped to bounds.
func pixelRect(rect pageindex.Rect, dpi int, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		PointsToPixels(rect.Left, dpi),
		PointsToPixels(rect.Top, dpi),
		PointsToPixels(rect.Right, dpi),
		PointsToPixels(rect.Bottom, dpi),
	).Add(bounds.Min)
	return r.Intersect(bounds)
}

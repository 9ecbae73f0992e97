package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// PopplerRasterizer renders the clipped rectangle directly with pdftoppm,
// which keeps vector text sharp without rasterising the whole page.
type PopplerRasterizer struct {
	Binary string
}

// NewPopplerRasterizer locates pdftoppm on PATH.
func NewPopplerRasterizer() (*PopplerRasterizer, error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w", err)
	}
	return &PopplerRasterizer{Binary: bin}, nil
}

// RenderClip implements Rasterizer.
func (p *PopplerRasterizer) RenderClip(ctx context.Context, pdfPath string, pageIndex int, rect pageindex.Rect, dpi int) (image.Image, error) {
	w, h := PointsToPixels(rect.Width(), dpi), PointsToPixels(rect.Height(), dpi)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid clip for page %d: %+v", pageIndex+1, rect)
	}

	dir, err := os.MkdirTemp("", "qbank-clip-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	prefix := filepath.Join(dir, "clip")

	page := strconv.Itoa(pageIndex + 1)
	args := []string{
		"-png",
		"-r", strconv.Itoa(dpi),
		"-q",
		"-singlefile",
		"-cropbox",
		"-f", page,
		"-l", page,
		"-x", strconv.Itoa(PointsToPixels(rect.Left, dpi)),
		"-y", strconv.Itoa(PointsToPixels(rect.Top, dpi)),
		"-W", strconv.Itoa(w),
		"-H", strconv.Itoa(h),
		pdfPath, prefix,
	}
	cmd := exec.CommandContext(ctx, p.Binary, args...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w: %s", pageIndex+1, err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode clip: %w", err)
	}
	return img, nil
}

// Close implements Rasterizer.
func (p *PopplerRasterizer) Close() error { return nil }

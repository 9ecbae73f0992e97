package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
	"github.com/a3tai/qbank-extractor/internal/region"
)

// Kind selects which strip pass applies to an image.
type Kind int

const (
	// Question images lose their printed question number.
	Question Kind = iota
	// Solution images lose their leading heading line.
	Solution
)

// String returns the file name prefix of the kind.
func (k Kind) String() string {
	if k == Solution {
		return "Sol"
	}
	return "Q"
}

// FileName returns the image file name for a question number.
func (k Kind) FileName(questionNumber int) string {
	return fmt.Sprintf("%s_%d.png", k, questionNumber)
}

// Options toggles and tunes the cosmetic passes.
type Options struct {
	DPI int `json:"dpi"`

	Trim          bool  `json:"trim"`
	TrimTolerance uint8 `json:"trim_tolerance"`
	TrimPadding   int   `json:"trim_padding"`

	Watermark     bool  `json:"watermark"`
	WatermarkLow  uint8 `json:"watermark_low"`
	WatermarkHigh uint8 `json:"watermark_high"`

	NumberStrip bool        `json:"number_strip"`
	HeaderStrip bool        `json:"header_strip"`
	Strip       StripConfig `json:"strip"`

	FooterStrip        bool    `json:"footer_strip"`
	FooterScanFraction float64 `json:"footer_scan_fraction"`

	Contrast       float64 `json:"contrast"`
	Threshold      uint8   `json:"threshold"` // 0 disables
	QuantizeLevels int     `json:"quantize_levels"`
	MaxWidth       int     `json:"max_width"` // 0 disables
}

// DefaultOptions returns the pass settings used by most sources.
func DefaultOptions() Options {
	return Options{
		DPI:                300,
		Trim:               true,
		TrimTolerance:      50,
		Watermark:          false,
		WatermarkLow:       200,
		WatermarkHigh:      245,
		NumberStrip:        true,
		HeaderStrip:        true,
		Strip:              DefaultStripConfig(),
		FooterStrip:        true,
		FooterScanFraction: 0.25,
		Contrast:           1.3,
		Threshold:          190,
	}
}

// Output describes a written image.
type Output struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Degraded lists the passes that failed and were skipped.
	Degraded []string `json:"degraded,omitempty"`
}

// Renderer turns regions into cleaned images.
type Renderer struct {
	raster Rasterizer
	opts   Options
	logger *slog.Logger
}

// NewRenderer creates a renderer over a rasterizer.
func NewRenderer(raster Rasterizer, opts Options, logger *slog.Logger) *Renderer {
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{raster: raster, opts: opts, logger: logger}
}

// Options returns the renderer's pass settings.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render rasterises every segment of reg, stitches them and runs the passes.
// Segments that fail to render are skipped; an error is returned only when
// nothing usable is left.
func (r *Renderer) Render(ctx context.Context, pdfPath string, reg region.Region, kind Kind) (*image.Gray, []string, error) {
	var parts []*image.Gray
	for _, seg := range reg.Segments {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		img, err := r.raster.RenderClip(ctx, pdfPath, seg.PageIndex, seg.Rect, r.opts.DPI)
		if err != nil {
			r.logger.Warn("segment render failed",
				"question", reg.QuestionNumber, "page", seg.PageIndex+1, "column", seg.Column, "error", err)
			continue
		}
		parts = append(parts, toGray(img))
	}
	if len(parts) == 0 {
		return nil, nil, qerrors.ParseError("render", reg.QuestionNumber, fmt.Errorf("no segment rendered"))
	}

	img := Stitch(parts)
	var degraded []string
	pass := func(name string, enabled bool, fn func(*image.Gray) *image.Gray) {
		if !enabled {
			return
		}
		err := qerrors.Guard(name, reg.QuestionNumber, func() error {
			out := fn(img)
			if out.Bounds().Empty() {
				return fmt.Errorf("pass left an empty image")
			}
			img = out
			return nil
		})
		if err != nil {
			degraded = append(degraded, name)
			r.logger.Warn("cosmetic pass skipped", "pass", name, "question", reg.QuestionNumber, "error", err)
		}
	}

	o := r.opts
	pass("trim", o.Trim, func(g *image.Gray) *image.Gray { return TrimWhitespace(g, o.TrimTolerance, o.TrimPadding) })
	pass("watermark", o.Watermark, func(g *image.Gray) *image.Gray { return RemoveWatermark(g, o.WatermarkLow, o.WatermarkHigh) })
	pass("number-strip", o.NumberStrip && kind == Question, func(g *image.Gray) *image.Gray { return StripQuestionNumber(g, o.Strip) })
	pass("header-strip", o.HeaderStrip && kind == Solution, func(g *image.Gray) *image.Gray { return StripHeader(g, o.Strip) })
	pass("footer-strip", o.FooterStrip, func(g *image.Gray) *image.Gray {
		return StripFooter(g, o.Strip.InkThreshold, o.FooterScanFraction)
	})
	pass("retrim", o.Trim, func(g *image.Gray) *image.Gray { return TrimWhitespace(g, o.TrimTolerance, o.TrimPadding) })
	pass("contrast", o.Contrast > 0, func(g *image.Gray) *image.Gray { return Contrast(g, o.Contrast) })
	pass("threshold", o.Threshold > 0, func(g *image.Gray) *image.Gray { return Threshold(g, o.Threshold) })
	pass("quantize", o.Threshold == 0 && o.QuantizeLevels > 1, func(g *image.Gray) *image.Gray { return Quantize(g, o.QuantizeLevels) })
	pass("downscale", o.MaxWidth > 0, func(g *image.Gray) *image.Gray { return Downscale(g, o.MaxWidth) })

	return img, degraded, nil
}

// RenderToFile renders reg and writes it as a PNG into dir.
func (r *Renderer) RenderToFile(ctx context.Context, pdfPath string, reg region.Region, kind Kind, dir string) (Output, error) {
	img, degraded, err := r.Render(ctx, pdfPath, reg, kind)
	if err != nil {
		return Output{}, err
	}
	path := filepath.Join(dir, kind.FileName(reg.QuestionNumber))
	if err := WritePNG(path, img); err != nil {
		return Output{}, qerrors.ParseError("write image", reg.QuestionNumber, err)
	}
	b := img.Bounds()
	return Output{Path: path, Width: b.Dx(), Height: b.Dy(), Degraded: degraded}, nil
}

// WritePNG encodes img with maximum compression.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

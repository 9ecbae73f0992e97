package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

const white = 255

// toGray converts any image to a zero-origin grayscale copy.
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// crop copies r out of img into a zero-origin image.
func crop(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Stitch stacks parts vertically on a white canvas, left aligned and
// padded to the widest part.
func Stitch(parts []*image.Gray) *image.Gray {
	width, height := 0, 0
	for _, p := range parts {
		b := p.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += b.Dy()
	}
	canvas := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: white}), image.Point{}, draw.Src)
	y := 0
	for _, p := range parts {
		b := p.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Src)
		y += b.Dy()
	}
	return canvas
}

// TrimWhitespace crops to the bounding box of pixels that differ from the
// top-left background pixel by more than tolerance, then adds padding.
// An image with no content is returned unchanged.
func TrimWhitespace(img *image.Gray, tolerance uint8, padding int) *image.Gray {
	b := img.Bounds()
	if b.Empty() {
		return img
	}
	bg := int(img.GrayAt(b.Min.X, b.Min.Y).Y)
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := int(img.GrayAt(x, y).Y) - bg
			if d < 0 {
				d = -d
			}
			if d <= int(tolerance) {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return img
	}
	r := image.Rect(minX-padding, minY-padding, maxX+1+padding, maxY+1+padding)
	return crop(img, r)
}

// RemoveWatermark forces pixels inside the [low, high] gray band to white.
func RemoveWatermark(img *image.Gray, low, high uint8) *image.Gray {
	for i, v := range img.Pix {
		if v >= low && v <= high {
			img.Pix[i] = white
		}
	}
	return img
}

// StripConfig tunes the margin strip passes. Sizes are in pixels at 300 DPI.
type StripConfig struct {
	InkThreshold  uint8   // pixels darker than this are ink
	ScanFraction  float64 // share of the width (or height) searched
	MinInk        int     // ink pixels for a column to count as ink
	MergeGap      int     // ink blocks closer than this are merged
	MinBlockWidth int
	Margin        int     // kept before the content block
	MaxFraction   float64 // never strip more than this share
	// FallbackFraction is stripped when detection is ambiguous. Zero keeps
	// the image untouched in that case.
	FallbackFraction float64
}

// DefaultStripConfig returns the standard strip parameters.
func DefaultStripConfig() StripConfig {
	return StripConfig{
		InkThreshold:  200,
		ScanFraction:  0.30,
		MinInk:        2,
		MergeGap:      15,
		MinBlockWidth: 3,
		Margin:        10,
		MaxFraction:   0.30,
	}
}

type block struct{ start, end int } // inclusive

// inkBlocks groups positions whose projection exceeds minInk into blocks,
// merging blocks separated by less than mergeGap and dropping slivers.
func inkBlocks(profile []int, cfg StripConfig) []block {
	var raw []block
	open := -1
	for i, v := range profile {
		switch {
		case v > cfg.MinInk && open < 0:
			open = i
		case v <= cfg.MinInk && open >= 0:
			raw = append(raw, block{open, i - 1})
			open = -1
		}
	}
	if open >= 0 {
		raw = append(raw, block{open, len(profile) - 1})
	}

	var merged []block
	for _, b := range raw {
		if n := len(merged); n > 0 && b.start-merged[n-1].end-1 < cfg.MergeGap {
			merged[n-1].end = b.end
			continue
		}
		merged = append(merged, b)
	}
	var out []block
	for _, b := range merged {
		if b.end-b.start+1 >= cfg.MinBlockWidth {
			out = append(out, b)
		}
	}
	return out
}

// stripCut finds where content starts after a leading marker block along
// one axis of the given extent. It returns 0 when nothing should be cut.
func stripCut(profile []int, extent int, cfg StripConfig) int {
	limit := int(float64(extent) * cfg.MaxFraction)
	fallback := int(float64(extent) * cfg.FallbackFraction)
	blocks := inkBlocks(profile, cfg)
	if len(blocks) < 2 {
		return fallback
	}
	cut := max(blocks[1].start-cfg.Margin, blocks[0].end+1)
	if cut > limit {
		return fallback
	}
	return cut
}

// StripQuestionNumber removes the printed question number from the left
// margin: the first ink block within the scan width and the gap after it.
func StripQuestionNumber(img *image.Gray, cfg StripConfig) *image.Gray {
	b := img.Bounds()
	scan := int(float64(b.Dx()) * cfg.ScanFraction)
	profile := make([]int, scan)
	for x := 0; x < scan; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if img.GrayAt(b.Min.X+x, y).Y < cfg.InkThreshold {
				profile[x]++
			}
		}
	}
	cut := stripCut(profile, b.Dx(), cfg)
	if cut <= 0 {
		return img
	}
	return crop(img, image.Rect(b.Min.X+cut, b.Min.Y, b.Max.X, b.Max.Y))
}

// StripHeader removes a leading heading line (such as "Sol. 12") from the
// top of a solution image.
func StripHeader(img *image.Gray, cfg StripConfig) *image.Gray {
	b := img.Bounds()
	scan := int(float64(b.Dy()) * cfg.ScanFraction)
	profile := make([]int, scan)
	for y := 0; y < scan; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, b.Min.Y+y).Y < cfg.InkThreshold {
				profile[y]++
			}
		}
	}
	cut := stripCut(profile, b.Dy(), cfg)
	if cut <= 0 {
		return img
	}
	return crop(img, image.Rect(b.Min.X, b.Min.Y+cut, b.Max.X, b.Max.Y))
}

// StripFooter trims artifact rows from the bottom: rows whose ink sits only
// on the right half (page codes) or that form a solid bar. It stops at the
// first row with ink on the left half.
func StripFooter(img *image.Gray, inkThreshold uint8, scanFraction float64) *image.Gray {
	b := img.Bounds()
	w := b.Dx()
	stop := b.Max.Y - int(float64(b.Dy())*scanFraction)
	cutRow := b.Max.Y
	for y := b.Max.Y - 1; y >= stop && y >= b.Min.Y; y-- {
		total, left := 0, 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y < inkThreshold {
				total++
				if x-b.Min.X < w/2 {
					left++
				}
			}
		}
		if total == 0 {
			continue
		}
		if left == 0 || total > w/2 {
			cutRow = y
			continue
		}
		break
	}
	if cutRow >= b.Max.Y || cutRow <= b.Min.Y {
		return img
	}
	return crop(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, cutRow))
}

// Contrast scales pixel distance from the image mean by factor.
func Contrast(img *image.Gray, factor float64) *image.Gray {
	if len(img.Pix) == 0 || factor == 1 {
		return img
	}
	sum := 0
	for _, v := range img.Pix {
		sum += int(v)
	}
	mean := float64(sum) / float64(len(img.Pix))
	for i, v := range img.Pix {
		img.Pix[i] = clamp(mean + (float64(v)-mean)*factor)
	}
	return img
}

// Threshold forces every pixel brighter than t to white.
func Threshold(img *image.Gray, t uint8) *image.Gray {
	for i, v := range img.Pix {
		if v > t {
			img.Pix[i] = white
		}
	}
	return img
}

// Quantize reduces the image to the given number of evenly spaced gray levels.
func Quantize(img *image.Gray, levels int) *image.Gray {
	if levels < 2 || levels >= 256 {
		return img
	}
	step := 255.0 / float64(levels-1)
	for i, v := range img.Pix {
		img.Pix[i] = clamp(math.Round(float64(v)/step) * step)
	}
	return img
}

// Downscale shrinks the image to maxWidth keeping its aspect ratio.
func Downscale(img *image.Gray, maxWidth int) *image.Gray {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := int(math.Round(float64(b.Dy()) * float64(maxWidth) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	dst := image.NewGray(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

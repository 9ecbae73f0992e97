package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
	"github.com/a3tai/qbank-extractor/internal/pageindex"
	"github.com/a3tai/qbank-extractor/internal/region"
)

func blank(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = white
	}
	return img
}

func fill(img *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

type fakeRaster struct {
	calls int
	fail  bool
}

func (f *fakeRaster) RenderClip(_ context.Context, _ string, _ int, rect pageindex.Rect, dpi int) (image.Image, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("corrupt page")
	}
	w, h := PointsToPixels(rect.Width(), dpi), PointsToPixels(rect.Height(), dpi)
	img := blank(w, h)
	fill(img, image.Rect(10, 10, 20, 30), 0)
	fill(img, image.Rect(60, 10, w-10, 30), 0)
	return img, nil
}

func (f *fakeRaster) Close() error { return nil }

func TestStitch(t *testing.T) {
	a, b := blank(10, 5), blank(20, 7)
	fill(a, a.Bounds(), 0)
	out := Stitch([]*image.Gray{a, b})

	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 12, out.Bounds().Dy())
	assert.Equal(t, uint8(0), out.GrayAt(9, 4).Y)
	assert.Equal(t, uint8(white), out.GrayAt(15, 2).Y, "narrow part is white padded")
}

func TestTrimWhitespace(t *testing.T) {
	img := blank(100, 100)
	fill(img, image.Rect(20, 40, 30, 50), 0)
	fill(img, image.Rect(70, 70, 71, 71), 230) // within tolerance

	out := TrimWhitespace(img, 50, 0)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds())

	padded := TrimWhitespace(img, 50, 2)
	assert.Equal(t, 14, padded.Bounds().Dx())

	empty := blank(30, 30)
	assert.Equal(t, empty.Bounds(), TrimWhitespace(empty, 50, 0).Bounds())
}

func TestStripQuestionNumber(t *testing.T) {
	img := blank(300, 50)
	fill(img, image.Rect(5, 10, 16, 31), 0)
	fill(img, image.Rect(60, 10, 250, 31), 0)

	out := StripQuestionNumber(img, DefaultStripConfig())
	assert.Equal(t, 250, out.Bounds().Dx())
	assert.Equal(t, uint8(0), out.GrayAt(10, 15).Y)
}

func TestStripQuestionNumber_Ambiguous(t *testing.T) {
	img := blank(300, 50)
	fill(img, image.Rect(5, 10, 250, 31), 0)

	out := StripQuestionNumber(img, DefaultStripConfig())
	assert.Equal(t, 300, out.Bounds().Dx())

	cfg := DefaultStripConfig()
	cfg.FallbackFraction = 0.05
	out = StripQuestionNumber(img, cfg)
	assert.Equal(t, 285, out.Bounds().Dx())
}

func TestStripHeader(t *testing.T) {
	img := blank(200, 300)
	fill(img, image.Rect(10, 5, 60, 20), 0)
	fill(img, image.Rect(10, 60, 190, 290), 0)

	out := StripHeader(img, DefaultStripConfig())
	assert.Equal(t, 250, out.Bounds().Dy())
}

func TestStripFooter(t *testing.T) {
	img := blank(200, 100)
	fill(img, image.Rect(10, 10, 190, 50), 0)
	fill(img, image.Rect(150, 90, 190, 96), 0)

	out := StripFooter(img, 200, 0.25)
	assert.Equal(t, 90, out.Bounds().Dy())

	bar := blank(200, 100)
	fill(bar, image.Rect(10, 10, 190, 50), 0)
	fill(bar, image.Rect(0, 95, 200, 97), 0)
	assert.Equal(t, 95, StripFooter(bar, 200, 0.25).Bounds().Dy())

	content := blank(200, 100)
	fill(content, image.Rect(10, 80, 90, 95), 0)
	assert.Equal(t, 100, StripFooter(content, 200, 0.25).Bounds().Dy())
}

func TestTonePasses(t *testing.T) {
	img := blank(4, 1)
	img.Pix = []uint8{10, 120, 195, 240}

	RemoveWatermark(img, 100, 130)
	assert.Equal(t, []uint8{10, 255, 195, 240}, img.Pix)

	Threshold(img, 190)
	assert.Equal(t, []uint8{10, 255, 255, 255}, img.Pix)

	q := blank(2, 1)
	q.Pix = []uint8{100, 200}
	Quantize(q, 2)
	assert.Equal(t, []uint8{0, 255}, q.Pix)

	c := blank(2, 1)
	c.Pix = []uint8{100, 200}
	Contrast(c, 2)
	assert.Equal(t, []uint8{50, 250}, c.Pix)
}

func TestDownscale(t *testing.T) {
	out := Downscale(blank(400, 100), 200)
	assert.Equal(t, image.Rect(0, 0, 200, 50), out.Bounds())

	same := blank(100, 100)
	assert.Same(t, same, Downscale(same, 200))
}

func twoSegments(n int) region.Region {
	return region.Region{QuestionNumber: n, Segments: []region.Segment{
		{PageIndex: 0, Column: 0, Rect: pageindex.Rect{Left: 0, Top: 600, Right: 300, Bottom: 736}},
		{PageIndex: 0, Column: 1, Rect: pageindex.Rect{Left: 300, Top: 50, Right: 600, Bottom: 120}},
	}}
}

func TestRenderer_RenderToFile(t *testing.T) {
	raster := &fakeRaster{}
	r := NewRenderer(raster, DefaultOptions(), nil)
	dir := t.TempDir()

	out, err := r.RenderToFile(context.Background(), "paper.pdf", twoSegments(3), Question, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, raster.calls)
	assert.Equal(t, filepath.Join(dir, "Q_3.png"), out.Path)
	assert.Empty(t, out.Degraded)

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, out.Width, img.Bounds().Dx())
	assert.Equal(t, out.Height, img.Bounds().Dy())
	assert.Positive(t, out.Height)
}

func TestRenderer_AllSegmentsFail(t *testing.T) {
	r := NewRenderer(&fakeRaster{fail: true}, DefaultOptions(), nil)
	_, _, err := r.Render(context.Background(), "paper.pdf", twoSegments(4), Solution)
	require.Error(t, err)
	assert.True(t, qerrors.IsKind(err, qerrors.KindParse))
}

func TestKindFileName(t *testing.T) {
	assert.Equal(t, "Q_12.png", Question.FileName(12))
	assert.Equal(t, "Sol_12.png", Solution.FileName(12))
}

func TestPixelRect(t *testing.T) {
	bounds := image.Rect(0, 0, 2480, 3508)
	r := pixelRect(pageindex.Rect{Left: 0, Top: 72, Right: 300, Bottom: 900}, 300, bounds)
	assert.Equal(t, 300, r.Min.Y)
	assert.Equal(t, 1250, r.Max.X)
	assert.Equal(t, 3508, r.Max.Y, "clamped to page")
}

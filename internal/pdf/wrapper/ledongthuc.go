package wrapper

import (
	"fmt"
	"os"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
	"github.com/ledongthuc/pdf"
)

// LedongthucDocument reads positioned glyphs through ledongthuc/pdf
type LedongthucDocument struct {
	reader   *pdf.Reader
	file     *os.File
	filePath string
	closed   bool
}

// OpenLedongthuc opens a PDF file for glyph extraction
func OpenLedongthuc(path string) (*LedongthucDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &WrapperError{
			Library: LibraryLedongthuc,
			Op:      "open_file",
			Err:     fmt.Errorf("failed to open PDF: %w", err),
		}
	}
	return &LedongthucDocument{reader: reader, file: f, filePath: path}, nil
}

// NumPages returns the number of pages in the document
func (d *LedongthucDocument) NumPages() int {
	if d.closed {
		return 0
	}
	return d.reader.NumPage()
}

// PageGlyphs returns the page size and positioned glyphs of a zero-based page.
// Malformed content streams make ledongthuc panic; that is reported as an error.
func (d *LedongthucDocument) PageGlyphs(index int) (width, height float64, glyphs []pageindex.Glyph, err error) {
	if d.closed {
		return 0, 0, nil, &WrapperError{Library: LibraryLedongthuc, Op: "page_glyphs", Err: ErrDocumentClosed.Err}
	}
	if index < 0 || index >= d.reader.NumPage() {
		return 0, 0, nil, &WrapperError{
			Library: LibraryLedongthuc,
			Op:      "page_glyphs",
			Err:     fmt.Errorf("invalid page index %d (document has %d pages)", index, d.reader.NumPage()),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &WrapperError{
				Library: LibraryLedongthuc,
				Op:      "page_glyphs",
				Err:     fmt.Errorf("page %d content could not be decoded: %v", index+1, r),
			}
		}
	}()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return pageindex.DefaultPageWidth, pageindex.DefaultPageHeight, nil, nil
	}
	box := visibleBox(page.V)
	width, height = box.size()
	return width, height, box.glyphs(page.Content().Text), nil
}

// PlainText returns ledongthuc's plain text rendering of a zero-based page
func (d *LedongthucDocument) PlainText(index int) (text string, err error) {
	if d.closed {
		return "", &WrapperError{Library: LibraryLedongthuc, Op: "plain_text", Err: ErrDocumentClosed.Err}
	}
	if index < 0 || index >= d.reader.NumPage() {
		return "", &WrapperError{Library: LibraryLedongthuc, Op: "plain_text", Err: ErrInvalidPage.Err}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &WrapperError{Library: LibraryLedongthuc, Op: "plain_text", Err: fmt.Errorf("%v", r)}
		}
	}()
	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// Close closes the document
func (d *LedongthucDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// pageBox is a page boundary box in PDF space.
type pageBox struct {
	x0, y0, x1, y1 float64
}

var defaultBox = pageBox{x1: pageindex.DefaultPageWidth, y1: pageindex.DefaultPageHeight}

func (b pageBox) size() (float64, float64) {
	return b.x1 - b.x0, b.y1 - b.y0
}

// intersect returns the overlap of b and o, or b when they do not overlap.
func (b pageBox) intersect(o pageBox) pageBox {
	out := pageBox{max(b.x0, o.x0), max(b.y0, o.y0), min(b.x1, o.x1), min(b.y1, o.y1)}
	if out.x1 <= out.x0 || out.y1 <= out.y0 {
		return b
	}
	return out
}

// glyphs converts text runs into glyphs relative to the box origin, dropping
// runs that start outside the box.
func (b pageBox) glyphs(texts []pdf.Text) []pageindex.Glyph {
	w, h := b.size()
	out := make([]pageindex.Glyph, 0, len(texts))
	for _, t := range texts {
		x, y := t.X-b.x0, t.Y-b.y0
		if x < 0 || x > w || y < 0 || y > h {
			continue
		}
		out = append(out, pageindex.Glyph{
			Text:     t.S,
			X:        x,
			Y:        y,
			W:        t.W,
			FontSize: t.FontSize,
			Font:     t.Font,
		})
	}
	return out
}

// visibleBox returns the area a renderer shows: the CropBox clipped to the
// MediaBox, or the MediaBox when there is no CropBox. Both are inherited
// through the page tree.
func visibleBox(v pdf.Value) pageBox {
	media, ok := inheritedBox(v, "MediaBox")
	if !ok {
		media = defaultBox
	}
	if crop, ok := inheritedBox(v, "CropBox"); ok {
		return media.intersect(crop)
	}
	return media
}

// inheritedBox walks up the page tree until the named box is found
func inheritedBox(v pdf.Value, key string) (pageBox, bool) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key(key)
		if box.Kind() == pdf.Array && box.Len() == 4 {
			b := pageBox{
				x0: min(box.Index(0).Float64(), box.Index(2).Float64()),
				y0: min(box.Index(1).Float64(), box.Index(3).Float64()),
				x1: max(box.Index(0).Float64(), box.Index(2).Float64()),
				y1: max(box.Index(1).Float64(), box.Index(3).Float64()),
			}
			if w, h := b.size(); w > 0 && h > 0 {
				return b, true
			}
		}
		v = v.Key("Parent")
	}
	return pageBox{}, false
}

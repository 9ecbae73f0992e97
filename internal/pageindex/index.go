package pageindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// GlyphSource is implemented by PDF library adapters that can report
// positioned glyphs per page.
type GlyphSource interface {
	NumPages() int
	// PageGlyphs returns the page size in points and its glyphs. index is zero-based.
	PageGlyphs(index int) (width, height float64, glyphs []Glyph, err error)
}

// Index is the word index of a whole document.
type Index struct {
	Pages []*Page
}

// Build reads every page of src and assembles its glyphs into words.
func Build(ctx context.Context, src GlyphSource) (*Index, error) {
	n := src.NumPages()
	ix := &Index{Pages: make([]*Page, 0, n)}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		width, height, glyphs, err := src.PageGlyphs(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		if width <= 0 {
			width = DefaultPageWidth
		}
		if height <= 0 {
			height = DefaultPageHeight
		}
		ix.Pages = append(ix.Pages, NewPage(i, width, height, AssembleWords(glyphs, height)))
	}
	return ix, nil
}

// PageCount returns the number of indexed pages.
func (ix *Index) PageCount() int {
	return len(ix.Pages)
}

// Page returns the page at a zero-based index.
func (ix *Index) Page(i int) (*Page, error) {
	if i < 0 || i >= len(ix.Pages) {
		return nil, fmt.Errorf("invalid page index %d (document has %d pages)", i, len(ix.Pages))
	}
	return ix.Pages[i], nil
}

// PageSize returns the size of the page at a zero-based index, or the
// default size for an unknown page.
func (ix *Index) PageSize(i int) (float64, float64) {
	if i < 0 || i >= len(ix.Pages) {
		return DefaultPageWidth, DefaultPageHeight
	}
	return ix.Pages[i].Width, ix.Pages[i].Height
}

// HasWordsWithin reports whether any word on page i has its centre inside r.
func (ix *Index) HasWordsWithin(i int, r Rect) bool {
	if i < 0 || i >= len(ix.Pages) {
		return false
	}
	for _, w := range ix.Pages[i].Words {
		if r.Contains(w.CenterX(), w.CenterY()) {
			return true
		}
	}
	return false
}

// AssembleWords groups glyphs into lines by baseline, orders them left to
// right and splits words at whitespace or at gaps wider than 0.3 of the
// font size. pageHeight converts PDF space into top-left page space.
func AssembleWords(glyphs []Glyph, pageHeight float64) []Word {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > glyphSize(sorted[i])*0.5 {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines [][]Glyph
	var current []Glyph
	for _, g := range sorted {
		if len(current) > 0 && math.Abs(g.Y-current[0].Y) > glyphSize(current[0])*0.5 {
			lines = append(lines, current)
			current = nil
		}
		current = append(current, g)
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	var words []Word
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		words = append(words, splitLine(line, pageHeight)...)
	}
	return words
}

func splitLine(line []Glyph, pageHeight float64) []Word {
	var words []Word
	var b strings.Builder
	var cur Word
	var lastEnd float64
	open := false

	flush := func() {
		if open && strings.TrimSpace(b.String()) != "" {
			cur.Text = strings.TrimSpace(b.String())
			words = append(words, cur)
		}
		b.Reset()
		open = false
	}

	for _, g := range line {
		size := glyphSize(g)
		width := g.W
		if width <= 0 {
			width = size * 0.5 * float64(len([]rune(g.Text)))
		}
		if isBlank(g.Text) {
			flush()
			lastEnd = g.X + width
			continue
		}
		if open && g.X-lastEnd > size*0.3 {
			flush()
		}
		if !open {
			cur = Word{
				X0:       g.X,
				Top:      pageHeight - g.Y - size,
				Bottom:   pageHeight - g.Y + size*0.2,
				FontName: g.Font,
				FontSize: g.FontSize,
			}
			open = true
		}
		b.WriteString(g.Text)
		cur.X1 = g.X + width
		top := pageHeight - g.Y - size
		if top < cur.Top {
			cur.Top = top
		}
		lastEnd = g.X + width
	}
	flush()
	return words
}

func glyphSize(g Glyph) float64 {
	if g.FontSize > 0 {
		return g.FontSize
	}
	return 12.0
}

func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

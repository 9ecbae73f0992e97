package pageindex

import (
	"math"
	"sort"
	"strings"
)

// Page is one PDF page's word index.
type Page struct {
	Index  int     `json:"index"` // zero-based
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Words  []Word  `json:"words"` // reading order: lines top-down, words left to right

	lines []Line
}

// NewPage builds a page from already assembled words. Words are re-sorted
// into reading order.
func NewPage(index int, width, height float64, words []Word) *Page {
	if width <= 0 {
		width = DefaultPageWidth
	}
	if height <= 0 {
		height = DefaultPageHeight
	}
	p := &Page{Index: index, Width: width, Height: height}
	p.lines = groupLines(words)
	for _, l := range p.lines {
		p.Words = append(p.Words, l.Words...)
	}
	return p
}

// Lines returns the page's words grouped into lines.
func (p *Page) Lines() []Line {
	return p.lines
}

// Text returns the page's text, one line per row.
func (p *Page) Text() string {
	rows := make([]string, len(p.lines))
	for i, l := range p.lines {
		rows[i] = l.Text()
	}
	return strings.Join(rows, "\n")
}

// ColumnOf returns the column index a horizontal position falls into for an
// equal-width layout of the given column count.
func (p *Page) ColumnOf(x float64, columns int) int {
	if columns <= 1 {
		return 0
	}
	col := int(x / (p.Width / float64(columns)))
	if col < 0 {
		return 0
	}
	if col >= columns {
		return columns - 1
	}
	return col
}

// ColumnBounds returns the left and right edge of a column.
func (p *Page) ColumnBounds(col, columns int) (float64, float64) {
	if columns <= 1 {
		return 0, p.Width
	}
	w := p.Width / float64(columns)
	return float64(col) * w, float64(col+1) * w
}

// ColumnWidth returns the width of one column.
func (p *Page) ColumnWidth(columns int) float64 {
	if columns <= 1 {
		return p.Width
	}
	return p.Width / float64(columns)
}

// WordsWithin returns the words whose centre lies inside r, in reading order.
func (p *Page) WordsWithin(r Rect) []Word {
	var out []Word
	for _, w := range p.Words {
		if r.Contains(w.CenterX(), w.CenterY()) {
			out = append(out, w)
		}
	}
	return out
}

// TextWithin returns the text inside r, one line per row.
func (p *Page) TextWithin(r Rect) string {
	var rows []string
	for _, l := range p.lines {
		var parts []string
		for _, w := range l.Words {
			if r.Contains(w.CenterX(), w.CenterY()) {
				parts = append(parts, w.Text)
			}
		}
		if len(parts) > 0 {
			rows = append(rows, strings.Join(parts, " "))
		}
	}
	return strings.Join(rows, "\n")
}

// groupLines sorts words by top edge, merges runs whose top lies within the
// tolerance of the line's first word, then orders each line left to right.
func groupLines(words []Word) []Line {
	if len(words) == 0 {
		return nil
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Top != sorted[j].Top {
			return sorted[i].Top < sorted[j].Top
		}
		return sorted[i].X0 < sorted[j].X0
	})

	var lines []Line
	current := Line{Words: []Word{sorted[0]}, Top: sorted[0].Top, Bottom: sorted[0].Bottom}
	for _, w := range sorted[1:] {
		if math.Abs(w.Top-current.Top) <= lineTolerance(w) {
			current.Words = append(current.Words, w)
			current.Bottom = math.Max(current.Bottom, w.Bottom)
			continue
		}
		lines = append(lines, current)
		current = Line{Words: []Word{w}, Top: w.Top, Bottom: w.Bottom}
	}
	lines = append(lines, current)

	for i := range lines {
		sort.SliceStable(lines[i].Words, func(a, b int) bool {
			return lines[i].Words[a].X0 < lines[i].Words[b].X0
		})
	}
	return lines
}

func lineTolerance(w Word) float64 {
	h := w.Bottom - w.Top
	if h <= 0 {
		h = w.FontSize
	}
	if h <= 0 {
		h = 10
	}
	return h * 0.5
}

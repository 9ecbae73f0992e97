// Package pageindex turns a PDF page's glyph stream into positioned words
// that the anchor detector, region resolver and text extractor operate on.
//
// All coordinates are page-space points with the origin at the top-left
// corner of the page, Y growing downwards.
package pageindex

import (
	"strings"
)

// Default page size (A4) used when a page has no usable MediaBox.
const (
	DefaultPageWidth  = 595.0
	DefaultPageHeight = 842.0
)

// Glyph is a single positioned text run as reported by a PDF library.
// X and Y are in PDF space (origin bottom-left, Y is the baseline).
type Glyph struct {
	Text     string
	X        float64
	Y        float64
	W        float64
	FontSize float64
	Font     string
}

// Word is a whitespace-delimited run of glyphs on one line.
type Word struct {
	Text     string  `json:"text"`
	X0       float64 `json:"x0"`
	X1       float64 `json:"x1"`
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
}

// Bold reports whether the word is set in a bold face.
func (w Word) Bold() bool {
	return IsBoldFont(w.FontName)
}

// CenterX returns the horizontal centre of the word box.
func (w Word) CenterX() float64 { return (w.X0 + w.X1) / 2 }

// CenterY returns the vertical centre of the word box.
func (w Word) CenterY() float64 { return (w.Top + w.Bottom) / 2 }

// IsBoldFont reports whether a font name denotes a bold face. The subset tag
// of names such as "ABCDEF+Arial-BoldMT" is ignored, and the style part after
// "-", "," or "_" is matched, including short forms such as "-BdMT". Medium
// and regular weights are not bold.
func IsBoldFont(name string) bool {
	if i := strings.IndexByte(name, '+'); i >= 0 {
		name = name[i+1:]
	}
	n := strings.ToLower(name)
	if n == "" {
		return false
	}
	style := n
	if i := strings.IndexAny(n, "-,_"); i >= 0 {
		style = n[i+1:]
		if strings.HasPrefix(style, "bd") {
			return true
		}
	}
	for _, marker := range []string{"bold", "black", "heavy", "demi"} {
		if strings.Contains(style, marker) {
			return true
		}
	}
	return false
}

// Rect is an axis-aligned rectangle in page space.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// Line is a group of words sharing a baseline, ordered left to right.
type Line struct {
	Words  []Word
	Top    float64
	Bottom float64
}

// Text joins the line's words with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

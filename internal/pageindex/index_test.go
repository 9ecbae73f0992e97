package pageindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// glyphRun lays out text one glyph per rune, 6pt apart, on a single baseline.
func glyphRun(text string, x, y float64, font string) []Glyph {
	var out []Glyph
	for i, r := range text {
		out = append(out, Glyph{Text: string(r), X: x + float64(i)*6, Y: y, W: 5, FontSize: 10, Font: font})
	}
	return out
}

type fakeSource struct {
	pages [][]Glyph
}

func (f fakeSource) NumPages() int { return len(f.pages) }

func (f fakeSource) PageGlyphs(i int) (float64, float64, []Glyph, error) {
	return 600, 800, f.pages[i], nil
}

func TestAssembleWords(t *testing.T) {
	var glyphs []Glyph
	glyphs = append(glyphs, glyphRun("Q1.", 40, 760, "Arial-BoldMT")...)
	glyphs = append(glyphs, glyphRun("Find", 70, 760, "ArialMT")...)
	glyphs = append(glyphs, glyphRun("x", 40, 740, "ArialMT")...)

	words := AssembleWords(glyphs, 800)
	require.Len(t, words, 3)

	assert.Equal(t, "Q1.", words[0].Text)
	assert.True(t, words[0].Bold())
	assert.InDelta(t, 30, words[0].Top, 0.01)
	assert.Equal(t, "Find", words[1].Text)
	assert.False(t, words[1].Bold())
	assert.Equal(t, "x", words[2].Text)
	assert.Greater(t, words[2].Top, words[0].Top)
}

func TestAssembleWords_SplitsOnWhitespaceGlyph(t *testing.T) {
	glyphs := glyphRun("12 (A)", 100, 500, "Times")
	words := AssembleWords(glyphs, 800)
	require.Len(t, words, 2)
	assert.Equal(t, "12", words[0].Text)
	assert.Equal(t, "(A)", words[1].Text)
}

func TestBuild(t *testing.T) {
	src := fakeSource{pages: [][]Glyph{
		glyphRun("ANSWER KEY", 40, 780, "Arial-Bold"),
		nil,
	}}
	ix, err := Build(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 2, ix.PageCount())

	page, err := ix.Page(0)
	require.NoError(t, err)
	assert.Equal(t, "ANSWER KEY", page.Text())
	assert.Equal(t, 600.0, page.Width)

	_, err = ix.Page(5)
	assert.Error(t, err)
}

func TestPageGeometry(t *testing.T) {
	words := []Word{
		{Text: "right", X0: 320, X1: 350, Top: 100, Bottom: 110},
		{Text: "left", X0: 20, X1: 50, Top: 101, Bottom: 111},
		{Text: "below", X0: 20, X1: 60, Top: 200, Bottom: 210},
	}
	p := NewPage(0, 600, 800, words)

	require.Len(t, p.Lines(), 2)
	assert.Equal(t, "left right", p.Lines()[0].Text())

	assert.Equal(t, 0, p.ColumnOf(100, 2))
	assert.Equal(t, 1, p.ColumnOf(320, 2))
	assert.Equal(t, 2, p.ColumnOf(599, 3))
	assert.Equal(t, 0, p.ColumnOf(599, 1))

	left, right := p.ColumnBounds(1, 2)
	assert.Equal(t, 300.0, left)
	assert.Equal(t, 600.0, right)

	text := p.TextWithin(Rect{Left: 0, Top: 90, Right: 300, Bottom: 250})
	assert.Equal(t, "left\nbelow", text)
}

func TestGroupLines_CloseBaselines(t *testing.T) {
	words := []Word{
		{Text: "c", X0: 200, X1: 210, Top: 108, Bottom: 118},
		{Text: "b", X0: 100, X1: 110, Top: 104, Bottom: 114},
		{Text: "d", X0: 20, X1: 30, Top: 109, Bottom: 119},
		{Text: "a", X0: 20, X1: 30, Top: 100, Bottom: 110},
	}
	for i := 0; i < len(words); i++ {
		// every rotation of the input gives the same lines
		rotated := append(append([]Word{}, words[i:]...), words[:i]...)
		lines := NewPage(0, 600, 800, rotated).Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, "a b", lines[0].Text())
		assert.Equal(t, "d c", lines[1].Text())
	}
}

func TestIsBoldFont(t *testing.T) {
	tests := []struct {
		name string
		font string
		want bool
	}{
		{"plain", "ArialMT", false},
		{"bold suffix", "Arial-BoldMT", true},
		{"subset bold", "ABCDEF+Calibri-Bold", true},
		{"bd short form", "TimesNewRomanPS-BdMT", true},
		{"black weight", "Helvetica-Black", true},
		{"comma style", "Arial,Bold", true},
		{"bold italic", "Arial-BoldItalicMT", true},
		{"no separator", "HelveticaBold", true},
		{"medium", "Roboto-Medium", false},
		{"subset family starting with b", "ABCDEF+BookmanOldStyle", false},
		{"subset baskerville", "XYZABC+Baskerville", false},
		{"regular", "ABCDEF+Bembo-Regular", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBoldFont(tt.font))
		})
	}
}

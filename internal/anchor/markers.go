package anchor

import (
	"regexp"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// DefaultMarkerPattern matches section headings that open an answer key or
// solutions part. Headings are printed in capitals, so matching is case
// sensitive to avoid hits in question prose.
const DefaultMarkerPattern = `\b(ANSWER\s*KEY|HINTS|SOLUTIONS|EXPLANATIONS)\b`

// Marker is a section heading position.
type Marker struct {
	PageIndex int     `json:"page_index"`
	Column    int     `json:"column"`
	Top       float64 `json:"top"`
	Text      string  `json:"text"`
	// Progress is the marker's position as a fraction of the document.
	Progress float64 `json:"progress"`
}

// FindMarkers scans page lines for section headings. When topFraction is
// positive only lines within that fraction of the page height are considered.
// A nil pattern uses DefaultMarkerPattern.
func FindMarkers(ix *pageindex.Index, pattern *regexp.Regexp, columns int, topFraction float64) []Marker {
	if pattern == nil {
		pattern = regexp.MustCompile(DefaultMarkerPattern)
	}
	total := float64(ix.PageCount())
	var markers []Marker
	for _, page := range ix.Pages {
		for _, line := range page.Lines() {
			if topFraction > 0 && line.Top > page.Height*topFraction {
				continue
			}
			text := line.Text()
			if !pattern.MatchString(text) {
				continue
			}
			x := 0.0
			if len(line.Words) > 0 {
				x = line.Words[0].X0
			}
			markers = append(markers, Marker{
				PageIndex: page.Index,
				Column:    page.ColumnOf(x, columns),
				Top:       line.Top,
				Text:      text,
				Progress:  (float64(page.Index) + line.Top/page.Height) / total,
			})
		}
	}
	return markers
}

// at converts a marker into a position comparable with anchors.
func (m Marker) at() Anchor {
	return Anchor{PageIndex: m.PageIndex, Column: m.Column, Top: m.Top}
}

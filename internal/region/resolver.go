// Package region turns an ordered anchor list into per-question page
// rectangles, splitting questions that run across columns or pages.
package region

import (
	"github.com/a3tai/qbank-extractor/internal/anchor"
	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// Segment is one rectangle of a region, confined to a single page column.
type Segment struct {
	PageIndex int            `json:"page_index"`
	Column    int            `json:"column"`
	Rect      pageindex.Rect `json:"rect"`
}

// Region is the full extent of one question in reading order.
type Region struct {
	QuestionNumber int       `json:"question_number"`
	Segments       []Segment `json:"segments"`
	// Truncated is set when the region spanned more than MaxSegments and
	// only its first segment was kept.
	Truncated bool `json:"truncated,omitempty"`
}

// Config holds the layout constants, in points.
type Config struct {
	Columns        int     `json:"columns"`
	FooterFraction float64 `json:"footer_fraction"`
	TopMargin      float64 `json:"top_margin"`
	Padding        float64 `json:"padding"`
	MinHeight      float64 `json:"min_height"`
	MaxSegments    int     `json:"max_segments"`
}

// DefaultConfig returns two-column defaults. Padding and MinHeight
// correspond to 15px and 100px at 300 DPI.
func DefaultConfig() Config {
	return Config{
		Columns:        2,
		FooterFraction: 0.92,
		TopMargin:      50,
		Padding:        3.6,
		MinHeight:      24,
		MaxSegments:    4,
	}
}

// PageSizer reports page dimensions. *pageindex.Index implements it.
type PageSizer interface {
	PageSize(i int) (width, height float64)
}

// contentProbe is implemented by page sources that know where text is.
// *pageindex.Index implements it.
type contentProbe interface {
	HasWordsWithin(page int, r pageindex.Rect) bool
}

// Resolver computes regions against a document's page geometry.
type Resolver struct {
	cfg   Config
	pages PageSizer
}

// NewResolver creates a resolver. Non-positive fields fall back to defaults.
func NewResolver(cfg Config, pages PageSizer) *Resolver {
	def := DefaultConfig()
	if cfg.Columns <= 0 {
		cfg.Columns = 1
	}
	if cfg.FooterFraction <= 0 || cfg.FooterFraction > 1 {
		cfg.FooterFraction = def.FooterFraction
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = def.MaxSegments
	}
	return &Resolver{cfg: cfg, pages: pages}
}

// Resolve returns one region per anchor. Anchors must belong to a single
// section, sorted by question number.
func (r *Resolver) Resolve(anchors []anchor.Anchor) []Region {
	regions := make([]Region, 0, len(anchors))
	for i, a := range anchors {
		var next *anchor.Anchor
		if i+1 < len(anchors) {
			next = &anchors[i+1]
		}
		regions = append(regions, r.ResolveOne(a, next))
	}
	return regions
}

type slot struct {
	page, col int
}

// ResolveOne computes the region that starts at cur and ends where next
// begins. A nil next, or one that does not follow cur in reading order,
// ends the region at the footer line of cur's column. A trailing piece in
// next's column shorter than MinHeight is dropped.
func (r *Resolver) ResolveOne(cur anchor.Anchor, next *anchor.Anchor) Region {
	reg := Region{QuestionNumber: cur.QuestionNumber}

	startTop := cur.Top - r.cfg.Padding
	if startTop < 0 {
		startTop = 0
	}
	start := slot{cur.PageIndex, clampCol(cur.Column, r.cfg.Columns)}
	end := start
	endTop := r.footer(cur.PageIndex)
	if next != nil && cur.Before(*next) {
		end = slot{next.PageIndex, clampCol(next.Column, r.cfg.Columns)}
		endTop = next.Top - r.cfg.Padding
	}

	for s := start; ; s = r.advance(s) {
		top, bottom := r.cfg.TopMargin, r.footer(s.page)
		if s == start {
			top = startTop
		}
		if s == end && endTop < bottom {
			bottom = endTop
		}
		seg := r.segment(s, top, bottom)
		switch {
		case s == start && seg.Rect.Height() <= 0:
			seg.Rect.Bottom = seg.Rect.Top + r.cfg.MinHeight
			reg.Segments = append(reg.Segments, seg)
		case s != start && s == end && !r.keepTrailing(seg):
		case seg.Rect.Height() > 0:
			reg.Segments = append(reg.Segments, seg)
		}
		if s == end {
			break
		}
	}

	if len(reg.Segments) > r.cfg.MaxSegments {
		reg.Segments = reg.Segments[:1]
		reg.Truncated = true
	}
	return reg
}

// keepTrailing decides whether the piece of a region that sits above the
// next anchor, in the next anchor's column, belongs to the region. Pieces
// shorter than MinHeight, or without any words, are only the band between
// the top margin and the next question.
func (r *Resolver) keepTrailing(seg Segment) bool {
	if seg.Rect.Height() < r.cfg.MinHeight {
		return false
	}
	if probe, ok := r.pages.(contentProbe); ok {
		return probe.HasWordsWithin(seg.PageIndex, seg.Rect)
	}
	return true
}

func (r *Resolver) advance(s slot) slot {
	if s.col+1 < r.cfg.Columns {
		return slot{s.page, s.col + 1}
	}
	return slot{s.page + 1, 0}
}

func (r *Resolver) footer(page int) float64 {
	_, h := r.pages.PageSize(page)
	return h * r.cfg.FooterFraction
}

func (r *Resolver) segment(s slot, top, bottom float64) Segment {
	w, _ := r.pages.PageSize(s.page)
	colWidth := w / float64(r.cfg.Columns)
	return Segment{
		PageIndex: s.page,
		Column:    s.col,
		Rect: pageindex.Rect{
			Left:   float64(s.col) * colWidth,
			Top:    top,
			Right:  float64(s.col+1) * colWidth,
			Bottom: bottom,
		},
	}
}

func clampCol(col, columns int) int {
	if col < 0 {
		return 0
	}
	if col >= columns {
		return columns - 1
	}
	return col
}

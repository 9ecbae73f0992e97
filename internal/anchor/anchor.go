// Package anchor finds question-start markers on indexed PDF pages and
// cleans them into ordered question and solution sequences.
package anchor

import (
	"sort"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// Anchor is a detected question (or solution) start marker.
type Anchor struct {
	QuestionNumber int     `json:"question_number"`
	PageIndex      int     `json:"page_index"`
	Column         int     `json:"column"`
	Top            float64 `json:"top"`
	X              float64 `json:"x"`
	Strong         bool    `json:"strong"`
	Text           string  `json:"text"`
}

// Before reports whether a precedes b in column-major reading order.
func (a Anchor) Before(b Anchor) bool {
	if a.PageIndex != b.PageIndex {
		return a.PageIndex < b.PageIndex
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	return a.Top < b.Top
}

// Rejection records a candidate that did not survive detection or filtering.
type Rejection struct {
	PageIndex int     `json:"page_index"`
	Column    int     `json:"column"`
	Text      string  `json:"text"`
	Number    int     `json:"number"`
	X         float64 `json:"x"`
	Top       float64 `json:"top"`
	Rule      string  `json:"rule"`
}

func rejectionOf(a Anchor, rule string) Rejection {
	return Rejection{
		PageIndex: a.PageIndex,
		Column:    a.Column,
		Text:      a.Text,
		Number:    a.QuestionNumber,
		X:         a.X,
		Top:       a.Top,
		Rule:      rule,
	}
}

// SortReadingOrder sorts anchors by page, column and vertical position.
func SortReadingOrder(anchors []Anchor) {
	sort.SliceStable(anchors, func(i, j int) bool {
		return anchors[i].Before(anchors[j])
	})
}

// Numbers returns the question numbers of anchors in order.
func Numbers(anchors []Anchor) []int {
	out := make([]int, len(anchors))
	for i, a := range anchors {
		out[i] = a.QuestionNumber
	}
	return out
}

// columnLeft returns the left edge of the column a word sits in.
func columnLeft(page *pageindex.Page, col, columns int) float64 {
	left, _ := page.ColumnBounds(col, columns)
	return left
}

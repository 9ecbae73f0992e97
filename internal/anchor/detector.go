package anchor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// DefaultPattern matches a combined marker token. The number is group 1.
const DefaultPattern = `^(?i)(?:Q|Sol|Solution|S)?[.\s]*(\d+)[.\s:)]*$`

var (
	bareNumber  = regexp.MustCompile(`^(\d+)[.\s:)]*$`)
	loneMarkers = map[string]bool{
		"q": true, "q.": true, "sol": true, "sol.": true, "solution": true, "solution:": true,
	}
)

// DetectorConfig holds the per-source layout constants of anchor detection.
type DetectorConfig struct {
	Columns              int     `json:"columns"`
	StrongMarginFraction float64 `json:"strong_margin_fraction"`
	WeakMarginFraction   float64 `json:"weak_margin_fraction"`
	MaxQuestionNumber    int     `json:"max_question_number"`
	MaxTokenLength       int     `json:"max_token_length"`
	RequireBold          bool    `json:"require_bold"`
	TopExclusion         float64 `json:"top_exclusion"`
	BottomExclusion      float64 `json:"bottom_exclusion"`
	Pattern              string  `json:"pattern"`
	LoneMarkers          bool    `json:"lone_markers"`
}

// DefaultDetectorConfig returns the two-column defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Columns:              2,
		StrongMarginFraction: 0.20,
		WeakMarginFraction:   0.10,
		Pattern:              DefaultPattern,
		LoneMarkers:          true,
	}
}

// Detector applies the marker pattern and rule chain to pages.
type Detector struct {
	cfg     DetectorConfig
	pattern *regexp.Regexp
	rules   []Rule
}

// NewDetector compiles the configured pattern.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.Columns <= 0 {
		cfg.Columns = 1
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor pattern %q: %w", cfg.Pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("anchor pattern %q has no number group", cfg.Pattern)
	}
	return &Detector{cfg: cfg, pattern: re, rules: DefaultRules()}, nil
}

// Config returns the detector's effective configuration.
func (d *Detector) Config() DetectorConfig {
	return d.cfg
}

// Detect runs DetectPage over every page of an index.
func (d *Detector) Detect(ix *pageindex.Index) ([]Anchor, []Rejection) {
	var anchors []Anchor
	var rejected []Rejection
	for _, page := range ix.Pages {
		a, r := d.DetectPage(page)
		anchors = append(anchors, a...)
		rejected = append(rejected, r...)
	}
	return anchors, rejected
}

// DetectPage returns the raw anchor candidates of one page that pass the
// rule chain, plus the rejected ones with the rule that dropped them.
func (d *Detector) DetectPage(page *pageindex.Page) ([]Anchor, []Rejection) {
	var anchors []Anchor
	var rejected []Rejection

	words := page.Words
	for i := 0; i < len(words); i++ {
		w := words[i]
		cand, ok := d.match(page, w)
		if !ok && d.cfg.LoneMarkers && loneMarkers[strings.ToLower(w.Text)] {
			// A lone marker only looks one word ahead.
			if i+1 < len(words) {
				if m := bareNumber.FindStringSubmatch(words[i+1].Text); m != nil {
					n, _ := strconv.Atoi(m[1])
					cand = d.candidate(page, w, n, true, w.Bold() || words[i+1].Bold())
					cand.Word.Text = w.Text + " " + words[i+1].Text
					cand.Word.X1 = words[i+1].X1
					ok = true
					i++
				}
			}
		}
		if !ok {
			continue
		}

		a := Anchor{
			QuestionNumber: cand.Number,
			PageIndex:      page.Index,
			Column:         cand.Column,
			Top:            cand.Word.Top,
			X:              cand.Word.X0,
			Strong:         cand.Strong(),
			Text:           cand.Word.Text,
		}
		if rule := d.firstFailing(cand); rule != "" {
			rejected = append(rejected, rejectionOf(a, rule))
			continue
		}
		anchors = append(anchors, a)
	}
	return anchors, rejected
}

func (d *Detector) match(page *pageindex.Page, w pageindex.Word) (Candidate, bool) {
	m := d.pattern.FindStringSubmatch(w.Text)
	if m == nil || m[1] == "" {
		return Candidate{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Candidate{}, false
	}
	first, _ := utf8.DecodeRuneInString(w.Text)
	return d.candidate(page, w, n, unicode.IsLetter(first), w.Bold()), true
}

func (d *Detector) candidate(page *pageindex.Page, w pageindex.Word, n int, prefixed, bold bool) Candidate {
	col := page.ColumnOf(w.X0, d.cfg.Columns)
	return Candidate{
		Word:        w,
		Number:      n,
		Prefixed:    prefixed,
		Bold:        bold,
		Column:      col,
		Offset:      w.X0 - columnLeft(page, col, d.cfg.Columns),
		ColumnWidth: page.ColumnWidth(d.cfg.Columns),
		PageHeight:  page.Height,
	}
}

func (d *Detector) firstFailing(c Candidate) string {
	for _, rule := range d.rules {
		if !rule.Check(c, d.cfg) {
			return rule.Name
		}
	}
	return ""
}

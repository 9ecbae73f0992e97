package anchor

import (
	"unicode/utf8"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// Candidate is a pattern match awaiting the rule chain.
type Candidate struct {
	Word     pageindex.Word
	Number   int
	Prefixed bool
	Bold     bool
	Column   int
	// Offset is the distance from the column's left edge to the word.
	Offset      float64
	ColumnWidth float64
	PageHeight  float64
}

// Strong reports whether the candidate carries an explicit prefix or bold face.
func (c Candidate) Strong() bool {
	return c.Prefixed || c.Bold
}

// Rule is a named acceptance predicate. Check returns false to reject.
type Rule struct {
	Name  string
	Check func(c Candidate, cfg DetectorConfig) bool
}

// Rule names, as reported in rejections.
const (
	RulePositiveNumber = "positive-number"
	RuleBelowCeiling   = "below-ceiling"
	RuleTokenLength    = "token-length"
	RuleBoldRequired   = "bold-required"
	RuleVerticalBand   = "vertical-band"
	RuleMarginDistance = "margin-distance"
	RuleSequence       = "sequence-continuity"
	RuleDuplicate      = "duplicate-number"
)

// DefaultRules returns the detection chain in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RulePositiveNumber, Check: PositiveNumber},
		{Name: RuleBelowCeiling, Check: BelowCeiling},
		{Name: RuleTokenLength, Check: TokenLength},
		{Name: RuleBoldRequired, Check: BoldRequired},
		{Name: RuleVerticalBand, Check: VerticalBand},
		{Name: RuleMarginDistance, Check: MarginDistance},
	}
}

// PositiveNumber rejects zero question numbers.
func PositiveNumber(c Candidate, _ DetectorConfig) bool {
	return c.Number > 0
}

// BelowCeiling rejects numbers above the configured maximum, when one is set.
func BelowCeiling(c Candidate, cfg DetectorConfig) bool {
	return cfg.MaxQuestionNumber <= 0 || c.Number <= cfg.MaxQuestionNumber
}

// TokenLength rejects overlong tokens such as "2019." glued to text.
func TokenLength(c Candidate, cfg DetectorConfig) bool {
	return cfg.MaxTokenLength <= 0 || utf8.RuneCountInString(c.Word.Text) <= cfg.MaxTokenLength
}

// BoldRequired rejects non-bold markers for sources that always embolden them.
func BoldRequired(c Candidate, cfg DetectorConfig) bool {
	return !cfg.RequireBold || c.Bold
}

// VerticalBand rejects markers inside the header or footer exclusion bands.
func VerticalBand(c Candidate, cfg DetectorConfig) bool {
	if cfg.TopExclusion > 0 && c.Word.Top < cfg.TopExclusion {
		return false
	}
	if cfg.BottomExclusion > 0 && c.PageHeight > 0 && c.Word.Top > c.PageHeight-cfg.BottomExclusion {
		return false
	}
	return true
}

// MarginDistance rejects markers too far from their column's left edge.
// Strong markers get the wider allowance.
func MarginDistance(c Candidate, cfg DetectorConfig) bool {
	fraction := cfg.WeakMarginFraction
	if c.Strong() {
		fraction = cfg.StrongMarginFraction
	}
	return c.Offset <= fraction*c.ColumnWidth
}

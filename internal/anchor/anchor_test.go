package anchor

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

const (
	bold  = "Arial-BoldMT"
	plain = "ArialMT"
)

func word(text string, x, top float64, font string) pageindex.Word {
	return pageindex.Word{
		Text:     text,
		X0:       x,
		X1:       x + float64(len(text))*5,
		Top:      top,
		Bottom:   top + 10,
		FontName: font,
		FontSize: 10,
	}
}

func page(index int, words ...pageindex.Word) *pageindex.Page {
	return pageindex.NewPage(index, 600, 800, words)
}

func mustDetector(t *testing.T, cfg DetectorConfig) *Detector {
	t.Helper()
	d, err := NewDetector(cfg)
	require.NoError(t, err)
	return d
}

func TestDetectPage_TwoColumnRoundTrip(t *testing.T) {
	p := page(0,
		word("Q1.", 20, 50, bold), word("Find", 50, 50, plain), word("the", 80, 50, plain), word("value", 100, 50, plain),
		word("of", 20, 70, plain), word("5", 150, 70, plain), word("apples", 170, 70, plain),
		word("Q2.", 310, 50, bold), word("Evaluate", 340, 50, plain), word("the", 390, 50, plain), word("limit", 410, 50, plain),
	)
	d := mustDetector(t, DefaultDetectorConfig())

	anchors, rejected := d.DetectPage(p)
	sections := Split(anchors, nil, DefaultSequenceConfig())

	require.Len(t, sections.Questions, 2)
	assert.Equal(t, []int{1, 2}, Numbers(sections.Questions))
	assert.Equal(t, 0, sections.Questions[0].Column)
	assert.Equal(t, 1, sections.Questions[1].Column)
	assert.True(t, sections.Questions[0].Strong)
	assert.Empty(t, sections.Solutions)

	require.Len(t, rejected, 1)
	assert.Equal(t, "5", rejected[0].Text)
	assert.Equal(t, RuleMarginDistance, rejected[0].Rule)
}

func TestDetectPage_BoundaryRejection(t *testing.T) {
	// A bold bare digit deep inside the column fails even the strong allowance.
	p := page(0,
		word("1.", 20, 100, plain), word("A", 40, 100, plain),
		word("12", 200, 140, bold), word("cm", 215, 140, plain),
		word("2.", 20, 300, plain),
	)
	d := mustDetector(t, DefaultDetectorConfig())
	anchors, rejected := d.DetectPage(p)
	sections := Split(anchors, nil, DefaultSequenceConfig())

	assert.Equal(t, []int{1, 2}, Numbers(sections.Questions))
	require.Len(t, rejected, 1)
	assert.Equal(t, 12, rejected[0].Number)
	assert.Equal(t, RuleMarginDistance, rejected[0].Rule)
	for _, a := range sections.Questions {
		assert.NotEqual(t, 12, a.QuestionNumber)
	}
}

func TestDetectPage_LoneMarkers(t *testing.T) {
	p := page(0,
		word("Q", 20, 100, plain), word("7", 32, 100, plain), word("A", 50, 100, plain),
		word("Sol", 20, 200, plain), word("the", 45, 200, plain), word("8", 70, 200, plain),
		word("Solution", 20, 300, plain), word("9.", 70, 300, plain),
	)
	d := mustDetector(t, DefaultDetectorConfig())
	anchors, _ := d.DetectPage(p)

	require.Len(t, anchors, 2)
	assert.Equal(t, 7, anchors[0].QuestionNumber)
	assert.True(t, anchors[0].Strong)
	assert.Equal(t, "Q 7", anchors[0].Text)
	assert.Equal(t, 20.0, anchors[0].X)
	assert.Equal(t, 9, anchors[1].QuestionNumber)
}

func TestDetectPage_LoneMarkersDisabled(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.LoneMarkers = false
	d := mustDetector(t, cfg)
	anchors, _ := d.DetectPage(page(0, word("Q", 20, 100, plain), word("7", 32, 100, plain)))
	assert.Empty(t, anchors)
}

func TestRules(t *testing.T) {
	base := Candidate{
		Word:        word("3.", 10, 100, plain),
		Number:      3,
		Offset:      10,
		ColumnWidth: 300,
		PageHeight:  800,
	}
	cfg := DefaultDetectorConfig()

	tests := []struct {
		name   string
		mutate func(c *Candidate, cfg *DetectorConfig)
		want   string
	}{
		{"accepted", func(*Candidate, *DetectorConfig) {}, ""},
		{"zero", func(c *Candidate, _ *DetectorConfig) { c.Number = 0 }, RulePositiveNumber},
		{"above ceiling", func(c *Candidate, cfg *DetectorConfig) { c.Number = 91; cfg.MaxQuestionNumber = 90 }, RuleBelowCeiling},
		{"long token", func(c *Candidate, cfg *DetectorConfig) { c.Word.Text = "Q.123."; cfg.MaxTokenLength = 4 }, RuleTokenLength},
		{"not bold", func(_ *Candidate, cfg *DetectorConfig) { cfg.RequireBold = true }, RuleBoldRequired},
		{"header band", func(c *Candidate, cfg *DetectorConfig) { c.Word.Top = 20; cfg.TopExclusion = 40 }, RuleVerticalBand},
		{"footer band", func(c *Candidate, cfg *DetectorConfig) { c.Word.Top = 780; cfg.BottomExclusion = 50 }, RuleVerticalBand},
		{"weak too far", func(c *Candidate, _ *DetectorConfig) { c.Offset = 40 }, RuleMarginDistance},
		{"strong within allowance", func(c *Candidate, _ *DetectorConfig) { c.Offset = 40; c.Prefixed = true }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, conf := base, cfg
			tt.mutate(&c, &conf)
			d := &Detector{cfg: conf, rules: DefaultRules()}
			assert.Equal(t, tt.want, d.firstFailing(c))
		})
	}
}

func TestNewDetector_InvalidPattern(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Pattern = `(`
	_, err := NewDetector(cfg)
	assert.Error(t, err)

	cfg.Pattern = `^\d+$`
	_, err = NewDetector(cfg)
	assert.Error(t, err)
}

// numbered lays out n anchors, eight per page, starting on firstPage.
func numbered(n, firstPage int, top float64) []Anchor {
	var out []Anchor
	for i := 1; i <= n; i++ {
		out = append(out, Anchor{
			QuestionNumber: i,
			PageIndex:      firstPage + (i-1)/8,
			Top:            top + float64((i-1)%8)*80,
			X:              20,
		})
	}
	return out
}

func TestSplit_HeaderReset(t *testing.T) {
	raw := append(numbered(40, 0, 100), numbered(30, 5, 100)...)
	markers := []Marker{{PageIndex: 5, Top: 40, Text: "ANSWER KEY", Progress: 0.55}}

	sections := Split(raw, markers, DefaultSequenceConfig())

	assert.Equal(t, SplitHeader, sections.SplitReason)
	require.Len(t, sections.Questions, 40)
	assert.Equal(t, 40, sections.Questions[39].QuestionNumber)
	require.Len(t, sections.Solutions, 30)
	assert.Equal(t, 1, sections.Solutions[0].QuestionNumber)
	assert.Equal(t, 5, sections.Solutions[0].PageIndex)
}

func TestSplit_SharpResetWithoutHeader(t *testing.T) {
	raw := append(numbered(25, 0, 100), numbered(10, 4, 100)...)
	sections := Split(raw, nil, DefaultSequenceConfig())

	assert.Equal(t, SplitReset, sections.SplitReason)
	assert.Len(t, sections.Questions, 25)
	assert.Len(t, sections.Solutions, 10)
}

func TestSplit_EarlyHeaderIgnored(t *testing.T) {
	raw := numbered(10, 0, 100)
	markers := []Marker{{PageIndex: 0, Top: 10, Text: "HINTS", Progress: 0.01}}
	sections := Split(raw, markers, DefaultSequenceConfig())
	assert.Equal(t, SplitNone, sections.SplitReason)
	assert.Len(t, sections.Questions, 10)
}

func TestClean_StrictlyIncreasing(t *testing.T) {
	var raw []Anchor
	for i, n := range []int{1, 2, 2, 3, 1900, 4, 1, 5} {
		raw = append(raw, Anchor{QuestionNumber: n, PageIndex: 0, Top: float64(i * 50)})
	}
	kept, dropped := Clean(raw, DefaultSequenceConfig())

	assert.Equal(t, []int{1, 2, 3, 4, 5}, Numbers(kept))
	require.Len(t, dropped, 3)
	assert.Equal(t, RuleSequence, dropped[0].Rule)
	assert.Equal(t, RuleSequence, dropped[1].Rule)
	assert.Equal(t, RuleDuplicate, dropped[2].Rule)

	for i := 1; i < len(kept); i++ {
		assert.Greater(t, kept[i].QuestionNumber, kept[i-1].QuestionNumber)
	}
}

func TestClean_StrayOneKeepsSequence(t *testing.T) {
	var raw []Anchor
	for i, n := range []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 1, 21, 22, 23} {
		raw = append(raw, Anchor{QuestionNumber: n, PageIndex: i / 8, Top: float64(100 + (i%8)*80)})
	}
	kept, dropped := Clean(raw, DefaultSequenceConfig())

	require.Len(t, kept, 23)
	assert.Equal(t, 23, kept[22].QuestionNumber)
	require.Len(t, dropped, 1)
	assert.Equal(t, RuleDuplicate, dropped[0].Rule)
	assert.Equal(t, 1, dropped[0].Number)
}

func TestSplit_StrayOneDoesNotHideReset(t *testing.T) {
	// A sub-list "1." inside question 12 must not restart the count, so the
	// real restart after question 30 still splits the solutions off.
	qs := numbered(30, 0, 100)
	stray := Anchor{QuestionNumber: 1, PageIndex: qs[11].PageIndex, Top: qs[11].Top + 40, X: 20}
	raw := append([]Anchor{}, qs[:12]...)
	raw = append(raw, stray)
	raw = append(raw, qs[12:]...)
	raw = append(raw, numbered(10, 6, 100)...)

	sections := Split(raw, nil, DefaultSequenceConfig())

	assert.Equal(t, SplitReset, sections.SplitReason)
	assert.Len(t, sections.Questions, 30)
	assert.Len(t, sections.Solutions, 10)
	require.Len(t, sections.Dropped, 1)
	assert.Equal(t, RuleDuplicate, sections.Dropped[0].Rule)
}

func TestContinues(t *testing.T) {
	cfg := DefaultSequenceConfig()
	assert.True(t, Continues(0, 5, cfg))
	assert.False(t, Continues(0, 150, cfg))
	assert.True(t, Continues(10, 29, cfg))
	assert.False(t, Continues(10, 30, cfg))
	assert.False(t, Continues(10, 10, cfg))
	assert.True(t, Continues(10, 1, cfg))
}

func TestFindMarkers(t *testing.T) {
	ix := &pageindex.Index{Pages: []*pageindex.Page{
		page(0, word("1.", 20, 100, plain), word("Which", 40, 100, plain), word("solutions", 80, 100, plain)),
		page(1, word("ANSWER", 200, 30, bold), word("KEY", 250, 30, bold), word("HINTS", 200, 600, bold)),
	}}

	markers := FindMarkers(ix, nil, 2, 0)
	require.Len(t, markers, 2)
	assert.Equal(t, "ANSWER KEY", markers[0].Text)
	assert.Equal(t, 1, markers[0].PageIndex)
	assert.InDelta(t, (1+30.0/800)/2, markers[0].Progress, 1e-9)

	top := FindMarkers(ix, regexp.MustCompile(DefaultMarkerPattern), 2, 0.25)
	require.Len(t, top, 1)
	assert.Equal(t, "ANSWER KEY", top[0].Text)
}

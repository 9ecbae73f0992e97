// Package profile holds the per-publisher layout presets that parameterise
// the extraction pipeline.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/a3tai/qbank-extractor/internal/anchor"
	"github.com/a3tai/qbank-extractor/internal/answerkey"
	"github.com/a3tai/qbank-extractor/internal/ledger"
	"github.com/a3tai/qbank-extractor/internal/region"
	"github.com/a3tai/qbank-extractor/internal/render"
	"github.com/a3tai/qbank-extractor/internal/textextract"
)

// Profile is one source's complete pipeline configuration.
type Profile struct {
	Name         string `json:"name"`
	Exam         string `json:"exam,omitempty"`
	FolderPrefix string `json:"folder_prefix"`

	Detector          anchor.DetectorConfig `json:"detector"`
	Sequence          anchor.SequenceConfig `json:"sequence"`
	MarkerPattern     string                `json:"marker_pattern"`
	MarkerTopFraction float64               `json:"marker_top_fraction"`

	Region    region.Config      `json:"region"`
	Render    render.Options     `json:"render"`
	Text      textextract.Config `json:"text"`
	AnswerKey answerkey.Config   `json:"answer_key"`

	// Solutions renders Sol_{n}.png images from the solutions section.
	Solutions bool            `json:"solutions"`
	QCDefault ledger.QCStatus `json:"qc_default"`
	// YearTag fills the PYQ column from the question text.
	YearTag bool `json:"year_tag"`
}

// Overrides are the profile fields a config file may change.
type Overrides struct {
	FooterFraction       *float64 `mapstructure:"footer_fraction" json:"footer_fraction,omitempty"`
	TopMargin            *float64 `mapstructure:"top_margin" json:"top_margin,omitempty"`
	StrongMarginFraction *float64 `mapstructure:"strong_margin_fraction" json:"strong_margin_fraction,omitempty"`
	WeakMarginFraction   *float64 `mapstructure:"weak_margin_fraction" json:"weak_margin_fraction,omitempty"`
	MaxQuestionNumber    *int     `mapstructure:"max_question_number" json:"max_question_number,omitempty"`
	MinTextChars         *int     `mapstructure:"min_text_chars" json:"min_text_chars,omitempty"`
	WatermarkLow         *int     `mapstructure:"watermark_low" json:"watermark_low,omitempty"`
	WatermarkHigh        *int     `mapstructure:"watermark_high" json:"watermark_high,omitempty"`
	Threshold            *int     `mapstructure:"threshold" json:"threshold,omitempty"`
}

// base returns the two-column default every preset starts from.
func base(name string) Profile {
	return Profile{
		Name:          name,
		FolderPrefix:  titleCase(name),
		Detector:      anchor.DefaultDetectorConfig(),
		Sequence:      anchor.DefaultSequenceConfig(),
		MarkerPattern: anchor.DefaultMarkerPattern,
		Region:        region.DefaultConfig(),
		Render:        render.DefaultOptions(),
		Text:          textextract.DefaultConfig(),
		AnswerKey:     answerkey.Config{Format: answerkey.FormatInline, LastPages: 5},
		QCDefault:     ledger.QCPending,
	}
}

var presets = map[string]func() Profile{
	"default": func() Profile {
		p := base("default")
		p.Solutions = true
		return p
	},
	"allen": func() Profile {
		p := base("allen")
		p.Detector.StrongMarginFraction = 0.30
		p.Detector.WeakMarginFraction = 0.30
		p.Detector.RequireBold = true
		return p
	},
	"allen-jee": func() Profile {
		p := base("allen-jee")
		p.FolderPrefix = "AllenJEE"
		p.Exam = "JEE"
		p.Detector.StrongMarginFraction = 0.24
		p.Detector.WeakMarginFraction = 0.24
		p.Region.FooterFraction = 0.91
		p.Render.Threshold = 170
		p.Render.Strip.FallbackFraction = 0.05
		p.Text.MinChars = 10
		p.AnswerKey.Format = answerkey.FormatTabular
		p.AnswerKey.OptionCodes = true
		return p
	},
	"disha": func() Profile {
		p := base("disha")
		p.Exam = "JEE Main"
		p.Detector.MaxQuestionNumber = 200
		p.Region.FooterFraction = 0.95
		p.Render.FooterScanFraction = 0.10
		p.Render.Watermark = true
		p.Solutions = true
		p.YearTag = true
		p.AnswerKey.Format = answerkey.FormatProximity
		return p
	},
	"mtg": func() Profile {
		p := base("mtg")
		p.FolderPrefix = "MTG"
		p.Exam = "JEE Main"
		p.Region.FooterFraction = 0.95
		p.Render.Watermark = true
		p.Solutions = true
		p.YearTag = true
		p.AnswerKey.Format = answerkey.FormatProximity
		return p
	},
	"collegedoors": func() Profile {
		p := base("collegedoors")
		p.FolderPrefix = "CD"
		p.Exam = "NEET"
		// 40% and 10% of the half page width.
		p.Detector.StrongMarginFraction = 0.40
		p.Detector.WeakMarginFraction = 0.10
		p.Render.Strip.ScanFraction = 0.12
		p.Render.Strip.MaxFraction = 0.20
		p.Solutions = true
		p.AnswerKey.Format = answerkey.FormatCompanion
		p.QCDefault = ledger.QCPass
		return p
	},
	"digvijay": func() Profile {
		p := base("digvijay")
		p.MarkerTopFraction = 0.2
		p.Render.Threshold = 170
		p.AnswerKey.Format = answerkey.FormatMatrix
		return p
	},
	"mains": func() Profile {
		p := base("mains")
		p.FolderPrefix = "MainsPYQ"
		p.Exam = "JEE Main"
		p.Detector.TopExclusion = 42
		p.Detector.BottomExclusion = 67
		p.Region.FooterFraction = 0.90
		p.Region.TopMargin = 42
		p.Render.Threshold = 0
		p.Render.QuantizeLevels = 32
		p.YearTag = true
		return p
	},
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a fresh copy of a preset.
func Get(name string) (Profile, error) {
	build, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return build(), nil
}

// Apply copies the set override fields onto p.
func (p *Profile) Apply(o Overrides) error {
	if o.FooterFraction != nil {
		if *o.FooterFraction <= 0 || *o.FooterFraction > 1 {
			return fmt.Errorf("footer_fraction must be in (0, 1], got %v", *o.FooterFraction)
		}
		p.Region.FooterFraction = *o.FooterFraction
	}
	if o.TopMargin != nil {
		p.Region.TopMargin = *o.TopMargin
	}
	if o.StrongMarginFraction != nil {
		p.Detector.StrongMarginFraction = *o.StrongMarginFraction
	}
	if o.WeakMarginFraction != nil {
		p.Detector.WeakMarginFraction = *o.WeakMarginFraction
	}
	if o.MaxQuestionNumber != nil {
		p.Detector.MaxQuestionNumber = *o.MaxQuestionNumber
		p.AnswerKey.MaxQuestionNumber = *o.MaxQuestionNumber
	}
	if o.MinTextChars != nil {
		p.Text.MinChars = *o.MinTextChars
	}
	if o.WatermarkLow != nil || o.WatermarkHigh != nil {
		low, high := int(p.Render.WatermarkLow), int(p.Render.WatermarkHigh)
		if o.WatermarkLow != nil {
			low = *o.WatermarkLow
		}
		if o.WatermarkHigh != nil {
			high = *o.WatermarkHigh
		}
		if low < 0 || high > 255 || low > high {
			return fmt.Errorf("watermark band [%d, %d] is invalid", low, high)
		}
		p.Render.Watermark = true
		p.Render.WatermarkLow, p.Render.WatermarkHigh = uint8(low), uint8(high)
	}
	if o.Threshold != nil {
		if *o.Threshold < 0 || *o.Threshold > 255 {
			return fmt.Errorf("threshold must be in [0, 255], got %d", *o.Threshold)
		}
		p.Render.Threshold = uint8(*o.Threshold)
	}
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

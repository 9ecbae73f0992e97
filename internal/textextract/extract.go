// Package textextract pulls the embedded text of a question region from the
// PDF text layer, falling back to OCR of the rendered image.
package textextract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
	"github.com/a3tai/qbank-extractor/internal/region"
)

// Text sources recorded on each result.
const (
	SourcePDF = "pdf"
	SourceOCR = "ocr"
)

// DefaultArtifactPattern matches internal tokens such as "file_name_3".
const DefaultArtifactPattern = `\b\S*_\S*\b`

// Recognizer is the OCR collaborator. *ocr.Client implements it.
type Recognizer interface {
	RecognizeFile(ctx context.Context, path string) (string, error)
}

// Config holds the extraction thresholds.
type Config struct {
	MinChars        int    `json:"min_chars"`
	ArtifactPattern string `json:"artifact_pattern"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{MinChars: 30, ArtifactPattern: DefaultArtifactPattern}
}

// Result is the text of one question.
type Result struct {
	Text string `json:"text"`
	// Available reports whether the PDF text layer alone met the threshold.
	Available bool   `json:"available"`
	Source    string `json:"source,omitempty"`
}

// Extractor resolves regions against a document's word index.
type Extractor struct {
	cfg      Config
	artifact *regexp.Regexp
	ocr      Recognizer
}

// New creates an extractor. ocr may be nil.
func New(cfg Config, ocr Recognizer) (*Extractor, error) {
	if cfg.ArtifactPattern == "" {
		cfg.ArtifactPattern = DefaultArtifactPattern
	}
	re, err := regexp.Compile(cfg.ArtifactPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact pattern: %w", err)
	}
	return &Extractor{cfg: cfg, artifact: re, ocr: ocr}, nil
}

// RegionText joins the text inside each segment in reading order.
func RegionText(ix *pageindex.Index, reg region.Region) string {
	var parts []string
	for _, seg := range reg.Segments {
		page, err := ix.Page(seg.PageIndex)
		if err != nil {
			continue
		}
		if t := page.TextWithin(seg.Rect); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Clean removes artifact tokens and collapses whitespace.
func (e *Extractor) Clean(text string) string {
	text = e.artifact.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Extract returns the question text for reg. When the text layer is below
// the threshold and imagePath names a rendered image, OCR is tried. The
// returned error reports an OCR failure only; the result is always usable.
func (e *Extractor) Extract(ctx context.Context, ix *pageindex.Index, reg region.Region, imagePath string) (Result, error) {
	text := e.Clean(RegionText(ix, reg))
	res := Result{Text: text, Available: utf8.RuneCountInString(text) >= e.cfg.MinChars}
	if text != "" {
		res.Source = SourcePDF
	}
	if res.Available || e.ocr == nil || imagePath == "" {
		return res, nil
	}

	recognized, err := e.ocr.RecognizeFile(ctx, imagePath)
	if err != nil {
		return res, fmt.Errorf("ocr question %d: %w", reg.QuestionNumber, err)
	}
	if recognized = e.Clean(recognized); recognized != "" {
		res.Text = recognized
		res.Source = SourceOCR
	}
	return res, nil
}

// Package pdf is the document-level facade of the extraction pipeline: it
// validates source PDFs and turns them into anchor analyses and answer keys.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/a3tai/qbank-extractor/internal/anchor"
	"github.com/a3tai/qbank-extractor/internal/answerkey"
	"github.com/a3tai/qbank-extractor/internal/pageindex"
	"github.com/a3tai/qbank-extractor/internal/pdf/security"
	"github.com/a3tai/qbank-extractor/internal/pdf/wrapper"
	"github.com/a3tai/qbank-extractor/internal/profile"
)

// Service handles PDF operations by orchestrating the library adapters and
// the analysis stages
type Service struct {
	maxFileSize   int64
	factory       *wrapper.Factory
	validator     *Validator
	pathValidator *security.PathValidator
	logger        *slog.Logger
}

// NewService creates a new PDF service rooted at baseDirectory
func NewService(maxFileSize int64, baseDirectory string, logger *slog.Logger) (*Service, error) {
	pathValidator, err := security.NewPathValidator(baseDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	factory := wrapper.NewFactory(wrapper.FactoryConfig{MaxFileSize: maxFileSize})
	return &Service{
		maxFileSize:   maxFileSize,
		factory:       factory,
		validator:     NewValidator(maxFileSize, factory.Structure()),
		pathValidator: pathValidator,
		logger:        logger,
	}, nil
}

// Validator returns the service's validator.
func (s *Service) Validator() *Validator {
	return s.validator
}

// Structure returns the page-structure tool used for trimming.
func (s *Service) Structure() wrapper.StructureTool {
	return s.factory.Structure()
}

// ResolvePath confines a caller-supplied path to the base directory.
func (s *Service) ResolvePath(path string) (string, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	return resolved, nil
}

// BaseDirectory returns the configured base directory.
func (s *Service) BaseDirectory() string {
	return s.pathValidator.Base()
}

// ValidateFile performs validation on a PDF file
func (s *Service) ValidateFile(req ValidateFileRequest) (*ValidateFileResult, error) {
	path, err := s.ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	req.Path = path
	return s.validator.ValidateFile(req)
}

// Index builds the word index of a PDF.
func (s *Service) Index(ctx context.Context, path string) (*pageindex.Index, error) {
	doc, err := s.factory.OpenGlyphs(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	ix, err := pageindex.Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return ix, nil
}

// Analyze indexes a PDF and runs anchor detection and sectioning with the
// profile's settings. path is used as given.
func (s *Service) Analyze(ctx context.Context, path string, p profile.Profile) (*Analysis, error) {
	ix, err := s.Index(ctx, path)
	if err != nil {
		return nil, err
	}
	a, err := AnalyzeIndex(ix, p)
	if err != nil {
		return nil, err
	}
	a.Path = path
	s.logger.Debug("analysed document",
		"path", path,
		"pages", ix.PageCount(),
		"candidates", len(a.Raw),
		"questions", len(a.Sections.Questions),
		"solutions", len(a.Sections.Solutions),
		"split", a.Sections.SplitReason)
	return a, nil
}

// AnalyzeIndex runs detection, marker search and sectioning over an
// already built index.
func AnalyzeIndex(ix *pageindex.Index, p profile.Profile) (*Analysis, error) {
	detector, err := anchor.NewDetector(p.Detector)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	pattern := p.MarkerPattern
	if pattern == "" {
		pattern = anchor.DefaultMarkerPattern
	}
	markerRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("profile %s: invalid marker pattern: %w", p.Name, err)
	}

	raw, rejections := detector.Detect(ix)
	markers := anchor.FindMarkers(ix, markerRe, p.Detector.Columns, p.MarkerTopFraction)
	return &Analysis{
		Index:      ix,
		Raw:        raw,
		Rejections: rejections,
		Markers:    markers,
		Sections:   anchor.Split(raw, markers, p.Sequence),
	}, nil
}

// AnalyzeFile is the tool-facing form of Analyze.
func (s *Service) AnalyzeFile(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	path, err := s.ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	p, err := profile.Get(profileName(req.Profile))
	if err != nil {
		return nil, err
	}
	a, err := s.Analyze(ctx, path, p)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResult{
		Path:            path,
		Profile:         p.Name,
		Pages:           a.Index.PageCount(),
		Candidates:      len(a.Raw),
		Rejected:        len(a.Rejections) + len(a.Sections.Dropped),
		SplitReason:     a.Sections.SplitReason,
		Markers:         a.Markers,
		Questions:       anchor.Numbers(a.Sections.Questions),
		Solutions:       anchor.Numbers(a.Sections.Solutions),
		QuestionAnchors: a.Sections.Questions,
		SolutionAnchors: a.Sections.Solutions,
	}, nil
}

// AnswerKey parses and classifies the answer key of a PDF.
func (s *Service) AnswerKey(ctx context.Context, req AnswerKeyRequest) (*AnswerKeyResult, error) {
	path, err := s.ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	companion := ""
	if req.CompanionPath != "" {
		if companion, err = s.ResolvePath(req.CompanionPath); err != nil {
			return nil, err
		}
	}
	p, err := profile.Get(profileName(req.Profile))
	if err != nil {
		return nil, err
	}
	a, err := s.Analyze(ctx, path, p)
	if err != nil {
		return nil, err
	}
	parser := answerkey.NewParser(p.AnswerKey)
	key, err := parser.Parse(answerkey.Input{
		Index:         a.Index,
		Sections:      a.Sections,
		PDFPath:       path,
		CompanionPath: companion,
	})
	if err != nil {
		return nil, err
	}
	return &AnswerKeyResult{
		Path:    path,
		Profile: p.Name,
		Format:  string(parser.Format()),
		Count:   len(key),
		Answers: Entries(key),
	}, nil
}

// Entries classifies every answer of a key in question order.
func Entries(key answerkey.Key) []AnswerEntry {
	numbers := key.Numbers()
	sort.Ints(numbers)
	out := make([]AnswerEntry, 0, len(numbers))
	for _, n := range numbers {
		answer, qtype := answerkey.Classify(key[n])
		out = append(out, AnswerEntry{QuestionNumber: n, Raw: key[n], Answer: answer, QuestionType: qtype})
	}
	return out
}

func profileName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

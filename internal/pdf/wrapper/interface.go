package wrapper

import (
	"fmt"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// LibraryType identifies the underlying PDF library
type LibraryType string

const (
	LibraryPDFCPU     LibraryType = "pdfcpu"
	LibraryLedongthuc LibraryType = "ledongthuc"
)

// GlyphDocument is an open PDF that can report positioned glyphs per page.
// It feeds pageindex.Build.
type GlyphDocument interface {
	pageindex.GlyphSource

	// PlainText returns the library's own plain-text rendering of a page,
	// used when positioned glyphs are unavailable. index is zero-based.
	PlainText(index int) (string, error)
	Close() error
}

// StructureTool covers whole-file operations that do not need glyphs:
// validation, page counting and page-range extraction.
type StructureTool interface {
	Validate(path string) error
	PageCount(path string) (int, error)
	TrimPages(inPath, outPath string, startPage, endPage int) error
}

// WrapperError reports a failure inside a PDF library adapter
type WrapperError struct {
	Library LibraryType `json:"library"`
	Op      string      `json:"operation"`
	Err     error       `json:"error"`
}

func (e *WrapperError) Error() string {
	return fmt.Sprintf("PDF %s library error in %s: %v", e.Library, e.Op, e.Err)
}

func (e *WrapperError) Unwrap() error {
	return e.Err
}

// Common error variables
var (
	ErrDocumentClosed = &WrapperError{Op: "document", Err: fmt.Errorf("document is closed")}
	ErrInvalidPage    = &WrapperError{Op: "page", Err: fmt.Errorf("invalid page number")}
	ErrInvalidRange   = &WrapperError{Op: "trim", Err: fmt.Errorf("invalid page range")}
)

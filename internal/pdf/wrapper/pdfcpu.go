package wrapper

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPU implements StructureTool using pdfcpu in relaxed validation mode
type PDFCPU struct {
	conf *model.Configuration
}

// NewPDFCPU creates a pdfcpu adapter
func NewPDFCPU() *PDFCPU {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

// Validate checks that the file parses as a PDF
func (p *PDFCPU) Validate(path string) error {
	if err := api.ValidateFile(path, p.conf); err != nil {
		return &WrapperError{Library: LibraryPDFCPU, Op: "validate", Err: err}
	}
	return nil
}

// PageCount returns the number of pages in the file
func (p *PDFCPU) PageCount(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "page_count",
			Err:     fmt.Errorf("failed to open file: %w", err),
		}
	}
	defer file.Close()

	ctx, err := api.ReadContext(file, p.conf)
	if err != nil {
		return 0, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "page_count",
			Err:     fmt.Errorf("failed to read PDF context: %w", err),
		}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "page_count",
			Err:     fmt.Errorf("failed to ensure page count: %w", err),
		}
	}
	return ctx.PageCount, nil
}

// TrimPages writes pages startPage..endPage (1-based, inclusive) of inPath
// to outPath. endPage is clamped to the document length.
func (p *PDFCPU) TrimPages(inPath, outPath string, startPage, endPage int) error {
	count, err := p.PageCount(inPath)
	if err != nil {
		return err
	}
	if endPage > count {
		endPage = count
	}
	if startPage < 1 || startPage > endPage {
		return &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "trim",
			Err:     fmt.Errorf("%w: %d-%d (document has %d pages)", ErrInvalidRange.Err, startPage, endPage, count),
		}
	}
	selected := []string{fmt.Sprintf("%d-%d", startPage, endPage)}
	if err := api.TrimFile(inPath, outPath, selected, p.conf); err != nil {
		return &WrapperError{Library: LibraryPDFCPU, Op: "trim", Err: err}
	}
	return nil
}

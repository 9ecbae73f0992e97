package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/qbank-extractor/internal/pdf/wrapper"
)

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
	structure   wrapper.StructureTool
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64, structure wrapper.StructureTool) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
		structure:   structure,
	}
}

// ValidateFile checks a PDF and reports its page count. An invalid file is
// reported in the result, not as an error.
func (v *Validator) ValidateFile(req ValidateFileRequest) (*ValidateFileResult, error) {
	result := &ValidateFileResult{
		Path:  req.Path,
		Valid: false,
	}

	info, err := v.checkFile(req.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // validation failure is a result, not a processing error
	}
	result.Size = info.Size()

	pages, err := v.checkDocument(req.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // validation failure is a result, not a processing error
	}

	result.Valid = true
	result.Pages = pages
	return result, nil
}

// Check validates a PDF and returns its page count.
func (v *Validator) Check(path string) (int, error) {
	if _, err := v.checkFile(path); err != nil {
		return 0, err
	}
	return v.checkDocument(path)
}

func (v *Validator) checkFile(filePath string) (os.FileInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return nil, fmt.Errorf("file is not a PDF: %s", filePath)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", filePath)
	}
	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}
	return fileInfo, nil
}

// checkDocument runs pdfcpu's relaxed validation, then makes sure the glyph
// reader can open the file too, since analysis depends on it.
func (v *Validator) checkDocument(filePath string) (int, error) {
	if err := v.structure.Validate(filePath); err != nil {
		return 0, fmt.Errorf("invalid PDF file: %w", err)
	}
	pages, err := v.structure.PageCount(filePath)
	if err != nil {
		return 0, fmt.Errorf("cannot count pages: %w", err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("PDF has no pages: %s", filePath)
	}

	f, _, err := pdf.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("unreadable text layer: %w", err)
	}
	defer f.Close()

	return pages, nil
}

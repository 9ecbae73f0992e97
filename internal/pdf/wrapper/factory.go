package wrapper

import (
	"fmt"
	"os"
	"strings"
)

// FactoryConfig contains configuration options for the factory
type FactoryConfig struct {
	// MaxFileSize limits the size of files the factory will open (in bytes)
	MaxFileSize int64 `json:"max_file_size"`
}

// Factory opens documents with the library suited to each operation:
// ledongthuc/pdf for positioned glyphs, pdfcpu for file structure.
type Factory struct {
	config    FactoryConfig
	structure *PDFCPU
}

// NewFactory creates a factory
func NewFactory(config FactoryConfig) *Factory {
	return &Factory{config: config, structure: NewPDFCPU()}
}

// OpenGlyphs opens a PDF for glyph extraction
func (f *Factory) OpenGlyphs(path string) (GlyphDocument, error) {
	if err := f.checkFile(path); err != nil {
		return nil, &WrapperError{Library: LibraryLedongthuc, Op: "open_file", Err: err}
	}
	return OpenLedongthuc(path)
}

// Structure returns the structure tool
func (f *Factory) Structure() StructureTool {
	return f.structure
}

// GetConfig returns the factory configuration
func (f *Factory) GetConfig() FactoryConfig {
	return f.config
}

func (f *Factory) checkFile(path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if f.config.MaxFileSize > 0 && info.Size() > f.config.MaxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), f.config.MaxFileSize)
	}
	return nil
}

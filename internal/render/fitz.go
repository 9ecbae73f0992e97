package render

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

type pageKey struct {
	path string
	page int
	dpi  int
}

// FitzRasterizer renders whole pages with MuPDF and crops them. Rendered
// pages are cached since consecutive regions usually share a page.
type FitzRasterizer struct {
	mu       sync.Mutex
	docs     map[string]*fitz.Document
	pages    map[pageKey]*image.Gray
	order    []pageKey
	maxPages int
}

// NewFitzRasterizer creates a rasterizer keeping up to maxPages rendered pages.
func NewFitzRasterizer(maxPages int) *FitzRasterizer {
	if maxPages <= 0 {
		maxPages = 4
	}
	return &FitzRasterizer{
		docs:     make(map[string]*fitz.Document),
		pages:    make(map[pageKey]*image.Gray),
		maxPages: maxPages,
	}
}

// RenderClip implements Rasterizer.
func (f *FitzRasterizer) RenderClip(ctx context.Context, pdfPath string, pageIndex int, rect pageindex.Rect, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	full, err := f.page(pdfPath, pageIndex, dpi)
	if err != nil {
		return nil, err
	}
	clip := pixelRect(rect, dpi, full.Bounds())
	if clip.Empty() {
		return nil, fmt.Errorf("clip %v is outside page %d", rect, pageIndex+1)
	}
	return crop(full, clip), nil
}

func (f *FitzRasterizer) page(pdfPath string, pageIndex, dpi int) (*image.Gray, error) {
	key := pageKey{pdfPath, pageIndex, dpi}
	if img, ok := f.pages[key]; ok {
		return img, nil
	}
	doc, ok := f.docs[pdfPath]
	if !ok {
		var err error
		doc, err = fitz.New(pdfPath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", pdfPath, err)
		}
		f.docs[pdfPath] = doc
	}
	if pageIndex < 0 || pageIndex >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageIndex+1, doc.NumPage())
	}
	rgba, err := doc.ImageDPI(pageIndex, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageIndex+1, err)
	}
	img := toGray(rgba)

	f.pages[key] = img
	f.order = append(f.order, key)
	if len(f.order) > f.maxPages {
		delete(f.pages, f.order[0])
		f.order = f.order[1:]
	}
	return img, nil
}

// Release closes one document and drops its cached pages.
func (f *FitzRasterizer) Release(pdfPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[pdfPath]; ok {
		_ = doc.Close()
		delete(f.docs, pdfPath)
	}
	kept := f.order[:0]
	for _, k := range f.order {
		if k.path == pdfPath {
			delete(f.pages, k)
			continue
		}
		kept = append(kept, k)
	}
	f.order = kept
}

// Close closes every open document.
func (f *FitzRasterizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for path, doc := range f.docs {
		if err := doc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.docs, path)
	}
	f.pages = make(map[pageKey]*image.Gray)
	f.order = nil
	return firstErr
}

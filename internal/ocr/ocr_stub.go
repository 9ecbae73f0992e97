//go:build !ocr

// Package ocr recognises text in rendered question images with Tesseract.
//
// This is the stub used when the "ocr" build tag is not set. Rebuild with
//
//	go build -tags ocr
//
// to enable recognition.
package ocr

import (
	"context"
	"errors"
)

// Enabled reports whether OCR support was compiled in.
const Enabled = false

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Client is a placeholder that can never be constructed.
type Client struct{}

// New returns ErrOCRNotEnabled.
func New(string) (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// RecognizeFile returns ErrOCRNotEnabled.
func (c *Client) RecognizeFile(context.Context, string) (string, error) {
	return "", ErrOCRNotEnabled
}

// Close is a no-op.
func (c *Client) Close() error { return nil }

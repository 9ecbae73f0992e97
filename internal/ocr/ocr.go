//go:build ocr

// Package ocr recognises text in rendered question images with Tesseract.
//
// Tesseract must be installed. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Enabled reports whether OCR support was compiled in.
const Enabled = true

// Client wraps a Tesseract handle. A handle is not safe for concurrent use,
// so calls are serialised.
type Client struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a client for the given "+" separated languages.
func New(lang string) (*Client, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set OCR language %q: %w", lang, err)
		}
	}
	return &Client{client: client}, nil
}

// RecognizeFile runs OCR on an image file and returns its tokens joined by
// single spaces.
func (c *Client) RecognizeFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Close releases the Tesseract handle.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Package ocr binds the Tesseract engine to extract.Recognizer.
// It needs cgo and the tesseract and leptonica libraries at build time.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes page images with the local Tesseract installation.
type Tesseract struct {
	Languages []string
}

// NewTesseract returns a recognizer for the given language codes, e.g. "spa"
// or "spa+eng".
func NewTesseract(lang string) *Tesseract {
	var langs []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &Tesseract{Languages: langs}
}

// Recognize implements extract.Recognizer. A gosseract client is not safe for
// concurrent use, so each call gets its own.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

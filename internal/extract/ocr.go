package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/tiff"
)

// Recognizer runs character recognition on one encoded image (PNG or JPEG).
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// OCR rasterizes documents and passes each page image to a Recognizer.
// PDFs are rendered with poppler's pdftoppm; TIFF scans are converted to PNG.
type OCR struct {
	Recognizer Recognizer
	MaxPages   int
	DPI        int
	Timeout    time.Duration // per pdftoppm run
}

// NewOCR returns an OCR extractor with the usual scan settings.
func NewOCR(r Recognizer, maxPages int) *OCR {
	return &OCR{Recognizer: r, MaxPages: maxPages, DPI: 200, Timeout: 60 * time.Second}
}

// Available reports whether PDFs can be rasterized on this host.
func (o *OCR) Available() error {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return ErrOCRUnavailable
	}
	return nil
}

// Extract recognizes the text of every page image in doc.
func (o *OCR) Extract(ctx context.Context, doc Document) (string, error) {
	if o.Recognizer == nil {
		return "", errors.New("OCR recognizer not configured")
	}

	var pages [][]byte
	switch doc.ContentType {
	case TypePDF:
		imgs, err := o.rasterize(ctx, doc)
		if err != nil {
			return "", err
		}
		pages = imgs
	case TypePNG, TypeJPEG:
		pages = [][]byte{doc.Data}
	case TypeTIFF:
		img, err := tiffToPNG(doc.Data)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", doc.Name, err)
		}
		pages = [][]byte{img}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, doc.ContentType)
	}

	var sb strings.Builder
	for i, img := range pages {
		text, err := o.Recognizer.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("recognize page %d of %s: %w", i+1, doc.Name, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (o *OCR) rasterize(ctx context.Context, doc Document) ([][]byte, error) {
	if err := o.Available(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "autograder-ocr-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return nil, err
	}

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "pdftoppm", o.rasterArgs(in, filepath.Join(dir, "page"))...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm %s: %w: %s", doc.Name, err, strings.TrimSpace(stderr.String()))
	}

	files, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(files)

	pages := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)
	}
	slog.Debug("rasterized pdf", "name", doc.Name, "pages", len(pages))
	return pages, nil
}

func (o *OCR) rasterArgs(in, outPrefix string) []string {
	dpi := o.DPI
	if dpi <= 0 {
		dpi = 200
	}
	args := []string{"-png", "-r", strconv.Itoa(dpi), "-f", "1"}
	if o.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(o.MaxPages))
	}
	return append(args, in, outPrefix)
}

func tiffToPNG(data []byte) ([]byte, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

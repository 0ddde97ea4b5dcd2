// Package extract turns exam documents into text or detected-answer strings.
//
// Every strategy implements Extractor. The output is untrusted free text; the
// caller normalizes it with answers.ParseOracleResponse.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Content types the extractors understand.
const (
	TypePDF  = "application/pdf"
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeTIFF = "image/tiff"
)

var (
	// ErrNoText is returned when no usable text could be obtained.
	ErrNoText = errors.New("no text extracted")
	// ErrUnsupported is returned for content types an extractor cannot read.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrOCRUnavailable is returned when the PDF rasterizer is missing.
	ErrOCRUnavailable = errors.New("OCR unavailable: pdftoppm not found in PATH")
)

// Document is one uploaded exam file.
type Document struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// NewDocument wraps raw file bytes, assigning an ID and sniffing the type.
func NewDocument(name string, data []byte) Document {
	return Document{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: sniffContentType(name, data),
		Data:        data,
	}
}

// Size returns the document size in bytes.
func (d Document) Size() int64 { return int64(len(d.Data)) }

// Extractor turns a document into text.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// Func adapts an ordinary function to the Extractor interface.
type Func func(ctx context.Context, doc Document) (string, error)

// Extract calls f(ctx, doc).
func (f Func) Extract(ctx context.Context, doc Document) (string, error) { return f(ctx, doc) }

// Oracle answers which options are marked in a document's text. *llm.Client
// implements it.
type Oracle interface {
	DetectAnswers(ctx context.Context, text string) (string, error)
}

// Strategy names an extraction strategy.
type Strategy string

const (
	StrategyText  Strategy = "text"
	StrategyOCR   Strategy = "ocr"
	StrategyLLM   Strategy = "llm"
	StrategyMarks Strategy = "marks"
	StrategyAuto  Strategy = "auto"
)

// Strategies lists the valid strategy names.
var Strategies = []Strategy{StrategyAuto, StrategyText, StrategyOCR, StrategyLLM, StrategyMarks}

// StrategyNames returns the valid strategy names as plain strings.
func StrategyNames() []string {
	out := make([]string, len(Strategies))
	for i, s := range Strategies {
		out[i] = string(s)
	}
	return out
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown extraction strategy %q", s)
}

// Config holds the pieces a strategy may need.
type Config struct {
	MaxPages   int    // pages read per document
	MinTextLen int    // below this many characters, OCR is attempted
	OCR        *OCR   // nil disables OCR
	Oracle     Oracle // nil disables the hosted model
}

// DefaultMaxPages is the number of pages read from each document.
const DefaultMaxPages = 5

// DefaultMinTextLen is the shortest extracted text accepted without OCR.
const DefaultMinTextLen = 60

// New builds the extractor for a strategy.
func New(strategy Strategy, cfg Config) (Extractor, error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = DefaultMinTextLen
	}
	text := &PDFText{MaxPages: cfg.MaxPages}
	layered := &Layered{Text: text, MinTextLen: cfg.MinTextLen}
	if cfg.OCR != nil {
		layered.OCR = cfg.OCR
	}

	switch strategy {
	case StrategyText:
		return text, nil
	case StrategyOCR:
		if cfg.OCR == nil {
			return nil, errors.New("ocr strategy requires OCR to be enabled")
		}
		return cfg.OCR, nil
	case StrategyLLM:
		if cfg.Oracle == nil {
			return nil, errors.New("llm strategy requires a model client")
		}
		return &LLM{Source: layered, Oracle: cfg.Oracle}, nil
	case StrategyMarks:
		return &Marks{Source: layered}, nil
	case StrategyAuto:
		return &Auto{Source: layered, Oracle: cfg.Oracle}, nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}

var (
	tiffLE = []byte("II*\x00")
	tiffBE = []byte("MM\x00*")
)

var extTypes = map[string]string{
	".pdf":  TypePDF,
	".png":  TypePNG,
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
	".tif":  TypeTIFF,
	".tiff": TypeTIFF,
}

func sniffContentType(name string, data []byte) string {
	if bytes.HasPrefix(data, tiffLE) || bytes.HasPrefix(data, tiffBE) {
		return TypeTIFF
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch ct {
	case TypePDF, TypePNG, TypeJPEG:
		return ct
	}
	if t, ok := extTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return ct
}

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/autograder/internal/answers"
)

// Layered reads the text layer first and falls back to OCR when the text is
// too short to hold an answer sheet. OCR output replaces the text only when it
// is longer.
type Layered struct {
	Text       Extractor
	OCR        Extractor // optional
	MinTextLen int
}

// Extract implements Extractor.
func (l *Layered) Extract(ctx context.Context, doc Document) (string, error) {
	text, err := l.Text.Extract(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Debug("text extraction failed", "name", doc.Name, "error", err)
		text = ""
	}

	if l.OCR != nil && len(strings.TrimSpace(text)) < l.MinTextLen {
		ocrText, err := l.OCR.Extract(ctx, doc)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			slog.Warn("OCR failed", "name", doc.Name, "error", err)
		case len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(text)):
			text = ocrText
		}
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", doc.Name, ErrNoText)
	}
	return text, nil
}

// LLM sends the text produced by Source to a hosted model and returns the
// model's reply.
type LLM struct {
	Source Extractor
	Oracle Oracle
}

// Extract implements Extractor.
func (l *LLM) Extract(ctx context.Context, doc Document) (string, error) {
	text, err := l.Source.Extract(ctx, doc)
	if err != nil {
		return "", err
	}
	raw, err := l.Oracle.DetectAnswers(ctx, text)
	if err != nil {
		return "", fmt.Errorf("detect answers in %s: %w", doc.Name, err)
	}
	return raw, nil
}

// Auto is the full fallback chain: layered text, then the hosted model when
// one is configured, then the mark heuristic when the model finds nothing.
type Auto struct {
	Source Extractor
	Oracle Oracle // optional
}

// Extract implements Extractor.
func (a *Auto) Extract(ctx context.Context, doc Document) (string, error) {
	text, err := a.Source.Extract(ctx, doc)
	if err != nil {
		return "", err
	}

	if a.Oracle != nil {
		raw, err := a.Oracle.DetectAnswers(ctx, text)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			slog.Warn("hosted model failed, using mark heuristic", "name", doc.Name, "error", err)
		case len(answers.ParseOracleResponse(raw)) > 0:
			return raw, nil
		default:
			slog.Debug("hosted model found no answers, using mark heuristic", "name", doc.Name)
		}
	}

	return DetectMarks(text).String(), nil
}

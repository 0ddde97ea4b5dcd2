package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText reads the embedded text layer of a PDF.
type PDFText struct {
	MaxPages int
}

// Extract returns the text of the first MaxPages pages, one page per block.
func (p *PDFText) Extract(ctx context.Context, doc Document) (text string, err error) {
	if doc.ContentType != TypePDF {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, doc.ContentType)
	}

	// The PDF reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf %s: %v", doc.Name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc.Data), doc.Size())
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", doc.Name, err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if p.MaxPages > 0 && i > p.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pt, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d of %s: %w", i, doc.Name, err)
		}
		if pt != "" {
			sb.WriteString(pt)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

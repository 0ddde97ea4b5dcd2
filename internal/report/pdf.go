package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/i18n"
)

const maxNameRunes = 45

// PDF writes an A4 report with course information, statistics and the ranked
// detail table.
func PDF(ctx context.Context, w io.Writer, s *grading.Session, now time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(i18n.T(ctx, "ReportTitle"), true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(i18n.T(ctx, "ReportTitle")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, tr(i18n.T(ctx, "CourseInfo")))
	info := []statLine{
		{i18n.T(ctx, "CourseName"), s.Course.Name},
		{i18n.T(ctx, "CourseCode"), s.Course.Code},
		{i18n.T(ctx, "ReportDate"), now.Format("2006-01-02 15:04")},
		{i18n.T(ctx, "TotalQuestions"), s.TotalQuestions},
		{i18n.T(ctx, "PassMark"), s.PassMark},
	}
	pairs(pdf, tr, info)
	pdf.Ln(4)

	section(pdf, tr(i18n.T(ctx, "Statistics")))
	pairs(pdf, tr, statistics(ctx, s.Summary()))
	pdf.Ln(4)

	section(pdf, tr(i18n.T(ctx, "Results")))
	widths := []float64{10, 80, 22, 22, 22, 34}
	headers := []string{
		i18n.T(ctx, "ColRank"), i18n.T(ctx, "ColFile"), i18n.T(ctx, "ColCorrect"),
		i18n.T(ctx, "ColIncorrect"), i18n.T(ctx, "ColScore"), i18n.T(ctx, "ColStatus"),
	}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, r := range rows(s) {
		cells := []string{
			fmt.Sprintf("%d", r.Rank),
			truncate(r.Name, maxNameRunes),
			fmt.Sprintf("%d", r.Correct),
			fmt.Sprintf("%d", r.Incorrect),
			fmt.Sprintf("%.2f", r.Score),
			status(ctx, r.Passed),
		}
		for i, c := range cells {
			align := "C"
			if i == 1 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func pairs(pdf *gofpdf.Fpdf, tr func(string) string, lines []statLine) {
	for _, l := range lines {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, tr(l.Label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(formatValue(l.Value)), "1", 1, "L", false, 0, "")
	}
}

func formatValue(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

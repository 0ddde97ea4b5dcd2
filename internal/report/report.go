// Package report renders a grading session as a PDF or XLSX document.
// Labels are localized through the i18n localizer carried by ctx.
package report

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/i18n"
)

// Filename returns the download name for a report: reporte_<code>_<stamp>.<ext>,
// with "curso" standing in for an empty course code.
func Filename(code string, now time.Time, ext string) string {
	code = sanitize(code)
	if code == "" {
		code = "curso"
	}
	return "reporte_" + code + "_" + now.Format("20060102_150405") + "." + strings.TrimPrefix(ext, ".")
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// row is one line of the detail table in rank order.
type row struct {
	Rank      int
	Name      string
	Correct   int
	Incorrect int
	Score     float64
	Passed    bool
	Answers   string
	Error     string
}

func rows(s *grading.Session) []row {
	ranked := s.Ranked()
	out := make([]row, len(ranked))
	for i, sh := range ranked {
		out[i] = row{
			Rank:      i + 1,
			Name:      sh.Name,
			Correct:   sh.Result.Correct,
			Incorrect: sh.Result.Incorrect,
			Score:     sh.Result.Score,
			Passed:    sh.Result.Passed(s.PassMark),
			Answers:   sh.Answers.String(),
			Error:     sh.Error,
		}
	}
	return out
}

func status(ctx context.Context, passed bool) string {
	if passed {
		return i18n.T(ctx, "StatusPassed")
	}
	return i18n.T(ctx, "StatusFailed")
}

// statLine is a label/value pair of the statistics table.
type statLine struct {
	Label string
	Value any
}

func statistics(ctx context.Context, sum grading.Summary) []statLine {
	var passedMean any = i18n.T(ctx, "NotAvailable")
	if sum.PassedMean != nil {
		passedMean = *sum.PassedMean
	}
	return []statLine{
		{i18n.T(ctx, "SheetCount"), sum.Count},
		{i18n.T(ctx, "MeanScore"), sum.Mean},
		{i18n.T(ctx, "PassedMean"), passedMean},
		{i18n.T(ctx, "MaxScore"), sum.Max},
		{i18n.T(ctx, "MinScore"), sum.Min},
		{i18n.T(ctx, "PassedCount"), sum.Passed},
		{i18n.T(ctx, "FailedCount"), sum.Failed},
	}
}

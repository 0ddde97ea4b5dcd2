package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/i18n"
)

// Sheet names in the workbook.
const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"
)

// XLSX writes a workbook with a Results sheet (one row per graded document,
// best score first) and a Summary sheet.
func XLSX(ctx context.Context, w io.Writer, s *grading.Session) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headers := []any{
		i18n.T(ctx, "ColRank"), i18n.T(ctx, "ColFile"), i18n.T(ctx, "ColCorrect"),
		i18n.T(ctx, "ColIncorrect"), i18n.T(ctx, "ColScore"), i18n.T(ctx, "ColStatus"),
		i18n.T(ctx, "ColAnswers"), i18n.T(ctx, "ColError"),
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, r := range rows(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Rank, r.Name, r.Correct, r.Incorrect, r.Score, status(ctx, r.Passed), r.Answers, r.Error}
		if err := f.SetSheetRow(ResultsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(ResultsSheet, "B", "B", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(ResultsSheet, "G", "G", 60); err != nil {
		return err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	lines := append([]statLine{
		{i18n.T(ctx, "CourseName"), s.Course.Name},
		{i18n.T(ctx, "CourseCode"), s.Course.Code},
		{i18n.T(ctx, "TotalQuestions"), s.TotalQuestions},
		{i18n.T(ctx, "PassMark"), s.PassMark},
		{i18n.T(ctx, "AnswerKey"), s.Key.String()},
	}, statistics(ctx, s.Summary())...)
	for i, l := range lines {
		values := []any{l.Label, l.Value}
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &values); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 30); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

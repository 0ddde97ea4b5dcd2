package model

import (
	"time"

	"github.com/pavelanni/autograder/internal/grading"
)

// SessionExport is the top-level JSON structure for grading result export.
type SessionExport struct {
	ID             string          `json:"id"`
	Course         grading.Course  `json:"course"`
	AnswerKey      string          `json:"answer_key"`
	TotalQuestions int             `json:"total_questions"`
	PassMark       float64         `json:"pass_mark"`
	Strategy       string          `json:"strategy"`
	CreatedAt      time.Time       `json:"created_at"`
	Summary        grading.Summary `json:"summary"`
	Results        []SheetResult   `json:"results"`
}

// SheetResult holds one graded document for export, in rank order.
type SheetResult struct {
	Rank      int     `json:"rank"`
	File      string  `json:"file"`
	Size      int64   `json:"size"`
	Answers   string  `json:"answers"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Score     float64 `json:"score"`
	Passed    bool    `json:"passed"`
	Error     string  `json:"error,omitempty"`
}

// NewSessionExport flattens a graded session into its export form.
func NewSessionExport(s *grading.Session) SessionExport {
	ranked := s.Ranked()
	results := make([]SheetResult, len(ranked))
	for i, sh := range ranked {
		results[i] = SheetResult{
			Rank:      i + 1,
			File:      sh.Name,
			Size:      sh.Size,
			Answers:   sh.Answers.String(),
			Correct:   sh.Result.Correct,
			Incorrect: sh.Result.Incorrect,
			Score:     sh.Result.Score,
			Passed:    sh.Result.Passed(s.PassMark),
			Error:     sh.Error,
		}
	}
	return SessionExport{
		ID:             s.ID,
		Course:         s.Course,
		AnswerKey:      s.Key.String(),
		TotalQuestions: s.TotalQuestions,
		PassMark:       s.PassMark,
		Strategy:       s.Strategy,
		CreatedAt:      s.CreatedAt,
		Summary:        s.Summary(),
		Results:        results,
	}
}

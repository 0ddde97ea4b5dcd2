// Package grading scores answer sheets against an answer key on a fixed
// 0-20 scale and aggregates the results of a grading session.
package grading

import (
	"math"

	"github.com/pavelanni/autograder/internal/answers"
)

const (
	// MaxScore is the top of the grading scale.
	MaxScore = 20.0
	// DefaultPassMark is the score a sheet needs to pass.
	DefaultPassMark = 14.0
)

// Result is the outcome of grading one answer sheet.
type Result struct {
	Score     float64 `json:"score"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Total     int     `json:"total_questions"`
}

// Passed reports whether the result reaches passMark.
func (r Result) Passed(passMark float64) bool {
	return r.Score >= passMark
}

// Grade scores student against key over questions 1..totalQuestions.
// A question is correct only when both mappings hold the same symbol for it;
// unanswered questions count as incorrect and key entries outside the range
// are ignored. A non-positive totalQuestions yields a zero Result.
func Grade(student, key answers.Mapping, totalQuestions int) Result {
	if totalQuestions <= 0 {
		return Result{}
	}
	correct := 0
	for q := 1; q <= totalQuestions; q++ {
		want, ok := key[q]
		if !ok {
			continue
		}
		if got, ok := student[q]; ok && got == want {
			correct++
		}
	}
	return Result{
		Score:     round2(float64(correct) / float64(totalQuestions) * MaxScore),
		Correct:   correct,
		Incorrect: totalQuestions - correct,
		Total:     totalQuestions,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

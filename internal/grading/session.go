package grading

import (
	"sort"
	"sync"
	"time"

	"github.com/pavelanni/autograder/internal/answers"
)

// Course identifies the course an exam belongs to.
type Course struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Sheet is one graded exam document.
type Sheet struct {
	Name     string          `json:"name"`
	Size     int64           `json:"size"`
	Answers  answers.Mapping `json:"answers"`
	Result   Result          `json:"result"`
	Strategy string          `json:"strategy,omitempty"` // extraction strategy that produced Answers
	Error    string          `json:"error,omitempty"`    // extraction failure, if any
}

// Session is a grading session: one answer key, many sheets. The caller owns
// it and passes it explicitly; nothing is kept in package state.
type Session struct {
	ID             string
	Course         Course
	RawKey         string
	Key            answers.Mapping
	TotalQuestions int
	PassMark       float64
	Strategy       string
	CreatedAt      time.Time

	mu     sync.Mutex
	sheets []Sheet
}

// NewSession parses rawKey and prepares a session. When totalQuestions is not
// positive the number of questions in the key is used; a non-positive
// passMark falls back to DefaultPassMark.
func NewSession(course Course, rawKey string, totalQuestions int, passMark float64) *Session {
	key := answers.Parse(rawKey)
	if totalQuestions <= 0 {
		totalQuestions = len(key)
	}
	if passMark <= 0 {
		passMark = DefaultPassMark
	}
	return &Session{
		Course:         course,
		RawKey:         rawKey,
		Key:            key,
		TotalQuestions: totalQuestions,
		PassMark:       passMark,
		CreatedAt:      time.Now(),
	}
}

// Grade scores a sheet's answers against the session key and records it.
// It is safe for concurrent use.
func (s *Session) Grade(sh Sheet) Sheet {
	if sh.Answers == nil {
		sh.Answers = answers.Mapping{}
	}
	sh.Result = Grade(sh.Answers, s.Key, s.TotalQuestions)
	s.Add(sh)
	return sh
}

// Add records an already graded sheet.
func (s *Session) Add(sh Sheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets = append(s.sheets, sh)
}

// Sheets returns the recorded sheets in the order they were added.
func (s *Session) Sheets() []Sheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sheet(nil), s.sheets...)
}

// Ranked returns the sheets ordered by score, best first.
func (s *Session) Ranked() []Sheet {
	sheets := s.Sheets()
	sort.SliceStable(sheets, func(i, j int) bool {
		return sheets[i].Result.Score > sheets[j].Result.Score
	})
	return sheets
}

// Summary aggregates the session's results at its pass mark.
func (s *Session) Summary() Summary {
	sheets := s.Sheets()
	results := make([]Result, len(sheets))
	for i, sh := range sheets {
		results[i] = sh.Result
	}
	return Summarize(results, s.PassMark)
}

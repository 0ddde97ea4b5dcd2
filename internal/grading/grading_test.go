package grading

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/autograder/internal/answers"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		student answers.Mapping
		key     answers.Mapping
		total   int
		want    Result
	}{
		{"no answers", answers.Mapping{}, answers.Mapping{1: "a"}, 1, Result{Score: 0, Correct: 0, Incorrect: 1, Total: 1}},
		{"all correct", answers.Mapping{1: "a"}, answers.Mapping{1: "a"}, 1, Result{Score: 20, Correct: 1, Incorrect: 0, Total: 1}},
		{"half correct", answers.Mapping{1: "a", 2: "b"}, answers.Mapping{1: "a", 2: "c"}, 2, Result{Score: 10, Correct: 1, Incorrect: 1, Total: 2}},
		{"zero total", answers.Mapping{1: "a"}, answers.Mapping{1: "a"}, 0, Result{}},
		{"negative total", answers.Mapping{1: "a"}, answers.Mapping{1: "a"}, -3, Result{}},
		{"nil mappings", nil, nil, 2, Result{Score: 0, Correct: 0, Incorrect: 2, Total: 2}},
		{"key outside range ignored", answers.Mapping{1: "a", 5: "b"}, answers.Mapping{1: "a", 5: "b"}, 2, Result{Score: 10, Correct: 1, Incorrect: 1, Total: 2}},
		{"total larger than key", answers.Mapping{1: "v"}, answers.Mapping{1: "v"}, 4, Result{Score: 5, Correct: 1, Incorrect: 3, Total: 4}},
		{"rounded to two decimals", answers.Mapping{1: "a"}, answers.Mapping{1: "a", 2: "b", 3: "c"}, 3, Result{Score: 6.67, Correct: 1, Incorrect: 2, Total: 3}},
		{"answer without key entry", answers.Mapping{1: "a", 2: "b"}, answers.Mapping{1: "a"}, 2, Result{Score: 10, Correct: 1, Incorrect: 1, Total: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(tt.student, tt.key, tt.total)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGradeDeterministic(t *testing.T) {
	student := answers.Parse("1:a, 2:b, 3:v")
	key := answers.Parse("1:a, 2:c, 3:v")
	assert.Equal(t, Grade(student, key, 3), Grade(student, key, 3))
}

func TestPassed(t *testing.T) {
	assert.True(t, Result{Score: 14}.Passed(DefaultPassMark))
	assert.False(t, Result{Score: 13.99}.Passed(DefaultPassMark))
	assert.True(t, Result{Score: 10.5}.Passed(10.5))
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := Summarize(nil, DefaultPassMark)
		assert.Equal(t, Summary{PassMark: DefaultPassMark}, s)
	})

	t.Run("mixed", func(t *testing.T) {
		s := Summarize([]Result{{Score: 20}, {Score: 10}, {Score: 15}, {Score: 5}}, DefaultPassMark)
		assert.Equal(t, 4, s.Count)
		assert.Equal(t, 12.5, s.Mean)
		assert.Equal(t, 20.0, s.Max)
		assert.Equal(t, 5.0, s.Min)
		assert.Equal(t, 2, s.Passed)
		assert.Equal(t, 2, s.Failed)
		require.NotNil(t, s.PassedMean)
		assert.Equal(t, 17.5, *s.PassedMean)
	})

	t.Run("nobody passed", func(t *testing.T) {
		s := Summarize([]Result{{Score: 3}, {Score: 7}}, DefaultPassMark)
		assert.Equal(t, 0, s.Passed)
		assert.Equal(t, 2, s.Failed)
		assert.Nil(t, s.PassedMean)
	})
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(Course{Name: "Física", Code: "FIS-101"}, "1:a, 2:b, 3:c", 0, 0)
	assert.Equal(t, 3, s.TotalQuestions)
	assert.Equal(t, DefaultPassMark, s.PassMark)
	assert.Equal(t, answers.Mapping{1: "a", 2: "b", 3: "c"}, s.Key)

	s = NewSession(Course{}, "1:a", 5, 10.5)
	assert.Equal(t, 5, s.TotalQuestions)
	assert.Equal(t, 10.5, s.PassMark)
}

func TestSessionGrade(t *testing.T) {
	s := NewSession(Course{Name: "Math"}, "1:a, 2:b", 2, 0)

	got := s.Grade(Sheet{Name: "alice.pdf", Answers: answers.Mapping{1: "a", 2: "b"}})
	assert.Equal(t, 20.0, got.Result.Score)

	got = s.Grade(Sheet{Name: "bob.pdf"})
	assert.NotNil(t, got.Answers)
	assert.Equal(t, 0.0, got.Result.Score)

	s.Grade(Sheet{Name: "carol.pdf", Answers: answers.Mapping{1: "a"}})

	sheets := s.Sheets()
	require.Len(t, sheets, 3)
	assert.Equal(t, "alice.pdf", sheets[0].Name)
	assert.Equal(t, "bob.pdf", sheets[1].Name)

	ranked := s.Ranked()
	assert.Equal(t, []string{"alice.pdf", "carol.pdf", "bob.pdf"},
		[]string{ranked[0].Name, ranked[1].Name, ranked[2].Name})

	sum := s.Summary()
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 10.0, sum.Mean)
}

func TestSessionConcurrentGrade(t *testing.T) {
	s := NewSession(Course{}, "1:a", 1, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Grade(Sheet{Answers: answers.Mapping{1: "a"}})
		}()
	}
	wg.Wait()
	assert.Len(t, s.Sheets(), 50)
	assert.Equal(t, 50, s.Summary().Passed)
}

package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/autograder/internal/answers"
)

// A question number, up to four non-digits, an option letter, up to six
// non-digits and an X mark: "3) b X", "12 . v   x".
var markRegex = regexp.MustCompile(`(\d{1,4})\D{0,4}([a-eA-EvVfF])\D{0,6}[xX]`)

// DetectMarks looks for an option letter followed by an X on each line of
// text. It is a best-effort heuristic with no correctness guarantee: only the
// first mark on a line is seen and stray letters can produce false positives.
func DetectMarks(text string) answers.Mapping {
	m := answers.Mapping{}
	for _, line := range strings.Split(text, "\n") {
		match := markRegex.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil || n == 0 {
			continue
		}
		m[n] = strings.ToLower(match[2])
	}
	return m
}

// Marks runs DetectMarks over the text produced by Source and returns the
// detected answers in "1:a, 2:b" form.
type Marks struct {
	Source Extractor
}

// Extract implements Extractor.
func (m *Marks) Extract(ctx context.Context, doc Document) (string, error) {
	text, err := m.Source.Extract(ctx, doc)
	if err != nil {
		return "", err
	}
	return DetectMarks(text).String(), nil
}

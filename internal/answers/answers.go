// Package answers parses answer keys and detected answer sheets into a
// normalized question-to-symbol mapping.
package answers

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Symbols lists every answer symbol a Mapping may hold: a-e for multiple
// choice, v/f for true/false.
const Symbols = "abcdevf"

var (
	// A 1-4 digit question number, an optional ":", "-" or ")" separator and
	// one answer letter. Spacing may include Unicode spaces such as NBSP.
	tokenRegex = regexp.MustCompile(`(?i)(\d{1,4})[\s\p{Zs}]*[:\-)]?[\s\p{Zs}]*([a-evf])`)
	jsonRegex  = regexp.MustCompile(`\{[^{}]*\}`)
)

// Mapping maps a question number to its lowercase answer symbol.
type Mapping map[int]string

// IsSymbol reports whether r is an allowed answer symbol, ignoring case.
func IsSymbol(r rune) bool {
	return strings.ContainsRune(Symbols, unicode.ToLower(r))
}

// Parse scans raw for "question:answer" tokens such as "1:a, 2:d, 3:e, 4:v".
// Unmatched fragments are ignored and a repeated question keeps its last
// answer. Parse never fails; empty or unparseable input gives an empty Mapping.
func Parse(raw string) Mapping {
	m := Mapping{}
	for _, match := range tokenRegex.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n == 0 {
			continue
		}
		m[n] = strings.ToLower(match[2])
	}
	return m
}

// ParseOracleResponse parses free text returned by a hosted model. A flat JSON
// object like {"1":"a","2":"v"} is preferred; otherwise the text is scanned
// with Parse. Entries whose key is not a number or whose value is not a single
// allowed symbol are dropped.
func ParseOracleResponse(text string) Mapping {
	if strings.TrimSpace(text) == "" {
		return Mapping{}
	}
	if obj := jsonRegex.FindString(text); obj != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(obj), &data); err == nil {
			m := Mapping{}
			for k, v := range data {
				n, err := strconv.Atoi(strings.TrimSpace(k))
				if err != nil || n <= 0 {
					continue
				}
				s, ok := normalizeValue(v)
				if !ok {
					continue
				}
				m[n] = s
			}
			return m
		}
	}
	return Parse(text)
}

func normalizeValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 1 || !strings.Contains(Symbols, s) {
		return "", false
	}
	return s, true
}

// Questions returns the question numbers in ascending order.
func (m Mapping) Questions() []int {
	qs := make([]int, 0, len(m))
	for q := range m {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// String renders the mapping in the answer-key form "1:a, 2:d", ordered by
// question number. The output parses back to an equal Mapping.
func (m Mapping) String() string {
	var sb strings.Builder
	for i, q := range m.Questions() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(q))
		sb.WriteByte(':')
		sb.WriteString(m[q])
	}
	return sb.String()
}

package answers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Mapping
	}{
		{"well formed", "1:a, 2:d, 3:e, 4:v, 5:f", Mapping{1: "a", 2: "d", 3: "e", 4: "v", 5: "f"}},
		{"empty", "", Mapping{}},
		{"no digits", "no digits here", Mapping{}},
		{"last match wins", "1:a, 1:b", Mapping{1: "b"}},
		{"upper case", "1:A", Mapping{1: "a"}},
		{"mixed separators", "1) c; 2 - B  3:v\n4 f", Mapping{1: "c", 2: "b", 3: "v", 4: "f"}},
		{"leading zeros", "007:d", Mapping{7: "d"}},
		{"no separator", "1a2b3c", Mapping{1: "a", 2: "b", 3: "c"}},
		{"letters outside set", "1:g, 2:x", Mapping{}},
		{"question zero dropped", "0:a, 1:b", Mapping{1: "b"}},
		{"non-breaking spaces", "1:\u00a0a, 2\u00a0:\u00a0b,\u20073\u202f-\u3000c", Mapping{1: "a", 2: "b", 3: "c"}},
		{"long number keeps last four digits", "12345:a", Mapping{2345: "a"}},
		{"noise around tokens", "Clave -> 1:a ; ?? 2 :  c !!", Mapping{1: "a", 2: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	raw := "3:c, 1:a, 2:v, 2:f"
	assert.Equal(t, Parse(raw), Parse(raw))
}

func TestMappingStringRoundTrip(t *testing.T) {
	m := Mapping{10: "e", 2: "v", 1: "a"}
	assert.Equal(t, "1:a, 2:v, 10:e", m.String())
	assert.Equal(t, m, Parse(m.String()))
	assert.Equal(t, "", Mapping{}.String())
}

func TestQuestionsSorted(t *testing.T) {
	m := Mapping{5: "a", 1: "b", 3: "c"}
	assert.Equal(t, []int{1, 3, 5}, m.Questions())
}

func TestIsSymbol(t *testing.T) {
	for _, r := range "abcdevfABCDEVF" {
		assert.True(t, IsSymbol(r), "%q should be a symbol", r)
	}
	for _, r := range "gxz1 :" {
		assert.False(t, IsSymbol(r), "%q should not be a symbol", r)
	}
}

func TestParseOracleResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Mapping
	}{
		{"empty", "", Mapping{}},
		{"empty object", "{}", Mapping{}},
		{"fenced json", "```json\n{\"1\":\"A\",\"2\":\"v\"}\n```", Mapping{1: "a", 2: "v"}},
		{"invalid entries dropped", `{"1":"a","x":"b","3":"z","4":"ab","5":1,"0":"c"}`, Mapping{1: "a"}},
		{"pairs fallback", "1: a\n2: c", Mapping{1: "a", 2: "c"}},
		{"broken json falls back to pairs", "{1:a, 2:b}", Mapping{1: "a", 2: "b"}},
		{"prose around json", "Here are the answers: {\"3\": \" D \"} hope it helps", Mapping{3: "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOracleResponse(tt.text))
		})
	}
}

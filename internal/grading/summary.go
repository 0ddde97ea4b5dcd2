package grading

// Summary holds aggregate statistics over a set of results.
type Summary struct {
	Count      int      `json:"count"`
	Mean       float64  `json:"mean"`
	Max        float64  `json:"max"`
	Min        float64  `json:"min"`
	Passed     int      `json:"passed"`
	Failed     int      `json:"failed"`
	PassedMean *float64 `json:"passed_mean,omitempty"` // nil when nobody passed
	PassMark   float64  `json:"pass_mark"`
}

// Summarize computes mean, extremes and pass counts at passMark.
func Summarize(results []Result, passMark float64) Summary {
	s := Summary{Count: len(results), PassMark: passMark}
	if len(results) == 0 {
		return s
	}

	var total, passedTotal float64
	s.Max = results[0].Score
	s.Min = results[0].Score
	for _, r := range results {
		total += r.Score
		s.Max = max(s.Max, r.Score)
		s.Min = min(s.Min, r.Score)
		if r.Passed(passMark) {
			s.Passed++
			passedTotal += r.Score
		} else {
			s.Failed++
		}
	}
	s.Mean = round2(total / float64(len(results)))
	if s.Passed > 0 {
		pm := round2(passedTotal / float64(s.Passed))
		s.PassedMean = &pm
	}
	return s
}

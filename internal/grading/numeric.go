package grading

import (
	"math"
	"strconv"
	"strings"
)

// GridInTolerance is the absolute difference under which two numeric grid-in
// answers are considered the same value.
const GridInTolerance = 1e-4

// GridInResult is the diagnostic form of a grid-in check. Review screens show
// MatchedAnswer next to the student's input.
type GridInResult struct {
	IsCorrect            bool   `json:"is_correct"`
	MatchedAnswer        string `json:"matched_answer,omitempty"`
	NormalizedSubmission string `json:"normalized_submission,omitempty"`
}

// MatchGridIn checks a typed numeric answer against the accepted set using
// fraction/decimal equivalence, e.g. "6/8" matches "0.75".
func MatchGridIn(submitted string, accepted []string) GridInResult {
	return matchGridIn(submitted, accepted, GridInTolerance)
}

func matchGridIn(submitted string, accepted []string, tol float64) GridInResult {
	if strings.TrimSpace(submitted) == "" {
		return GridInResult{}
	}
	res := GridInResult{NormalizedSubmission: normalizedForm(submitted)}
	for _, a := range accepted {
		if equivalent(submitted, a, tol) {
			res.IsCorrect = true
			res.MatchedAnswer = a
			return res
		}
	}
	return res
}

// equivalent compares numerically when both sides parse, otherwise falls back
// to case/whitespace-insensitive equality of the original strings.
func equivalent(a, b string, tol float64) bool {
	av, aOK := numericValue(a)
	bv, bOK := numericValue(b)
	if aOK && bOK {
		return math.Abs(av-bv) < tol
	}
	fa := foldText(a)
	return fa != "" && fa == foldText(b)
}

// numericValue parses "n/d" fractions (non-zero d), decimals and integers.
func numericValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, nErr := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, dErr := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if nErr == nil && dErr == nil && d != 0 {
			return n / d, finite(n / d)
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func normalizedForm(s string) string {
	if v, ok := numericValue(s); ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return foldText(s)
}

// FormatAnswersDisplay renders accepted answers for review pages, grouping
// equivalent forms: ["1/2", "0.5", "3"] -> "1/2 or 0.5, 3".
func FormatAnswersDisplay(answers []string) string {
	switch len(answers) {
	case 0:
		return ""
	case 1:
		return answers[0]
	}
	var groups [][]string
	for _, a := range answers {
		placed := false
		for i := range groups {
			if equivalent(a, groups[i][0], GridInTolerance) {
				groups[i] = append(groups[i], a)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []string{a})
		}
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, strings.Join(g, " or "))
	}
	return strings.Join(parts, ", ")
}

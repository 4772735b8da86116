package grading

import "strings"

// foldText trims surrounding whitespace and lowercases (Unicode-aware).
func foldText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCorrect reports whether submitted equals any accepted answer, ignoring case
// and surrounding whitespace. A blank submission is never correct, even when an
// accepted entry is blank too.
func IsCorrect(submitted string, accepted []string) bool {
	_, ok := matchText(submitted, accepted)
	return ok
}

// matchText returns the first accepted answer equal to submitted.
func matchText(submitted string, accepted []string) (string, bool) {
	sub := foldText(submitted)
	if sub == "" {
		return "", false
	}
	for _, a := range accepted {
		if foldText(a) == sub {
			return a, true
		}
	}
	return "", false
}

// Check dispatches on the caller's grid-in flag; the question type decides it,
// the answer text never does.
func Check(submitted string, accepted []string, gridIn bool) bool {
	if gridIn {
		return MatchGridIn(submitted, accepted).IsCorrect
	}
	return IsCorrect(submitted, accepted)
}

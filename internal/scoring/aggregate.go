package scoring

import "strings"

// GradedAnswer is one submitted answer joined with its question's module and
// point value. IsCorrect is whatever the store currently holds, including
// admin overrides; the submitted text is not needed to score.
type GradedAnswer struct {
	AnswerID   string
	QuestionID string
	ModuleID   string
	Points     int
	IsCorrect  bool
	// Invalid marks answers whose question join is missing.
	Invalid bool
}

// Aggregation is the raw-score view of an attempt.
type Aggregation struct {
	Sections  map[string]int // every template section, zero when empty
	Modules   map[string]int // raw points per module (lowercased id)
	Unmatched []GradedAnswer // correct answers whose module has no section
}

// Aggregate sums awarded points per template section. Incorrect answers add
// nothing; negative points count as zero.
func Aggregate(t Template, answers []GradedAnswer) Aggregation {
	return aggregate(t, t.Index(), answers)
}

func aggregate(t Template, idx ModuleIndex, answers []GradedAnswer) Aggregation {
	agg := Aggregation{
		Sections: make(map[string]int, len(t.Sections)),
		Modules:  map[string]int{},
	}
	for _, s := range t.Sections {
		agg.Sections[s.Name] = 0
	}
	for _, a := range answers {
		if !a.IsCorrect || a.Invalid {
			continue
		}
		sec, ok := idx.Section(a.ModuleID)
		if !ok {
			agg.Unmatched = append(agg.Unmatched, a)
			continue
		}
		pts := a.Points
		if pts < 0 {
			pts = 0
		}
		agg.Sections[sec] += pts
		agg.Modules[moduleKey(a.ModuleID)] += pts
	}
	return agg
}

// validAnswer mirrors the store join check: question data present and a
// non-blank module identifier.
func validAnswer(a GradedAnswer) bool {
	return !a.Invalid && strings.TrimSpace(a.ModuleID) != ""
}

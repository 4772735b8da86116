package exam

import (
	"context"
	"errors"
	"log"

	"github.com/mind-engage/mindengage-scoring/internal/grading"
)

// ErrAttemptClosed is returned when answering into a completed attempt.
var ErrAttemptClosed = errors.New("attempt already completed")

// gradeAnswer decides is_correct for a freshly submitted answer. Anything the
// grader cannot decide (no key, unknown type) is stored as incorrect and left
// for an admin regrade.
func gradeAnswer(ctx context.Context, g grading.Grader, q Question, answer string) bool {
	res, err := g.Grade(ctx, grading.Q{
		Type:     q.Type,
		Points:   q.PointValue(),
		Accepted: grading.ParseAnswerColumn(q.CorrectAnswers),
	}, answer)
	if err != nil {
		log.Printf("exam: question %s not auto-graded: %v", q.ID, err)
		return false
	}
	if res.NeedsManual {
		log.Printf("exam: question %s type %q needs manual grading", q.ID, q.Type)
	}
	return res.IsCorrect
}

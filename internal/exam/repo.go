package exam

import (
	"context"

	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

// Store is everything the API and CLI need: exam authoring, the attempt
// lifecycle, and every collaborator the scoring service reads from or writes to.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	PutQuestion(ctx context.Context, q Question) error
	PutTemplate(ctx context.Context, t scoring.Template) error
	PutCurve(ctx context.Context, c scoring.Curve) error
	AssignCurve(ctx context.Context, examID, section, curveID string) error

	NewAttempt(ctx context.Context, examID, userID string) (Attempt, error)
	// SubmitAnswer grades the answer against the question's key and stores it.
	// Answering the same question again replaces the earlier answer.
	SubmitAnswer(ctx context.Context, attemptID, questionID, answer string) (UserAnswer, error)
	// CompleteAttempt closes the attempt and files incorrect answers into the
	// mistake bank. Completing twice is a no-op.
	CompleteAttempt(ctx context.Context, attemptID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAnswers(ctx context.Context, attemptID string) ([]UserAnswer, error)
	ListMistakes(ctx context.Context, userID string) ([]MistakeEntry, error)

	scoring.AttemptSource
	scoring.AnswerSource
	scoring.TemplateSource
	scoring.CurveSource
	scoring.AnswerRegrader
	scoring.ScoreSink
	scoring.RegradeLog
}

// Sources exposes a Store as the scoring service's read side.
func Sources(s Store) scoring.Sources {
	return scoring.Sources{Attempts: s, Answers: s, Templates: s, Curves: s}
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

package scoring_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

func newRegrader(s *fakeStore) *scoring.Regrader {
	svc := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger))
	return scoring.NewRegrader(svc, s, s, s)
}

func TestRegrade_FlipRescoresAttempt(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	r := newRegrader(s)

	out, err := r.Regrade(context.Background(), scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: false, Reason: "key was wrong", AdminID: "admin"})
	if err != nil {
		t.Fatalf("Regrade: %v", err)
	}
	if !out.OldIsCorrect || out.NewIsCorrect {
		t.Errorf("outcome flags = %+v", out)
	}
	if out.Scores.Sections["math"] != 200 || out.Scores.Overall != 200 {
		t.Errorf("rescored = %+v, want math 200", out.Scores)
	}
	if got := s.saved["att-1"].Overall; got != 200 {
		t.Errorf("saved overall = %d, want 200", got)
	}
	if len(s.history) != 1 || s.history[0].AdminID != "admin" || s.history[0].Reason != "key was wrong" {
		t.Errorf("history = %+v", s.history)
	}

	// and back again
	out, err = r.Regrade(context.Background(), scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: true, Reason: "reverted"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Scores.Overall != 800 {
		t.Errorf("overall after restore = %d, want 800", out.Scores.Overall)
	}
}

func TestRegrade_Rejections(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	r := newRegrader(s)
	ctx := context.Background()

	if _, err := r.Regrade(ctx, scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: false}); err == nil {
		t.Error("missing reason should be rejected")
	}
	if _, err := r.Regrade(ctx, scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: true, Reason: "x"}); !errors.Is(err, scoring.ErrNoChange) {
		t.Errorf("same value: got %v, want ErrNoChange", err)
	}
	if _, err := r.Regrade(ctx, scoring.RegradeCommand{AnswerID: "nope", IsCorrect: true, Reason: "x"}); !errors.Is(err, scoring.ErrNotFound) {
		t.Errorf("unknown answer: got %v, want ErrNotFound", err)
	}

	s.attempts["att-1"] = scoring.AttemptRef{ID: "att-1", ExamID: "exam-1", Status: "in_progress"}
	if _, err := r.Regrade(ctx, scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: false, Reason: "x"}); !errors.Is(err, scoring.ErrAttemptNotCompleted) {
		t.Errorf("open attempt: got %v, want ErrAttemptNotCompleted", err)
	}
	if len(s.history) != 0 {
		t.Errorf("rejected regrades must not be logged: %+v", s.history)
	}
}

func TestRegrade_FailedRescoreRevertsAnswer(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.saveErr = errors.New("disk full")
	r := newRegrader(s)

	_, err := r.Regrade(context.Background(), scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: false, Reason: "x"})
	if err == nil {
		t.Fatal("save failure must surface")
	}
	st, _ := s.GetAnswerState(context.Background(), "ans-1")
	if !st.IsCorrect {
		t.Error("answer should have been reverted to correct")
	}
}

func TestRegrade_ConfigErrorRevertsAnswer(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	delete(s.templates, "exam-1")
	r := newRegrader(s)

	_, err := r.Regrade(context.Background(), scoring.RegradeCommand{AnswerID: "ans-1", IsCorrect: false, Reason: "x"})
	if !scoring.IsConfigError(err) {
		t.Fatalf("want config error through the wrap, got %v", err)
	}
	st, _ := s.GetAnswerState(context.Background(), "ans-1")
	if !st.IsCorrect {
		t.Error("answer should have been reverted")
	}
}

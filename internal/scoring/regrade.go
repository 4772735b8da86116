package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// StatusCompleted is the attempt status that allows regrading.
const StatusCompleted = "completed"

// AnswerState is what a regrade needs to know about one stored answer.
type AnswerState struct {
	AnswerID      string
	AttemptID     string
	IsCorrect     bool
	AttemptStatus string
}

type AnswerRegrader interface {
	GetAnswerState(ctx context.Context, answerID string) (AnswerState, error)
	SetAnswerCorrect(ctx context.Context, answerID string, isCorrect bool) error
}

// ScoreSink persists a computed result for an attempt.
type ScoreSink interface {
	SaveScores(ctx context.Context, res Result) error
}

type RegradeRecord struct {
	AnswerID     string `json:"user_answer_id"`
	AttemptID    string `json:"attempt_id"`
	AdminID      string `json:"admin_id"`
	Reason       string `json:"reason"`
	OldIsCorrect bool   `json:"old_is_correct"`
	NewIsCorrect bool   `json:"new_is_correct"`
}

// RegradeLog keeps an audit trail of overrides.
type RegradeLog interface {
	RecordRegrade(ctx context.Context, rec RegradeRecord) error
}

// RegradeCommand is an admin override of one answer's correctness.
type RegradeCommand struct {
	AnswerID  string `json:"user_answer_id"`
	IsCorrect bool   `json:"new_is_correct"`
	Reason    string `json:"reason"`
	AdminID   string `json:"-"`
}

type RegradeOutcome struct {
	OldIsCorrect bool   `json:"old_is_correct"`
	NewIsCorrect bool   `json:"new_is_correct"`
	Scores       Result `json:"new_scores"`
}

// Regrader applies a RegradeCommand and rescores the whole attempt.
type Regrader struct {
	scorer  *Service
	answers AnswerRegrader
	sink    ScoreSink
	history RegradeLog // optional
	logger  *log.Logger
}

func NewRegrader(scorer *Service, answers AnswerRegrader, sink ScoreSink, history RegradeLog) *Regrader {
	return &Regrader{scorer: scorer, answers: answers, sink: sink, history: history, logger: scorer.logger}
}

// Regrade flips one answer, recomputes the attempt from scratch and stores the
// new result. If rescoring or saving fails the flip is undone.
func (r *Regrader) Regrade(ctx context.Context, cmd RegradeCommand) (RegradeOutcome, error) {
	cmd.AnswerID = strings.TrimSpace(cmd.AnswerID)
	cmd.Reason = strings.TrimSpace(cmd.Reason)
	if cmd.AnswerID == "" || cmd.Reason == "" {
		return RegradeOutcome{}, errors.New("missing required fields: user_answer_id, reason")
	}

	st, err := r.answers.GetAnswerState(ctx, cmd.AnswerID)
	if err != nil {
		return RegradeOutcome{}, fmt.Errorf("answer %s: %w", cmd.AnswerID, err)
	}
	if st.AttemptStatus != StatusCompleted {
		return RegradeOutcome{}, ErrAttemptNotCompleted
	}
	if st.IsCorrect == cmd.IsCorrect {
		return RegradeOutcome{}, ErrNoChange
	}

	if err := r.answers.SetAnswerCorrect(ctx, cmd.AnswerID, cmd.IsCorrect); err != nil {
		return RegradeOutcome{}, fmt.Errorf("update answer: %w", err)
	}
	if r.history != nil {
		rec := RegradeRecord{
			AnswerID: cmd.AnswerID, AttemptID: st.AttemptID, AdminID: cmd.AdminID, Reason: cmd.Reason,
			OldIsCorrect: st.IsCorrect, NewIsCorrect: cmd.IsCorrect,
		}
		if err := r.history.RecordRegrade(ctx, rec); err != nil {
			r.logger.Printf("regrade: failed to log regrade of %s: %v", cmd.AnswerID, err)
		}
	}

	res, err := r.scorer.ComputeFinalScores(ctx, st.AttemptID)
	if err == nil {
		err = r.sink.SaveScores(ctx, res)
	}
	if err != nil {
		if rerr := r.answers.SetAnswerCorrect(ctx, cmd.AnswerID, st.IsCorrect); rerr != nil {
			r.logger.Printf("regrade: revert of %s failed: %v", cmd.AnswerID, rerr)
		}
		return RegradeOutcome{}, fmt.Errorf("recalculate scores: %w", err)
	}
	return RegradeOutcome{OldIsCorrect: st.IsCorrect, NewIsCorrect: cmd.IsCorrect, Scores: res}, nil
}

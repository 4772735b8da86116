package exam

import (
	"encoding/json"

	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = scoring.StatusCompleted
)

// MistakeUnmastered is the status given to mistake bank entries on insert.
const MistakeUnmastered = "unmastered"

type Exam struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TemplateID string `json:"template_id,omitempty"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}

type Question struct {
	ID       string `json:"id"`
	ExamID   string `json:"exam_id"`
	ModuleID string `json:"module_id"` // english1, math2, ...
	Type     string `json:"type"`      // multiple_choice, grid_in, short_answer, ...
	Points   *int   `json:"points,omitempty"`
	// CorrectAnswers is stored as received: a string, an array, or a JSON
	// encoded array inside a string. grading.ParseAnswerColumn reads all of them.
	CorrectAnswers json.RawMessage `json:"correct_answers"`
}

// PointValue is the question's weight; unset means 1.
func (q Question) PointValue() int {
	if q.Points == nil {
		return 1
	}
	return *q.Points
}

type Attempt struct {
	ID          string          `json:"id"`
	ExamID      string          `json:"exam_id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"` // in_progress|completed
	TotalScore  *int            `json:"total_score,omitempty"`
	FinalScores *scoring.Result `json:"final_scores,omitempty"`
	StartedAt   int64           `json:"started_at"`
	CompletedAt int64           `json:"completed_at,omitempty"`
}

type UserAnswer struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	IsCorrect  bool   `json:"is_correct"`
	CreatedAt  int64  `json:"created_at"`
}

type MistakeEntry struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
	AttemptID  string `json:"attempt_id"`
	Status     string `json:"status"`
}

package exam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-scoring/internal/grading"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

type curveKey struct{ examID, section string }

// MemoryStore keeps everything in maps. It backs the CLI's --memory mode and
// handler tests.
type MemoryStore struct {
	mu     sync.RWMutex
	grader grading.Grader

	exams      map[string]Exam
	questions  map[string]Question
	templates  map[string]scoring.Template
	curves     map[string]scoring.Curve
	examCurves map[curveKey]string
	attempts   map[string]Attempt
	answers    map[string]UserAnswer
	byAttempt  map[string][]string // attemptID -> answer ids in submit order
	mistakes   map[string]map[string]MistakeEntry
	history    []scoring.RegradeRecord
}

func NewMemoryStore(grader grading.Grader) *MemoryStore {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	return &MemoryStore{
		grader:     grader,
		exams:      map[string]Exam{},
		questions:  map[string]Question{},
		templates:  map[string]scoring.Template{},
		curves:     map[string]scoring.Curve{},
		examCurves: map[curveKey]string{},
		attempts:   map[string]Attempt{},
		answers:    map[string]UserAnswer{},
		byAttempt:  map[string][]string{},
		mistakes:   map[string]map[string]MistakeEntry{},
	}
}

func (m *MemoryStore) PutExam(_ context.Context, e Exam) error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("exam id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.exams[e.ID]; ok {
		e.CreatedAt = old.CreatedAt
	} else {
		e.CreatedAt = time.Now().Unix()
	}
	m.exams[e.ID] = e
	return nil
}

func (m *MemoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("exam %s: %w", id, scoring.ErrNotFound)
	}
	return e, nil
}

func (m *MemoryStore) PutQuestion(_ context.Context, q Question) error {
	if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.ExamID) == "" {
		return errors.New("question id and exam id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

// DeleteQuestion removes a question but leaves its answers behind, the way a
// broken import would.
func (m *MemoryStore) DeleteQuestion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.questions, id)
}

func (m *MemoryStore) PutTemplate(_ context.Context, t scoring.Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("template id is required")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *MemoryStore) PutCurve(_ context.Context, c scoring.Curve) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("curve id is required")
	}
	if err := scoring.ValidateCurve(c.Points); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Points = append([]scoring.Point(nil), c.Points...)
	m.curves[c.ID] = c
	return nil
}

func (m *MemoryStore) AssignCurve(_ context.Context, examID, section, curveID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.curves[curveID]; !ok {
		return fmt.Errorf("curve %s: %w", curveID, scoring.ErrNotFound)
	}
	m.examCurves[curveKey{examID, section}] = curveID
	return nil
}

func (m *MemoryStore) NewAttempt(_ context.Context, examID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[examID]; !ok {
		return Attempt{}, fmt.Errorf("exam %s: %w", examID, scoring.ErrNotFound)
	}
	a := Attempt{ID: uuid.NewString(), ExamID: examID, UserID: userID, Status: StatusInProgress, StartedAt: time.Now().Unix()}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *MemoryStore) SubmitAnswer(ctx context.Context, attemptID, questionID, answer string) (UserAnswer, error) {
	m.mu.RLock()
	a, ok := m.attempts[attemptID]
	q, qok := m.questions[questionID]
	m.mu.RUnlock()
	if !ok {
		return UserAnswer{}, fmt.Errorf("attempt %s: %w", attemptID, scoring.ErrNotFound)
	}
	if a.Status != StatusInProgress {
		return UserAnswer{}, ErrAttemptClosed
	}
	if !qok || q.ExamID != a.ExamID {
		return UserAnswer{}, fmt.Errorf("question %s: %w", questionID, scoring.ErrNotFound)
	}
	correct := gradeAnswer(ctx, m.grader, q, answer)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byAttempt[attemptID] {
		if ua := m.answers[id]; ua.QuestionID == questionID {
			ua.Answer, ua.IsCorrect = answer, correct
			m.answers[id] = ua
			return ua, nil
		}
	}
	ua := UserAnswer{ID: uuid.NewString(), AttemptID: attemptID, QuestionID: questionID, Answer: answer, IsCorrect: correct, CreatedAt: time.Now().Unix()}
	m.answers[ua.ID] = ua
	m.byAttempt[attemptID] = append(m.byAttempt[attemptID], ua.ID)
	return ua, nil
}

func (m *MemoryStore) CompleteAttempt(_ context.Context, attemptID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, scoring.ErrNotFound)
	}
	if a.Status == StatusCompleted {
		return a, nil
	}
	a.Status = StatusCompleted
	a.CompletedAt = time.Now().Unix()
	m.attempts[attemptID] = a

	for _, id := range m.byAttempt[attemptID] {
		ua := m.answers[id]
		if ua.IsCorrect {
			continue
		}
		bank := m.mistakes[a.UserID]
		if bank == nil {
			bank = map[string]MistakeEntry{}
			m.mistakes[a.UserID] = bank
		}
		bank[ua.QuestionID] = MistakeEntry{UserID: a.UserID, QuestionID: ua.QuestionID, AttemptID: attemptID, Status: MistakeUnmastered}
	}
	return a, nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, scoring.ErrNotFound)
	}
	return a, nil
}

func (m *MemoryStore) ListAnswers(_ context.Context, attemptID string) ([]UserAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]UserAnswer, 0, len(m.byAttempt[attemptID]))
	for _, id := range m.byAttempt[attemptID] {
		out = append(out, m.answers[id])
	}
	return out, nil
}

func (m *MemoryStore) ListMistakes(_ context.Context, userID string) ([]MistakeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MistakeEntry, 0, len(m.mistakes[userID]))
	for _, e := range m.mistakes[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// --- scoring collaborators ---

func (m *MemoryStore) GetAttemptRef(_ context.Context, attemptID string) (scoring.AttemptRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return scoring.AttemptRef{}, scoring.ErrNotFound
	}
	return scoring.AttemptRef{ID: a.ID, ExamID: a.ExamID, Status: a.Status}, nil
}

func (m *MemoryStore) ListGradedAnswers(_ context.Context, attemptID string) ([]scoring.GradedAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]scoring.GradedAnswer, 0, len(m.byAttempt[attemptID]))
	for _, id := range m.byAttempt[attemptID] {
		ua := m.answers[id]
		ga := scoring.GradedAnswer{AnswerID: ua.ID, QuestionID: ua.QuestionID, IsCorrect: ua.IsCorrect, Points: 1}
		if q, ok := m.questions[ua.QuestionID]; ok {
			ga.ModuleID = q.ModuleID
			ga.Points = q.PointValue()
		} else {
			ga.Invalid = true
		}
		out = append(out, ga)
	}
	return out, nil
}

func (m *MemoryStore) GetTemplate(_ context.Context, examID string) (scoring.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[examID]
	if !ok {
		return scoring.Template{}, fmt.Errorf("exam %s: %w", examID, scoring.ErrNotFound)
	}
	t, ok := m.templates[e.TemplateID]
	if !ok {
		return scoring.Template{}, scoring.ErrNotConfigured
	}
	return t, nil
}

func (m *MemoryStore) GetCurve(_ context.Context, examID, section string) (scoring.Curve, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.examCurves[curveKey{examID, section}]
	if !ok {
		return scoring.Curve{}, scoring.ErrNotConfigured
	}
	c, ok := m.curves[id]
	if !ok {
		return scoring.Curve{}, scoring.ErrNotConfigured
	}
	return c, nil
}

func (m *MemoryStore) GetAnswerState(_ context.Context, answerID string) (scoring.AnswerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ua, ok := m.answers[answerID]
	if !ok {
		return scoring.AnswerState{}, scoring.ErrNotFound
	}
	return scoring.AnswerState{
		AnswerID: ua.ID, AttemptID: ua.AttemptID, IsCorrect: ua.IsCorrect,
		AttemptStatus: m.attempts[ua.AttemptID].Status,
	}, nil
}

func (m *MemoryStore) SetAnswerCorrect(_ context.Context, answerID string, isCorrect bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ua, ok := m.answers[answerID]
	if !ok {
		return scoring.ErrNotFound
	}
	ua.IsCorrect = isCorrect
	m.answers[answerID] = ua
	return nil
}

func (m *MemoryStore) SaveScores(_ context.Context, r scoring.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[r.AttemptID]
	if !ok {
		return fmt.Errorf("attempt %s: %w", r.AttemptID, scoring.ErrNotFound)
	}
	total := r.Overall
	a.TotalScore = &total
	a.FinalScores = &r
	m.attempts[r.AttemptID] = a
	return nil
}

func (m *MemoryStore) RecordRegrade(_ context.Context, rec scoring.RegradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, rec)
	return nil
}

// RegradeHistory returns the recorded overrides, oldest first.
func (m *MemoryStore) RegradeHistory() []scoring.RegradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]scoring.RegradeRecord(nil), m.history...)
}

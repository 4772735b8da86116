package scoring_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

/* ---------------- In-memory fake that satisfies every scoring collaborator ---------------- */

type fakeStore struct {
	mu        sync.Mutex
	attempts  map[string]scoring.AttemptRef
	answers   map[string][]scoring.GradedAnswer // attemptID -> answers
	templates map[string]scoring.Template       // examID -> template
	curves    map[string]scoring.Curve          // examID|section -> curve
	saved     map[string]scoring.Result
	history   []scoring.RegradeRecord

	answersErr error
	curveErr   error
	saveErr    error
	curveDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attempts:  map[string]scoring.AttemptRef{},
		answers:   map[string][]scoring.GradedAnswer{},
		templates: map[string]scoring.Template{},
		curves:    map[string]scoring.Curve{},
		saved:     map[string]scoring.Result{},
	}
}

func (s *fakeStore) GetAttemptRef(_ context.Context, id string) (scoring.AttemptRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return scoring.AttemptRef{}, scoring.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) ListGradedAnswers(_ context.Context, attemptID string) ([]scoring.GradedAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answersErr != nil {
		return nil, s.answersErr
	}
	out := make([]scoring.GradedAnswer, len(s.answers[attemptID]))
	copy(out, s.answers[attemptID])
	return out, nil
}

func (s *fakeStore) GetTemplate(_ context.Context, examID string) (scoring.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[examID]
	if !ok {
		return scoring.Template{}, scoring.ErrNotConfigured
	}
	return t, nil
}

func (s *fakeStore) GetCurve(ctx context.Context, examID, section string) (scoring.Curve, error) {
	if s.curveDelay > 0 {
		select {
		case <-time.After(s.curveDelay):
		case <-ctx.Done():
			return scoring.Curve{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curveErr != nil {
		return scoring.Curve{}, s.curveErr
	}
	c, ok := s.curves[examID+"|"+section]
	if !ok {
		return scoring.Curve{}, scoring.ErrNotConfigured
	}
	return c, nil
}

func (s *fakeStore) GetAnswerState(_ context.Context, answerID string) (scoring.AnswerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for attemptID, list := range s.answers {
		for _, a := range list {
			if a.AnswerID == answerID {
				return scoring.AnswerState{
					AnswerID: answerID, AttemptID: attemptID, IsCorrect: a.IsCorrect,
					AttemptStatus: s.attempts[attemptID].Status,
				}, nil
			}
		}
	}
	return scoring.AnswerState{}, scoring.ErrNotFound
}

func (s *fakeStore) SetAnswerCorrect(_ context.Context, answerID string, isCorrect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for attemptID, list := range s.answers {
		for i := range list {
			if list[i].AnswerID == answerID {
				s.answers[attemptID][i].IsCorrect = isCorrect
				return nil
			}
		}
	}
	return scoring.ErrNotFound
}

func (s *fakeStore) SaveScores(_ context.Context, res scoring.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[res.AttemptID] = res
	return nil
}

func (s *fakeStore) RecordRegrade(_ context.Context, rec scoring.RegradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

func (s *fakeStore) sources() scoring.Sources {
	return scoring.Sources{Attempts: s, Answers: s, Templates: s, Curves: s}
}

var quietLogger = log.New(io.Discard, "", 0)

// seedMath sets up the single-question math exam: one correct answer in math1
// and a curve mapping raw 1 to 800.
func seedMath(s *fakeStore) {
	s.attempts["att-1"] = scoring.AttemptRef{ID: "att-1", ExamID: "exam-1", Status: scoring.StatusCompleted}
	s.templates["exam-1"] = scoring.Template{Sections: []scoring.Section{{Name: "math", Modules: []string{"math1"}}}}
	s.answers["att-1"] = []scoring.GradedAnswer{{AnswerID: "ans-1", QuestionID: "q-1", ModuleID: "math1", Points: 1, IsCorrect: true}}
	s.curves["exam-1|math"] = scoring.Curve{ID: "c-math", Points: []scoring.Point{{Raw: 0, Lower: 200, Upper: 200}, {Raw: 1, Lower: 800, Upper: 800}}}
}

/* ---------------- Tests ---------------- */

func TestComputeFinalScores_EndToEnd(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	svc := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger))

	res, err := svc.ComputeFinalScores(context.Background(), "att-1")
	if err != nil {
		t.Fatalf("ComputeFinalScores: %v", err)
	}
	if res.Raw["math"] != 1 {
		t.Errorf("raw math = %d, want 1", res.Raw["math"])
	}
	if res.Sections["math"] != 800 {
		t.Errorf("scaled math = %d, want 800", res.Sections["math"])
	}
	if res.Overall != 800 {
		t.Errorf("overall = %d, want 800", res.Overall)
	}
	if res.Modules["math1"] != 1 {
		t.Errorf("module math1 = %d, want 1", res.Modules["math1"])
	}
}

func TestComputeFinalScores_TwoSectionsSumToOverall(t *testing.T) {
	s := newFakeStore()
	s.attempts["a"] = scoring.AttemptRef{ID: "a", ExamID: "sat"}
	s.templates["sat"] = scoring.Template{Sections: []scoring.Section{
		{Name: "english", Modules: []string{"english1", "english2"}},
		{Name: "math", Modules: []string{"math1", "math2"}},
	}}
	s.answers["a"] = []scoring.GradedAnswer{
		{AnswerID: "1", ModuleID: "english1", Points: 1, IsCorrect: true},
		{AnswerID: "2", ModuleID: "english2", Points: 1, IsCorrect: true},
		{AnswerID: "3", ModuleID: "math2", Points: 1, IsCorrect: true},
		{AnswerID: "4", ModuleID: "math1", Points: 1, IsCorrect: false},
	}
	s.curves["sat|english"] = scoring.Curve{Points: []scoring.Point{{0, 200, 200}, {1, 300, 320}, {2, 400, 420}}}
	s.curves["sat|math"] = scoring.Curve{Points: []scoring.Point{{0, 200, 200}, {1, 500, 500}}}

	res, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "a")
	if err != nil {
		t.Fatalf("ComputeFinalScores: %v", err)
	}
	if res.Sections["english"] != 410 || res.Sections["math"] != 500 || res.Overall != 910 {
		t.Errorf("got %+v, want english=410 math=500 overall=910", res)
	}
}

func TestComputeFinalScores_Idempotent(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	svc := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger))

	first, err := svc.ComputeFinalScores(context.Background(), "att-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.ComputeFinalScores(context.Background(), "att-1")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprintf("%+v", first) != fmt.Sprintf("%+v", second) {
		t.Errorf("recompute differs:\n%+v\n%+v", first, second)
	}
}

func TestComputeFinalScores_NoTemplateIsConfigError(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	delete(s.templates, "exam-1")

	_, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "att-1")
	if !scoring.IsConfigError(err) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestComputeFinalScores_EmptyTemplateIsConfigError(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.templates["exam-1"] = scoring.Template{}

	_, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "att-1")
	if !scoring.IsConfigError(err) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestComputeFinalScores_InvertedCurveIsConfigError(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.curves["exam-1|math"] = scoring.Curve{Points: []scoring.Point{{Raw: 5, Lower: 600, Upper: 500}}}

	res, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "att-1")
	if !scoring.IsConfigError(err) {
		t.Fatalf("want config error, got %v (result %+v)", err, res)
	}
}

func TestComputeFinalScores_MissingCurveOmitsSection(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.templates["exam-1"] = scoring.Template{Sections: []scoring.Section{
		{Name: "english", Modules: []string{"english1"}},
		{Name: "math", Modules: []string{"math1"}},
	}}

	res, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "att-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Sections["english"]; ok {
		t.Errorf("english has no curve and should be omitted: %+v", res.Sections)
	}
	if res.Overall != 800 {
		t.Errorf("overall = %d, want 800", res.Overall)
	}
	if len(res.Issues) != 1 || res.Issues[0].Kind != scoring.IssueMissingCurve {
		t.Errorf("issues = %+v, want one missing_curve", res.Issues)
	}
}

func TestComputeFinalScores_InvalidAnswers(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	for i := 0; i < 9; i++ {
		s.answers["att-1"] = append(s.answers["att-1"], scoring.GradedAnswer{AnswerID: fmt.Sprintf("w%d", i), ModuleID: "math1", Points: 1})
	}
	s.answers["att-1"] = append(s.answers["att-1"], scoring.GradedAnswer{AnswerID: "broken", ModuleID: "  ", IsCorrect: true})

	// 1 of 11 is under the default 10% limit
	res, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "att-1")
	if err != nil {
		t.Fatalf("1 invalid of 11 should score: %v", err)
	}
	if res.Raw["math"] != 1 {
		t.Errorf("raw math = %d, want 1", res.Raw["math"])
	}
	if len(res.Issues) != 1 || res.Issues[0].AnswerID != "broken" {
		t.Errorf("issues = %+v", res.Issues)
	}

	// a stricter limit turns it into a hard failure
	_, err = scoring.NewService(s.sources(), scoring.WithLogger(quietLogger), scoring.WithMaxInvalidFraction(0)).
		ComputeFinalScores(context.Background(), "att-1")
	var dq *scoring.DataQualityError
	if !errors.As(err, &dq) || dq.Invalid != 1 || dq.Total != 11 {
		t.Fatalf("want data quality error 1/11, got %v", err)
	}
}

func TestComputeFinalScores_UnmatchedModuleIsReported(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.answers["att-1"] = append(s.answers["att-1"], scoring.GradedAnswer{AnswerID: "x", ModuleID: "reading9", Points: 1, IsCorrect: true})

	res, err := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger)).ComputeFinalScores(context.Background(), "att-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Overall != 800 {
		t.Errorf("overall = %d, want 800", res.Overall)
	}
	if len(res.Issues) != 1 || res.Issues[0].Kind != scoring.IssueUnmatchedModule {
		t.Errorf("issues = %+v", res.Issues)
	}
}

func TestComputeFinalScores_FetchFailuresFailTheRun(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.answersErr = errors.New("db down")
	svc := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger))
	if _, err := svc.ComputeFinalScores(context.Background(), "att-1"); err == nil {
		t.Fatal("answers failure must fail the run")
	}

	s.answersErr = nil
	s.curveErr = errors.New("timeout")
	if _, err := svc.ComputeFinalScores(context.Background(), "att-1"); err == nil {
		t.Fatal("curve fetch failure must fail the run")
	}

	if _, err := svc.ComputeFinalScores(context.Background(), "missing"); !errors.Is(err, scoring.ErrNotFound) {
		t.Fatalf("unknown attempt: got %v", err)
	}
}

func TestComputeFinalScores_FetchTimeout(t *testing.T) {
	s := newFakeStore()
	seedMath(s)
	s.curveDelay = time.Second
	svc := scoring.NewService(s.sources(), scoring.WithLogger(quietLogger), scoring.WithFetchTimeout(20*time.Millisecond))

	_, err := svc.ComputeFinalScores(context.Background(), "att-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

package exam_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-scoring/internal/db"
	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

type storeCase struct {
	name string
	open func(t *testing.T) (exam.Store, func(questionID string))
}

func storeCases() []storeCase {
	return []storeCase{
		{"memory", func(t *testing.T) (exam.Store, func(string)) {
			st := exam.NewMemoryStore(nil)
			return st, st.DeleteQuestion
		}},
		{"sqlite", func(t *testing.T) (exam.Store, func(string)) {
			conn, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { conn.Close() })
			drop := func(id string) {
				_, err := conn.Exec(`DELETE FROM questions WHERE id=$1`, id)
				require.NoError(t, err)
			}
			return exam.NewSQLStore(conn, "sqlite", nil), drop
		}},
	}
}

func intp(n int) *int { return &n }

// seedSAT builds a two-section exam with three questions:
// english1 multiple choice, math1 grid-in (double-encoded key), math2 short answer.
func seedSAT(t *testing.T, st exam.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.PutTemplate(ctx, scoring.Template{ID: "sat", Name: "SAT", Sections: []scoring.Section{
		{Name: "english", Modules: []string{"english1", "english2"}},
		{Name: "math", Modules: []string{"math1", "math2"}},
	}}))
	require.NoError(t, st.PutExam(ctx, exam.Exam{ID: "exam-1", Title: "Practice 1", TemplateID: "sat"}))

	qs := []exam.Question{
		{ID: "q1", ExamID: "exam-1", ModuleID: "english1", Type: "multiple_choice", Points: intp(1), CorrectAnswers: json.RawMessage(`"B"`)},
		{ID: "q2", ExamID: "exam-1", ModuleID: "math1", Type: "grid_in", CorrectAnswers: json.RawMessage(`"[\"3/4\",\"0.75\"]"`)},
		{ID: "q3", ExamID: "exam-1", ModuleID: "math2", Type: "short_answer", CorrectAnswers: json.RawMessage(`["seven","7"]`)},
	}
	for _, q := range qs {
		require.NoError(t, st.PutQuestion(ctx, q))
	}

	require.NoError(t, st.PutCurve(ctx, scoring.Curve{ID: "eng", Points: []scoring.Point{{Raw: 0, Lower: 200, Upper: 200}, {Raw: 1, Lower: 400, Upper: 420}}}))
	require.NoError(t, st.PutCurve(ctx, scoring.Curve{ID: "math", Points: []scoring.Point{{Raw: 0, Lower: 200, Upper: 200}, {Raw: 1, Lower: 500, Upper: 500}, {Raw: 2, Lower: 800, Upper: 800}}}))
	require.NoError(t, st.AssignCurve(ctx, "exam-1", "english", "eng"))
	require.NoError(t, st.AssignCurve(ctx, "exam-1", "math", "math"))
}

func answerIDFor(t *testing.T, st exam.Store, attemptID, questionID string) string {
	t.Helper()
	list, err := st.ListAnswers(context.Background(), attemptID)
	require.NoError(t, err)
	for _, a := range list {
		if a.QuestionID == questionID {
			return a.ID
		}
	}
	t.Fatalf("no answer for %s", questionID)
	return ""
}

func TestStore_AttemptLifecycleAndScoring(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st, _ := tc.open(t)
			seedSAT(t, st)

			att, err := st.NewAttempt(ctx, "exam-1", "stu-1")
			require.NoError(t, err)
			assert.Equal(t, exam.StatusInProgress, att.Status)

			ua, err := st.SubmitAnswer(ctx, att.ID, "q1", " b ")
			require.NoError(t, err)
			assert.True(t, ua.IsCorrect)

			ua, err = st.SubmitAnswer(ctx, att.ID, "q2", "6/8")
			require.NoError(t, err)
			assert.True(t, ua.IsCorrect, "6/8 is equivalent to 3/4")

			_, err = st.SubmitAnswer(ctx, att.ID, "q3", "seven")
			require.NoError(t, err)
			// answering again replaces the earlier answer
			ua, err = st.SubmitAnswer(ctx, att.ID, "q3", "eight")
			require.NoError(t, err)
			assert.False(t, ua.IsCorrect)

			list, err := st.ListAnswers(ctx, att.ID)
			require.NoError(t, err)
			assert.Len(t, list, 3)

			_, err = st.SubmitAnswer(ctx, att.ID, "nope", "x")
			assert.True(t, errors.Is(err, scoring.ErrNotFound))

			done, err := st.CompleteAttempt(ctx, att.ID)
			require.NoError(t, err)
			assert.Equal(t, exam.StatusCompleted, done.Status)
			_, err = st.CompleteAttempt(ctx, att.ID)
			require.NoError(t, err, "completing twice is a no-op")

			_, err = st.SubmitAnswer(ctx, att.ID, "q1", "A")
			assert.ErrorIs(t, err, exam.ErrAttemptClosed)

			mistakes, err := st.ListMistakes(ctx, "stu-1")
			require.NoError(t, err)
			require.Len(t, mistakes, 1)
			assert.Equal(t, "q3", mistakes[0].QuestionID)
			assert.Equal(t, exam.MistakeUnmastered, mistakes[0].Status)

			svc := scoring.NewService(exam.Sources(st), scoring.WithLogger(log.New(io.Discard, "", 0)))
			res, err := svc.ComputeFinalScores(ctx, att.ID)
			require.NoError(t, err)
			assert.Equal(t, map[string]int{"english": 410, "math": 500}, res.Sections)
			assert.Equal(t, 910, res.Overall)
			assert.Equal(t, map[string]int{"english1": 1, "math1": 1}, res.Modules)

			require.NoError(t, st.SaveScores(ctx, res))
			got, err := st.GetAttempt(ctx, att.ID)
			require.NoError(t, err)
			require.NotNil(t, got.TotalScore)
			assert.Equal(t, 910, *got.TotalScore)
			require.NotNil(t, got.FinalScores)
			assert.Equal(t, res.Sections, got.FinalScores.Sections)

			// admin override of q3 moves math to raw 2
			rg := scoring.NewRegrader(svc, st, st, st)
			out, err := rg.Regrade(ctx, scoring.RegradeCommand{AnswerID: answerIDFor(t, st, att.ID, "q3"), IsCorrect: true, Reason: "alternate spelling", AdminID: "admin"})
			require.NoError(t, err)
			assert.Equal(t, 800, out.Scores.Sections["math"])
			assert.Equal(t, 1210, out.Scores.Overall)

			got, err = st.GetAttempt(ctx, att.ID)
			require.NoError(t, err)
			assert.Equal(t, 1210, *got.TotalScore)
		})
	}
}

func TestStore_ScoringCollaborators(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st, dropQuestion := tc.open(t)
			seedSAT(t, st)

			tpl, err := st.GetTemplate(ctx, "exam-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"english", "math"}, tpl.SectionNames())

			c, err := st.GetCurve(ctx, "exam-1", "math")
			require.NoError(t, err)
			assert.Len(t, c.Points, 3)

			_, err = st.GetCurve(ctx, "exam-1", "reading")
			assert.ErrorIs(t, err, scoring.ErrNotConfigured)

			require.NoError(t, st.PutExam(ctx, exam.Exam{ID: "bare", Title: "No template"}))
			_, err = st.GetTemplate(ctx, "bare")
			assert.ErrorIs(t, err, scoring.ErrNotConfigured)

			assert.ErrorIs(t, st.AssignCurve(ctx, "exam-1", "math", "missing"), scoring.ErrNotFound)

			att, err := st.NewAttempt(ctx, "exam-1", "stu-2")
			require.NoError(t, err)
			_, err = st.SubmitAnswer(ctx, att.ID, "q1", "B")
			require.NoError(t, err)
			_, err = st.SubmitAnswer(ctx, att.ID, "q3", "7")
			require.NoError(t, err)

			dropQuestion("q3")
			graded, err := st.ListGradedAnswers(ctx, att.ID)
			require.NoError(t, err)
			require.Len(t, graded, 2)
			byQ := map[string]scoring.GradedAnswer{}
			for _, g := range graded {
				byQ[g.QuestionID] = g
			}
			assert.False(t, byQ["q1"].Invalid)
			assert.Equal(t, "english1", byQ["q1"].ModuleID)
			assert.Equal(t, 1, byQ["q1"].Points)
			assert.True(t, byQ["q3"].Invalid, "answer to a deleted question is invalid")

			state, err := st.GetAnswerState(ctx, byQ["q1"].AnswerID)
			require.NoError(t, err)
			assert.Equal(t, exam.StatusInProgress, state.AttemptStatus)
			assert.True(t, state.IsCorrect)

			_, err = st.GetAttemptRef(ctx, "missing")
			assert.ErrorIs(t, err, scoring.ErrNotFound)
			assert.ErrorIs(t, st.SetAnswerCorrect(ctx, "missing", true), scoring.ErrNotFound)
		})
	}
}

func TestStore_RejectsBadConfig(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st, _ := tc.open(t)
			assert.True(t, scoring.IsConfigError(st.PutTemplate(ctx, scoring.Template{ID: "empty"})))
			assert.True(t, scoring.IsConfigError(st.PutCurve(ctx, scoring.Curve{ID: "inv", Points: []scoring.Point{{Raw: 1, Lower: 600, Upper: 500}}})))
			_, err := st.NewAttempt(ctx, "missing", "u")
			assert.ErrorIs(t, err, scoring.ErrNotFound)
		})
	}
}

func TestSQLStore_RegradeHistoryRow(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	st := exam.NewSQLStore(conn, "sqlite", nil)
	require.NoError(t, st.RecordRegrade(ctx, scoring.RegradeRecord{
		AnswerID: "a1", AttemptID: "att", AdminID: "admin", Reason: "typo in key", OldIsCorrect: false, NewIsCorrect: true,
	}))

	var (
		reason string
		newVal bool
	)
	err = conn.QueryRow(`SELECT reason, new_is_correct FROM regrade_history WHERE user_answer_id=$1`, "a1").Scan(&reason, &newVal)
	require.NoError(t, err)
	assert.Equal(t, "typo in key", reason)
	assert.True(t, newVal)

	err = conn.QueryRow(`SELECT reason FROM regrade_history WHERE user_answer_id=$1`, "zzz").Scan(&reason)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

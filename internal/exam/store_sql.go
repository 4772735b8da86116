package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-scoring/internal/grading"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	grader grading.Grader
}

func NewSQLStore(db *sql.DB, driver string, grader grading.Grader) *SQLStore {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	return &SQLStore{db: db, driver: driver, grader: grader}
}

/* ---------------- Authoring ---------------- */

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("exam id is required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO exams (id,title,template_id,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, template_id=EXCLUDED.template_id`,
		e.ID, e.Title, nullIfEmpty(e.TemplateID), time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	var e Exam
	var tpl sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id,title,template_id,created_at FROM exams WHERE id=$1`, id).
		Scan(&e.ID, &e.Title, &tpl, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, fmt.Errorf("exam %s: %w", id, scoring.ErrNotFound)
	}
	e.TemplateID = tpl.String
	return e, err
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.ExamID) == "" {
		return errors.New("question id and exam id are required")
	}
	var points sql.NullInt64
	if q.Points != nil {
		points = sql.NullInt64{Int64: int64(*q.Points), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions (id,exam_id,module_id,type,points,correct_answers)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET exam_id=EXCLUDED.exam_id, module_id=EXCLUDED.module_id,
			type=EXCLUDED.type, points=EXCLUDED.points, correct_answers=EXCLUDED.correct_answers`,
		q.ID, q.ExamID, nullIfEmpty(q.ModuleID), q.Type, points, string(q.CorrectAnswers))
	return err
}

func (s *SQLStore) PutTemplate(ctx context.Context, t scoring.Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("template id is required")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	secs, err := scoring.SectionsJSON(t.Sections)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scoring_templates (id,name,sections,updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, sections=EXCLUDED.sections, updated_at=EXCLUDED.updated_at`,
		t.ID, t.Name, string(secs), time.Now().Unix())
	return err
}

func (s *SQLStore) PutCurve(ctx context.Context, c scoring.Curve) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("curve id is required")
	}
	if err := scoring.ValidateCurve(c.Points); err != nil {
		return err
	}
	data, err := json.Marshal(c.Points)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scoring_curves (id,name,curve_data,updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, curve_data=EXCLUDED.curve_data, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Name, string(data), time.Now().Unix())
	return err
}

func (s *SQLStore) AssignCurve(ctx context.Context, examID, section, curveID string) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM scoring_curves WHERE id=$1`, curveID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("curve %s: %w", curveID, scoring.ErrNotFound)
		}
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO exam_curves (exam_id,section,curve_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (exam_id,section) DO UPDATE SET curve_id=EXCLUDED.curve_id`,
		examID, section, curveID)
	return err
}

/* ---------------- Attempts ---------------- */

func (s *SQLStore) NewAttempt(ctx context.Context, examID, userID string) (Attempt, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return Attempt{}, err
	}
	a := Attempt{ID: uuid.NewString(), ExamID: examID, UserID: userID, Status: StatusInProgress, StartedAt: time.Now().Unix()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,exam_id,user_id,status,started_at)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.ExamID, a.UserID, a.Status, a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SubmitAnswer(ctx context.Context, attemptID, questionID, answer string) (UserAnswer, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return UserAnswer{}, err
	}
	if a.Status != StatusInProgress {
		return UserAnswer{}, ErrAttemptClosed
	}

	var (
		q      Question
		points sql.NullInt64
		key    sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `SELECT id,type,points,correct_answers FROM questions WHERE id=$1 AND exam_id=$2`,
		questionID, a.ExamID).Scan(&q.ID, &q.Type, &points, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return UserAnswer{}, fmt.Errorf("question %s: %w", questionID, scoring.ErrNotFound)
	}
	if err != nil {
		return UserAnswer{}, err
	}
	if points.Valid {
		p := int(points.Int64)
		q.Points = &p
	}
	q.CorrectAnswers = json.RawMessage(key.String)

	ua := UserAnswer{
		ID: uuid.NewString(), AttemptID: attemptID, QuestionID: questionID, Answer: answer,
		IsCorrect: gradeAnswer(ctx, s.grader, q, answer), CreatedAt: time.Now().Unix(),
	}
	err = s.db.QueryRowContext(ctx, `INSERT INTO user_answers (id,attempt_id,question_id,answer,is_correct,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (attempt_id,question_id) DO UPDATE SET answer=EXCLUDED.answer, is_correct=EXCLUDED.is_correct
		RETURNING id`,
		ua.ID, ua.AttemptID, ua.QuestionID, ua.Answer, ua.IsCorrect, ua.CreatedAt).Scan(&ua.ID)
	if err != nil {
		return UserAnswer{}, err
	}
	return ua, nil
}

func (s *SQLStore) CompleteAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	var userID, status string
	err = tx.QueryRowContext(ctx, `SELECT user_id,status FROM attempts WHERE id=$1`, attemptID).Scan(&userID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, scoring.ErrNotFound)
	}
	if err != nil {
		return Attempt{}, err
	}
	if status == StatusCompleted {
		_ = tx.Rollback()
		return s.GetAttempt(ctx, attemptID)
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, completed_at=$2 WHERE id=$3`,
		StatusCompleted, now, attemptID); err != nil {
		return Attempt{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO mistake_bank (user_id,question_id,attempt_id,status,updated_at)
		SELECT CAST($1 AS TEXT), question_id, attempt_id, CAST($2 AS TEXT), CAST($3 AS BIGINT)
		FROM user_answers WHERE attempt_id=$4 AND is_correct=$5
		ON CONFLICT (user_id,question_id) DO UPDATE SET attempt_id=EXCLUDED.attempt_id, status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
		userID, MistakeUnmastered, now, attemptID, false); err != nil {
		return Attempt{}, fmt.Errorf("mistake bank: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	var (
		a         Attempt
		total     sql.NullInt64
		finalJSON sql.NullString
		completed sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id,exam_id,user_id,status,total_score,final_scores,started_at,completed_at
		FROM attempts WHERE id=$1`, id).
		Scan(&a.ID, &a.ExamID, &a.UserID, &a.Status, &total, &finalJSON, &a.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, scoring.ErrNotFound)
	}
	if err != nil {
		return Attempt{}, err
	}
	if total.Valid {
		t := int(total.Int64)
		a.TotalScore = &t
	}
	if finalJSON.Valid && finalJSON.String != "" {
		var r scoring.Result
		if err := json.Unmarshal([]byte(finalJSON.String), &r); err != nil {
			log.Printf("exam: attempt %s has unreadable final_scores: %v", id, err)
		} else {
			a.FinalScores = &r
		}
	}
	a.CompletedAt = completed.Int64
	return a, nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]UserAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,attempt_id,question_id,answer,is_correct,created_at
		FROM user_answers WHERE attempt_id=$1 ORDER BY created_at, id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserAnswer
	for rows.Next() {
		var ua UserAnswer
		if err := rows.Scan(&ua.ID, &ua.AttemptID, &ua.QuestionID, &ua.Answer, &ua.IsCorrect, &ua.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListMistakes(ctx context.Context, userID string) ([]MistakeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id,question_id,attempt_id,status
		FROM mistake_bank WHERE user_id=$1 ORDER BY question_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MistakeEntry
	for rows.Next() {
		var m MistakeEntry
		if err := rows.Scan(&m.UserID, &m.QuestionID, &m.AttemptID, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

/* ---------------- Scoring collaborators ---------------- */

func (s *SQLStore) GetAttemptRef(ctx context.Context, attemptID string) (scoring.AttemptRef, error) {
	var ref scoring.AttemptRef
	err := s.db.QueryRowContext(ctx, `SELECT id,exam_id,status FROM attempts WHERE id=$1`, attemptID).
		Scan(&ref.ID, &ref.ExamID, &ref.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.AttemptRef{}, scoring.ErrNotFound
	}
	return ref, err
}

// ListGradedAnswers joins answers to their questions. An answer whose
// question row is gone comes back marked Invalid.
func (s *SQLStore) ListGradedAnswers(ctx context.Context, attemptID string) ([]scoring.GradedAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ua.id, ua.question_id, ua.is_correct, q.id, q.module_id, q.points
		FROM user_answers ua LEFT JOIN questions q ON q.id = ua.question_id
		WHERE ua.attempt_id=$1 ORDER BY ua.created_at, ua.id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []scoring.GradedAnswer
	for rows.Next() {
		var (
			ga       scoring.GradedAnswer
			joinedID sql.NullString
			moduleID sql.NullString
			points   sql.NullInt64
		)
		if err := rows.Scan(&ga.AnswerID, &ga.QuestionID, &ga.IsCorrect, &joinedID, &moduleID, &points); err != nil {
			return nil, err
		}
		ga.Invalid = !joinedID.Valid
		ga.ModuleID = moduleID.String
		ga.Points = 1
		if points.Valid {
			ga.Points = int(points.Int64)
		}
		out = append(out, ga)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetTemplate(ctx context.Context, examID string) (scoring.Template, error) {
	var (
		tplID    sql.NullString
		name     sql.NullString
		sections sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT e.template_id, t.name, t.sections
		FROM exams e LEFT JOIN scoring_templates t ON t.id = e.template_id
		WHERE e.id=$1`, examID).Scan(&tplID, &name, &sections)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.Template{}, fmt.Errorf("exam %s: %w", examID, scoring.ErrNotFound)
	}
	if err != nil {
		return scoring.Template{}, err
	}
	if !tplID.Valid || !sections.Valid {
		return scoring.Template{}, scoring.ErrNotConfigured
	}
	secs, err := scoring.ParseSections([]byte(sections.String))
	if err != nil {
		return scoring.Template{}, &scoring.ConfigError{Scope: "template", Reason: err.Error()}
	}
	return scoring.Template{ID: tplID.String, Name: name.String, Sections: secs}, nil
}

func (s *SQLStore) GetCurve(ctx context.Context, examID, section string) (scoring.Curve, error) {
	var c scoring.Curve
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT c.id, c.name, c.curve_data
		FROM exam_curves ec JOIN scoring_curves c ON c.id = ec.curve_id
		WHERE ec.exam_id=$1 AND ec.section=$2`, examID, section).Scan(&c.ID, &c.Name, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.Curve{}, scoring.ErrNotConfigured
	}
	if err != nil {
		return scoring.Curve{}, err
	}
	pts, err := scoring.ParseCurve([]byte(data))
	if err != nil {
		return scoring.Curve{}, err
	}
	c.Points = pts
	return c, nil
}

func (s *SQLStore) GetAnswerState(ctx context.Context, answerID string) (scoring.AnswerState, error) {
	var st scoring.AnswerState
	err := s.db.QueryRowContext(ctx, `SELECT ua.id, ua.attempt_id, ua.is_correct, a.status
		FROM user_answers ua JOIN attempts a ON a.id = ua.attempt_id
		WHERE ua.id=$1`, answerID).Scan(&st.AnswerID, &st.AttemptID, &st.IsCorrect, &st.AttemptStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.AnswerState{}, scoring.ErrNotFound
	}
	return st, err
}

func (s *SQLStore) SetAnswerCorrect(ctx context.Context, answerID string, isCorrect bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE user_answers SET is_correct=$1 WHERE id=$2`, isCorrect, answerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return scoring.ErrNotFound
	}
	return nil
}

func (s *SQLStore) SaveScores(ctx context.Context, r scoring.Result) error {
	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET total_score=$1, final_scores=$2 WHERE id=$3`,
		r.Overall, string(buf), r.AttemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attempt %s: %w", r.AttemptID, scoring.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) RecordRegrade(ctx context.Context, rec scoring.RegradeRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO regrade_history
		(id,user_answer_id,attempt_id,admin_id,old_is_correct,new_is_correct,reason,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(), rec.AnswerID, rec.AttemptID, rec.AdminID, rec.OldIsCorrect, rec.NewIsCorrect, rec.Reason, time.Now().Unix())
	return err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// AttemptRef is the minimal attempt view the scorer needs.
type AttemptRef struct {
	ID     string
	ExamID string
	Status string
}

// Collaborators. Implementations must be read-only for these calls.
type (
	AttemptSource interface {
		GetAttemptRef(ctx context.Context, attemptID string) (AttemptRef, error)
	}
	AnswerSource interface {
		ListGradedAnswers(ctx context.Context, attemptID string) ([]GradedAnswer, error)
	}
	// TemplateSource returns ErrNotConfigured when the exam has no template.
	TemplateSource interface {
		GetTemplate(ctx context.Context, examID string) (Template, error)
	}
	// CurveSource returns ErrNotConfigured when the section has no curve.
	CurveSource interface {
		GetCurve(ctx context.Context, examID, section string) (Curve, error)
	}
)

// Sources bundles the stores a Service reads from.
type Sources struct {
	Attempts  AttemptSource
	Answers   AnswerSource
	Templates TemplateSource
	Curves    CurveSource
}

// Issue kinds reported alongside a result.
const (
	IssueInvalidAnswer   = "invalid_answer"
	IssueUnmatchedModule = "unmatched_module"
	IssueMissingCurve    = "missing_curve"
)

// Issue is a data-quality note that did not block scoring.
type Issue struct {
	Kind       string `json:"kind"`
	AnswerID   string `json:"answer_id,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	ModuleID   string `json:"module_id,omitempty"`
	Section    string `json:"section,omitempty"`
}

// Result is the score of one attempt. Sections without a curve are absent
// from Sections and do not count toward Overall.
type Result struct {
	AttemptID string         `json:"attempt_id"`
	ExamID    string         `json:"exam_id"`
	Overall   int            `json:"overall"`
	Sections  map[string]int `json:"sections"`
	Raw       map[string]int `json:"raw"`
	Modules   map[string]int `json:"modules"`
	Issues    []Issue        `json:"issues,omitempty"`
}

// DefaultMaxInvalidFraction is the share of broken answers tolerated before a
// run is refused.
const DefaultMaxInvalidFraction = 0.10

type Service struct {
	src          Sources
	maxInvalid   float64
	fetchTimeout time.Duration
	logger       *log.Logger
}

type Option func(*Service)

func WithMaxInvalidFraction(f float64) Option { return func(s *Service) { s.maxInvalid = f } }
func WithFetchTimeout(d time.Duration) Option  { return func(s *Service) { s.fetchTimeout = d } }
func WithLogger(l *log.Logger) Option          { return func(s *Service) { s.logger = l } }

func NewService(src Sources, opts ...Option) *Service {
	s := &Service{
		src:        src,
		maxInvalid: DefaultMaxInvalidFraction,
		logger:     log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ComputeFinalScores scores an attempt from the current state of its answers.
// It has no side effects, so it is safe to call again after a regrade. Any
// failed fetch or configuration problem fails the whole run; there are no
// partial results.
func (s *Service) ComputeFinalScores(ctx context.Context, attemptID string) (Result, error) {
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return Result{}, errors.New("attempt id is required")
	}
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	ref, err := s.src.Attempts.GetAttemptRef(ctx, attemptID)
	if err != nil {
		return Result{}, fmt.Errorf("attempt %s: %w", attemptID, err)
	}

	var (
		tpl     Template
		answers []GradedAnswer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.src.Templates.GetTemplate(gctx, ref.ExamID)
		if errors.Is(err, ErrNotConfigured) {
			return &ConfigError{Scope: "template", Reason: fmt.Sprintf("exam %s has no scoring template assigned", ref.ExamID)}
		}
		if err != nil {
			return fmt.Errorf("template for exam %s: %w", ref.ExamID, err)
		}
		tpl = t
		return nil
	})
	g.Go(func() error {
		a, err := s.src.Answers.ListGradedAnswers(gctx, attemptID)
		if err != nil {
			return fmt.Errorf("answers for attempt %s: %w", attemptID, err)
		}
		answers = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := tpl.Validate(); err != nil {
		return Result{}, err
	}

	valid, issues, err := s.screen(answers)
	if err != nil {
		return Result{}, err
	}

	agg := aggregate(tpl, tpl.Index(), valid)
	for _, a := range agg.Unmatched {
		issues = append(issues, Issue{Kind: IssueUnmatchedModule, AnswerID: a.AnswerID, QuestionID: a.QuestionID, ModuleID: a.ModuleID})
		s.logger.Printf("scoring: attempt %s answer %s module %q matches no section", attemptID, a.AnswerID, a.ModuleID)
	}

	names := tpl.SectionNames()
	curves, err := s.fetchCurves(ctx, ref.ExamID, names)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		AttemptID: attemptID,
		ExamID:    ref.ExamID,
		Sections:  make(map[string]int, len(names)),
		Raw:       agg.Sections,
		Modules:   agg.Modules,
	}
	for i, sec := range names {
		c := curves[i]
		if c == nil {
			issues = append(issues, Issue{Kind: IssueMissingCurve, Section: sec})
			s.logger.Printf("scoring: exam %s section %q has no curve; section omitted", ref.ExamID, sec)
			continue
		}
		scaled, err := Scale(agg.Sections[sec], c.Points)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				return Result{}, &ConfigError{Scope: "curve:" + sec, Reason: ce.Reason}
			}
			return Result{}, err
		}
		res.Sections[sec] = scaled
		res.Overall += scaled
	}
	res.Issues = issues
	return res, nil
}

// screen drops answers with broken question joins and enforces the
// invalid-answer limit.
func (s *Service) screen(answers []GradedAnswer) ([]GradedAnswer, []Issue, error) {
	valid := make([]GradedAnswer, 0, len(answers))
	var issues []Issue
	for _, a := range answers {
		if validAnswer(a) {
			valid = append(valid, a)
			continue
		}
		issues = append(issues, Issue{Kind: IssueInvalidAnswer, AnswerID: a.AnswerID, QuestionID: a.QuestionID})
	}
	invalid := len(answers) - len(valid)
	if invalid == 0 {
		return valid, nil, nil
	}
	s.logger.Printf("scoring: %d of %d answers have invalid question data", invalid, len(answers))
	if float64(invalid)/float64(len(answers)) > s.maxInvalid {
		return nil, nil, &DataQualityError{Invalid: invalid, Total: len(answers), MaxRatio: s.maxInvalid}
	}
	return valid, issues, nil
}

// fetchCurves loads every section's curve concurrently. A nil entry means the
// section has no curve assigned.
func (s *Service) fetchCurves(ctx context.Context, examID string, sections []string) ([]*Curve, error) {
	out := make([]*Curve, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for i, sec := range sections {
		i, sec := i, sec
		g.Go(func() error {
			c, err := s.src.Curves.GetCurve(gctx, examID, sec)
			if errors.Is(err, ErrNotConfigured) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("curve for %s/%s: %w", examID, sec, err)
			}
			out[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

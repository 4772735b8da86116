package grading

import (
	"context"
	"errors"
	"strings"
)

// Question types understood by the default grader.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeShortAnswer    = "short_answer"
	TypeGridIn         = "grid_in"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type     string
	Points   int
	Accepted []string // already normalized, see NormalizeAnswers
}

// Result is the outcome of grading a single question response.
type Result struct {
	IsCorrect            bool     `json:"is_correct"`
	AwardedPoints        int      `json:"awarded_points"`
	MaxPoints            int      `json:"max_points"`
	NeedsManual          bool     `json:"needs_manual,omitempty"`
	MatchedAnswer        string   `json:"matched_answer,omitempty"`
	NormalizedSubmission string   `json:"normalized_submission,omitempty"`
	Feedback             []string `json:"feedback,omitempty"`
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
	aliases    map[string]string
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) (Result, error) {
	t := strings.ToLower(strings.TrimSpace(q.Type))
	if alias, ok := g.aliases[t]; ok {
		t = alias
	}
	s, ok := g.strategies[t]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, q, response)
}

// Engine options

type Option func(*config)

type config struct {
	Tolerance float64 // grid-in absolute tolerance
	Aliases   map[string]string
}

func WithTolerance(tol float64) Option { return func(c *config) { c.Tolerance = tol } }

// WithTypeAlias maps a legacy question type name onto a built-in one.
func WithTypeAlias(alias, target string) Option {
	return func(c *config) { c.Aliases[strings.ToLower(alias)] = target }
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		Tolerance: GridInTolerance,
		Aliases: map[string]string{
			"mcq_single": TypeMultipleChoice,
			"mcq":        TypeMultipleChoice,
			"spr":        TypeGridIn,
			"grid-in":    TypeGridIn,
			"short_word": TypeShortAnswer,
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: textStrategy{},
			TypeTrueFalse:      textStrategy{},
			TypeShortAnswer:    textStrategy{},
			TypeGridIn:         gridInStrategy{tol: cfg.Tolerance},
		},
		aliases: cfg.Aliases,
	}
}

// --- Strategies ---

type textStrategy struct{}

func (textStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if len(q.Accepted) == 0 {
		return res, ErrNoAnswerKey
	}
	if m, ok := matchText(response, q.Accepted); ok {
		res.IsCorrect = true
		res.AwardedPoints = q.Points
		res.MatchedAnswer = m
	}
	res.NormalizedSubmission = foldText(response)
	return res, nil
}

type gridInStrategy struct{ tol float64 }

func (s gridInStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if len(q.Accepted) == 0 {
		return res, ErrNoAnswerKey
	}
	m := matchGridIn(response, q.Accepted, s.tol)
	res.IsCorrect = m.IsCorrect
	res.MatchedAnswer = m.MatchedAnswer
	res.NormalizedSubmission = m.NormalizedSubmission
	if m.IsCorrect {
		res.AwardedPoints = q.Points
	}
	return res, nil
}

// ErrNoAnswerKey is returned when a question has nothing to match against.
var ErrNoAnswerKey = errors.New("question has no accepted answers")

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authmw "github.com/mind-engage/mindengage-scoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/grading"
	"github.com/mind-engage/mindengage-scoring/internal/rbac"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-scoring/internal/sync"
)

// Deps is what the API needs. Sink receives every computed result; it is
// usually the store wrapped in a syncx.Recorder.
type Deps struct {
	Store     exam.Store
	Scorer    *scoring.Service
	Regrader  *scoring.Regrader
	Sink      scoring.ScoreSink
	Grader    grading.Grader
	Events    EventSource // optional
	Auth      *authmw.AuthService
	LocalAuth bool
	Origins   []string
	Ready     func() error // optional
}

// EventSource lists the event log for the admin feed.
type EventSource interface {
	Since(ctx context.Context, seq int64, limit int) ([]syncx.Event, error)
}

func NewRouter(d Deps) chi.Router {
	if d.Sink == nil {
		d.Sink = d.Store
	}
	if d.Grader == nil {
		d.Grader = grading.NewDefaultGrader()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(d.Origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if d.LocalAuth {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth))
	}

	// Protected API (JWT -> subject/role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		// Student flow
		pr.With(rbac.Require(rbac.PermAttemptCreate)).
			Post("/attempts", CreateAttemptHandler(d.Store))
		pr.With(rbac.Require(rbac.PermAttemptAnswer)).
			Post("/attempts/{attemptID}/answers", SubmitAnswerHandler(d.Store))
		pr.With(rbac.Require(rbac.PermAttemptSubmit)).
			Post("/attempts/{attemptID}/complete", CompleteAttemptHandler(d.Store, d.Scorer, d.Sink))
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptID}/scores", GetScoresHandler(d.Store, d.Scorer))
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/users/{userID}/mistakes", ListMistakesHandler(d.Store))

		pr.With(rbac.Require(rbac.PermAnswerRegrade)).
			Post("/answers/{answerID}/regrade", RegradeHandler(d.Regrader))
		pr.With(rbac.Require(rbac.PermAnswerCheck)).
			Post("/check", CheckAnswerHandler(d.Grader))

		// Authoring
		pr.With(rbac.Require(rbac.PermExamWrite)).
			Put("/exams/{examID}", PutExamHandler(d.Store))
		pr.With(rbac.Require(rbac.PermExamWrite)).
			Put("/questions/{questionID}", PutQuestionHandler(d.Store))
		pr.With(rbac.Require(rbac.PermTemplateWrite)).
			Put("/templates/{templateID}", PutTemplateHandler(d.Store))
		pr.With(rbac.Require(rbac.PermCurveWrite)).
			Put("/curves/{curveID}", PutCurveHandler(d.Store))
		pr.With(rbac.Require(rbac.PermCurveWrite)).
			Put("/exams/{examID}/curves/{section}", AssignCurveHandler(d.Store))

		if d.Events != nil {
			pr.With(rbac.Require(rbac.PermEventsView)).
				Get("/events", ListEventsHandler(d.Events))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

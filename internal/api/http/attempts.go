package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/rbac"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

// POST /attempts {"exam_id": "..."}; staff may start one for another user_id.
func CreateAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
			UserID string `json:"user_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ExamID) == "" {
			http.Error(w, "exam_id required", http.StatusBadRequest)
			return
		}
		user := rbac.SubjectFromContext(r.Context())
		if req.UserID != "" && rbac.Can(r, rbac.PermAttemptViewAll) {
			user = req.UserID
		}
		a, err := store.NewAttempt(r.Context(), req.ExamID, user)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, a)
	}
}

// POST /attempts/{attemptID}/answers {"question_id": "...", "answer": "..."}
func SubmitAnswerHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := attemptForCaller(w, r, store)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.QuestionID) == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		ua, err := store.SubmitAnswer(r.Context(), a.ID, req.QuestionID, req.Answer)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ua)
	}
}

// POST /attempts/{attemptID}/complete closes the attempt, scores it and
// stores the result. A refused scoring run still leaves the attempt completed.
func CompleteAttemptHandler(store exam.Store, scorer *scoring.Service, sink scoring.ScoreSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := attemptForCaller(w, r, store)
		if !ok {
			return
		}
		ctx := r.Context()
		a, err := store.CompleteAttempt(ctx, a.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		res, err := scorer.ComputeFinalScores(ctx, a.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := sink.SaveScores(ctx, res); err != nil {
			respondError(w, err)
			return
		}
		total := res.Overall
		a.TotalScore, a.FinalScores = &total, &res
		respondJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}/scores recomputes from current answers without
// writing anything.
func GetScoresHandler(store exam.Store, scorer *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := attemptForCaller(w, r, store)
		if !ok {
			return
		}
		res, err := scorer.ComputeFinalScores(r.Context(), a.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /users/{userID}/mistakes
func ListMistakesHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID != rbac.SubjectFromContext(r.Context()) && !rbac.Can(r, rbac.PermAttemptViewAll) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		list, err := store.ListMistakes(r.Context(), userID)
		if err != nil {
			respondError(w, err)
			return
		}
		if list == nil {
			list = []exam.MistakeEntry{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// attemptForCaller loads {attemptID} and checks the caller owns it or may see
// every attempt.
func attemptForCaller(w http.ResponseWriter, r *http.Request, store exam.Store) (exam.Attempt, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
	if id == "" {
		http.Error(w, "attemptID required", http.StatusBadRequest)
		return exam.Attempt{}, false
	}
	a, err := store.GetAttempt(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return exam.Attempt{}, false
	}
	if a.UserID != rbac.SubjectFromContext(r.Context()) && !rbac.Can(r, rbac.PermAttemptViewAll) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return exam.Attempt{}, false
	}
	return a, true
}

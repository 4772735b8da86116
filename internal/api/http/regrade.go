package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-scoring/internal/rbac"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

// POST /answers/{answerID}/regrade {"new_is_correct": true, "reason": "..."}
func RegradeHandler(rg *scoring.Regrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NewIsCorrect *bool  `json:"new_is_correct"`
			Reason       string `json:"reason"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.NewIsCorrect == nil || strings.TrimSpace(req.Reason) == "" {
			http.Error(w, "missing required fields: new_is_correct, reason", http.StatusBadRequest)
			return
		}
		out, err := rg.Regrade(r.Context(), scoring.RegradeCommand{
			AnswerID:  chi.URLParam(r, "answerID"),
			IsCorrect: *req.NewIsCorrect,
			Reason:    req.Reason,
			AdminID:   rbac.SubjectFromContext(r.Context()),
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"old_is_correct": out.OldIsCorrect,
			"new_is_correct": out.NewIsCorrect,
			"new_scores":     out.Scores,
		})
	}
}

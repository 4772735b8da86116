package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-scoring/internal/grading"
)

type checkReq struct {
	Answer   string          `json:"answer"`
	Accepted json.RawMessage `json:"correct_answers"`
	Type     string          `json:"type,omitempty"`
	GridIn   bool            `json:"grid_in,omitempty"`
}

type checkResp struct {
	grading.GridInResult
	CorrectAnswersDisplay string `json:"correct_answers_display"`
}

// POST /check grades one answer against an ad-hoc key without storing anything.
func CheckAnswerHandler(g grading.Grader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkReq
		if !decodeJSON(w, r, &req) {
			return
		}
		accepted := grading.ParseAnswerColumn(req.Accepted)
		typ := req.Type
		if req.GridIn {
			typ = grading.TypeGridIn
		}
		if typ == "" {
			typ = grading.TypeShortAnswer
		}
		res, err := g.Grade(r.Context(), grading.Q{Type: typ, Points: 1, Accepted: accepted}, req.Answer)
		if errors.Is(err, grading.ErrNoAnswerKey) {
			http.Error(w, "correct_answers required", http.StatusBadRequest)
			return
		}
		if err != nil {
			respondError(w, err)
			return
		}
		if res.NeedsManual {
			http.Error(w, "unsupported question type: "+typ, http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, checkResp{
			GridInResult: grading.GridInResult{
				IsCorrect:            res.IsCorrect,
				MatchedAnswer:        res.MatchedAnswer,
				NormalizedSubmission: res.NormalizedSubmission,
			},
			CorrectAnswersDisplay: grading.FormatAnswersDisplay(accepted),
		})
	}
}

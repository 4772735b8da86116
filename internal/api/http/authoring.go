package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

const maxDocumentBytes = 1 << 20

// PUT /exams/{examID} {"title": "...", "template_id": "..."}
func PutExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if !decodeJSON(w, r, &e) {
			return
		}
		e.ID = chi.URLParam(r, "examID")
		if err := store.PutExam(r.Context(), e); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}

// PUT /questions/{questionID}
func PutQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q exam.Question
		if !decodeJSON(w, r, &q) {
			return
		}
		q.ID = chi.URLParam(r, "questionID")
		if strings.TrimSpace(q.ExamID) == "" || strings.TrimSpace(q.Type) == "" {
			http.Error(w, "exam_id and type required", http.StatusBadRequest)
			return
		}
		if err := store.PutQuestion(r.Context(), q); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

// PUT /templates/{templateID} {"name": "...", "sections": {"english": [...], ...}}
func PutTemplateHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string          `json:"name"`
			Sections json.RawMessage `json:"sections"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		secs, err := scoring.ParseTemplateSections(req.Sections)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		t := scoring.Template{ID: chi.URLParam(r, "templateID"), Name: req.Name, Sections: secs}
		if err := store.PutTemplate(r.Context(), t); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, t)
	}
}

// PUT /curves/{curveID}?name=... with the curve_data array as body.
func PutCurveHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		pts, err := scoring.ParseCurve(body)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		c := scoring.Curve{ID: chi.URLParam(r, "curveID"), Name: r.URL.Query().Get("name"), Points: pts}
		if err := store.PutCurve(r.Context(), c); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

// PUT /exams/{examID}/curves/{section} {"curve_id": "..."}
func AssignCurveHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CurveID string `json:"curve_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.CurveID) == "" {
			http.Error(w, "curve_id required", http.StatusBadRequest)
			return
		}
		examID, section := chi.URLParam(r, "examID"), chi.URLParam(r, "section")
		if err := store.AssignCurve(r.Context(), examID, section, req.CurveID); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

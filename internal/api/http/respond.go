package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

// shared JSON helper
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// scoringUnavailable is what clients see when a run is refused. The detail is
// for support staff.
const scoringUnavailable = "scoring unavailable, contact support"

// respondError maps store and scoring errors onto status codes.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case scoring.IsConfigError(err), scoring.IsDataQualityError(err):
		log.Printf("scoring refused: %v", err)
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": scoringUnavailable, "detail": err.Error()})
	case errors.Is(err, scoring.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, scoring.ErrAttemptNotCompleted),
		errors.Is(err, scoring.ErrNoChange),
		errors.Is(err, exam.ErrAttemptClosed):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

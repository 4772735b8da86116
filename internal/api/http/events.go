package http

import (
	"net/http"
	"strconv"
	"time"
)

// GET /events?since=<seq>&limit=<n> pages through the event log.
func ListEventsHandler(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		evs, err := src.Since(r.Context(), since, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(evs))
		for _, e := range evs {
			out = append(out, map[string]any{
				"seq":        e.Seq,
				"typ":        e.Type,
				"key":        e.Key,
				"data":       e.DataJSON,
				"created_at": time.Unix(e.CreatedAt, 0),
			})
		}
		respondJSON(w, http.StatusOK, out)
	}
}

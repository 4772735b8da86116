package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

// Event types written by the scoring service.
const (
	EventAttemptScored  = "AttemptScored"
	EventAnswerRegraded = "AnswerRegraded"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns events after seq, oldest first.
func (r *EventRepo) Since(ctx context.Context, seq int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Appender is the write side of an event log.
type Appender interface {
	Append(ctx context.Context, e Event) error
}

// Recorder wraps a score sink and regrade log so that every saved result and
// every override also lands in the event log. Event failures are logged and
// never fail the wrapped write.
type Recorder struct {
	Scores  scoring.ScoreSink
	History scoring.RegradeLog
	Events  Appender
	SiteID  string
}

func (r *Recorder) SaveScores(ctx context.Context, res scoring.Result) error {
	if err := r.Scores.SaveScores(ctx, res); err != nil {
		return err
	}
	r.emit(ctx, EventAttemptScored, res.AttemptID, res)
	return nil
}

func (r *Recorder) RecordRegrade(ctx context.Context, rec scoring.RegradeRecord) error {
	if err := r.History.RecordRegrade(ctx, rec); err != nil {
		return err
	}
	r.emit(ctx, EventAnswerRegraded, rec.AttemptID, rec)
	return nil
}

func (r *Recorder) emit(ctx context.Context, typ, key string, payload any) {
	if r.Events == nil {
		return
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		log.Printf("syncx: encode %s for %s: %v", typ, key, err)
		return
	}
	if err := r.Events.Append(ctx, Event{SiteID: r.SiteID, Type: typ, Key: key, DataJSON: string(buf)}); err != nil {
		log.Printf("syncx: append %s for %s: %v", typ, key, err)
	}
}

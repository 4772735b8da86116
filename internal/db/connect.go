package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:scoring.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/scoring?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS scoring_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  sections TEXT NOT NULL,          -- {"english":["english1","english2"],...}
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scoring_curves (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  curve_data TEXT NOT NULL,        -- [{"raw":0,"lower":200,"upper":200},...]
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  template_id TEXT,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_curves (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  section TEXT NOT NULL,
  curve_id TEXT NOT NULL REFERENCES scoring_curves(id),
  PRIMARY KEY (exam_id, section)
);

-- no FK to exams: answers must survive a broken question import
CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL,
  module_id TEXT,
  type TEXT NOT NULL,
  points INTEGER,
  correct_answers TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  total_score INTEGER,
  final_scores TEXT,
  started_at INTEGER NOT NULL,
  completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS user_answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  answer TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS regrade_history (
  id TEXT PRIMARY KEY,
  user_answer_id TEXT NOT NULL,
  attempt_id TEXT NOT NULL,
  admin_id TEXT NOT NULL,
  old_is_correct INTEGER NOT NULL,
  new_is_correct INTEGER NOT NULL,
  reason TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mistake_bank (
  user_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  attempt_id TEXT NOT NULL,
  status TEXT NOT NULL,            -- unmastered|mastered
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- AttemptScored, AnswerRegraded
  key TEXT NOT NULL,                         -- natural key: attemptID
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS scoring_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  sections TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS scoring_curves (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  curve_data TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  template_id TEXT,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_curves (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  section TEXT NOT NULL,
  curve_id TEXT NOT NULL REFERENCES scoring_curves(id),
  PRIMARY KEY (exam_id, section)
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL,
  module_id TEXT,
  type TEXT NOT NULL,
  points INTEGER,
  correct_answers TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  total_score INTEGER,
  final_scores TEXT,
  started_at BIGINT NOT NULL,
  completed_at BIGINT
);

CREATE TABLE IF NOT EXISTS user_answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  answer TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS regrade_history (
  id TEXT PRIMARY KEY,
  user_answer_id TEXT NOT NULL,
  attempt_id TEXT NOT NULL,
  admin_id TEXT NOT NULL,
  old_is_correct BOOLEAN NOT NULL,
  new_is_correct BOOLEAN NOT NULL,
  reason TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS mistake_bank (
  user_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  attempt_id TEXT NOT NULL,
  status TEXT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`

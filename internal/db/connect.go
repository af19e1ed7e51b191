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
			dsn = "file:qbank.sqlite?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/qbank?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
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

CREATE TABLE IF NOT EXISTS subjects (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  serial TEXT NOT NULL UNIQUE,
  exam_type_code TEXT NOT NULL,
  exam_type TEXT NOT NULL,
  exam_session INTEGER NOT NULL,
  subject_id INTEGER REFERENCES subjects(id),
  case_text TEXT,
  stem TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  answer_indices_json TEXT NOT NULL DEFAULT '[]',
  answer_none INTEGER NOT NULL DEFAULT 0,
  answer_text TEXT,
  raw_text TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_subject ON questions(subject_id);
CREATE INDEX IF NOT EXISTS idx_questions_session ON questions(exam_type_code, exam_session);

CREATE TABLE IF NOT EXISTS explanations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  body TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  source TEXT,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_explanations_question ON explanations(question_id);

CREATE TABLE IF NOT EXISTS tags (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  label TEXT NOT NULL UNIQUE,
  type TEXT
);

CREATE TABLE IF NOT EXISTS question_tags (
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  tag_id INTEGER NOT NULL REFERENCES tags(id),
  source TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (question_id, tag_id, source)
);
CREATE INDEX IF NOT EXISTS idx_question_tags_tag ON question_tags(tag_id);

CREATE TABLE IF NOT EXISTS subtopics (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  parent_id INTEGER REFERENCES subtopics(id)
);

CREATE TABLE IF NOT EXISTS question_subtopics (
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  subtopic_id INTEGER NOT NULL REFERENCES subtopics(id),
  created_at INTEGER NOT NULL,
  PRIMARY KEY (question_id, subtopic_id)
);

CREATE TABLE IF NOT EXISTS feedback_reports (
  serial TEXT PRIMARY KEY,
  explanation_flag INTEGER NOT NULL DEFAULT 0,
  tag_flag INTEGER NOT NULL DEFAULT 0,
  subtopic_flag INTEGER NOT NULL DEFAULT 0,
  reported_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                      -- e.g., DocumentIngested
  key TEXT NOT NULL,                      -- natural key: run id, serial, file
  data TEXT NOT NULL,                     -- JSON payload
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_typ ON event_log(typ, created_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS subjects (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  serial TEXT NOT NULL UNIQUE,
  exam_type_code TEXT NOT NULL,
  exam_type TEXT NOT NULL,
  exam_session INTEGER NOT NULL,
  subject_id BIGINT REFERENCES subjects(id),
  case_text TEXT,
  stem TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  answer_indices_json TEXT NOT NULL DEFAULT '[]',
  answer_none INTEGER NOT NULL DEFAULT 0,
  answer_text TEXT,
  raw_text TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_subject ON questions(subject_id);
CREATE INDEX IF NOT EXISTS idx_questions_session ON questions(exam_type_code, exam_session);

CREATE TABLE IF NOT EXISTS explanations (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  body TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  source TEXT,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_explanations_question ON explanations(question_id);

CREATE TABLE IF NOT EXISTS tags (
  id BIGSERIAL PRIMARY KEY,
  label TEXT NOT NULL UNIQUE,
  type TEXT
);

CREATE TABLE IF NOT EXISTS question_tags (
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  tag_id BIGINT NOT NULL REFERENCES tags(id),
  source TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (question_id, tag_id, source)
);
CREATE INDEX IF NOT EXISTS idx_question_tags_tag ON question_tags(tag_id);

CREATE TABLE IF NOT EXISTS subtopics (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  parent_id BIGINT REFERENCES subtopics(id)
);

CREATE TABLE IF NOT EXISTS question_subtopics (
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  subtopic_id BIGINT NOT NULL REFERENCES subtopics(id),
  created_at BIGINT NOT NULL,
  PRIMARY KEY (question_id, subtopic_id)
);

CREATE TABLE IF NOT EXISTS feedback_reports (
  serial TEXT PRIMARY KEY,
  explanation_flag INTEGER NOT NULL DEFAULT 0,
  tag_flag INTEGER NOT NULL DEFAULT 0,
  subtopic_flag INTEGER NOT NULL DEFAULT 0,
  reported_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_typ ON event_log(typ, created_at);
`

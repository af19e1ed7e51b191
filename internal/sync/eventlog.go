package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventIngestRun          = "IngestRun"
	EventDocumentIngested   = "DocumentIngested"
	EventAnnotationImported = "AnnotationImported"
	EventWebExported        = "WebExported"
	EventLabelsMerged       = "LabelsMerged"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// NewEvent marshals data into an event payload.
func NewEvent(typ, key string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{SiteID: "local", Type: typ, Key: key, DataJSON: string(b)}, nil
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	return AppendTo(ctx, r.db, e)
}

// AppendTo writes e through ex so callers can log inside their transaction.
func AppendTo(ctx context.Context, ex Execer, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, e.CreatedAt)
	return err
}

// List returns events of one type after seq, oldest first. limit <= 0 means all.
func (r *EventRepo) List(ctx context.Context, typ string, afterSeq int64, limit int) ([]Event, error) {
	q := `SELECT seq, site_id, typ, key, data, created_at FROM event_log
		WHERE typ=$1 AND seq>$2 ORDER BY seq`
	args := []any{typ, afterSeq}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
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

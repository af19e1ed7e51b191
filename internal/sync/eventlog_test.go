package syncx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mind-engage/kokushi-qbank/internal/db"
)

func TestEventRepoAppendAndList(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "ev.sqlite")+"?mode=rwc")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	repo := NewEventRepo(h)

	e, err := NewEvent(EventAnnotationImported, "explanation", map[string]int{"explanations": 3})
	if err != nil {
		t.Fatal(err)
	}
	e.CreatedAt = 1700000000
	if err := repo.Append(ctx, e); err != nil {
		t.Fatal(err)
	}
	other, _ := NewEvent(EventWebExported, "web", map[string]int{"questions": 10})
	if err := repo.Append(ctx, other); err != nil {
		t.Fatal(err)
	}

	tx, err := h.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	e2, _ := NewEvent(EventAnnotationImported, "tag", map[string]int{"tags": 2})
	if err := AppendTo(ctx, tx, e2); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := repo.List(ctx, EventAnnotationImported, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Key != "explanation" || got[1].Key != "tag" {
		t.Fatalf("events = %+v", got)
	}
	if got[0].CreatedAt != 1700000000 || got[0].DataJSON != `{"explanations":3}` || got[0].SiteID != "local" {
		t.Fatalf("first event = %+v", got[0])
	}

	after, err := repo.List(ctx, EventAnnotationImported, got[0].Seq, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 || after[0].Key != "tag" {
		t.Fatalf("after = %+v", after)
	}
}

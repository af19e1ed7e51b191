package export_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/db"
	"github.com/mind-engage/kokushi-qbank/internal/export"
	"github.com/mind-engage/kokushi-qbank/internal/extract"
	"github.com/mind-engage/kokushi-qbank/internal/storage"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "export.sqlite") + "?mode=rwc&_pragma=busy_timeout(5000)"
	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	store := bank.NewSQLStore(h, "sqlite")

	doc := extract.MustNew(extract.DefaultRules()).Parse([]string{
		"第9回 はり師・きゆう師試験",
		"問題1 所属なし。", "1. a", "2. b", "3. c", "4. d", "解答1",
		"《衛生学》",
		"問題2 健康の定義はどれか。", "1. a", "2. b", "3. c", "4. d", "解答2、3",
		"問題3 感染症はどれか。", "1. a", "2. b", "3. c", "4. d", "解答なし",
	})
	if _, err := store.UpsertDocument(ctx, doc.Records); err != nil {
		t.Fatal(err)
	}
	err = store.WithTx(ctx, func(tx *bank.Tx) error {
		id, err := tx.QuestionID(ctx, "B09-002")
		if err != nil {
			return err
		}
		if err := tx.AddExplanation(ctx, id, "二版", 2, "manual"); err != nil {
			return err
		}
		if err := tx.AddExplanation(ctx, id, "初版", 1, "llm"); err != nil {
			return err
		}
		if err := tx.AddTag(ctx, id, "WHO", "llm"); err != nil {
			return err
		}
		if err := tx.AddSubtopic(ctx, id, "健康"); err != nil {
			return err
		}
		id3, err := tx.QuestionID(ctx, "B09-003")
		if err != nil {
			return err
		}
		return tx.AddTag(ctx, id3, "WHO", "llm")
	})
	if err != nil {
		t.Fatal(err)
	}

	events := syncx.NewEventRepo(h)
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC).Unix()
	for _, ev := range []struct {
		at   int64
		data string
	}{
		{day1, `{"explanations":2}`},
		{day1 + 60, `{"explanations":1}`},
		{day2, `{"explanations":0,"tags":4}`},
	} {
		if err := events.Append(ctx, syncx.Event{Type: syncx.EventAnnotationImported, Key: "explanations", DataJSON: ev.data, CreatedAt: ev.at}); err != nil {
			t.Fatal(err)
		}
	}

	blobs, err := storage.NewFSStore(filepath.Join(t.TempDir(), "web"))
	if err != nil {
		t.Fatal(err)
	}
	ex := export.NewExporter(store, events, blobs, nil)
	ex.Loc = time.UTC
	ex.Notes = []export.Note{{Date: "2026-3-3", Text: "公開しました"}, {Date: "", Text: "ignored"}}

	sum, err := ex.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Questions != 3 || sum.Updates != 2 {
		t.Fatalf("summary = %+v", sum)
	}

	var qs []export.WebQuestion
	readJSON(t, filepath.Join(blobs.Base(), export.QuestionsKey), &qs)
	if len(qs) != 3 || qs[0].Serial != "B09-001" || qs[2].Serial != "B09-003" {
		t.Fatalf("questions = %+v", qs)
	}
	q2 := qs[1]
	if q2.ExplanationLatest == nil || *q2.ExplanationLatest != "二版" || *q2.ExplanationLatestSource != "manual" {
		t.Errorf("latest = %v", q2.ExplanationLatest)
	}
	if len(q2.Explanations) != 2 || q2.Explanations[0].Version != 1 {
		t.Errorf("explanations not sorted by version: %+v", q2.Explanations)
	}
	if !reflect.DeepEqual(q2.AnswerIndices, []int{2, 3}) || !qs[2].AnswerNone {
		t.Errorf("answers = %v / none=%v", q2.AnswerIndices, qs[2].AnswerNone)
	}
	if qs[0].ExplanationLatest != nil {
		t.Errorf("unexplained question has latest: %v", *qs[0].ExplanationLatest)
	}

	var updates []export.UpdateEntry
	readJSON(t, filepath.Join(blobs.Base(), export.UpdateLogKey), &updates)
	want := []export.UpdateEntry{
		{Date: "2026/03/03", Text: "公開しました", Kind: "note"},
		{Date: "2026/03/01", Text: "解説を3件追加しました。", Kind: "explanation"},
	}
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("update log = %+v", updates)
	}

	var bySubject, byTag, bySub map[string][]string
	readJSON(t, filepath.Join(blobs.Base(), "index", "index_by_subject.json"), &bySubject)
	readJSON(t, filepath.Join(blobs.Base(), "index", "index_by_tag.json"), &byTag)
	readJSON(t, filepath.Join(blobs.Base(), "index", "index_by_subtopic.json"), &bySub)
	if !reflect.DeepEqual(bySubject, map[string][]string{"衛生学": {"B09-002", "B09-003"}}) {
		t.Errorf("by subject = %v", bySubject)
	}
	if !reflect.DeepEqual(byTag, map[string][]string{"WHO": {"B09-002", "B09-003"}}) {
		t.Errorf("by tag = %v", byTag)
	}
	if !reflect.DeepEqual(bySub, map[string][]string{"健康": {"B09-002"}}) {
		t.Errorf("by subtopic = %v", bySub)
	}

	var one export.WebQuestion
	readJSON(t, filepath.Join(blobs.Base(), "questions", "B09-002.json"), &one)
	if one.Serial != "B09-002" || len(one.Tags) != 1 {
		t.Errorf("per-question file = %+v", one)
	}

	evs, err := events.List(ctx, syncx.EventWebExported, 0, 0)
	if err != nil || len(evs) != 1 {
		t.Fatalf("export events = %+v, %v", evs, err)
	}
}

func TestLoadNotes(t *testing.T) {
	dir := t.TempDir()
	if n, err := export.LoadNotes(filepath.Join(dir, "none.json")); err != nil || n != nil {
		t.Fatalf("missing file = %v, %v", n, err)
	}
	p := filepath.Join(dir, "notes.json")
	if err := os.WriteFile(p, []byte(`[{"date":"2026/01/02","text":"x"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := export.LoadNotes(p)
	if err != nil || len(n) != 1 || n[0].Text != "x" {
		t.Fatalf("notes = %v, %v", n, err)
	}
}

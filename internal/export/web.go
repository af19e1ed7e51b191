// Package export publishes the question bank as static JSON for the web
// front end.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/platform/logger"
	"github.com/mind-engage/kokushi-qbank/internal/storage"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

// Artifact keys inside the blob store.
const (
	QuestionsKey       = "questions.json"
	UpdateLogKey       = "update_log.json"
	IndexBySubjectKey  = "index/index_by_subject.json"
	IndexByTagKey      = "index/index_by_tag.json"
	IndexBySubtopicKey = "index/index_by_subtopic.json"
	QuestionDir        = "questions"
)

// EventLister reads the event log.
type EventLister interface {
	List(ctx context.Context, typ string, afterSeq int64, limit int) ([]syncx.Event, error)
}

type WebQuestion struct {
	Serial                  string             `json:"serial"`
	ExamTypeCode            string             `json:"exam_type_code"`
	ExamType                string             `json:"exam_type"`
	ExamSession             int                `json:"exam_session"`
	Subject                 *string            `json:"subject"`
	CaseText                *string            `json:"case_text"`
	Stem                    string             `json:"stem"`
	Choices                 []string           `json:"choices"`
	AnswerIndices           []int              `json:"answer_indices"`
	AnswerNone              bool               `json:"answer_none"`
	ExplanationLatest       *string            `json:"explanation_latest"`
	ExplanationLatestSource *string            `json:"explanation_latest_source"`
	Explanations            []bank.Explanation `json:"explanations"`
	Tags                    []string           `json:"tags"`
	Subtopics               []string           `json:"subtopics"`
}

type UpdateEntry struct {
	Date string `json:"date"`
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// Note is a hand-written changelog entry merged into update_log.json.
type Note struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Summary is returned to callers and recorded as the export event.
type Summary struct {
	Questions int      `json:"questions"`
	Updates   int      `json:"updates"`
	Keys      []string `json:"keys"`
}

type Exporter struct {
	store  bank.Store
	events EventLister
	blobs  storage.BlobStore
	log    *logger.Logger

	Loc   *time.Location // day boundary for update_log; time.Local when nil
	Notes []Note
}

func NewExporter(store bank.Store, events EventLister, blobs storage.BlobStore, log *logger.Logger) *Exporter {
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{store: store, events: events, blobs: blobs, log: log}
}

// Export writes every artifact and records a WebExported event.
func (e *Exporter) Export(ctx context.Context) (Summary, error) {
	details, err := e.store.ListDetails(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load questions: %w", err)
	}
	qs := make([]WebQuestion, len(details))
	for i, d := range details {
		qs[i] = webQuestion(d)
	}
	updates, err := e.updateLog(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("update log: %w", err)
	}
	bySubject, byTag, bySubtopic := buildIndexes(qs)

	sum := Summary{Questions: len(qs), Updates: len(updates)}
	put := func(key string, v any) error {
		k, err := storage.PutJSON(e.blobs, key, v)
		if err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		sum.Keys = append(sum.Keys, k)
		return nil
	}
	for _, a := range []struct {
		key string
		v   any
	}{
		{QuestionsKey, qs},
		{UpdateLogKey, updates},
		{IndexBySubjectKey, bySubject},
		{IndexByTagKey, byTag},
		{IndexBySubtopicKey, bySubtopic},
	} {
		if err := put(a.key, a.v); err != nil {
			return Summary{}, err
		}
	}
	for _, q := range qs {
		if _, err := storage.PutJSON(e.blobs, QuestionDir+"/"+q.Serial+".json", q); err != nil {
			return Summary{}, fmt.Errorf("write question %s: %w", q.Serial, err)
		}
	}

	ev, err := syncx.NewEvent(syncx.EventWebExported, QuestionsKey, sum)
	if err != nil {
		return Summary{}, err
	}
	if err := e.store.WithTx(ctx, func(tx *bank.Tx) error { return tx.LogEvent(ctx, ev) }); err != nil {
		return Summary{}, err
	}
	e.log.Info("web export written", "questions", sum.Questions, "updates", sum.Updates)
	return sum, nil
}

func webQuestion(d bank.QuestionDetail) WebQuestion {
	w := WebQuestion{
		Serial:        d.Serial,
		ExamTypeCode:  d.ExamTypeCode,
		ExamType:      d.ExamType,
		ExamSession:   d.ExamSession,
		Subject:       d.Subject,
		CaseText:      d.CaseText,
		Stem:          d.Stem,
		Choices:       d.Choices,
		AnswerIndices: d.AnswerIndices,
		AnswerNone:    d.AnswerNone,
		Explanations:  append([]bank.Explanation{}, d.Explanations...),
		Tags:          d.Tags,
		Subtopics:     d.Subtopics,
	}
	sort.SliceStable(w.Explanations, func(i, j int) bool { return w.Explanations[i].Version < w.Explanations[j].Version })
	if n := len(w.Explanations); n > 0 {
		latest := w.Explanations[n-1]
		w.ExplanationLatest = &latest.Body
		if latest.Source != "" {
			w.ExplanationLatestSource = &latest.Source
		}
	}
	return w
}

// buildIndexes maps subject, tag and subtopic to serials in question order.
// Questions without a subject are left out of the subject index.
func buildIndexes(qs []WebQuestion) (bySubject, byTag, bySubtopic map[string][]string) {
	bySubject, byTag, bySubtopic = map[string][]string{}, map[string][]string{}, map[string][]string{}
	for _, q := range qs {
		if q.Subject != nil {
			bySubject[*q.Subject] = append(bySubject[*q.Subject], q.Serial)
		}
		for _, t := range q.Tags {
			byTag[t] = append(byTag[t], q.Serial)
		}
		for _, s := range q.Subtopics {
			bySubtopic[s] = append(bySubtopic[s], q.Serial)
		}
	}
	return bySubject, byTag, bySubtopic
}

// updateLog sums explanation imports per day and merges the notes, newest
// first.
func (e *Exporter) updateLog(ctx context.Context) ([]UpdateEntry, error) {
	loc := e.Loc
	if loc == nil {
		loc = time.Local
	}
	evs, err := e.events.List(ctx, syncx.EventAnnotationImported, 0, 0)
	if err != nil {
		return nil, err
	}
	perDay := map[string]int{}
	for _, ev := range evs {
		var r struct {
			Explanations int `json:"explanations"`
		}
		if err := json.Unmarshal([]byte(ev.DataJSON), &r); err != nil {
			e.log.Warn("skipping malformed import event", "seq", ev.Seq, "error", err)
			continue
		}
		day := time.Unix(ev.CreatedAt, 0).In(loc).Format("2006/01/02")
		perDay[day] += r.Explanations
	}

	out := []UpdateEntry{}
	for day, n := range perDay {
		if n > 0 {
			out = append(out, UpdateEntry{Date: day, Text: fmt.Sprintf("解説を%d件追加しました。", n), Kind: "explanation"})
		}
	}
	for _, n := range e.Notes {
		date, text := strings.TrimSpace(n.Date), strings.TrimSpace(n.Text)
		if date == "" || text == "" {
			continue
		}
		out = append(out, UpdateEntry{Date: displayDate(date), Text: text, Kind: "note"})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := dateKey(out[i].Date), dateKey(out[j].Date)
		if ki != kj {
			return ki > kj
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// LoadNotes reads a JSON array of {date, text}. A missing file yields no notes.
func LoadNotes(path string) ([]Note, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var notes []Note
	if err := json.Unmarshal(b, &notes); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return notes, nil
}

var digitRun = regexp.MustCompile(`[0-9]+`)

func dateParts(s string) (y, m, d string, ok bool) {
	p := digitRun.FindAllString(s, -1)
	if len(p) < 3 {
		return "", "", "", false
	}
	pad := func(v string, n int) string {
		for len(v) < n {
			v = "0" + v
		}
		return v
	}
	return pad(p[0], 4), pad(p[1], 2), pad(p[2], 2), true
}

func displayDate(s string) string {
	if y, m, d, ok := dateParts(s); ok {
		return y + "/" + m + "/" + d
	}
	return s
}

func dateKey(s string) string {
	if y, m, d, ok := dateParts(s); ok {
		return y + m + d
	}
	digits := strings.Join(digitRun.FindAllString(s, -1), "")
	if len(digits) >= 8 {
		return digits[:8]
	}
	return digits + strings.Repeat("0", 8-len(digits))
}

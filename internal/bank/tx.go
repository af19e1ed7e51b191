package bank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/kokushi-qbank/internal/extract"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

// Tx is a unit of work over the question bank. Every write path goes through
// it so a document or an import file commits or rolls back as a whole.
type Tx struct {
	tx       *sql.Tx
	now      int64
	subjects map[string]int64
}

// UpsertRecord inserts or replaces one question by serial.
func (t *Tx) UpsertRecord(ctx context.Context, r extract.QuestionRecord) error {
	var subjectID any
	if r.Subject != nil {
		id, err := t.subjectID(ctx, *r.Subject)
		if err != nil {
			return err
		}
		subjectID = id
	}
	choices, err := json.Marshal(r.Choices)
	if err != nil {
		return err
	}
	indices := r.AnswerIndices
	if indices == nil {
		indices = []int{}
	}
	ij, err := json.Marshal(indices)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO questions
		(serial,exam_type_code,exam_type,exam_session,subject_id,case_text,stem,choices_json,
		 answer_indices_json,answer_none,answer_text,raw_text,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (serial) DO UPDATE SET
			exam_type_code=EXCLUDED.exam_type_code,
			exam_type=EXCLUDED.exam_type,
			exam_session=EXCLUDED.exam_session,
			subject_id=EXCLUDED.subject_id,
			case_text=EXCLUDED.case_text,
			stem=EXCLUDED.stem,
			choices_json=EXCLUDED.choices_json,
			answer_indices_json=EXCLUDED.answer_indices_json,
			answer_none=EXCLUDED.answer_none,
			answer_text=EXCLUDED.answer_text,
			raw_text=EXCLUDED.raw_text,
			updated_at=EXCLUDED.updated_at`,
		r.Serial, r.ExamTypeCode, r.ExamType, r.ExamSession, subjectID, nullStr(r.CaseText),
		r.Stem, string(choices), string(ij), b2i(r.AnswerNone), nullStr(r.AnswerLine), r.RawText, t.now)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", r.Serial, err)
	}
	return nil
}

func (t *Tx) subjectID(ctx context.Context, name string) (int64, error) {
	if id, ok := t.subjects[name]; ok {
		return id, nil
	}
	id, err := t.ensureLabel(ctx, "subjects", "name", name)
	if err != nil {
		return 0, err
	}
	t.subjects[name] = id
	return id, nil
}

// ensureLabel returns the id of a unique-label row, inserting it if absent.
// table and col are compile-time constants of this package.
func (t *Tx) ensureLabel(ctx context.Context, table, col, value string) (int64, error) {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO `+table+` (`+col+`) VALUES ($1) ON CONFLICT (`+col+`) DO NOTHING`, value); err != nil {
		return 0, err
	}
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE `+col+`=$1`, value).Scan(&id)
	return id, err
}

// QuestionID resolves a serial to its row id.
func (t *Tx) QuestionID(ctx context.Context, serial string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM questions WHERE serial=$1`, serial).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

var annotationTable = map[Kind]string{
	KindExplanation: "explanations",
	KindTag:         "question_tags",
	KindSubtopic:    "question_subtopics",
}

// HasAnnotation reports whether the question already carries kind.
func (t *Tx) HasAnnotation(ctx context.Context, questionID int64, kind Kind) (bool, error) {
	table, ok := annotationTable[kind]
	if !ok {
		return false, fmt.Errorf("unknown annotation kind %q", kind)
	}
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE question_id=$1 LIMIT 1`, questionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DeleteAnnotations removes every annotation of kind from the question.
func (t *Tx) DeleteAnnotations(ctx context.Context, questionID int64, kind Kind) error {
	table, ok := annotationTable[kind]
	if !ok {
		return fmt.Errorf("unknown annotation kind %q", kind)
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE question_id=$1`, questionID)
	return err
}

// NextExplanationVersion is one past the highest stored version, or 1.
func (t *Tx) NextExplanationVersion(ctx context.Context, questionID int64) (int, error) {
	var top sql.NullInt64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM explanations WHERE question_id=$1`, questionID).Scan(&top); err != nil {
		return 0, err
	}
	return int(top.Int64) + 1, nil
}

func (t *Tx) AddExplanation(ctx context.Context, questionID int64, body string, version int, source string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO explanations (question_id, body, version, source, created_at) VALUES ($1,$2,$3,$4,$5)`,
		questionID, body, version, nullStr(&source), t.now)
	return err
}

func (t *Tx) AddTag(ctx context.Context, questionID int64, label, source string) error {
	tagID, err := t.ensureLabel(ctx, "tags", "label", label)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO question_tags (question_id, tag_id, source, created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT DO NOTHING`,
		questionID, tagID, source, t.now)
	return err
}

func (t *Tx) AddSubtopic(ctx context.Context, questionID int64, name string) error {
	subID, err := t.ensureLabel(ctx, "subtopics", "name", name)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO question_subtopics (question_id, subtopic_id, created_at) VALUES ($1,$2,$3)
		 ON CONFLICT DO NOTHING`,
		questionID, subID, t.now)
	return err
}

var flagColumn = map[Kind]string{
	KindExplanation: "explanation_flag",
	KindTag:         "tag_flag",
	KindSubtopic:    "subtopic_flag",
}

// ClearFeedback lowers one feedback flag and drops the report once no flag
// remains.
func (t *Tx) ClearFeedback(ctx context.Context, serial string, kind Kind) error {
	col, ok := flagColumn[kind]
	if !ok {
		return fmt.Errorf("unknown annotation kind %q", kind)
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE feedback_reports SET `+col+`=0 WHERE serial=$1`, serial); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM feedback_reports
		 WHERE serial=$1 AND explanation_flag=0 AND tag_flag=0 AND subtopic_flag=0`, serial)
	return err
}

// LogEvent appends to the event log inside this transaction.
func (t *Tx) LogEvent(ctx context.Context, e syncx.Event) error {
	return syncx.AppendTo(ctx, t.tx, e)
}

func nullStr(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newTx(tx *sql.Tx) *Tx {
	return &Tx{tx: tx, now: time.Now().Unix(), subjects: map[string]int64{}}
}

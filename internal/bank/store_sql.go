package bank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/kokushi-qbank/internal/extract"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// WithTx runs fn in one transaction, committing only when fn returns nil.
func (s *SQLStore) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(newTx(sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func (s *SQLStore) UpsertDocument(ctx context.Context, recs []extract.QuestionRecord) (int, error) {
	n := 0
	err := s.WithTx(ctx, func(tx *Tx) error {
		for _, r := range recs {
			if err := tx.UpsertRecord(ctx, r); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

const questionCols = `q.id, q.serial, q.exam_type_code, q.exam_type, q.exam_session, s.name,
	q.case_text, q.stem, q.choices_json, q.answer_indices_json, q.answer_none, q.answer_text, q.raw_text`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc rowScanner) (Question, error) {
	var (
		q                    Question
		subject, cas, answer sql.NullString
		choices, indices     string
		none                 int
	)
	if err := sc.Scan(&q.id, &q.Serial, &q.ExamTypeCode, &q.ExamType, &q.ExamSession, &subject,
		&cas, &q.Stem, &choices, &indices, &none, &answer, &q.RawText); err != nil {
		return Question{}, err
	}
	q.Subject, q.CaseText, q.AnswerText = strPtr(subject), strPtr(cas), strPtr(answer)
	q.AnswerNone = none != 0
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return Question{}, fmt.Errorf("%s: choices: %w", q.Serial, err)
	}
	if err := json.Unmarshal([]byte(indices), &q.AnswerIndices); err != nil {
		return Question{}, fmt.Errorf("%s: answer indices: %w", q.Serial, err)
	}
	if q.Choices == nil {
		q.Choices = []string{}
	}
	if q.AnswerIndices == nil {
		q.AnswerIndices = []int{}
	}
	return q, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, serial string) (QuestionDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+`
		FROM questions q LEFT JOIN subjects s ON s.id = q.subject_id
		WHERE q.serial=$1`, serial)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuestionDetail{}, ErrNotFound
		}
		return QuestionDetail{}, err
	}
	d := QuestionDetail{Question: q}
	if d.Explanations, err = s.explanations(ctx, q.id, 0); err != nil {
		return QuestionDetail{}, err
	}
	if d.Tags, err = s.labels(ctx, tagLabelsSQL, q.id); err != nil {
		return QuestionDetail{}, err
	}
	if d.Subtopics, err = s.labels(ctx, subtopicNamesSQL, q.id); err != nil {
		return QuestionDetail{}, err
	}
	return d, nil
}

const (
	tagLabelsSQL = `SELECT DISTINCT t.label FROM question_tags qt JOIN tags t ON t.id = qt.tag_id
		WHERE qt.question_id=$1 ORDER BY t.label`
	subtopicNamesSQL = `SELECT st.name FROM question_subtopics qs JOIN subtopics st ON st.id = qs.subtopic_id
		WHERE qs.question_id=$1 ORDER BY st.name`
)

func (s *SQLStore) labels(ctx context.Context, query string, questionID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// explanations returns a question's explanations by ascending version. With
// latest > 0 it returns only the newest ones, newest first.
func (s *SQLStore) explanations(ctx context.Context, questionID int64, latest int) ([]Explanation, error) {
	q := `SELECT body, version, source FROM explanations WHERE question_id=$1 ORDER BY version, id`
	args := []any{questionID}
	if latest > 0 {
		q = `SELECT body, version, source FROM explanations WHERE question_id=$1
			ORDER BY version DESC, id DESC LIMIT $2`
		args = append(args, latest)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Explanation{}
	for rows.Next() {
		var e Explanation
		var src sql.NullString
		if err := rows.Scan(&e.Body, &e.Version, &src); err != nil {
			return nil, err
		}
		e.Source = src.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// argList accumulates positional arguments and hands out their placeholders.
type argList []any

func (a *argList) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

var missingClause = map[Kind]string{
	KindExplanation: `NOT EXISTS (SELECT 1 FROM explanations e WHERE e.question_id = q.id)`,
	KindTag:         `NOT EXISTS (SELECT 1 FROM question_tags qt WHERE qt.question_id = q.id)`,
	KindSubtopic:    `NOT EXISTS (SELECT 1 FROM question_subtopics qs WHERE qs.question_id = q.id)`,
}

func (s *SQLStore) Select(ctx context.Context, opts SelectOpts) ([]Question, error) {
	var (
		args  argList
		where []string
	)
	if opts.Serials != nil {
		if len(opts.Serials) == 0 {
			return []Question{}, nil
		}
		ph := make([]string, len(opts.Serials))
		for i, sn := range opts.Serials {
			ph[i] = args.add(sn)
		}
		where = append(where, "q.serial IN ("+strings.Join(ph, ",")+")")
	}
	if opts.ExamTypeCode != "" {
		where = append(where, "q.exam_type_code = "+args.add(opts.ExamTypeCode))
	}
	if opts.ExamSession > 0 {
		where = append(where, "q.exam_session = "+args.add(opts.ExamSession))
	}
	if opts.Subject != "" {
		where = append(where, "s.name = "+args.add(opts.Subject))
	}
	for _, k := range opts.Unannotated {
		c, ok := missingClause[k]
		if !ok {
			return nil, fmt.Errorf("unknown annotation kind %q", k)
		}
		where = append(where, c)
	}

	query := `SELECT ` + questionCols + ` FROM questions q LEFT JOIN subjects s ON s.id = q.subject_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch opts.Order {
	case "new":
		query += ` ORDER BY q.exam_session DESC, q.serial DESC`
	default:
		query += ` ORDER BY q.serial`
	}
	if opts.Limit > 0 {
		query += ` LIMIT ` + args.add(opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListDetails loads every question with its annotations, ordered by serial.
func (s *SQLStore) ListDetails(ctx context.Context) ([]QuestionDetail, error) {
	qs, err := s.Select(ctx, SelectOpts{})
	if err != nil {
		return nil, err
	}

	exps := map[int64][]Explanation{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, body, version, source FROM explanations ORDER BY version, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int64
		var e Explanation
		var src sql.NullString
		if err := rows.Scan(&id, &e.Body, &e.Version, &src); err != nil {
			rows.Close()
			return nil, err
		}
		e.Source = src.String
		exps[id] = append(exps[id], e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := s.labelMap(ctx, `SELECT DISTINCT qt.question_id, t.label FROM question_tags qt
		JOIN tags t ON t.id = qt.tag_id ORDER BY t.label`)
	if err != nil {
		return nil, err
	}
	subs, err := s.labelMap(ctx, `SELECT qs.question_id, st.name FROM question_subtopics qs
		JOIN subtopics st ON st.id = qs.subtopic_id ORDER BY st.name`)
	if err != nil {
		return nil, err
	}

	out := make([]QuestionDetail, 0, len(qs))
	for _, q := range qs {
		d := QuestionDetail{Question: q, Explanations: exps[q.id], Tags: tags[q.id], Subtopics: subs[q.id]}
		if d.Explanations == nil {
			d.Explanations = []Explanation{}
		}
		if d.Tags == nil {
			d.Tags = []string{}
		}
		if d.Subtopics == nil {
			d.Subtopics = []string{}
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *SQLStore) labelMap(ctx context.Context, query string) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]string{}
	for rows.Next() {
		var id int64
		var v string
		if err := rows.Scan(&id, &v); err != nil {
			return nil, err
		}
		out[id] = append(out[id], v)
	}
	return out, rows.Err()
}

func (s *SQLStore) Progress(ctx context.Context) (Progress, error) {
	var p Progress
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM questions),
		(SELECT COUNT(DISTINCT question_id) FROM explanations),
		(SELECT COUNT(DISTINCT question_id) FROM question_tags),
		(SELECT COUNT(DISTINCT question_id) FROM question_subtopics)`).
		Scan(&p.TotalQuestions, &p.Explained, &p.Tagged, &p.SubtopicAssigned)
	if err != nil {
		return Progress{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT s.name,
		COUNT(q.id),
		SUM(CASE WHEN `+exists("explanations")+` THEN 1 ELSE 0 END),
		SUM(CASE WHEN `+exists("question_tags")+` THEN 1 ELSE 0 END),
		SUM(CASE WHEN `+exists("question_subtopics")+` THEN 1 ELSE 0 END)
		FROM subjects s LEFT JOIN questions q ON q.subject_id = s.id
		GROUP BY s.name ORDER BY s.name`)
	if err != nil {
		return Progress{}, err
	}
	defer rows.Close()
	p.BySubject = []SubjectProgress{}
	for rows.Next() {
		var sp SubjectProgress
		if err := rows.Scan(&sp.Subject, &sp.TotalQuestions, &sp.Explained, &sp.Tagged, &sp.SubtopicAssigned); err != nil {
			return Progress{}, err
		}
		p.BySubject = append(p.BySubject, sp)
	}
	return p, rows.Err()
}

func exists(table string) string {
	return `EXISTS (SELECT 1 FROM ` + table + ` a WHERE a.question_id = q.id)`
}

// History lists recent annotation writes: explanations first, then tags, then
// subtopics, cut at limit.
func (s *SQLStore) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	queries := []struct {
		kind  Kind
		query string
	}{
		{KindExplanation, `SELECT e.id, q.serial, e.body FROM explanations e
			JOIN questions q ON q.id = e.question_id ORDER BY e.id DESC LIMIT $1`},
		{KindTag, `SELECT 0, q.serial, t.label FROM question_tags qt
			JOIN questions q ON q.id = qt.question_id JOIN tags t ON t.id = qt.tag_id
			ORDER BY qt.created_at DESC, q.serial DESC, t.label LIMIT $1`},
		{KindSubtopic, `SELECT 0, q.serial, st.name FROM question_subtopics qs
			JOIN questions q ON q.id = qs.question_id JOIN subtopics st ON st.id = qs.subtopic_id
			ORDER BY qs.created_at DESC, q.serial DESC, st.name LIMIT $1`},
	}
	out := []HistoryEntry{}
	for _, hq := range queries {
		rows, err := s.db.QueryContext(ctx, hq.query, limit)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			h := HistoryEntry{Type: hq.kind}
			if err := rows.Scan(&h.ID, &h.Serial, &h.Text); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, h)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Preview finds questions by exact serial or stem substring.
func (s *SQLStore) Preview(ctx context.Context, query string) ([]PreviewItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []PreviewItem{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionCols+`
		FROM questions q LEFT JOIN subjects s ON s.id = q.subject_id
		WHERE q.serial = $1 OR q.stem LIKE $2
		ORDER BY q.serial LIMIT 20`, query, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	var qs []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		qs = append(qs, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]PreviewItem, 0, len(qs))
	for _, q := range qs {
		it := PreviewItem{
			Serial: q.Serial, Subject: q.Subject, Stem: q.Stem, Choices: q.Choices,
			AnswerIndices: q.AnswerIndices, AnswerNone: q.AnswerNone,
		}
		if it.Explanations, err = s.explanations(ctx, q.id, 3); err != nil {
			return nil, err
		}
		if it.Tags, err = s.labels(ctx, tagLabelsSQL, q.id); err != nil {
			return nil, err
		}
		if it.Subtopics, err = s.labels(ctx, subtopicNamesSQL, q.id); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Missing lists questions lacking every listed kind. No kinds, no rows.
func (s *SQLStore) Missing(ctx context.Context, kinds []Kind, limit int) ([]MissingRow, error) {
	out := []MissingRow{}
	if len(kinds) == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = 200
	}
	where := make([]string, 0, len(kinds))
	for _, k := range kinds {
		c, ok := missingClause[k]
		if !ok {
			return nil, fmt.Errorf("unknown annotation kind %q", k)
		}
		where = append(where, c)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT q.serial, s.name, q.stem
		FROM questions q LEFT JOIN subjects s ON s.id = q.subject_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY q.serial LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m MissingRow
		var subject sql.NullString
		if err := rows.Scan(&m.Serial, &subject, &m.Stem); err != nil {
			return nil, err
		}
		m.Subject = strPtr(subject)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLStore) AddReport(ctx context.Context, serial string, kind Kind) error {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return errors.New("serial required")
	}
	col, ok := flagColumn[kind]
	if !ok {
		return fmt.Errorf("unknown annotation kind %q", kind)
	}
	flags := map[string]int{"explanation_flag": 0, "tag_flag": 0, "subtopic_flag": 0}
	flags[col] = 1
	_, err := s.db.ExecContext(ctx, `INSERT INTO feedback_reports
		(serial, explanation_flag, tag_flag, subtopic_flag, reported_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (serial) DO UPDATE SET `+col+`=1, reported_at=EXCLUDED.reported_at`,
		serial, flags["explanation_flag"], flags["tag_flag"], flags["subtopic_flag"], time.Now().Unix())
	return err
}

func (s *SQLStore) ListReports(ctx context.Context) ([]FeedbackReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT serial, explanation_flag, tag_flag, subtopic_flag, reported_at
		FROM feedback_reports ORDER BY reported_at DESC, serial`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FeedbackReport{}
	for rows.Next() {
		var r FeedbackReport
		var e, t, st int
		if err := rows.Scan(&r.Serial, &e, &t, &st, &r.ReportedAt); err != nil {
			return nil, err
		}
		r.Explanation, r.Tag, r.Subtopic = e != 0, t != 0, st != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ClearReports(ctx context.Context, items []ClearItem) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, it := range items {
			if it.Serial == "" {
				continue
			}
			for _, k := range it.Kinds {
				if err := tx.ClearFeedback(ctx, it.Serial, k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

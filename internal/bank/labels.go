package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

// LabelMap re-points labels: source label -> target label, per kind.
type LabelMap struct {
	Tags      map[string]string `json:"tags"`
	Subtopics map[string]string `json:"subtopics"`
}

// LabelCandidates groups labels that only differ in spacing, keyed by the
// collapsed form.
type LabelCandidates struct {
	Tags      map[string][]string `json:"tags"`
	Subtopics map[string][]string `json:"subtopics"`
}

// MergeResult counts the labels actually merged.
type MergeResult struct {
	Tags      int `json:"tags"`
	Subtopics int `json:"subtopics"`
}

type labelTable struct {
	table, col, link, linkCol, linkCols string
}

var labelTables = map[Kind]labelTable{
	KindTag: {table: "tags", col: "label", link: "question_tags", linkCol: "tag_id",
		linkCols: "question_id, source, created_at"},
	KindSubtopic: {table: "subtopics", col: "name", link: "question_subtopics", linkCol: "subtopic_id",
		linkCols: "question_id, created_at"},
}

type stmt struct {
	q    string
	args []any
}

// MergeLabel moves every question link from src to dst and deletes src. The
// dst label is created when missing. It reports false when src does not exist
// or equals dst.
func (t *Tx) MergeLabel(ctx context.Context, kind Kind, src, dst string) (bool, error) {
	lt, ok := labelTables[kind]
	if !ok {
		return false, fmt.Errorf("labels of kind %q cannot be merged", kind)
	}
	if src == dst || strings.TrimSpace(dst) == "" {
		return false, nil
	}
	var srcID int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM `+lt.table+` WHERE `+lt.col+`=$1`, src).Scan(&srcID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	dstID, err := t.ensureLabel(ctx, lt.table, lt.col, dst)
	if err != nil {
		return false, err
	}
	// links already present on dst win; the rest are copied over
	stmts := []stmt{
		{`INSERT INTO ` + lt.link + ` (` + lt.linkCol + `, ` + lt.linkCols + `)
		 SELECT CAST($1 AS BIGINT), ` + lt.linkCols + ` FROM ` + lt.link + ` WHERE ` + lt.linkCol + `=$2
		 ON CONFLICT DO NOTHING`, []any{dstID, srcID}},
		{`DELETE FROM ` + lt.link + ` WHERE ` + lt.linkCol + `=$1`, []any{srcID}},
	}
	if kind == KindSubtopic {
		stmts = append(stmts, stmt{`UPDATE subtopics SET parent_id=$1 WHERE parent_id=$2`, []any{dstID, srcID}})
	}
	for _, st := range stmts {
		if _, err := t.tx.ExecContext(ctx, st.q, st.args...); err != nil {
			return false, fmt.Errorf("merge %s %q: %w", lt.table, src, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+lt.table+` WHERE id=$1`, srcID); err != nil {
		return false, fmt.Errorf("merge %s %q: %w", lt.table, src, err)
	}
	return true, nil
}

// Labels lists every stored label of kind in order.
func (s *SQLStore) Labels(ctx context.Context, kind Kind) ([]string, error) {
	lt, ok := labelTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown label kind %q", kind)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+lt.col+` FROM `+lt.table+` ORDER BY `+lt.col)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) LabelCandidates(ctx context.Context) (LabelCandidates, error) {
	tags, err := s.Labels(ctx, KindTag)
	if err != nil {
		return LabelCandidates{}, err
	}
	subs, err := s.Labels(ctx, KindSubtopic)
	if err != nil {
		return LabelCandidates{}, err
	}
	return LabelCandidates{Tags: GroupVariants(tags), Subtopics: GroupVariants(subs)}, nil
}

// CollapseSpace trims a label and folds every whitespace run, ideographic
// spaces included, to one ASCII space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GroupVariants returns the groups of two or more labels sharing a
// collapsed form. Variants are sorted.
func GroupVariants(labels []string) map[string][]string {
	groups := map[string]map[string]bool{}
	for _, l := range labels {
		k := CollapseSpace(l)
		if groups[k] == nil {
			groups[k] = map[string]bool{}
		}
		groups[k][l] = true
	}
	out := map[string][]string{}
	for k, set := range groups {
		if len(set) < 2 {
			continue
		}
		vs := make([]string, 0, len(set))
		for v := range set {
			vs = append(vs, v)
		}
		sort.Strings(vs)
		out[k] = vs
	}
	return out
}

// CandidateMap turns candidate groups into a map that folds every variant
// onto its collapsed form.
func CandidateMap(c LabelCandidates) LabelMap {
	fold := func(groups map[string][]string) map[string]string {
		m := map[string]string{}
		for k, vs := range groups {
			for _, v := range vs {
				if v != k {
					m[v] = k
				}
			}
		}
		return m
	}
	return LabelMap{Tags: fold(c.Tags), Subtopics: fold(c.Subtopics)}
}

// ApplyLabelMap merges every mapped label in one transaction and records a
// LabelsMerged event.
func (s *SQLStore) ApplyLabelMap(ctx context.Context, m LabelMap) (MergeResult, error) {
	var res MergeResult
	err := s.WithTx(ctx, func(tx *Tx) error {
		for _, part := range []struct {
			kind Kind
			m    map[string]string
			n    *int
		}{
			{KindTag, m.Tags, &res.Tags},
			{KindSubtopic, m.Subtopics, &res.Subtopics},
		} {
			srcs := make([]string, 0, len(part.m))
			for src := range part.m {
				srcs = append(srcs, src)
			}
			sort.Strings(srcs)
			for _, src := range srcs {
				merged, err := tx.MergeLabel(ctx, part.kind, src, part.m[src])
				if err != nil {
					return err
				}
				if merged {
					*part.n++
				}
			}
		}
		ev, err := syncx.NewEvent(syncx.EventLabelsMerged, "labels", res)
		if err != nil {
			return err
		}
		return tx.LogEvent(ctx, ev)
	})
	if err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

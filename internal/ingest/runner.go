// Package ingest runs the extraction pipeline over a batch of source files
// and commits the results to the question bank.
package ingest

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/extract"
	"github.com/mind-engage/kokushi-qbank/internal/platform/logger"
	"github.com/mind-engage/kokushi-qbank/internal/source"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

// DocumentReport is the per-file outcome of a run.
type DocumentReport struct {
	Path                string `json:"path"`
	Recognized          bool   `json:"recognized"`
	Prefix              string `json:"prefix,omitempty"`
	Records             int    `json:"records"`
	Skipped             int    `json:"skipped"`
	CaseGroups          int    `json:"case_groups"`
	OrphanReferences    int    `json:"orphan_references"`
	CaseIntroWithSerial int    `json:"case_intro_with_serial"`
	ZeroChoice          int    `json:"zero_choice"`
	NoAnswerLine        int    `json:"no_answer_line"`
	Err                 string `json:"error,omitempty"`
}

func (r DocumentReport) Failed() bool { return r.Err != "" }

// RunSummary is what the run event records.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Documents int    `json:"documents"`
	Failed    int    `json:"failed"`
	Records   int    `json:"records"`
}

type Runner struct {
	store    bank.Store
	pipeline *extract.Pipeline
	log      *logger.Logger
	encoding string
	workers  int
}

func NewRunner(store bank.Store, p *extract.Pipeline, log *logger.Logger, encoding string, workers int) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{store: store, pipeline: p, log: log, encoding: encoding, workers: workers}
}

type parsed struct {
	doc extract.Document
	err error
}

// Run parses paths concurrently and commits each document in its own
// transaction, in sorted path order. A failing document is reported and the
// batch carries on; the returned error is only for the run itself (context
// cancellation or the final run event).
func (rn *Runner) Run(ctx context.Context, paths []string) ([]DocumentReport, error) {
	paths = append([]string(nil), paths...)
	sort.Strings(paths)
	runID := uuid.NewString()
	log := rn.log.With("run_id", runID)

	results := make([]parsed, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rn.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lines, err := source.ReadFile(p, rn.encoding)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].doc = rn.pipeline.Parse(lines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reports := make([]DocumentReport, len(paths))
	sum := RunSummary{RunID: runID, Documents: len(paths)}
	for i, p := range paths {
		rep := DocumentReport{Path: p}
		res := results[i]
		if res.err == nil {
			rep = reportOf(p, res.doc)
			res.err = rn.commit(ctx, runID, p, res.doc)
		}
		if res.err != nil {
			rep.Err = res.err.Error()
			sum.Failed++
			log.Error("ingest document failed", "path", p, "error", res.err)
		} else {
			sum.Records += rep.Records
			rn.logDocument(log, rep)
		}
		reports[i] = rep
	}

	ev, err := syncx.NewEvent(syncx.EventIngestRun, runID, sum)
	if err != nil {
		return reports, err
	}
	if err := rn.store.WithTx(ctx, func(tx *bank.Tx) error { return tx.LogEvent(ctx, ev) }); err != nil {
		return reports, err
	}
	log.Info("ingest run finished", "documents", sum.Documents, "failed", sum.Failed, "records", sum.Records)
	return reports, nil
}

func (rn *Runner) commit(ctx context.Context, runID, path string, doc extract.Document) error {
	if !doc.Report.Recognized {
		return nil
	}
	ev, err := syncx.NewEvent(syncx.EventDocumentIngested, filepath.Base(path), struct {
		RunID  string         `json:"run_id"`
		Report extract.Report `json:"report"`
	}{runID, doc.Report})
	if err != nil {
		return err
	}
	return rn.store.WithTx(ctx, func(tx *bank.Tx) error {
		for _, r := range doc.Records {
			if err := tx.UpsertRecord(ctx, r); err != nil {
				return err
			}
		}
		return tx.LogEvent(ctx, ev)
	})
}

func (rn *Runner) logDocument(log *logger.Logger, rep DocumentReport) {
	kv := []any{
		"path", rep.Path, "prefix", rep.Prefix, "records", rep.Records, "skipped", rep.Skipped,
		"case_groups", rep.CaseGroups, "orphan_references", rep.OrphanReferences,
		"zero_choice", rep.ZeroChoice, "no_answer_line", rep.NoAnswerLine,
	}
	switch {
	case !rep.Recognized:
		log.Warn("ingest document not recognized", "path", rep.Path)
	case rep.CaseIntroWithSerial > 0:
		log.Warn("ingest document has case intro inside a question", append(kv, "case_intro_with_serial", rep.CaseIntroWithSerial)...)
	default:
		log.Info("ingest document", kv...)
	}
}

func reportOf(path string, doc extract.Document) DocumentReport {
	r := doc.Report
	rep := DocumentReport{
		Path:                path,
		Recognized:          r.Recognized,
		Records:             r.Records,
		Skipped:             r.Skipped,
		CaseGroups:          r.CaseGroups,
		OrphanReferences:    r.OrphanReferences,
		CaseIntroWithSerial: r.CaseIntroWithSerial,
		ZeroChoice:          r.ZeroChoice,
		NoAnswerLine:        r.NoAnswerLine,
	}
	if r.Recognized {
		rep.Prefix = doc.Header.Prefix()
	}
	return rep
}

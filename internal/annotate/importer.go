package annotate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/platform/logger"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

var ErrInvalidMode = errors.New("invalid import mode")

// Mode decides what happens when a question already carries the kind being
// imported.
type Mode string

const (
	ModeSkip    Mode = "skip"    // leave the question untouched
	ModeAppend  Mode = "append"  // add alongside existing rows
	ModeReplace Mode = "replace" // delete existing rows first
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case "":
		return ModeAppend, nil
	case ModeSkip, ModeAppend, ModeReplace:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Target is the shape of an import file.
type Target string

const (
	TargetExplanations Target = "explanations"
	TargetTags         Target = "tags"
	TargetSubtopics    Target = "subtopics"
	TargetCombined     Target = "combined"
)

func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.TrimSpace(s)); t {
	case TargetExplanations, TargetTags, TargetSubtopics, TargetCombined:
		return t, nil
	}
	return "", fmt.Errorf("unknown import kind %q", s)
}

func (t Target) includes(k bank.Kind) bool {
	switch t {
	case TargetCombined:
		return true
	case TargetExplanations:
		return k == bank.KindExplanation
	case TargetTags:
		return k == bank.KindTag
	case TargetSubtopics:
		return k == bank.KindSubtopic
	}
	return false
}

type Options struct {
	Explanation Mode
	Tag         Mode
	Subtopic    Mode
	Version     int    // explanation version; 0 means one past the stored maximum
	Source      string // default source label; "llm" when empty
}

func (o Options) mode(k bank.Kind) Mode {
	switch k {
	case bank.KindExplanation:
		return o.Explanation
	case bank.KindTag:
		return o.Tag
	default:
		return o.Subtopic
	}
}

func (o Options) validate() (Options, error) {
	var err error
	if o.Explanation, err = ParseMode(string(o.Explanation)); err != nil {
		return o, err
	}
	if o.Tag, err = ParseMode(string(o.Tag)); err != nil {
		return o, err
	}
	if o.Subtopic, err = ParseMode(string(o.Subtopic)); err != nil {
		return o, err
	}
	if o.Version < 0 {
		return o, fmt.Errorf("explanation version %d must not be negative", o.Version)
	}
	if o.Source == "" {
		o.Source = "llm"
	}
	return o, nil
}

// Result counts what one import file did.
type Result struct {
	Target         Target `json:"target"`
	Lines          int    `json:"lines"`
	Explanations   int    `json:"explanations"`
	Tags           int    `json:"tags"`
	Subtopics      int    `json:"subtopics"`
	UnknownSerials int    `json:"unknown_serials"`
	Skipped        int    `json:"skipped"`
}

type line struct {
	Serial      string `json:"serial"`
	Explanation any    `json:"explanation"`
	Source      string `json:"source"`
	Tags        []any  `json:"tags"`
	Subtopics   []any  `json:"subtopics"`
}

type Importer struct {
	store bank.Store
	log   *logger.Logger
}

func NewImporter(store bank.Store, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{store: store, log: log}
}

const maxLine = 4 << 20

// Import applies one JSONL file in a single transaction. A malformed line
// aborts the whole file; unknown serials and empty rows are counted and skipped.
func (im *Importer) Import(ctx context.Context, target Target, r io.Reader, opts Options) (Result, error) {
	opts, err := opts.validate()
	if err != nil {
		return Result{}, err
	}
	res := Result{Target: target}

	err = im.store.WithTx(ctx, func(tx *bank.Tx) error {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLine)
		n := 0
		for sc.Scan() {
			n++
			raw := strings.TrimSpace(sc.Text())
			if raw == "" {
				continue
			}
			res.Lines++
			var ln line
			if err := json.Unmarshal([]byte(raw), &ln); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			if err := im.apply(ctx, tx, target, ln, opts, &res); err != nil {
				return fmt.Errorf("line %d (%s): %w", n, ln.Serial, err)
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		ev, err := syncx.NewEvent(syncx.EventAnnotationImported, string(target), res)
		if err != nil {
			return err
		}
		return tx.LogEvent(ctx, ev)
	})
	if err != nil {
		return Result{}, err
	}
	im.log.Info("annotations imported",
		"target", target, "lines", res.Lines, "explanations", res.Explanations,
		"tags", res.Tags, "subtopics", res.Subtopics, "unknown_serials", res.UnknownSerials)
	return res, nil
}

func (im *Importer) apply(ctx context.Context, tx *bank.Tx, target Target, ln line, opts Options, res *Result) error {
	serial := strings.TrimSpace(ln.Serial)
	if serial == "" {
		res.Skipped++
		return nil
	}
	qid, err := tx.QuestionID(ctx, serial)
	if errors.Is(err, bank.ErrNotFound) {
		res.UnknownSerials++
		return nil
	}
	if err != nil {
		return err
	}
	source := strings.TrimSpace(ln.Source)
	if source == "" {
		source = opts.Source
	}

	if target.includes(bank.KindExplanation) {
		if body := strings.TrimSpace(labelOf(ln.Explanation)); body != "" {
			ok, err := im.prepare(ctx, tx, qid, bank.KindExplanation, opts.mode(bank.KindExplanation))
			if err != nil {
				return err
			}
			if ok {
				version := opts.Version
				if version == 0 {
					if version, err = tx.NextExplanationVersion(ctx, qid); err != nil {
						return err
					}
				}
				if err := tx.AddExplanation(ctx, qid, body, version, source); err != nil {
					return err
				}
				res.Explanations++
				if err := tx.ClearFeedback(ctx, serial, bank.KindExplanation); err != nil {
					return err
				}
			}
		}
	}

	if target.includes(bank.KindTag) && len(ln.Tags) > 0 {
		n, err := im.applyLabels(ctx, tx, qid, serial, bank.KindTag, ln.Tags, opts, func(label string) error {
			return tx.AddTag(ctx, qid, label, source)
		})
		if err != nil {
			return err
		}
		res.Tags += n
	}

	if target.includes(bank.KindSubtopic) && len(ln.Subtopics) > 0 {
		n, err := im.applyLabels(ctx, tx, qid, serial, bank.KindSubtopic, ln.Subtopics, opts, func(name string) error {
			return tx.AddSubtopic(ctx, qid, name)
		})
		if err != nil {
			return err
		}
		res.Subtopics += n
	}
	return nil
}

// prepare applies the mode for kind and reports whether rows may be written.
func (im *Importer) prepare(ctx context.Context, tx *bank.Tx, qid int64, kind bank.Kind, mode Mode) (bool, error) {
	switch mode {
	case ModeSkip:
		has, err := tx.HasAnnotation(ctx, qid, kind)
		return !has, err
	case ModeReplace:
		return true, tx.DeleteAnnotations(ctx, qid, kind)
	}
	return true, nil
}

func (im *Importer) applyLabels(ctx context.Context, tx *bank.Tx, qid int64, serial string, kind bank.Kind,
	values []any, opts Options, add func(string) error) (int, error) {
	mode := opts.mode(kind)
	ok, err := im.prepare(ctx, tx, qid, kind, mode)
	if err != nil || !ok {
		return 0, err
	}
	n := 0
	for _, v := range values {
		label := CollapseLabel(labelOf(v))
		if label == "" {
			continue
		}
		if err := add(label); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 || mode == ModeReplace {
		if err := tx.ClearFeedback(ctx, serial, kind); err != nil {
			return n, err
		}
	}
	return n, nil
}

// CollapseLabel trims a tag or subtopic and folds internal whitespace runs to
// one space.
func CollapseLabel(s string) string {
	return bank.CollapseSpace(s)
}

func labelOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

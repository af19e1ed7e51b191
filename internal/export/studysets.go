package export

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/mind-engage/kokushi-qbank/internal/storage"
)

const StudySetsKey = "study_sets.json"

// Study set groupings.
const (
	BySubject  = "subject"
	ByTag      = "tag"
	BySubtopic = "subtopic"
)

type StudySetOptions struct {
	Include []string // subset of subject, tag, subtopic; all when empty
	Limit   int      // max serials per set, 0 keeps every serial
	Seed    uint64
}

type StudySets struct {
	BySubject  map[string][]string `json:"by_subject,omitempty"`
	ByTag      map[string][]string `json:"by_tag,omitempty"`
	BySubtopic map[string][]string `json:"by_subtopic,omitempty"`
}

// ParseInclude reads a comma list of groupings.
func ParseInclude(s string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(s, ",") {
		switch p = strings.TrimSpace(p); p {
		case "":
		case BySubject, ByTag, BySubtopic:
			out = append(out, p)
		default:
			return nil, fmt.Errorf("unknown study set grouping %q", p)
		}
	}
	return out, nil
}

// BuildStudySets groups serials like the index files, then samples each set
// down to opts.Limit. Sampling is reproducible for a given seed and keeps
// serial order inside a set.
func BuildStudySets(qs []WebQuestion, opts StudySetOptions) StudySets {
	include := map[string]bool{}
	for _, g := range opts.Include {
		include[g] = true
	}
	all := len(include) == 0
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	bySubject, byTag, bySubtopic := buildIndexes(qs)
	var out StudySets
	if all || include[BySubject] {
		out.BySubject = capSets(bySubject, opts.Limit, rng)
	}
	if all || include[ByTag] {
		out.ByTag = capSets(byTag, opts.Limit, rng)
	}
	if all || include[BySubtopic] {
		out.BySubtopic = capSets(bySubtopic, opts.Limit, rng)
	}
	return out
}

func capSets(sets map[string][]string, limit int, rng *rand.Rand) map[string][]string {
	if limit <= 0 {
		return sets
	}
	names := make([]string, 0, len(sets))
	for n := range sets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		serials := sets[n]
		if len(serials) <= limit {
			continue
		}
		pick := rng.Perm(len(serials))[:limit]
		sort.Ints(pick)
		capped := make([]string, limit)
		for i, j := range pick {
			capped[i] = serials[j]
		}
		sets[n] = capped
	}
	return sets
}

// ExportStudySets writes study_sets.json and returns its key.
func (e *Exporter) ExportStudySets(ctx context.Context, opts StudySetOptions) (string, error) {
	details, err := e.store.ListDetails(ctx)
	if err != nil {
		return "", fmt.Errorf("load questions: %w", err)
	}
	qs := make([]WebQuestion, len(details))
	for i, d := range details {
		qs[i] = webQuestion(d)
	}
	key, err := storage.PutJSON(e.blobs, StudySetsKey, BuildStudySets(qs, opts))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", StudySetsKey, err)
	}
	e.log.Info("study sets written", "key", key, "limit", opts.Limit)
	return key, nil
}

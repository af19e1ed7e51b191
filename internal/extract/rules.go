package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Series maps a header substring to an exam type code.
type Series struct {
	Code   string `yaml:"code" json:"code"`
	Header string `yaml:"header" json:"header"`
	Name   string `yaml:"name" json:"name"`
}

// Rules is the versioned configuration consumed by the pipeline. It is never
// derived from input documents.
type Rules struct {
	QuestionMarker string            `yaml:"question_marker"`
	AnswerMarker   string            `yaml:"answer_marker"`
	Series         []Series          `yaml:"series"`
	SessionPattern string            `yaml:"session_pattern"` // one capture group of ASCII digits
	SubjectOpen    string            `yaml:"subject_open"`
	SubjectClose   string            `yaml:"subject_close"`
	SubjectAliases map[string]string `yaml:"subject_aliases"`
	CaseKeyword    string            `yaml:"case_keyword"`
	CaseIntro      string            `yaml:"case_intro"`
	NoneToken      string            `yaml:"none_token"`
	AllToken       string            `yaml:"all_token"`
	ChoiceCount    int               `yaml:"choice_count"`
}

func DefaultRules() Rules {
	return Rules{
		QuestionMarker: "問題",
		AnswerMarker:   "解答",
		Series: []Series{
			{Code: "A", Header: "あん摩マッサージ指圧師試験", Name: "あん摩マッサージ指圧師"},
			{Code: "B", Header: "はり師・きゆう師試験", Name: "はり師・きゆう師"},
		},
		SessionPattern: `第([0-9]+)回`,
		SubjectOpen:    "《",
		SubjectClose:   "》",
		SubjectAliases: map[string]string{
			"衛生学／公衆衛生学": "衛生学・公衆衛生学",
		},
		CaseKeyword: "症例",
		CaseIntro:   `(次の.*症例|症例について)`,
		NoneToken:   "なし",
		AllToken:    "すべて",
		ChoiceCount: 4,
	}
}

// Merge fills every zero field of r from def.
func (r Rules) Merge(def Rules) Rules {
	if r.QuestionMarker == "" {
		r.QuestionMarker = def.QuestionMarker
	}
	if r.AnswerMarker == "" {
		r.AnswerMarker = def.AnswerMarker
	}
	if len(r.Series) == 0 {
		r.Series = def.Series
	}
	if r.SessionPattern == "" {
		r.SessionPattern = def.SessionPattern
	}
	if r.SubjectOpen == "" {
		r.SubjectOpen = def.SubjectOpen
	}
	if r.SubjectClose == "" {
		r.SubjectClose = def.SubjectClose
	}
	if r.SubjectAliases == nil {
		r.SubjectAliases = def.SubjectAliases
	}
	if r.CaseKeyword == "" {
		r.CaseKeyword = def.CaseKeyword
	}
	if r.CaseIntro == "" {
		r.CaseIntro = def.CaseIntro
	}
	if r.NoneToken == "" {
		r.NoneToken = def.NoneToken
	}
	if r.AllToken == "" {
		r.AllToken = def.AllToken
	}
	if r.ChoiceCount <= 0 {
		r.ChoiceCount = def.ChoiceCount
	}
	return r
}

// Pipeline is the compiled, immutable form of Rules. It is safe for
// concurrent use by multiple documents.
type Pipeline struct {
	rules Rules

	series    []Series
	aliases   map[string]string
	sessionRe *regexp.Regexp
	numberRe  *regexp.Regexp // question marker + digits at line start, ASCII only
	refRe     *regexp.Regexp // question marker + digits of either width
	subjectRe *regexp.Regexp
	caseRe    *regexp.Regexp

	serialRe        *regexp.Regexp // bare serial anywhere
	leadSerialRe    *regexp.Regexp // bare serial at text start
	stripSerialRe   *regexp.Regexp
	groupedSerialRe *regexp.Regexp
}

// New compiles rules. Missing fields fall back to DefaultRules.
func New(r Rules) (*Pipeline, error) {
	r = r.Merge(DefaultRules())

	var codes strings.Builder
	seen := map[string]bool{}
	for _, s := range r.Series {
		if len(s.Code) != 1 || s.Header == "" {
			return nil, fmt.Errorf("series %q: code must be one letter and header non-empty", s.Code)
		}
		if seen[s.Code] {
			return nil, fmt.Errorf("series %q: duplicate code", s.Code)
		}
		seen[s.Code] = true
		codes.WriteString(regexp.QuoteMeta(s.Code))
	}

	sessionRe, err := regexp.Compile(r.SessionPattern)
	if err != nil {
		return nil, fmt.Errorf("session pattern: %w", err)
	}
	if sessionRe.NumSubexp() < 1 {
		return nil, fmt.Errorf("session pattern %q needs a capture group", r.SessionPattern)
	}
	caseRe, err := regexp.Compile(r.CaseIntro)
	if err != nil {
		return nil, fmt.Errorf("case intro pattern: %w", err)
	}

	qm := regexp.QuoteMeta(r.QuestionMarker)
	open, shut := regexp.QuoteMeta(r.SubjectOpen), regexp.QuoteMeta(r.SubjectClose)
	cls := "[" + codes.String() + "]"

	aliases := make(map[string]string, len(r.SubjectAliases))
	for k, v := range r.SubjectAliases {
		aliases[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return &Pipeline{
		rules:           r,
		series:          append([]Series(nil), r.Series...),
		aliases:         aliases,
		sessionRe:       sessionRe,
		numberRe:        regexp.MustCompile(`^` + qm + `([0-9]+)`),
		refRe:           regexp.MustCompile(qm + `([0-9０-９]+)`),
		subjectRe:       regexp.MustCompile(open + `([^` + shut + `]+)` + shut),
		caseRe:          caseRe,
		serialRe:        regexp.MustCompile(cls + `[0-9]{2}-[0-9]{3}`),
		leadSerialRe:    regexp.MustCompile(`^` + cls + `[0-9]{2}-[0-9]{3}`),
		stripSerialRe:   regexp.MustCompile(`^\s*` + cls + `[0-9]{2}-[0-9]{3}\s*`),
		groupedSerialRe: regexp.MustCompile(`(` + cls + `[0-9]{2})-([0-9]{3})((?:[、,，][0-9]{1,3})+)`),
	}, nil
}

// MustNew is New for rule sets known to be valid, such as DefaultRules.
func MustNew(r Rules) *Pipeline {
	p, err := New(r)
	if err != nil {
		panic(err)
	}
	return p
}

// Rules returns a copy of the compiled rules.
func (p *Pipeline) Rules() Rules { return p.rules }

// SeriesByCode looks up an exam series by its type code.
func (p *Pipeline) SeriesByCode(code string) (Series, bool) {
	for _, s := range p.series {
		if s.Code == code {
			return s, true
		}
	}
	return Series{}, false
}

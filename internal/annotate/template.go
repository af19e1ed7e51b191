package annotate

import (
	"bytes"
	"encoding/json"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
)

// Template file names. The filled files come back with a "_filled" suffix.
const (
	ExplanationFile = "explanations_batch.jsonl"
	TagFile         = "tags_batch.jsonl"
	SubtopicFile    = "subtopics_batch.jsonl"
	CombinedFile    = "explanations_tags_subtopics_batch.jsonl"
)

type base struct {
	Serial   string   `json:"serial"`
	Subject  *string  `json:"subject"`
	CaseText *string  `json:"case_text"`
	Stem     string   `json:"stem"`
	Choices  []string `json:"choices"`
}

type answer struct {
	AnswerIndices []int   `json:"answer_indices"`
	AnswerNone    bool    `json:"answer_none"`
	AnswerText    *string `json:"answer_text"`
}

type explanationRow struct {
	base
	answer
	Explanation string `json:"explanation"`
	Source      string `json:"source"`
}

type tagRow struct {
	base
	Tags   []string `json:"tags"`
	Source string   `json:"source"`
}

type subtopicRow struct {
	base
	CandidateSubtopics []string `json:"candidate_subtopics"`
	Subtopics          []string `json:"subtopics"`
	Source             string   `json:"source"`
}

type combinedRow struct {
	base
	answer
	Explanation        string   `json:"explanation"`
	Tags               []string `json:"tags"`
	CandidateSubtopics []string `json:"candidate_subtopics"`
	Subtopics          []string `json:"subtopics"`
	Source             string   `json:"source"`
}

// Templates holds one JSONL document per annotation file shape.
type Templates struct {
	Count       int
	Explanation []byte
	Tag         []byte
	Subtopic    []byte
	Combined    []byte
}

// BuildTemplates renders blank annotation rows for the selected questions.
// Candidate subtopics come from catalog by subject.
func BuildTemplates(qs []bank.Question, catalog map[string][]string) (Templates, error) {
	var exp, tag, sub, comb jsonl
	for _, q := range qs {
		b := base{Serial: q.Serial, Subject: q.Subject, CaseText: q.CaseText, Stem: q.Stem, Choices: q.Choices}
		a := answer{AnswerIndices: q.AnswerIndices, AnswerNone: q.AnswerNone, AnswerText: q.AnswerText}
		candidates := []string{}
		if q.Subject != nil {
			if c, ok := catalog[*q.Subject]; ok {
				candidates = c
			}
		}
		exp.add(explanationRow{base: b, answer: a, Source: "llm"})
		tag.add(tagRow{base: b, Tags: []string{}, Source: "llm"})
		sub.add(subtopicRow{base: b, CandidateSubtopics: candidates, Subtopics: []string{}, Source: "llm"})
		comb.add(combinedRow{
			base: b, answer: a, Tags: []string{},
			CandidateSubtopics: candidates, Subtopics: []string{}, Source: "llm",
		})
	}
	for _, j := range []*jsonl{&exp, &tag, &sub, &comb} {
		if j.err != nil {
			return Templates{}, j.err
		}
	}
	return Templates{
		Count:       len(qs),
		Explanation: exp.buf.Bytes(),
		Tag:         tag.buf.Bytes(),
		Subtopic:    sub.buf.Bytes(),
		Combined:    comb.buf.Bytes(),
	}, nil
}

type jsonl struct {
	buf bytes.Buffer
	enc *json.Encoder
	err error
}

func (j *jsonl) add(v any) {
	if j.err != nil {
		return
	}
	if j.enc == nil {
		j.enc = json.NewEncoder(&j.buf)
		j.enc.SetEscapeHTML(false)
	}
	j.err = j.enc.Encode(v)
}

package bank

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// Kind names one annotation family attached to questions.
type Kind string

const (
	KindExplanation Kind = "explanation"
	KindTag         Kind = "tag"
	KindSubtopic    Kind = "subtopic"
)

var AllKinds = []Kind{KindExplanation, KindTag, KindSubtopic}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindExplanation, KindTag, KindSubtopic:
		return k, nil
	}
	return "", fmt.Errorf("unknown annotation kind %q", s)
}

type Question struct {
	Serial        string   `json:"serial"`
	ExamTypeCode  string   `json:"exam_type_code"`
	ExamType      string   `json:"exam_type"`
	ExamSession   int      `json:"exam_session"`
	Subject       *string  `json:"subject"`
	CaseText      *string  `json:"case_text"`
	Stem          string   `json:"stem"`
	Choices       []string `json:"choices"`
	AnswerText    *string  `json:"answer_text"`
	AnswerIndices []int    `json:"answer_indices"`
	AnswerNone    bool     `json:"answer_none"`
	RawText       string   `json:"raw_text,omitempty"`

	id int64
}

type Explanation struct {
	Body    string `json:"body"`
	Version int    `json:"version"`
	Source  string `json:"source,omitempty"`
}

// QuestionDetail is a question with every annotation attached. Explanations
// are ordered by version.
type QuestionDetail struct {
	Question
	Explanations []Explanation `json:"explanations"`
	Tags         []string      `json:"tags"`
	Subtopics    []string      `json:"subtopics"`
}

type SubjectProgress struct {
	Subject          string `json:"subject"`
	TotalQuestions   int    `json:"total_questions"`
	Explained        int    `json:"explained"`
	Tagged           int    `json:"tagged"`
	SubtopicAssigned int    `json:"subtopic_assigned"`
}

type Progress struct {
	TotalQuestions   int               `json:"total_questions"`
	Explained        int               `json:"explained"`
	Tagged           int               `json:"tagged"`
	SubtopicAssigned int               `json:"subtopic_assigned"`
	BySubject        []SubjectProgress `json:"by_subject"`
}

type HistoryEntry struct {
	Type   Kind   `json:"type"`
	ID     int64  `json:"id,omitempty"`
	Serial string `json:"serial"`
	Text   string `json:"text"`
}

type PreviewItem struct {
	Serial        string        `json:"serial"`
	Subject       *string       `json:"subject"`
	Stem          string        `json:"stem"`
	Choices       []string      `json:"choices"`
	AnswerIndices []int         `json:"answer_indices"`
	AnswerNone    bool          `json:"answer_none"`
	Explanations  []Explanation `json:"explanations"`
	Tags          []string      `json:"tags"`
	Subtopics     []string      `json:"subtopics"`
}

type MissingRow struct {
	Serial  string  `json:"serial"`
	Subject *string `json:"subject"`
	Stem    string  `json:"stem"`
}

type FeedbackReport struct {
	Serial      string `json:"serial"`
	Explanation bool   `json:"explanation"`
	Tag         bool   `json:"tag"`
	Subtopic    bool   `json:"subtopic"`
	ReportedAt  int64  `json:"reported_at"`
}

type ClearItem struct {
	Serial string `json:"serial"`
	Kinds  []Kind `json:"kinds"`
}

package extract

// QuestionRecord is the immutable output for one question. Choices serialize
// as an ordered list; AnswerIndices and AnswerNone stay separate fields.
type QuestionRecord struct {
	Serial        string   `json:"serial"`
	ExamTypeCode  string   `json:"exam_type_code"`
	ExamType      string   `json:"exam_type"`
	ExamSession   int      `json:"exam_session"`
	Subject       *string  `json:"subject"`
	CaseText      *string  `json:"case_text"`
	Stem          string   `json:"stem"`
	Choices       []string `json:"choices"`
	AnswerLine    *string  `json:"answer_text"`
	AnswerIndices []int    `json:"answer_indices"`
	AnswerNone    bool     `json:"answer_none"`
	RawText       string   `json:"raw_text"`
}

// Report carries the per-document counts a caller surfaces for a batch run.
type Report struct {
	Recognized   bool   `json:"recognized"`
	ExamTypeCode string `json:"exam_type_code,omitempty"`
	ExamSession  int    `json:"exam_session,omitempty"`

	Segments  int `json:"segments"`
	Questions int `json:"questions"` // question segments seen
	Records   int `json:"records"`
	// Skipped counts question blocks without a parseable number; the only
	// condition that discards text.
	Skipped int `json:"skipped"`

	CaseGroups          int `json:"case_groups"`
	OrphanReferences    int `json:"orphan_references"`
	CaseIntroWithSerial int `json:"case_intro_with_serial"`
	ZeroChoice          int `json:"zero_choice"`
	NoAnswerLine        int `json:"no_answer_line"`
}

// Document is the full result of running the pipeline on one source.
type Document struct {
	Header     Header
	Records    []QuestionRecord
	CaseGroups []CaseGroup
	Report     Report
}

// Parse runs every stage over one document's lines, in order.
func (p *Pipeline) Parse(lines []string) Document {
	segs := p.Segment(lines)

	var doc Document
	doc.Report.Segments = len(segs)
	for _, s := range segs {
		if s.Kind == KindQuestion {
			doc.Report.Questions++
		}
	}

	h, ok := p.AssignSerials(segs)
	if !ok {
		doc.Records = []QuestionRecord{}
		return doc
	}
	doc.Header = h
	doc.Report.Recognized = true
	doc.Report.ExamTypeCode = h.Series.Code
	doc.Report.ExamSession = h.Session
	for _, s := range segs {
		if s.Kind == KindQuestion && s.Serial == "" {
			doc.Report.Skipped++
		}
	}

	segs = p.PropagateSubjects(segs)
	segs, st := p.ResolveCaseGroups(segs)
	doc.CaseGroups = st.groups
	doc.Report.CaseGroups = len(st.groups)
	doc.Report.OrphanReferences = st.orphans
	doc.Report.CaseIntroWithSerial = st.introOnSerial

	doc.Records = make([]QuestionRecord, 0, len(segs))
	for _, s := range segs {
		c := p.ParseContent(s.Text)
		if len(c.Choices) == 0 {
			doc.Report.ZeroChoice++
		}
		if c.AnswerLine == nil {
			doc.Report.NoAnswerLine++
		}
		doc.Records = append(doc.Records, QuestionRecord{
			Serial:        s.Serial,
			ExamTypeCode:  h.Series.Code,
			ExamType:      h.Series.Name,
			ExamSession:   h.Session,
			Subject:       s.Subject,
			CaseText:      s.CaseText,
			Stem:          c.Stem,
			Choices:       c.Choices,
			AnswerLine:    c.AnswerLine,
			AnswerIndices: c.Answer.Indices,
			AnswerNone:    c.Answer.None,
			RawText:       s.Text,
		})
	}
	doc.Report.Records = len(doc.Records)
	return doc
}

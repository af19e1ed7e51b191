package extract

import "strings"

type SegmentKind int

const (
	KindPlain SegmentKind = iota
	KindQuestion
)

func (k SegmentKind) String() string {
	if k == KindQuestion {
		return "question"
	}
	return "plain"
}

// Segment is one raw block of a document. Serial, Subject and CaseText are
// attached by later stages; Text may be rewritten by the serial assigner.
type Segment struct {
	Kind     SegmentKind
	Text     string
	Serial   string
	Subject  *string
	CaseText *string
}

func (s Segment) FirstLine() string {
	if i := strings.IndexByte(s.Text, '\n'); i >= 0 {
		return s.Text[:i]
	}
	return s.Text
}

type segState int

const (
	stateOutside segState = iota
	stateInQuestion
)

type segmenter struct {
	questionMarker string
	answerMarker   string

	state segState
	acc   []string
	out   []Segment
}

func (m *segmenter) flush(kind SegmentKind) {
	if len(m.acc) == 0 {
		return
	}
	m.out = append(m.out, Segment{Kind: kind, Text: strings.Join(m.acc, "\n")})
	m.acc = nil
}

func (m *segmenter) feed(line string) {
	switch m.state {
	case stateOutside:
		if strings.HasPrefix(line, m.questionMarker) {
			m.flush(KindPlain)
			m.acc = append(m.acc, line)
			m.state = stateInQuestion
			return
		}
		// one plain segment per line
		m.acc = append(m.acc, line)
		m.flush(KindPlain)
	case stateInQuestion:
		if strings.HasPrefix(line, m.questionMarker) {
			// previous block never reached its answer line; keep it as a
			// question so it can still be numbered
			m.flush(KindQuestion)
			m.acc = append(m.acc, line)
			return
		}
		m.acc = append(m.acc, line)
		if strings.HasPrefix(line, m.answerMarker) {
			m.flush(KindQuestion)
			m.state = stateOutside
		}
	}
}

func (m *segmenter) finish() []Segment {
	if m.state == stateInQuestion {
		m.flush(KindQuestion)
	} else {
		m.flush(KindPlain)
	}
	return m.out
}

// Segment partitions lines into question and plain segments. Lines are
// trimmed and empty lines are dropped first.
func (p *Pipeline) Segment(lines []string) []Segment {
	m := &segmenter{
		questionMarker: p.rules.QuestionMarker,
		answerMarker:   p.rules.AnswerMarker,
	}
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		m.feed(ln)
	}
	return m.finish()
}

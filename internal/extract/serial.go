package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Serial is the canonical question identifier <Code><Session:02>-<Number:03>.
type Serial struct {
	Code    string
	Session int
	Number  int
}

func (s Serial) Prefix() string { return fmt.Sprintf("%s%02d-", s.Code, s.Session) }

func (s Serial) String() string { return fmt.Sprintf("%s%03d", s.Prefix(), s.Number) }

var serialShape = regexp.MustCompile(`^([A-Z])([0-9]{2})-([0-9]{3})$`)

// ParseSerial parses a serial of the exact canonical shape.
func ParseSerial(s string) (Serial, bool) {
	m := serialShape.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Serial{}, false
	}
	session, _ := strconv.Atoi(m[2])
	number, _ := strconv.Atoi(m[3])
	return Serial{Code: m[1], Session: session, Number: number}, true
}

// ExpandSerials expands a comma-separated selection such as
// "A09-001..A09-003,B33-131". Ranges are inclusive, swapped when given in
// descending order, and ignored when both ends do not share a prefix or are
// malformed. Plain entries pass through as written.
func ExpandSerials(text string) []string {
	var out []string
	for _, chunk := range strings.Split(text, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		start, end, isRange := strings.Cut(chunk, "..")
		if !isRange {
			out = append(out, chunk)
			continue
		}
		from, ok1 := ParseSerial(start)
		to, ok2 := ParseSerial(end)
		if !ok1 || !ok2 || from.Prefix() != to.Prefix() {
			continue
		}
		if from.Number > to.Number {
			from, to = to, from
		}
		for n := from.Number; n <= to.Number; n++ {
			out = append(out, Serial{Code: from.Code, Session: from.Session, Number: n}.String())
		}
	}
	return out
}

// Header is the outcome of classifying a document's first plain segment.
type Header struct {
	Series  Series
	Session int
}

func (h Header) Prefix() string { return fmt.Sprintf("%s%02d-", h.Series.Code, h.Session) }

// ClassifyHeader identifies the exam series and session of a document. ok is
// false for documents the pipeline does not recognize.
func (p *Pipeline) ClassifyHeader(segs []Segment) (Header, bool) {
	var text string
	found := false
	for _, s := range segs {
		if s.Kind == KindPlain {
			text, found = s.Text, true
			break
		}
	}
	if !found {
		return Header{}, false
	}
	text = NormalizeDigits(text)

	var series Series
	matched := false
	for _, s := range p.series {
		if strings.Contains(text, s.Header) {
			series, matched = s, true
			break
		}
	}
	if !matched {
		return Header{}, false
	}
	m := p.sessionRe.FindStringSubmatch(text)
	if m == nil {
		return Header{}, false
	}
	session, err := strconv.Atoi(m[1])
	if err != nil {
		return Header{}, false
	}
	return Header{Series: series, Session: session}, true
}

// AssignSerials tags every numbered question segment with its canonical serial
// and rewrites in-text local references. The local-number map is complete
// before any rewrite so forward references resolve.
func (p *Pipeline) AssignSerials(segs []Segment) (Header, bool) {
	h, ok := p.ClassifyHeader(segs)
	if !ok {
		return Header{}, false
	}
	prefix := h.Prefix()

	mapping := map[int]string{}
	for i := range segs {
		if segs[i].Kind != KindQuestion {
			continue
		}
		m := p.numberRe.FindStringSubmatch(NormalizeDigits(segs[i].FirstLine()))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		segs[i].Serial = prefix + fmt.Sprintf("%03d", n)
		mapping[n] = segs[i].Serial
	}

	for i := range segs {
		segs[i].Text = p.rewriteRefs(segs[i].Text, mapping)
	}
	return h, true
}

func (p *Pipeline) rewriteRefs(text string, mapping map[int]string) string {
	return p.refRe.ReplaceAllStringFunc(text, func(tok string) string {
		m := p.refRe.FindStringSubmatch(tok)
		n, err := strconv.Atoi(NormalizeDigits(m[1]))
		if err != nil {
			return tok
		}
		if serial, ok := mapping[n]; ok {
			return serial
		}
		return tok
	})
}

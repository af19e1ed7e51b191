package extract

import "strings"

// CanonicalSubject trims a subject label and collapses configured synonyms.
func (p *Pipeline) CanonicalSubject(name string) string {
	name = strings.TrimSpace(name)
	if alias, ok := p.aliases[name]; ok {
		return alias
	}
	return name
}

// PropagateSubjects assigns the most recent subject header to every following
// segment and drops the header segments themselves. Serial-less segments are
// kept: the case stage still needs them.
func (p *Pipeline) PropagateSubjects(segs []Segment) []Segment {
	var current *string
	out := segs[:0]
	for _, s := range segs {
		if s.Kind == KindPlain {
			if m := p.subjectRe.FindStringSubmatch(s.Text); m != nil {
				name := p.CanonicalSubject(m[1])
				current = &name
				continue
			}
		}
		s.Subject = current
		out = append(out, s)
	}
	return out
}

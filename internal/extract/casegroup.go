package extract

import (
	"regexp"
	"sort"
	"strings"
)

// CaseGroup is one shared vignette and the serials it applies to.
type CaseGroup struct {
	Serials []string `json:"serials"`
	Text    string   `json:"text"`
}

type caseStats struct {
	groups        []CaseGroup
	orphans       int
	introOnSerial int
}

var groupedNumber = regexp.MustCompile(`[0-9]{1,3}`)

// ReferencedSerials returns the sorted, de-duplicated serials named in text,
// either bare (B33-131) or grouped under one prefix (B33-131、132、133).
func (p *Pipeline) ReferencedSerials(text string) []string {
	text = NormalizeDigits(text)
	set := map[string]bool{}
	for _, s := range p.serialRe.FindAllString(text, -1) {
		set[s] = true
	}
	for _, m := range p.groupedSerialRe.FindAllStringSubmatch(text, -1) {
		prefix := m[1]
		set[prefix+"-"+m[2]] = true
		for _, num := range groupedNumber.FindAllString(m[3], -1) {
			set[prefix+"-"+pad3(num)] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func pad3(num string) string {
	for len(num) < 3 {
		num = "0" + num
	}
	return num
}

func (p *Pipeline) isCaseIntro(text string) bool {
	return strings.Contains(text, p.rules.CaseKeyword) && p.caseRe.MatchString(text)
}

func (p *Pipeline) startsWithSerial(text string) bool {
	return p.leadSerialRe.MatchString(text)
}

// ResolveCaseGroups attaches shared vignette text to every referenced
// question, then drops every segment that has no serial.
func (p *Pipeline) ResolveCaseGroups(segs []Segment) ([]Segment, caseStats) {
	var st caseStats

	bySerial := map[string][]int{}
	for i, s := range segs {
		if s.Serial != "" {
			bySerial[s.Serial] = append(bySerial[s.Serial], i)
		}
	}

	for i, s := range segs {
		if s.Serial != "" && p.isCaseIntro(s.Text) {
			// a numbered block that reads like a case intro; counted, never resolved
			st.introOnSerial++
		}
		if p.startsWithSerial(s.Text) || !p.isCaseIntro(s.Text) {
			continue
		}
		serials := p.ReferencedSerials(s.Text)
		if len(serials) == 0 {
			continue
		}

		lines := []string{s.Text}
		for j := i + 1; j < len(segs) && !p.startsWithSerial(segs[j].Text); j++ {
			lines = append(lines, segs[j].Text)
		}
		text := strings.Join(lines, "\n")
		st.groups = append(st.groups, CaseGroup{Serials: serials, Text: text})

		for _, sn := range serials {
			idx, ok := bySerial[sn]
			if !ok {
				st.orphans++
				continue
			}
			for _, k := range idx {
				t := text
				segs[k].CaseText = &t
			}
		}
	}

	out := segs[:0]
	for _, s := range segs {
		if s.Serial != "" {
			out = append(out, s)
		}
	}
	return out, st
}

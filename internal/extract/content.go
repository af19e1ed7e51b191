package extract

import (
	"regexp"
	"sort"
	"strings"
)

var choiceLine = regexp.MustCompile(`^[ 　]*([0-9０-９]+)[.．]\s*(.*)$`)

// Answer is the parsed answer line. Indices and None are independent facts:
// a record with no answer line has neither.
type Answer struct {
	Indices []int
	None    bool
}

// Content is the stem/choices/answer split of one question block.
type Content struct {
	Stem       string
	Choices    []string
	AnswerLine *string
	Answer     Answer
}

type choiceState int

const (
	beforeChoices choiceState = iota
	inChoices
)

// ParseContent splits a block into stem, ordered choices and answer. It
// never fails; a block without choices yields an empty choice list.
func (p *Pipeline) ParseContent(text string) Content {
	text = p.stripSerialRe.ReplaceAllString(text, "")

	var answerLine *string
	var content []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if strings.HasPrefix(ln, p.rules.AnswerMarker) {
			a := ln
			answerLine = &a
			continue
		}
		content = append(content, ln)
	}

	state := beforeChoices
	var stem []string
	choices := []string{}
	for _, ln := range content {
		if m := choiceLine.FindStringSubmatch(ln); m != nil {
			choices = append(choices, strings.TrimSpace(m[2]))
			state = inChoices
			continue
		}
		switch state {
		case inChoices:
			// wrapped choice text binds to the latest choice, never to the stem
			choices[len(choices)-1] += "\n" + ln
		default:
			stem = append(stem, ln)
		}
	}

	c := Content{
		Stem:       strings.TrimSpace(strings.Join(stem, "\n")),
		Choices:    choices,
		AnswerLine: answerLine,
		Answer:     Answer{Indices: []int{}},
	}
	if c.Stem == "" {
		c.Stem = strings.TrimSpace(strings.Join(content, "\n"))
	}
	if answerLine != nil {
		c.Answer = p.ParseAnswer(*answerLine)
	}
	return c
}

// ParseAnswer reads selected choice indices from an answer line.
func (p *Pipeline) ParseAnswer(line string) Answer {
	line = NormalizeDigits(line)
	if p.rules.NoneToken != "" && strings.Contains(line, p.rules.NoneToken) {
		return Answer{Indices: []int{}, None: true}
	}
	n := p.rules.ChoiceCount
	if p.rules.AllToken != "" && strings.Contains(line, p.rules.AllToken) {
		all := make([]int, n)
		for i := range all {
			all[i] = i + 1
		}
		return Answer{Indices: all}
	}
	seen := map[int]bool{}
	indices := []int{}
	for _, r := range line {
		if r < '1' || r > '9' {
			continue
		}
		d := int(r - '0')
		if d > n || seen[d] {
			continue
		}
		seen[d] = true
		indices = append(indices, d)
	}
	sort.Ints(indices)
	return Answer{Indices: indices}
}

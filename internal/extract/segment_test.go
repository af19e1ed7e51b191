package extract

import (
	"reflect"
	"testing"
)

func kinds(segs []Segment) []SegmentKind {
	out := make([]SegmentKind, len(segs))
	for i, s := range segs {
		out[i] = s.Kind
	}
	return out
}

func TestSegment(t *testing.T) {
	p := MustNew(DefaultRules())

	tests := []struct {
		name  string
		lines []string
		kinds []SegmentKind
		texts []string
	}{
		{
			name:  "header then question",
			lines: []string{"第9回 はり師・きゆう師試験", "", "問題1 stem", "1. a", "  解答1  "},
			kinds: []SegmentKind{KindPlain, KindQuestion},
			texts: []string{"第9回 はり師・きゆう師試験", "問題1 stem\n1. a\n解答1"},
		},
		{
			name:  "plain lines stay separate",
			lines: []string{"one", "two"},
			kinds: []SegmentKind{KindPlain, KindPlain},
			texts: []string{"one", "two"},
		},
		{
			name:  "case text inside a question is kept",
			lines: []string{"問題2 stem", "extra context", "1. a", "解答1", "trailer"},
			kinds: []SegmentKind{KindQuestion, KindPlain},
			texts: []string{"問題2 stem\nextra context\n1. a\n解答1", "trailer"},
		},
		{
			name:  "question without answer line closes on next question",
			lines: []string{"問題3 stem", "1. a", "問題4 stem", "解答2"},
			kinds: []SegmentKind{KindQuestion, KindQuestion},
			texts: []string{"問題3 stem\n1. a", "問題4 stem\n解答2"},
		},
		{
			name:  "unterminated question at end of input",
			lines: []string{"問題5 stem", "1. a"},
			kinds: []SegmentKind{KindQuestion},
			texts: []string{"問題5 stem\n1. a"},
		},
		{
			name:  "answer marker outside a question is plain",
			lines: []string{"解答用紙"},
			kinds: []SegmentKind{KindPlain},
			texts: []string{"解答用紙"},
		},
		{
			name:  "empty input",
			lines: nil,
			kinds: []SegmentKind{},
			texts: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := p.Segment(tt.lines)
			if got := kinds(segs); !reflect.DeepEqual(got, tt.kinds) {
				t.Fatalf("kinds = %v, want %v", got, tt.kinds)
			}
			for i, s := range segs {
				if s.Text != tt.texts[i] {
					t.Errorf("segment %d text = %q, want %q", i, s.Text, tt.texts[i])
				}
			}
		})
	}
}

func TestSegmentKindString(t *testing.T) {
	if KindQuestion.String() != "question" || KindPlain.String() != "plain" {
		t.Fatalf("unexpected kind names %q %q", KindQuestion, KindPlain)
	}
}

package extract

import "testing"

func TestPropagateSubjects(t *testing.T) {
	p := MustNew(DefaultRules())
	segs := []Segment{
		{Kind: KindPlain, Text: "header"},
		{Kind: KindPlain, Text: "《衛生学》"},
		{Kind: KindQuestion, Text: "q1", Serial: "B09-001"},
		{Kind: KindQuestion, Text: "q2", Serial: "B09-002"},
		{Kind: KindQuestion, Text: "q3", Serial: "B09-003"},
		{Kind: KindPlain, Text: "《 解剖学 》"},
		{Kind: KindQuestion, Text: "q4", Serial: "B09-004"},
		{Kind: KindQuestion, Text: "q5 mentions 《書名》 inline", Serial: "B09-005"},
	}
	out := p.PropagateSubjects(segs)
	if len(out) != 6 {
		t.Fatalf("got %d segments, want 6", len(out))
	}
	if out[0].Subject != nil {
		t.Errorf("segment before first header got subject %q", *out[0].Subject)
	}
	want := map[string]string{
		"B09-001": "衛生学", "B09-002": "衛生学", "B09-003": "衛生学",
		"B09-004": "解剖学", "B09-005": "解剖学",
	}
	for _, s := range out[1:] {
		if s.Subject == nil || *s.Subject != want[s.Serial] {
			t.Errorf("%s: subject = %v, want %q", s.Serial, s.Subject, want[s.Serial])
		}
	}
}

func TestCanonicalSubjectAliases(t *testing.T) {
	p := MustNew(DefaultRules())
	if got := p.CanonicalSubject(" 衛生学／公衆衛生学 "); got != "衛生学・公衆衛生学" {
		t.Fatalf("alias not applied: %q", got)
	}
	if got := p.CanonicalSubject("東洋医学概論"); got != "東洋医学概論" {
		t.Fatalf("unexpected rewrite: %q", got)
	}

	r := DefaultRules()
	r.SubjectAliases = map[string]string{"生理学Ⅰ": "生理学"}
	custom := MustNew(r)
	if got := custom.CanonicalSubject("生理学Ⅰ"); got != "生理学" {
		t.Fatalf("custom alias not applied: %q", got)
	}
}

func TestPropagateSubjectsKeepsQuestionWithBracketedTitle(t *testing.T) {
	p := MustNew(DefaultRules())
	out := p.PropagateSubjects([]Segment{
		{Kind: KindPlain, Text: "《東洋医学概論》"},
		{Kind: KindQuestion, Text: "《素問》", Serial: "B09-010"},
	})
	if len(out) != 1 || out[0].Serial != "B09-010" || *out[0].Subject != "東洋医学概論" {
		t.Fatalf("question was treated as a subject header: %+v", out)
	}
}

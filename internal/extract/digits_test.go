package extract

import "testing"

func TestNormalizeDigits(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"第３３回", "第33回"},
		{"０１２３４５６７８９", "0123456789"},
		{"already 42", "already 42"},
		{"解答１、３", "解答1、3"},
		{"ＡＢＣ１", "ＡＢＣ1"}, // only digits fold
	}
	for _, c := range cases {
		if got := NormalizeDigits(c.in); got != c.want {
			t.Errorf("NormalizeDigits(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeDigitsIdempotent(t *testing.T) {
	inputs := []string{"問題１２", "mixed ９ and 9", "《衛生学》", "　０　"}
	for _, in := range inputs {
		once := NormalizeDigits(in)
		if twice := NormalizeDigits(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

package source

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf16"
)

func utf16le(s string, bom bool) []byte {
	var out []byte
	if bom {
		out = append(out, 0xFF, 0xFE)
	}
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func utf16be(s string, bom bool) []byte {
	var out []byte
	if bom {
		out = append(out, 0xFE, 0xFF)
	}
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

func TestDecode(t *testing.T) {
	text := "第９回 試験\r\n問題１ ABC\n解答２"
	want := []string{"第９回 試験", "問題１ ABC", "解答２"}

	cases := []struct {
		name string
		in   []byte
		enc  string
	}{
		{"utf16le bom auto", utf16le(text, true), EncodingAuto},
		{"utf16be bom auto", utf16be(text, true), ""},
		{"utf16le no bom sniffed", utf16le("ABC "+text, false), EncodingAuto},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingAuto},
		{"utf8 plain", []byte(text), EncodingAuto},
		{"explicit le", utf16le(text, true), EncodingUTF16LE},
		{"explicit be", utf16be(text, false), EncodingUTF16BE},
		{"explicit utf8", []byte(text), EncodingUTF8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.in, tc.enc)
			if err != nil {
				t.Fatal(err)
			}
			exp := want
			if tc.name == "utf16le no bom sniffed" {
				exp = append([]string{"ABC 第９回 試験"}, want[1:]...)
			}
			if !reflect.DeepEqual(got, exp) {
				t.Fatalf("got %q, want %q", got, exp)
			}
		})
	}
}

func TestDecodeBOMLessJapaneseUTF16(t *testing.T) {
	block := []string{"第３３回　はり師・きゆう師試験", "《衛生学》", "問題１　健康の定義はどれか。", "解答　２"}
	var text string
	var want []string
	for i := 0; i < 8; i++ {
		text += strings.Join(block, "\r\n") + "\r\n"
		want = append(want, block...)
	}
	in := utf16le(text, false)
	if len(in) <= 512 {
		t.Fatalf("fixture too short: %d bytes", len(in))
	}
	got, err := Decode(in, EncodingAuto)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeLongUTF8CutMidRune(t *testing.T) {
	line := strings.Repeat("健康の定義はどれか。", 30)
	got, err := Decode([]byte(line+"\n"+line), EncodingAuto)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{line, line}) {
		t.Fatalf("utf-8 input misdetected: %d lines", len(got))
	}
}

func TestDecodeUnknownEncoding(t *testing.T) {
	if _, err := Decode([]byte("x"), "shift_jis"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(nil, EncodingAuto)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestDiscoverAndReadFile(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string][]byte{
		"b.txt":   utf16le("問題1", true),
		"A.TXT":   []byte("問題2"),
		"c.md":    []byte("x"),
		"sub.txt": nil,
	} {
		if name == "sub.txt" {
			if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "A.TXT"), filepath.Join(dir, "b.txt")}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %q", paths)
	}
	lines, err := ReadFile(paths[1], EncodingAuto)
	if err != nil || !reflect.DeepEqual(lines, []string{"問題1"}) {
		t.Fatalf("lines = %q, %v", lines, err)
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.txt"), EncodingAuto); err == nil {
		t.Fatal("expected error for missing file")
	}
}

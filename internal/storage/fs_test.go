package storage

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStorePutGet(t *testing.T) {
	s, err := NewFSStore(filepath.Join(t.TempDir(), "web"))
	if err != nil {
		t.Fatal(err)
	}
	key, err := s.Put("index/by_subject.json", strings.NewReader("{}"))
	if err != nil || key != "index/by_subject.json" {
		t.Fatalf("put = %q, %v", key, err)
	}
	rc, err := s.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "{}" {
		t.Fatalf("got %q", b)
	}

	// overwrite leaves no temp files behind
	if _, err := s.Put(key, strings.NewReader("[]")); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.Base(), "index"))
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}

	u, err := s.URL(key)
	if err != nil || !strings.HasPrefix(u, "file://") {
		t.Fatalf("url = %q, %v", u, err)
	}
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"", "../x.json", "a/../../x.json", "/etc/passwd"} {
		if _, err := s.Put(k, strings.NewReader("x")); !errors.Is(err, ErrBadKey) {
			t.Errorf("Put(%q) err = %v, want ErrBadKey", k, err)
		}
	}
	if _, err := s.Put("a/../ok.json", strings.NewReader("x")); err != nil {
		t.Errorf("inner .. should be allowed: %v", err)
	}
}

func TestPutJSON(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PutJSON(s, "q.json", map[string]string{"stem": "<衛生学>"}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(s.Base(), "q.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "<衛生学>") {
		t.Fatalf("escaped output: %s", b)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil || m["stem"] != "<衛生学>" {
		t.Fatalf("roundtrip = %v, %v", m, err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "INGEST_WORKERS", "CORS_ORIGINS", "LOG_MODE"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Mode != ModeOffline || cfg.HTTPAddr != ":8080" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.IngestWorkers != 4 || cfg.LogMode != "dev" {
		t.Fatalf("workers=%d log=%q", cfg.IngestWorkers, cfg.LogMode)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("INGEST_WORKERS", "8")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LOG_MODE", "")
	cfg := FromEnv()
	if cfg.IngestWorkers != 8 || cfg.LogMode != "prod" {
		t.Fatalf("workers=%d log=%q", cfg.IngestWorkers, cfg.LogMode)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
}

func TestLoadRules(t *testing.T) {
	r, err := LoadRules("")
	if err != nil || r.QuestionMarker != "問題" {
		t.Fatalf("default rules: %+v %v", r, err)
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	yml := `
series:
  - code: C
    header: 柔道整復師試験
    name: 柔道整復師
subject_aliases:
  生理学Ⅰ: 生理学
choice_count: 5
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err = LoadRules(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Series) != 1 || r.Series[0].Code != "C" || r.ChoiceCount != 5 {
		t.Fatalf("file values not applied: %+v", r)
	}
	if r.AnswerMarker != "解答" || r.CaseIntro == "" {
		t.Fatalf("defaults not merged: %+v", r)
	}
	if r.SubjectAliases["生理学Ⅰ"] != "生理学" {
		t.Fatalf("aliases = %v", r.SubjectAliases)
	}
}

func TestLoadRulesBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("series: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadSubtopicCatalog(t *testing.T) {
	cat, err := LoadSubtopicCatalog(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || len(cat) != 0 {
		t.Fatalf("missing file: %v %v", cat, err)
	}
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"衛生学":["感染症","環境衛生"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err = LoadSubtopicCatalog(path)
	if err != nil || len(cat["衛生学"]) != 2 {
		t.Fatalf("catalog = %v err = %v", cat, err)
	}
}

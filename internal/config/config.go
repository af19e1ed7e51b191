package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/kokushi-qbank/internal/extract"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	InputDir       string // directory of exam .txt sources
	SourceEncoding string // auto|utf-16le|utf-16be|utf-8
	RulesPath      string // optional YAML extraction rules
	IngestWorkers  int

	ExportBasePath  string
	SubtopicCatalog string // optional JSON: subject -> candidate subtopics

	AdminUser      string
	AdminPassHash  string // bcrypt
	AuthHMACSecret string

	CORSOrigins []string
	LogMode     string // dev|prod
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	logMode := "dev"
	if mode == ModeOnline {
		logMode = "prod"
	}
	return Config{
		Mode:            mode,
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		InputDir:        envOr("INPUT_DIR", "./kokushitxt"),
		SourceEncoding:  envOr("SOURCE_ENCODING", "auto"),
		RulesPath:       os.Getenv("RULES_PATH"),
		IngestWorkers:   envInt("INGEST_WORKERS", 4),
		ExportBasePath:  envOr("EXPORT_BASE_PATH", "./output/web"),
		SubtopicCatalog: os.Getenv("SUBTOPIC_CATALOG"),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		LogMode:         envOr("LOG_MODE", logMode),
	}
}

// LoadRules reads extraction rules from a YAML file. An empty path yields the
// defaults; fields missing from the file fall back to their defaults too.
func LoadRules(path string) (extract.Rules, error) {
	if path == "" {
		return extract.DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return extract.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var r extract.Rules
	if err := yaml.Unmarshal(b, &r); err != nil {
		return extract.Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return r.Merge(extract.DefaultRules()), nil
}

// LoadSubtopicCatalog reads the subject -> subtopics map used by annotation
// templates. A missing path yields an empty catalog.
func LoadSubtopicCatalog(path string) (map[string][]string, error) {
	out := map[string][]string{}
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse subtopic catalog %s: %w", path, err)
	}
	return out, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

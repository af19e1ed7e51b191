package http_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/kokushi-qbank/internal/annotate"
	api "github.com/mind-engage/kokushi-qbank/internal/api/http"
	auth "github.com/mind-engage/kokushi-qbank/internal/auth/middleware"
	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/db"
	"github.com/mind-engage/kokushi-qbank/internal/export"
	"github.com/mind-engage/kokushi-qbank/internal/extract"
	"github.com/mind-engage/kokushi-qbank/internal/storage"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

type fixture struct {
	router chi.Router
	store  *bank.SQLStore
	auth   *auth.AuthService
	web    *storage.FSStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "api.sqlite") + "?mode=rwc&_pragma=busy_timeout(5000)"
	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	store := bank.NewSQLStore(h, "sqlite")

	doc := extract.MustNew(extract.DefaultRules()).Parse([]string{
		"第9回 はり師・きゆう師試験",
		"《衛生学》",
		"問題1 健康の定義はどれか。", "1. a", "2. b", "3. c", "4. d", "解答1",
		"問題2 感染症はどれか。", "1. a", "2. b", "3. c", "4. d", "解答2",
		"問題3 \"引用\"を含む, 設問。", "1. a", "2. b", "3. c", "4. d", "解答3",
	})
	if _, err := store.UpsertDocument(ctx, doc.Records); err != nil {
		t.Fatal(err)
	}

	web, err := storage.NewFSStore(filepath.Join(t.TempDir(), "web"))
	if err != nil {
		t.Fatal(err)
	}
	a := auth.NewAuthService("test-key")
	r := api.NewRouter(api.RouterDeps{
		Store:           store,
		Importer:        annotate.NewImporter(store, nil),
		Exporter:        export.NewExporter(store, syncx.NewEventRepo(h), web, nil),
		Auth:            a,
		Catalog:         map[string][]string{"衛生学": {"感染症"}},
		CORSOrigins:     []string{"http://localhost:5173"},
		RebuildOnImport: true,
		RequestLogger:   func(next http.Handler) http.Handler { return next },
	})
	return &fixture{router: r, store: store, auth: a, web: web}
}

func (f *fixture) do(t *testing.T, role, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if role != "" {
		tok, err := f.auth.IssueJWT("tester", role)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestAuthAndPermissions(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		role, method, path string
		code               int
	}{
		{"", http.MethodGet, "/healthz", http.StatusOK},
		{"", http.MethodGet, "/api/progress", http.StatusUnauthorized},
		{"viewer", http.MethodGet, "/api/progress", http.StatusOK},
		{"viewer", http.MethodGet, "/api/prompts", http.StatusForbidden},
		{"viewer", http.MethodPost, "/api/build/web", http.StatusForbidden},
		{"editor", http.MethodPost, "/api/build/web", http.StatusForbidden},
		{"admin", http.MethodPost, "/api/build/web", http.StatusOK},
	}
	for _, tc := range cases {
		if rr := f.do(t, tc.role, tc.method, tc.path, nil, ""); rr.Code != tc.code {
			t.Errorf("%s %s as %q = %d, want %d", tc.method, tc.path, tc.role, rr.Code, tc.code)
		}
	}
}

func TestQuestionEndpoints(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "viewer", http.MethodGet, "/api/questions/B09-002", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get = %d %s", rr.Code, rr.Body.String())
	}
	var d bank.QuestionDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil || d.Serial != "B09-002" || *d.Subject != "衛生学" {
		t.Fatalf("detail = %+v, %v", d, err)
	}
	if rr := f.do(t, "viewer", http.MethodGet, "/api/questions/B09-404", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing question = %d", rr.Code)
	}

	rr = f.do(t, "viewer", http.MethodGet, "/api/preview?q=%E6%84%9F%E6%9F%93", nil, "") // 感染
	var items []bank.PreviewItem
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil || len(items) != 1 || items[0].Serial != "B09-002" {
		t.Fatalf("preview = %s", rr.Body.String())
	}

	rr = f.do(t, "viewer", http.MethodGet, "/api/subjects", nil, "")
	if strings.TrimSpace(rr.Body.String()) != `["衛生学"]` {
		t.Errorf("subjects = %s", rr.Body.String())
	}

	rr = f.do(t, "viewer", http.MethodGet, "/api/missing", nil, "")
	if strings.TrimSpace(rr.Body.String()) != `[]` {
		t.Errorf("missing without switches = %s", rr.Body.String())
	}

	rr = f.do(t, "viewer", http.MethodGet, "/api/missing.csv?explanations=1", nil, "")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	recs, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 || recs[0][0] != "serial" || recs[3][2] != `"引用"を含む, 設問。` {
		t.Fatalf("csv = %q", recs)
	}
}

func TestPromptsAndImport(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "editor", http.MethodGet, "/api/prompts?serials=B09-001..B09-002&kinds=explanation", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("prompts = %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Count        int `json:"count"`
		Explanations struct {
			Filename string `json:"filename"`
			Text     string `json:"text"`
			Enabled  bool   `json:"enabled"`
		} `json:"explanations"`
		Tags struct {
			Text    string `json:"text"`
			Enabled bool   `json:"enabled"`
		} `json:"tags"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || !resp.Explanations.Enabled || resp.Tags.Enabled || resp.Tags.Text != "" {
		t.Fatalf("prompts = %+v", resp)
	}
	// order=new by default: highest serial first
	if !strings.HasPrefix(resp.Explanations.Text, `{"serial":"B09-002"`) {
		t.Errorf("first row = %.40s", resp.Explanations.Text)
	}

	rr = f.do(t, "editor", http.MethodPost, "/api/import/explanations?version=auto",
		strings.NewReader(`{"serial":"B09-001","explanation":"解説です"}`+"\n"), "application/x-ndjson")
	if rr.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Explanations int             `json:"explanations"`
		Export       *export.Summary `json:"export"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil || res.Explanations != 1 || res.Export == nil {
		t.Fatalf("import result = %s", rr.Body.String())
	}

	// the explained question drops out of unannotated prompts
	rr = f.do(t, "editor", http.MethodGet, "/api/prompts?serials=B09-001&kinds=explanation", nil, "")
	if strings.TrimSpace(rr.Body.String()) != `{"count":0}` {
		t.Errorf("prompts after import = %s", rr.Body.String())
	}

	// multipart upload of a tags file
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "tags_batch_filled.jsonl")
	io.WriteString(fw, `{"serial":"B09-002","tags":["WHO"]}`)
	mw.Close()
	rr = f.do(t, "editor", http.MethodPost, "/api/import/tags?mode=replace", &buf, mw.FormDataContentType())
	if rr.Code != http.StatusOK {
		t.Fatalf("multipart import = %d %s", rr.Code, rr.Body.String())
	}
	q, _ := f.store.GetQuestion(context.Background(), "B09-002")
	if len(q.Tags) != 1 || q.Tags[0] != "WHO" {
		t.Errorf("tags = %v", q.Tags)
	}

	for _, tc := range []struct {
		path, body string
		code       int
	}{
		{"/api/import/notes", `{}`, http.StatusNotFound},
		{"/api/import/tags?mode=merge", `{"serial":"B09-001","tags":["x"]}`, http.StatusBadRequest},
		{"/api/import/explanations?version=zero", `{"serial":"B09-001","explanation":"x"}`, http.StatusBadRequest},
		{"/api/import/explanations", "  \n", http.StatusBadRequest},
		{"/api/import/explanations", `{"serial":`, http.StatusBadRequest},
	} {
		if rr := f.do(t, "editor", http.MethodPost, tc.path, strings.NewReader(tc.body), ""); rr.Code != tc.code {
			t.Errorf("%s = %d, want %d (%s)", tc.path, rr.Code, tc.code, rr.Body.String())
		}
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, "viewer", http.MethodPost, "/api/reports",
		strings.NewReader(`{"serial":"B09-001","kind":"tag"}`), "application/json"); rr.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(t, "viewer", http.MethodPost, "/api/reports",
		strings.NewReader(`{"serial":"B09-001","kind":"comment"}`), "application/json"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d", rr.Code)
	}

	rr := f.do(t, "viewer", http.MethodGet, "/api/reports", nil, "")
	var reps []bank.FeedbackReport
	if err := json.Unmarshal(rr.Body.Bytes(), &reps); err != nil || len(reps) != 1 || !reps[0].Tag {
		t.Fatalf("reports = %s", rr.Body.String())
	}

	if rr := f.do(t, "viewer", http.MethodPost, "/api/reports/clear",
		strings.NewReader(`{"items":[{"serial":"B09-001","kinds":["tag"]}]}`), "application/json"); rr.Code != http.StatusForbidden {
		t.Errorf("viewer clear = %d", rr.Code)
	}
	if rr := f.do(t, "editor", http.MethodPost, "/api/reports/clear",
		strings.NewReader(`{"items":[{"serial":"B09-001","kinds":["tag"]}]}`), "application/json"); rr.Code != http.StatusOK {
		t.Fatalf("clear = %d %s", rr.Code, rr.Body.String())
	}
	reps, _ = f.store.ListReports(context.Background())
	if len(reps) != 0 {
		t.Errorf("reports after clear = %+v", reps)
	}
}

func TestBuildWeb(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "admin", http.MethodPost, "/api/build/web", nil, "")
	var sum export.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil || sum.Questions != 3 {
		t.Fatalf("build = %s", rr.Body.String())
	}
	rc, err := f.web.Get(export.QuestionsKey)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
}

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/kokushi-qbank/internal/annotate"
	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/export"
	"github.com/mind-engage/kokushi-qbank/internal/extract"
)

type templateFile struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Enabled  bool   `json:"enabled"`
}

type promptsResponse struct {
	Count        int           `json:"count"`
	Explanations *templateFile `json:"explanations,omitempty"`
	Tags         *templateFile `json:"tags,omitempty"`
	Subtopics    *templateFile `json:"subtopics,omitempty"`
	Combined     *templateFile `json:"combined,omitempty"`
}

// GET /api/prompts?serials=B09-001..B09-010&exam_type=B&exam_session=9&subject=..&kinds=explanation,tag&unannotated=1&order=new&limit=10
//
// Responds with the annotation templates for the selected questions.
func PromptsHandler(store bank.Store, catalog map[string][]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		kinds, err := parseKinds(q.Get("kinds"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts := bank.SelectOpts{
			ExamTypeCode: strings.TrimSpace(q.Get("exam_type")),
			Subject:      strings.TrimSpace(q.Get("subject")),
			Order:        q.Get("order"),
			Limit:        parseIntDefault(q.Get("limit"), 10),
		}
		if opts.Order == "" {
			opts.Order = "new"
		}
		if s := strings.TrimSpace(q.Get("serials")); s != "" {
			opts.Serials = extract.ExpandSerials(s)
			if opts.Serials == nil {
				opts.Serials = []string{}
			}
		}
		if s := strings.TrimSpace(q.Get("exam_session")); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "bad exam_session", http.StatusBadRequest)
				return
			}
			opts.ExamSession = n
		}
		if u := q.Get("unannotated"); u == "" || u == "1" {
			opts.Unannotated = kinds
		}

		qs, err := store.Select(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(qs) == 0 {
			writeJSON(w, http.StatusOK, promptsResponse{})
			return
		}
		tpl, err := annotate.BuildTemplates(qs, catalog)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		enabled := map[bank.Kind]bool{}
		for _, k := range kinds {
			enabled[k] = true
		}
		file := func(name string, body []byte, on bool) *templateFile {
			f := &templateFile{Filename: name, Enabled: on}
			if on {
				f.Text = string(body)
			}
			return f
		}
		writeJSON(w, http.StatusOK, promptsResponse{
			Count:        tpl.Count,
			Explanations: file(annotate.ExplanationFile, tpl.Explanation, enabled[bank.KindExplanation]),
			Tags:         file(annotate.TagFile, tpl.Tag, enabled[bank.KindTag]),
			Subtopics:    file(annotate.SubtopicFile, tpl.Subtopic, enabled[bank.KindSubtopic]),
			Combined:     file(annotate.CombinedFile, tpl.Combined, true),
		})
	}
}

// parseKinds reads a comma list of annotation kinds; empty means all.
func parseKinds(s string) ([]bank.Kind, error) {
	var out []bank.Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := bank.ParseKind(part)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		out = append(out, bank.AllKinds...)
	}
	return out, nil
}

const maxImportBytes = 32 << 20

// POST /api/import/{kind}?mode=append&modeExp=..&modeTag=..&modeSub=..&version=auto
//
// The body is the JSONL file itself, or a multipart form with a "file" part.
// When ex is set the web export is rebuilt after a successful import.
func ImportHandler(im *annotate.Importer, ex *export.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := annotate.ParseTarget(chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		opts, err := importOptions(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, err := importBody(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			http.Error(w, "empty import file", http.StatusBadRequest)
			return
		}

		res, err := im.Import(r.Context(), target, bytes.NewReader(body), opts)
		if err != nil {
			status := http.StatusInternalServerError
			var syn *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.Is(err, annotate.ErrInvalidMode) || errors.As(err, &syn) || errors.As(err, &typ) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		out := struct {
			annotate.Result
			Export *export.Summary `json:"export,omitempty"`
		}{Result: res}
		if ex != nil {
			sum, err := ex.Export(r.Context())
			if err != nil {
				http.Error(w, fmt.Sprintf("imported but export failed: %v", err), http.StatusInternalServerError)
				return
			}
			out.Export = &sum
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func importOptions(r *http.Request) (annotate.Options, error) {
	q := r.URL.Query()
	pick := func(specific string) string {
		if v := q.Get(specific); v != "" {
			return v
		}
		return q.Get("mode")
	}
	opts := annotate.Options{
		Explanation: annotate.Mode(pick("modeExp")),
		Tag:         annotate.Mode(pick("modeTag")),
		Subtopic:    annotate.Mode(pick("modeSub")),
		Source:      strings.TrimSpace(q.Get("source")),
	}
	if v := strings.TrimSpace(q.Get("version")); v != "" && v != "auto" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("bad version %q", v)
		}
		opts.Version = n
	}
	return opts, nil
}

func importBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// GET /api/reports
func ListReportsHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reps, err := store.ListReports(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, reps)
	}
}

// POST /api/reports  { "serial": "B09-001", "kind": "explanation" }
func AddReportHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Serial string `json:"serial"`
			Kind   string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		kind, err := bank.ParseKind(strings.TrimSpace(req.Kind))
		if err != nil || strings.TrimSpace(req.Serial) == "" {
			http.Error(w, "serial and kind required", http.StatusBadRequest)
			return
		}
		if err := store.AddReport(r.Context(), req.Serial, kind); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"serial": req.Serial, "kind": string(kind)})
	}
}

// POST /api/reports/clear  { "items": [ { "serial": "B09-001", "kinds": ["tag"] } ] }
func ClearReportsHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []bank.ClearItem `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		for _, it := range req.Items {
			for _, k := range it.Kinds {
				if _, err := bank.ParseKind(string(k)); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
			}
		}
		if err := store.ClearReports(r.Context(), req.Items); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"cleared": len(req.Items)})
	}
}

// POST /api/build/web
func BuildWebHandler(ex *export.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := ex.Export(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

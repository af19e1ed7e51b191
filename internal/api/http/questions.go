package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
)

// GET /api/questions/{serial}
func GetQuestionHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "serial"))
		if errors.Is(err, bank.ErrNotFound) {
			http.Error(w, "question not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /api/preview?q=B09-001 | stem text
func PreviewHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.Preview(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func ProgressHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.Progress(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func HistoryHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := store.History(r.Context(), parseIntDefault(r.URL.Query().Get("limit"), 20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func SubjectsHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := store.Subjects(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// missingKinds reads the explanations/tags/subtopics switches; any non-empty
// value turns one on.
func missingKinds(r *http.Request) []bank.Kind {
	q := r.URL.Query()
	var kinds []bank.Kind
	for _, sw := range []struct {
		param string
		kind  bank.Kind
	}{
		{"explanations", bank.KindExplanation},
		{"tags", bank.KindTag},
		{"subtopics", bank.KindSubtopic},
	} {
		if q.Get(sw.param) != "" {
			kinds = append(kinds, sw.kind)
		}
	}
	return kinds
}

// GET /api/missing?explanations=1&tags=1&subtopics=1
func MissingHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := store.Missing(r.Context(), missingKinds(r), parseIntDefault(r.URL.Query().Get("limit"), 200))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// GET /api/missing.csv takes the same switches as /api/missing.
func MissingCSVHandler(store bank.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := store.Missing(r.Context(), missingKinds(r), parseIntDefault(r.URL.Query().Get("limit"), 200))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="missing.csv"`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"serial", "subject", "stem"})
		for _, m := range rows {
			subject := ""
			if m.Subject != nil {
				subject = *m.Subject
			}
			_ = cw.Write([]string{m.Serial, subject, m.Stem})
		}
		cw.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}

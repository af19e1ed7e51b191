package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/kokushi-qbank/internal/annotate"
	auth "github.com/mind-engage/kokushi-qbank/internal/auth/middleware"
	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/export"
	"github.com/mind-engage/kokushi-qbank/internal/rbac"
)

type RouterDeps struct {
	Store       bank.Store
	Importer    *annotate.Importer
	Exporter    *export.Exporter
	Auth        *auth.AuthService
	Catalog     map[string][]string
	CORSOrigins []string
	// RebuildOnImport reruns the web export after each successful import.
	RebuildOnImport bool
	// RequestLogger replaces chi's default request logger when set.
	RequestLogger func(http.Handler) http.Handler
}

// NewRouter mounts the admin API. Everything under /api needs a bearer token;
// each route then checks its own permission.
func NewRouter(d RouterDeps) chi.Router {
	r := chi.NewRouter()
	reqLog := d.RequestLogger
	if reqLog == nil {
		reqLog = middleware.Logger
	}
	r.Use(middleware.RequestID, middleware.RealIP, reqLog, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/auth/login", auth.LoginHandler(d.Auth))

	var rebuild *export.Exporter
	if d.RebuildOnImport {
		rebuild = d.Exporter
	}

	r.Route("/api", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermQuestionView)).Group(func(v chi.Router) {
			v.Get("/questions/{serial}", GetQuestionHandler(d.Store))
			v.Get("/preview", PreviewHandler(d.Store))
			v.Get("/progress", ProgressHandler(d.Store))
			v.Get("/history", HistoryHandler(d.Store))
			v.Get("/subjects", SubjectsHandler(d.Store))
			v.Get("/missing", MissingHandler(d.Store))
			v.Get("/missing.csv", MissingCSVHandler(d.Store))
		})

		pr.With(rbac.Require(rbac.PermPromptGenerate)).
			Get("/prompts", PromptsHandler(d.Store, d.Catalog))
		pr.With(rbac.Require(rbac.PermAnnotationImport)).
			Post("/import/{kind}", ImportHandler(d.Importer, rebuild))

		pr.With(rbac.Require(rbac.PermReportView)).
			Get("/reports", ListReportsHandler(d.Store))
		pr.With(rbac.Require(rbac.PermReportWrite)).
			Post("/reports", AddReportHandler(d.Store))
		pr.With(rbac.Require(rbac.PermReportClear)).
			Post("/reports/clear", ClearReportsHandler(d.Store))

		pr.With(rbac.Require(rbac.PermExportRun)).
			Post("/build/web", BuildWebHandler(d.Exporter))
	})
	return r
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/annotate"
	api "github.com/mind-engage/kokushi-qbank/internal/api/http"
	auth "github.com/mind-engage/kokushi-qbank/internal/auth/middleware"
	"github.com/mind-engage/kokushi-qbank/internal/config"
	"github.com/mind-engage/kokushi-qbank/internal/export"
	"github.com/mind-engage/kokushi-qbank/internal/storage"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: a.cfg.HTTPAddr, Sources: cli.EnvVars("HTTP_ADDR")},
			&cli.StringFlag{Name: "out", Value: a.cfg.ExportBasePath, Sources: cli.EnvVars("EXPORT_BASE_PATH"),
				Usage: "web export directory"},
			&cli.BoolFlag{Name: "rebuild-on-import", Value: true, Usage: "rerun the web export after each import"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			dbh, store, err := a.openStore(openCtx, cmd)
			cancel()
			if err != nil {
				return err
			}
			defer dbh.Close()

			blobs, err := storage.NewFSStore(cmd.String("out"))
			if err != nil {
				return err
			}
			catalog, err := config.LoadSubtopicCatalog(a.cfg.SubtopicCatalog)
			if err != nil {
				return err
			}
			ex := export.NewExporter(store, syncx.NewEventRepo(dbh), blobs, a.log)
			authSvc := auth.NewAuthService(a.cfg.AuthHMACSecret, auth.Credential{
				Username: a.cfg.AdminUser,
				PassHash: a.cfg.AdminPassHash,
				Role:     "admin",
			})

			r := api.NewRouter(api.RouterDeps{
				Store:           store,
				Importer:        annotate.NewImporter(store, a.log),
				Exporter:        ex,
				Auth:            authSvc,
				Catalog:         catalog,
				CORSOrigins:     a.cfg.CORSOrigins,
				RebuildOnImport: cmd.Bool("rebuild-on-import"),
				RequestLogger: middleware.RequestLogger(&middleware.DefaultLogFormatter{
					Logger:  a.log.Std(),
					NoColor: true,
				}),
			})

			srv := &http.Server{Addr: cmd.String("addr"), Handler: r, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			a.log.Info("listening", "addr", srv.Addr, "mode", a.cfg.Mode, "db", cmd.String("db-driver"))

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}

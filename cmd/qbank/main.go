package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/config"
	"github.com/mind-engage/kokushi-qbank/internal/db"
	"github.com/mind-engage/kokushi-qbank/internal/extract"
	"github.com/mind-engage/kokushi-qbank/internal/platform/logger"
)

var Version = "dev"

func main() {
	cfg := config.FromEnv()
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	a := &app{cfg: cfg, log: lg}
	cmd := &cli.Command{
		Name:    "qbank",
		Usage:   "exam question bank: extract, annotate and publish",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-driver",
				Usage:   "sqlite or postgres",
				Value:   cfg.DBDriver,
				Sources: cli.EnvVars("DB_DRIVER"),
			},
			&cli.StringFlag{
				Name:    "db-dsn",
				Usage:   "database DSN (empty for the local sqlite file)",
				Value:   cfg.DBDSN,
				Sources: cli.EnvVars("DB_DSN"),
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "YAML extraction rules",
				Value:   cfg.RulesPath,
				Sources: cli.EnvVars("RULES_PATH"),
			},
		},
		Commands: []*cli.Command{
			a.buildCommand(),
			a.serveCommand(),
			a.importCommand(),
			a.exportCommand(),
			a.templateCommand(),
			a.normalizeCommand(),
			expandCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		lg.Error("qbank failed", "error", err)
		lg.Sync()
		os.Exit(1)
	}
}

type app struct {
	cfg config.Config
	log *logger.Logger
}

func (a *app) openStore(ctx context.Context, cmd *cli.Command) (*sql.DB, *bank.SQLStore, error) {
	driver := cmd.String("db-driver")
	dbh, err := db.Open(ctx, db.Driver(driver), cmd.String("db-dsn"))
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	return dbh, bank.NewSQLStore(dbh, driver), nil
}

func (a *app) pipeline(cmd *cli.Command) (*extract.Pipeline, error) {
	rules, err := config.LoadRules(cmd.String("rules"))
	if err != nil {
		return nil, err
	}
	return extract.New(rules)
}

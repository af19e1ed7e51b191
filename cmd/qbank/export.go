package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/export"
	"github.com/mind-engage/kokushi-qbank/internal/storage"
	syncx "github.com/mind-engage/kokushi-qbank/internal/sync"
)

func (a *app) exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "publish questions.json, update_log.json and the indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: a.cfg.ExportBasePath, Sources: cli.EnvVars("EXPORT_BASE_PATH")},
			&cli.StringFlag{Name: "notes", Usage: "JSON file of extra {date, text} update notes"},
			&cli.BoolFlag{Name: "study-sets", Usage: "also write study_sets.json"},
			&cli.StringFlag{Name: "study-include", Value: "subject,tag,subtopic"},
			&cli.IntFlag{Name: "study-limit", Usage: "max questions per study set (0 = no limit)"},
			&cli.IntFlag{Name: "study-seed", Value: 42},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			notes, err := export.LoadNotes(cmd.String("notes"))
			if err != nil {
				return err
			}
			blobs, err := storage.NewFSStore(cmd.String("out"))
			if err != nil {
				return err
			}
			dbh, store, err := a.openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer dbh.Close()

			ex := export.NewExporter(store, syncx.NewEventRepo(dbh), blobs, a.log)
			ex.Notes = notes
			sum, err := ex.Export(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("exported %d questions, %d update entries to %s\n", sum.Questions, sum.Updates, blobs.Base())

			if !cmd.Bool("study-sets") {
				return nil
			}
			include, err := export.ParseInclude(cmd.String("study-include"))
			if err != nil {
				return err
			}
			key, err := ex.ExportStudySets(ctx, export.StudySetOptions{
				Include: include,
				Limit:   cmd.Int("study-limit"),
				Seed:    uint64(cmd.Int("study-seed")),
			})
			if err != nil {
				return err
			}
			fmt.Printf("study sets written to %s\n", key)
			return nil
		},
	}
}

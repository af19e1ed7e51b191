package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/annotate"
	"github.com/mind-engage/kokushi-qbank/internal/bank"
	"github.com/mind-engage/kokushi-qbank/internal/config"
	"github.com/mind-engage/kokushi-qbank/internal/extract"
)

func (a *app) importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "apply a filled annotation JSONL file",
		ArgsUsage: "<explanations|tags|subtopics|combined> <file.jsonl>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "append", Usage: "skip, append or replace"},
			&cli.StringFlag{Name: "mode-exp", Usage: "explanation mode for combined files (defaults to --mode)"},
			&cli.StringFlag{Name: "mode-tag", Usage: "tag mode for combined files (defaults to --mode)"},
			&cli.StringFlag{Name: "mode-sub", Usage: "subtopic mode for combined files (defaults to --mode)"},
			&cli.IntFlag{Name: "version", Usage: "explanation version; 0 picks the next one"},
			&cli.StringFlag{Name: "source", Usage: "source label for rows without one"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("usage: qbank import %s", cmd.ArgsUsage)
			}
			target, err := annotate.ParseTarget(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			f, err := os.Open(cmd.Args().Get(1))
			if err != nil {
				return err
			}
			defer f.Close()

			mode := func(specific string) annotate.Mode {
				if v := cmd.String(specific); v != "" {
					return annotate.Mode(v)
				}
				return annotate.Mode(cmd.String("mode"))
			}
			opts := annotate.Options{
				Explanation: mode("mode-exp"),
				Tag:         mode("mode-tag"),
				Subtopic:    mode("mode-sub"),
				Version:     cmd.Int("version"),
				Source:      cmd.String("source"),
			}

			dbh, store, err := a.openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer dbh.Close()

			res, err := annotate.NewImporter(store, a.log).Import(ctx, target, f, opts)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d lines, %d explanations, %d tags, %d subtopics, %d unknown serials, %d skipped\n",
				res.Target, res.Lines, res.Explanations, res.Tags, res.Subtopics, res.UnknownSerials, res.Skipped)
			return nil
		},
	}
}

func (a *app) templateCommand() *cli.Command {
	return &cli.Command{
		Name:  "template",
		Usage: "write blank annotation JSONL files for selected questions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "serials", Usage: "comma list, ranges as B09-001..B09-010"},
			&cli.StringFlag{Name: "exam-type", Usage: "exam type code"},
			&cli.IntFlag{Name: "session"},
			&cli.StringFlag{Name: "subject"},
			&cli.StringFlag{Name: "kinds", Usage: "explanation,tag,subtopic (default all)"},
			&cli.BoolFlag{Name: "all", Usage: "include questions that already have the kinds"},
			&cli.StringFlag{Name: "order", Value: "new", Usage: "serial or new"},
			&cli.IntFlag{Name: "limit", Value: 10},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
			&cli.StringFlag{Name: "catalog", Value: a.cfg.SubtopicCatalog, Sources: cli.EnvVars("SUBTOPIC_CATALOG")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := bank.SelectOpts{
				ExamTypeCode: cmd.String("exam-type"),
				ExamSession:  cmd.Int("session"),
				Subject:      cmd.String("subject"),
				Order:        cmd.String("order"),
				Limit:        cmd.Int("limit"),
			}
			if s := strings.TrimSpace(cmd.String("serials")); s != "" {
				opts.Serials = extract.ExpandSerials(s)
				if opts.Serials == nil {
					opts.Serials = []string{}
				}
			}
			if !cmd.Bool("all") {
				for _, k := range strings.Split(cmd.String("kinds"), ",") {
					if k = strings.TrimSpace(k); k == "" {
						continue
					}
					kind, err := bank.ParseKind(k)
					if err != nil {
						return err
					}
					opts.Unannotated = append(opts.Unannotated, kind)
				}
				if len(opts.Unannotated) == 0 {
					opts.Unannotated = bank.AllKinds
				}
			}
			catalog, err := config.LoadSubtopicCatalog(cmd.String("catalog"))
			if err != nil {
				return err
			}

			dbh, store, err := a.openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer dbh.Close()

			qs, err := store.Select(ctx, opts)
			if err != nil {
				return err
			}
			tpl, err := annotate.BuildTemplates(qs, catalog)
			if err != nil {
				return err
			}
			out := cmd.String("out")
			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}
			for name, body := range map[string][]byte{
				annotate.ExplanationFile: tpl.Explanation,
				annotate.TagFile:         tpl.Tag,
				annotate.SubtopicFile:    tpl.Subtopic,
				annotate.CombinedFile:    tpl.Combined,
			} {
				if err := os.WriteFile(filepath.Join(out, name), body, 0o644); err != nil {
					return err
				}
			}
			a.log.Info("templates written", "questions", tpl.Count, "dir", out)
			return nil
		},
	}
}

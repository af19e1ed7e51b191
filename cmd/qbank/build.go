package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/ingest"
	"github.com/mind-engage/kokushi-qbank/internal/source"
)

func (a *app) buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "extract every .txt source in a directory into the question bank",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Value: a.cfg.InputDir, Sources: cli.EnvVars("INPUT_DIR")},
			&cli.StringFlag{Name: "encoding", Value: a.cfg.SourceEncoding, Sources: cli.EnvVars("SOURCE_ENCODING"),
				Usage: "auto, utf-16le, utf-16be or utf-8"},
			&cli.IntFlag{Name: "workers", Value: a.cfg.IngestWorkers, Sources: cli.EnvVars("INGEST_WORKERS")},
			&cli.BoolFlag{Name: "json", Usage: "print the per-document report as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths, err := source.Discover(cmd.String("input"))
			if err != nil {
				return fmt.Errorf("scan input: %w", err)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no .txt sources in %s", cmd.String("input"))
			}
			p, err := a.pipeline(cmd)
			if err != nil {
				return err
			}
			dbh, store, err := a.openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer dbh.Close()

			rn := ingest.NewRunner(store, p, a.log, cmd.String("encoding"), cmd.Int("workers"))
			reports, err := rn.Run(ctx, paths)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				printReports(reports)
			}
			failed := 0
			for _, r := range reports {
				if r.Failed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(reports))
			}
			return nil
		},
	}
}

func printReports(reports []ingest.DocumentReport) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tPREFIX\tRECORDS\tSKIPPED\tCASES\tORPHANS\tINTRO_IN_Q\tNO_CHOICES\tERROR")
	for _, r := range reports {
		prefix := r.Prefix
		if !r.Recognized && !r.Failed() {
			prefix = "(unrecognized)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Path, prefix, r.Records, r.Skipped, r.CaseGroups, r.OrphanReferences,
			r.CaseIntroWithSerial, r.ZeroChoice, r.Err)
	}
	tw.Flush()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/bank"
)

func (a *app) normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "normalize",
		Usage: "find and merge tag/subtopic labels that differ only in spacing",
		Commands: []*cli.Command{
			{
				Name:  "candidates",
				Usage: "list label variants grouped by their collapsed form",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "output file (default stdout)"},
					&cli.BoolFlag{Name: "as-map", Usage: "emit a map ready for 'normalize apply'"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					dbh, store, err := a.openStore(ctx, cmd)
					if err != nil {
						return err
					}
					defer dbh.Close()

					c, err := store.LabelCandidates(ctx)
					if err != nil {
						return err
					}
					var v any = c
					if cmd.Bool("as-map") {
						v = bank.CandidateMap(c)
					}
					if err := writeJSONFile(cmd.String("out"), v); err != nil {
						return err
					}
					a.log.Info("label candidates", "tags", len(c.Tags), "subtopics", len(c.Subtopics))
					return nil
				},
			},
			{
				Name:      "apply",
				Usage:     "merge labels according to a {tags, subtopics} source->target map",
				ArgsUsage: "<map.json>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: qbank normalize apply %s", cmd.ArgsUsage)
					}
					b, err := os.ReadFile(cmd.Args().First())
					if err != nil {
						return err
					}
					var m bank.LabelMap
					if err := json.Unmarshal(b, &m); err != nil {
						return fmt.Errorf("%s: %w", cmd.Args().First(), err)
					}

					dbh, store, err := a.openStore(ctx, cmd)
					if err != nil {
						return err
					}
					defer dbh.Close()

					res, err := store.ApplyLabelMap(ctx, m)
					if err != nil {
						return err
					}
					fmt.Printf("merged %d tags, %d subtopics\n", res.Tags, res.Subtopics)
					return nil
				},
			},
		},
	}
}

// writeJSONFile writes indented JSON to path, or to stdout when path is empty.
func writeJSONFile(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mind-engage/kokushi-qbank/internal/extract"
)

func expandCommand() *cli.Command {
	return &cli.Command{
		Name:      "expand",
		Usage:     "print the serials a selection expands to",
		ArgsUsage: "<B09-001..B09-010,A10-003>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, s := range extract.ExpandSerials(strings.Join(cmd.Args().Slice(), ",")) {
				fmt.Println(s)
			}
			return nil
		},
	}
}

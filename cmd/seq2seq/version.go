package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/version"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("seq2seq %s\n", version.String())
			if built := version.Resolve().BuildTime; built != "" {
				fmt.Printf("built %s\n", built)
			}
			return nil
		},
	}
}

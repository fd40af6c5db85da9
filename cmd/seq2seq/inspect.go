package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/serialization"
)

func inspectCmd() *cli.Command {
	var showConfig bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header and tensor table of a .born checkpoint",
		ArgsUsage: "<model.born>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "config", Usage: "print the stored model config", Destination: &showConfig},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("inspect: checkpoint path required")
			}
			file, err := serialization.ReadFile(path)
			if err != nil {
				return err
			}
			h := file.Header

			fmt.Printf("file:        %s\n", path)
			fmt.Printf("format:      v%d (born %s)\n", h.FormatVersion, h.BornVersion)
			fmt.Printf("model type:  %s\n", h.ModelType)
			fmt.Printf("created:     %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("run id:      %s\n", h.RunID)
			fmt.Printf("sha256:      %s (ok)\n", h.Metadata[serialization.MetaChecksum])
			if c := h.Checkpoint; c != nil {
				fmt.Printf("checkpoint:  epoch %d, step %d, loss %.4f\n", c.Epoch, c.Step, c.Loss)
			}
			fmt.Printf("tensors:     %d (%d bytes)\n\n", len(h.Tensors), h.DataSize())

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tDTYPE\tSHAPE\tOFFSET\tSIZE")
			for _, t := range h.Tensors {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%d\n", t.Name, t.DType, t.Shape, t.Offset, t.Size)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if showConfig {
				cfg, err := file.Config()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return err
				}
				fmt.Printf("\n%s\n", out)
			}
			return nil
		},
	}
}

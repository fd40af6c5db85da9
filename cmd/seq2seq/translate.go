package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/serialization"
)

func translateCmd() *cli.Command {
	var (
		checkpoint    string
		text          string
		maxTokens     int
		temperature   float64
		topK          int
		topP          float64
		repeatPenalty float64
		seed          int64
	)

	return &cli.Command{
		Name:  "translate",
		Usage: "Translate text with a trained checkpoint",
		Flags: append(configFlags(),
			&cli.StringFlag{Name: "checkpoint", Aliases: []string{"m"}, Usage: "path to .born checkpoint", Destination: &checkpoint, Required: true},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "source text", Destination: &text, Required: true},
			&cli.IntFlag{Name: "max-tokens", Usage: "generated token limit (0 = model max length)", Destination: &maxTokens},
			&cli.Float64Flag{Name: "temperature", Usage: "sampling temperature (0 = greedy)", Destination: &temperature},
			&cli.IntFlag{Name: "top-k", Usage: "top-k sampling (0 = off)", Destination: &topK},
			&cli.Float64Flag{Name: "top-p", Usage: "nucleus sampling (0 = off)", Destination: &topP},
			&cli.Float64Flag{Name: "repeat-penalty", Usage: "repetition penalty (1 = off)", Value: 1, Destination: &repeatPenalty},
			&cli.Int64Flag{Name: "seed", Usage: "sampling seed", Destination: &seed},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, log, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			tok, err := cfg.Tokenizer.LoadTokenizer()
			if err != nil {
				return fmt.Errorf("load tokenizer: %w", err)
			}
			if tok == nil {
				return errors.New("translate needs a tokenizer: set tokenizer.kind in --config")
			}

			model, file, err := serialization.LoadModel(checkpoint, cpu.New())
			if err != nil {
				return err
			}
			log.Debug("loaded checkpoint", "path", checkpoint, "run_id", file.Header.RunID)

			if maxTokens <= 0 {
				maxTokens = model.Config().MaxSeqLength
			}
			sampler := generate.NewSampler(generate.SamplingConfig{
				Temperature:   float32(temperature),
				TopK:          topK,
				TopP:          float32(topP),
				RepeatPenalty: float32(repeatPenalty),
				Seed:          uint64(seed), //nolint:gosec // G115: any bit pattern is a valid seed
			})
			out, res, err := generate.New(model, sampler).Translate(ctx, tok, text, maxTokens)
			if err != nil {
				return err
			}
			log.Debug("translated", "tokens", len(res.Tokens), "reason", res.Reason)
			fmt.Println(out)
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/train"
	"github.com/born-ml/seq2seq/internal/transformer"
)

func trainCmd() *cli.Command {
	var (
		dataPath  string
		outPath   string
		epochs    int
		batchSize int
		seqLength int
		lr        float64
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a model on JSONL source/target pairs",
		Flags: append(configFlags(),
			&cli.StringFlag{Name: "data", Usage: "JSONL training pairs", Destination: &dataPath},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output checkpoint", Destination: &outPath},
			&cli.IntFlag{Name: "epochs", Usage: "passes over the data", Destination: &epochs},
			&cli.IntFlag{Name: "batch-size", Usage: "pairs per step", Destination: &batchSize},
			&cli.IntFlag{Name: "seq-length", Usage: "pad/truncate length", Destination: &seqLength},
			&cli.Float64Flag{Name: "lr", Usage: "Adam learning rate", Destination: &lr},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, log, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("data") {
				cfg.Train.Data = dataPath
			}
			if cmd.IsSet("out") {
				cfg.Train.Checkpoint = outPath
			}
			if cmd.IsSet("epochs") {
				cfg.Train.Epochs = epochs
			}
			if cmd.IsSet("batch-size") {
				cfg.Train.BatchSize = batchSize
			}
			if cmd.IsSet("seq-length") {
				cfg.Train.SeqLength = seqLength
			}
			if cmd.IsSet("lr") {
				cfg.Train.LR = float32(lr)
			}
			if cfg.Train.Data == "" {
				return errors.New("no training data: set train.data or --data")
			}

			tok, err := cfg.Tokenizer.LoadTokenizer()
			if err != nil {
				return fmt.Errorf("load tokenizer: %w", err)
			}
			var enc data.TextEncoder
			if tok != nil {
				enc = tok
				cfg.Model.SrcVocabSize = tok.VocabSize()
				cfg.Model.TgtVocabSize = tok.VocabSize()
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			pairs, err := data.LoadJSONL(cfg.Train.Data, enc)
			if err != nil {
				return fmt.Errorf("load pairs: %w", err)
			}
			var rng *rand.Rand
			if cfg.Train.Shuffle {
				rng = tensor.NewRNG(cfg.Model.Seed)
			}
			batches := data.Batches(pairs, cfg.Train.BatchSize, cfg.Train.SeqLength, rng)

			model, err := transformer.New(cfg.Model, autodiff.New(cpu.New()))
			if err != nil {
				return err
			}
			log.Info("training",
				"pairs", len(pairs),
				"batches", len(batches),
				"parameters", nn.CountParameters(model.Parameters()),
				"epochs", cfg.Train.Epochs,
			)

			trainer := train.New(model, cfg.Train.Trainer(), log)
			history, fitErr := trainer.Fit(ctx, batches, cfg.Train.Epochs)
			if len(history) == 0 {
				return fitErr
			}

			last := history[len(history)-1]
			ckpt := &serialization.CheckpointMeta{
				Epoch: last.Epoch,
				Step:  int64(trainer.Steps()),
				Loss:  float64(last.Loss),
			}
			if err := serialization.SaveModel(cfg.Train.Checkpoint, model, ckpt); err != nil {
				return errors.Join(fitErr, err)
			}
			log.Info("saved checkpoint", "path", cfg.Train.Checkpoint, "epoch", last.Epoch, "loss", last.Loss)
			return fitErr
		},
	}
}

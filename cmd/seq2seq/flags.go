package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/config"
	"github.com/born-ml/seq2seq/internal/logger"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to a YAML configuration file",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
	}
}

// setup loads the configuration file, applies the logging flags and
// returns a context carrying the logger.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, config.File, logger.Logger, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return ctx, cfg, nil, err
		}
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = logFormat
	}
	log := cfg.Log.Logger(os.Stderr)
	return logger.WithContext(ctx, log), cfg, log, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/api"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/serialization"
)

func serveCmd() *cli.Command {
	var (
		checkpoint  string
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a checkpoint over HTTP (SIGHUP reloads it)",
		Flags: append(configFlags(),
			&cli.StringFlag{Name: "checkpoint", Aliases: []string{"m"}, Usage: "path to .born checkpoint", Destination: &checkpoint, Required: true},
			&cli.StringFlag{Name: "address", Aliases: []string{"addr"}, Usage: "listen address", Destination: &addr},
			&cli.DurationFlag{Name: "read-timeout", Usage: "read header timeout", Value: 30 * time.Second, Destination: &readTimeout},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, log, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("address") {
				cfg.Server.Address = addr
			}

			tok, err := cfg.Tokenizer.LoadTokenizer()
			if err != nil {
				return fmt.Errorf("load tokenizer: %w", err)
			}
			var textTok generate.Tokenizer
			if tok != nil {
				textTok = tok
			} else {
				log.Warn("no tokenizer configured, /v1/translate disabled")
			}

			model, _, err := serialization.LoadModel(checkpoint, cpu.New())
			if err != nil {
				return err
			}
			server := api.NewServer(model, textTok, log)
			go reloadOnHangup(ctx, server, checkpoint, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", cfg.Server.Address, "checkpoint", checkpoint)
			sc := echo.StartConfig{
				Address: cfg.Server.Address,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

func reloadOnHangup(ctx context.Context, server *api.Server[*cpu.CPUBackend], path string, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			model, file, err := serialization.LoadModel(path, cpu.New())
			if err != nil {
				log.Error("reload failed", "path", path, "error", err)
				continue
			}
			server.SetModel(model)
			log.Info("reloaded checkpoint", "path", path, "run_id", file.Header.RunID)
		}
	}
}

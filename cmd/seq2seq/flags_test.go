package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/config"
	"github.com/born-ml/seq2seq/internal/logger"
)

func runSetup(t *testing.T, args ...string) (config.File, context.Context, error) {
	t.Helper()
	var (
		cfg    config.File
		gotCtx context.Context
		err    error
	)
	cmd := &cli.Command{
		Name:  "test",
		Flags: configFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			gotCtx, cfg, _, err = setup(ctx, cmd)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
	return cfg, gotCtx, err
}

func TestSetup_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq2seq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n  format: text\ntrain:\n  epochs: 2\n"), 0o600))

	cfg, ctx, err := runSetup(t, "--config", path, "--log-format", "json")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Train.Epochs)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NotNil(t, logger.FromContext(ctx))
}

func TestSetup_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("train:\n  epochs: 0\n"), 0o600))

	_, _, err := runSetup(t, "--config", path)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

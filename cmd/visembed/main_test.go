package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCommand mirrors the flag wiring of the real root command.
func newTestCommand(cfg *cliconfig.Config) *cobra.Command {
	cmd := &cobra.Command{Use: "visembed"}
	cfg.RegisterFlags(cmd.Flags())
	return cmd
}

func TestSetupExplicitFlagsWinOverConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
batch_size = 16
epochs = 7
device = "cpu"
`), 0644))

	cfg := cliconfig.Default()
	cmd := newTestCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--batch-size=128", "--config", configPath}))

	ctx, err := setup(cmd, cfg)
	require.NoError(t, err)

	// The explicitly set flag wins; the file fills in the rest.
	assert.Equal(t, 128, cfg.BatchSize)
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, 128, context.GetParamOr(ctx, "batch_size", 0))
}

func TestSetupAppliesContextSettings(t *testing.T) {
	cfg := cliconfig.Default()
	cmd := newTestCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--set", "loss=triplet;embedding_size=512"}))

	ctx, err := setup(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, "triplet", context.GetParamOr(ctx, "loss", ""))
	assert.Equal(t, 512, context.GetParamOr(ctx, "embedding_size", 0))
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	cfg := cliconfig.Default()
	cmd := newTestCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--force"}))

	_, err := setup(cmd, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--offline")
}

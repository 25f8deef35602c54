package trainer

import (
	"testing"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointSaveLoadResave(t *testing.T) {
	checkpointsDir := t.TempDir()

	cfg := cliconfig.Default()
	cfg.CheckpointsDir = checkpointsDir
	cfg.LoadCkpt = "ckpt-test"
	cfg.BatchSize = 48
	ctx := CreateDefaultContext(cfg)
	checkpoint, err := buildCheckpoint(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, checkpoint.Save())

	// Reload into a context built with different defaults: the saved
	// hyperparameters win, as when resuming with --load-ckpt.
	reloadCfg := cliconfig.Default()
	reloadCfg.CheckpointsDir = checkpointsDir
	reloadCfg.LoadCkpt = "ckpt-test"
	reloadCtx := CreateDefaultContext(reloadCfg)
	reloaded, err := buildCheckpoint(reloadCtx, reloadCfg)
	require.NoError(t, err)
	assert.Equal(t, 48, context.GetParamOr(reloadCtx, "batch_size", 0))

	// Loading followed by an immediate save leaves the stored state unchanged.
	require.NoError(t, reloaded.Save())
	finalCtx := CreateDefaultContext(cliconfig.Default())
	finalCfg := cliconfig.Default()
	finalCfg.CheckpointsDir = checkpointsDir
	finalCfg.LoadCkpt = "ckpt-test"
	_, err = buildCheckpoint(finalCtx, finalCfg)
	require.NoError(t, err)
	assert.Equal(t, 48, context.GetParamOr(finalCtx, "batch_size", 0))
}

func TestCheckpointExcludesRunLocalParams(t *testing.T) {
	checkpointsDir := t.TempDir()

	cfg := cliconfig.Default()
	cfg.CheckpointsDir = checkpointsDir
	cfg.LoadCkpt = "ckpt-exclude"
	cfg.Plots = true
	ctx := CreateDefaultContext(cfg)
	checkpoint, err := buildCheckpoint(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, checkpoint.Save())

	reloadCfg := cliconfig.Default()
	reloadCfg.CheckpointsDir = checkpointsDir
	reloadCfg.LoadCkpt = "ckpt-exclude"
	reloadCtx := CreateDefaultContext(reloadCfg)
	_, err = buildCheckpoint(reloadCtx, reloadCfg)
	require.NoError(t, err)
	// "plots" is run-local: the reloading run keeps its own value.
	assert.False(t, context.GetParamOr(reloadCtx, "plots", false))
}

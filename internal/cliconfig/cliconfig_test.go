package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, ".", c.ProjectDir)
	assert.Equal(t, "mnist_test_seq", c.Dataset)
	assert.Equal(t, ".npy", c.DataExt)
	assert.Equal(t, 64, c.BatchSize)
	assert.Equal(t, 10, c.Epochs)
	assert.Equal(t, "cuda", c.Device)
	assert.Equal(t, 0, c.DeviceID)
	assert.Equal(t, 1, c.NGPU)
	assert.False(t, c.Parallel)
	assert.Equal(t, 1e-4, c.LR)
	assert.Equal(t, 0, c.NumTrain)
	assert.Equal(t, 2, c.NumFrames)
	assert.Equal(t, 5, c.NumPairs)
	assert.False(t, c.UsePool)
	assert.False(t, c.UseRes)
	assert.False(t, c.Offline)
	assert.False(t, c.Force)

	require.NoError(t, c.Validate())
}

func TestFlagParsing(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--batch-size=32", "--epochs=3", "--device=cpu", "--num-frames=4",
		"--offline", "--force", "--lr=0.01",
	}))
	assert.Equal(t, 32, c.BatchSize)
	assert.Equal(t, 3, c.Epochs)
	assert.Equal(t, "cpu", c.Device)
	assert.Equal(t, 4, c.NumFrames)
	assert.True(t, c.Offline)
	assert.True(t, c.Force)
	assert.Equal(t, 0.01, c.LR)
	require.NoError(t, c.Validate())
}

func TestValidateForceRequiresOffline(t *testing.T) {
	c := Default()
	c.Force = true
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--offline")

	c.Offline = true
	require.NoError(t, c.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad device", func(c *Config) { c.Device = "tpu" }},
		{"negative device id", func(c *Config) { c.DeviceID = -1 }},
		{"zero ngpu", func(c *Config) { c.NGPU = 0 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"negative lr", func(c *Config) { c.LR = -1 }},
		{"negative num train", func(c *Config) { c.NumTrain = -1 }},
		{"zero num frames", func(c *Config) { c.NumFrames = 0 }},
		{"zero num pairs", func(c *Config) { c.NumPairs = 0 }},
		{"unsupported extension", func(c *Config) { c.DataExt = ".h5" }},
		{"empty dataset", func(c *Config) { c.Dataset = "" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestPathResolution(t *testing.T) {
	c := Default()
	c.ProjectDir = "/work/project"
	assert.Equal(t, "/work/project/data", c.ResolvedDataDir())
	assert.Equal(t, "/work/project/checkpoints", c.ResolvedCheckpointsDir())
	assert.Equal(t, "/work/project/data/mnist_test_seq.npy", c.DatasetPath())

	c.DataDir = "/elsewhere/data"
	c.CheckpointsDir = "/elsewhere/ckpt"
	assert.Equal(t, "/elsewhere/data", c.ResolvedDataDir())
	assert.Equal(t, "/elsewhere/ckpt", c.ResolvedCheckpointsDir())
	assert.Equal(t, "/elsewhere/data/mnist_test_seq.npy", c.DatasetPath())
}

func TestBackendConfig(t *testing.T) {
	c := Default()
	assert.Equal(t, "xla:cuda", c.BackendConfig())
	c.Device = "cpu"
	assert.Equal(t, "xla:cpu", c.BackendConfig())
}

func TestNumDevicesWanted(t *testing.T) {
	c := Default()
	assert.Equal(t, 1, c.NumDevicesWanted())

	c.DeviceID = 2
	assert.Equal(t, 3, c.NumDevicesWanted())

	c.DeviceID = 0
	c.NGPU = 4
	assert.Equal(t, 4, c.NumDevicesWanted())

	c.Parallel = true
	assert.Equal(t, 0, c.NumDevicesWanted())

	c.Parallel = false
	c.Device = "cpu"
	assert.Equal(t, 0, c.NumDevicesWanted())
}

func TestMergeConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
batch_size = 16
epochs = 5
device = "cpu"
use_pool = true
lr = 0.003
`), 0644))

	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(fs)
	// --batch-size explicitly set on the command line wins over the file.
	require.NoError(t, fs.Parse([]string{"--batch-size=128"}))
	require.NoError(t, c.MergeConfigFile(configPath, fs))

	assert.Equal(t, 128, c.BatchSize)
	assert.Equal(t, 5, c.Epochs)
	assert.Equal(t, "cpu", c.Device)
	assert.True(t, c.UsePool)
	assert.Equal(t, 0.003, c.LR)
	// Untouched options keep their defaults.
	assert.Equal(t, 2, c.NumFrames)
}

func TestMergeConfigFileErrors(t *testing.T) {
	c := Default()
	require.Error(t, c.MergeConfigFile("/does/not/exist.toml", nil))

	badPath := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(badPath, []byte("batch_size = ["), 0644))
	require.Error(t, c.MergeConfigFile(badPath, nil))
}

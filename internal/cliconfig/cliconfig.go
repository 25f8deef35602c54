/*
 *	Copyright 2024 The Learning Visual Embeddings Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package cliconfig holds the flat run configuration of the training CLI:
// flag registration with defaults, optional TOML config file merged below
// explicitly set flags, and validation.
package cliconfig

import (
	"path"
	"strings"

	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/movingmnist"
)

// Config is the flat set of options of a training run. Immutable once
// validated.
type Config struct {
	// Paths.
	ProjectDir     string
	Dataset        string
	DataExt        string
	DataDir        string // Empty: <project-dir>/data.
	CheckpointsDir string // Empty: <project-dir>/checkpoints.
	LoadCkpt       string

	// Offline preprocessing.
	Offline bool
	Force   bool

	// Training.
	BatchSize int
	Epochs    int
	LR        float64
	NumTrain  int

	// Pair sampling.
	NumFrames int
	NumPairs  int

	// Device.
	Device   string
	DeviceID int
	NGPU     int
	Parallel bool

	// Architecture toggles.
	UsePool bool
	UseRes  bool

	// Supplementary surface.
	ConfigFile      string
	Eval            bool
	Plots           bool
	ContextSettings string
}

// Default returns the configuration with the documented default values.
func Default() *Config {
	return &Config{
		ProjectDir: ".",
		Dataset:    movingmnist.DefaultDataset,
		DataExt:    movingmnist.DefaultDataExt,
		BatchSize:  64,
		Epochs:     10,
		LR:         1e-4,
		NumFrames:  2,
		NumPairs:   5,
		Device:     "cuda",
		DeviceID:   0,
		NGPU:       1,
		Eval:       true,
	}
}

// RegisterFlags binds every option to fs, using the current values of c as
// defaults.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ProjectDir, "project-dir", c.ProjectDir, "Root path; data and checkpoints resolve under it.")
	fs.StringVar(&c.Dataset, "dataset", c.Dataset, "Dataset name (file stem inside the data dir).")
	fs.StringVar(&c.DataExt, "data-ext", c.DataExt, "Dataset file extension.")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Override data path. Default: <project-dir>/data.")
	fs.StringVar(&c.CheckpointsDir, "checkpoints-dir", c.CheckpointsDir, "Checkpoint path. Default: <project-dir>/checkpoints.")
	fs.StringVar(&c.LoadCkpt, "load-ckpt", c.LoadCkpt, "Checkpoint directory name (under the checkpoints dir) to resume from.")

	fs.BoolVar(&c.Offline, "offline", c.Offline, "Use cached offline preprocessing, generating it if absent.")
	fs.BoolVar(&c.Force, "force", c.Force, "Regenerate the offline cache. Only valid with --offline.")

	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "Batch size for training.")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "Number of epochs to train.")
	fs.Float64Var(&c.LR, "lr", c.LR, "Learning rate.")
	fs.IntVar(&c.NumTrain, "num-train", c.NumTrain, "Cap on the number of training videos. 0 means all.")

	fs.IntVar(&c.NumFrames, "num-frames", c.NumFrames, "Number of consecutive frames stacked per clip.")
	fs.IntVar(&c.NumPairs, "num-pairs", c.NumPairs, "Number of pairs sampled per time difference.")

	fs.StringVar(&c.Device, "device", c.Device, "Device to train on: cuda or cpu.")
	fs.IntVar(&c.DeviceID, "device-id", c.DeviceID, "Accelerator device ordinal.")
	fs.IntVar(&c.NGPU, "ngpu", c.NGPU, "Number of GPUs for data-parallel training.")
	fs.BoolVar(&c.Parallel, "parallel", c.Parallel, "Use all available GPUs.")

	fs.BoolVar(&c.UsePool, "use-pool", c.UsePool, "Downsample with max-pooling instead of strided convolutions.")
	fs.BoolVar(&c.UseRes, "use-res", c.UseRes, "Use residual connections in the embedding CNN.")

	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Optional TOML config file, merged below explicitly set flags.")
	fs.BoolVar(&c.Eval, "eval", c.Eval, "Report evaluation on the held-out splits after training.")
	fs.BoolVar(&c.Plots, "plots", c.Plots, "Write a loss-history SVG plot under the project dir.")
	fs.StringVar(&c.ContextSettings, "set", c.ContextSettings, "Hyperparameter overrides, as \"param=value;param=value\".")
}

// Validate checks the configuration. It fails fast on anything that would
// otherwise only surface mid-run.
func (c *Config) Validate() error {
	if c.Force && !c.Offline {
		return errors.Errorf("--force only takes effect combined with --offline")
	}
	switch c.Device {
	case "cuda", "cpu":
	default:
		return errors.Errorf("unknown device %q, expected cuda or cpu", c.Device)
	}
	if c.DeviceID < 0 {
		return errors.Errorf("device id must be >= 0, got %d", c.DeviceID)
	}
	if c.NGPU < 1 {
		return errors.Errorf("ngpu must be >= 1, got %d", c.NGPU)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.LR <= 0 {
		return errors.Errorf("learning rate must be positive, got %g", c.LR)
	}
	if c.NumTrain < 0 {
		return errors.Errorf("num-train must be >= 0, got %d", c.NumTrain)
	}
	if c.NumFrames < 1 {
		return errors.Errorf("num-frames must be >= 1, got %d", c.NumFrames)
	}
	if c.NumPairs < 1 {
		return errors.Errorf("num-pairs must be >= 1, got %d", c.NumPairs)
	}
	if !strings.EqualFold(c.DataExt, movingmnist.DefaultDataExt) {
		return errors.Errorf("only %q datasets are supported, got data-ext %q", movingmnist.DefaultDataExt, c.DataExt)
	}
	if c.Dataset == "" {
		return errors.Errorf("dataset name must not be empty")
	}
	return nil
}

// ResolvedDataDir is DataDir, or <project-dir>/data when unset.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return data.ReplaceTildeInDir(c.DataDir)
	}
	return path.Join(data.ReplaceTildeInDir(c.ProjectDir), "data")
}

// ResolvedCheckpointsDir is CheckpointsDir, or <project-dir>/checkpoints when
// unset.
func (c *Config) ResolvedCheckpointsDir() string {
	if c.CheckpointsDir != "" {
		return data.ReplaceTildeInDir(c.CheckpointsDir)
	}
	return path.Join(data.ReplaceTildeInDir(c.ProjectDir), "checkpoints")
}

// DatasetPath is the full path of the dataset file.
func (c *Config) DatasetPath() string {
	return path.Join(c.ResolvedDataDir(), c.Dataset+c.DataExt)
}

// BackendConfig is the gomlx backend configuration string for the selected
// device.
func (c *Config) BackendConfig() string {
	if c.Device == "cpu" {
		return "xla:cpu"
	}
	return "xla:cuda"
}

// NumDevicesWanted is the number of accelerator devices the run requires:
// with --parallel it is whatever the backend offers (0 here), otherwise the
// largest ordinal implied by --device-id and --ngpu plus one.
func (c *Config) NumDevicesWanted() int {
	if c.Parallel || c.Device == "cpu" {
		return 0
	}
	want := c.DeviceID + 1
	if c.NGPU > want {
		want = c.NGPU
	}
	return want
}

package cliconfig

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// fileConfig mirrors Config for TOML parsing. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	ProjectDir     *string `toml:"project_dir"`
	Dataset        *string `toml:"dataset"`
	DataExt        *string `toml:"data_ext"`
	DataDir        *string `toml:"data_dir"`
	CheckpointsDir *string `toml:"checkpoints_dir"`
	LoadCkpt       *string `toml:"load_ckpt"`

	Offline *bool `toml:"offline"`
	Force   *bool `toml:"force"`

	BatchSize *int     `toml:"batch_size"`
	Epochs    *int     `toml:"epochs"`
	LR        *float64 `toml:"lr"`
	NumTrain  *int     `toml:"num_train"`

	NumFrames *int `toml:"num_frames"`
	NumPairs  *int `toml:"num_pairs"`

	Device   *string `toml:"device"`
	DeviceID *int    `toml:"device_id"`
	NGPU     *int    `toml:"ngpu"`
	Parallel *bool   `toml:"parallel"`

	UsePool *bool `toml:"use_pool"`
	UseRes  *bool `toml:"use_res"`

	Eval  *bool `toml:"eval"`
	Plots *bool `toml:"plots"`
}

// MergeConfigFile loads the TOML file and applies its values to c, except for
// options whose flag was explicitly set on the command line: explicit flags
// always win over the file.
func (c *Config) MergeConfigFile(filePath string, fs *pflag.FlagSet) error {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %q", filePath)
	}
	var fc fileConfig
	if err := toml.Unmarshal(contents, &fc); err != nil {
		return errors.Wrapf(err, "failed to parse config file %q", filePath)
	}

	set := func(flag string, apply func()) {
		if fs == nil || !fs.Changed(flag) {
			apply()
		}
	}
	if fc.ProjectDir != nil {
		set("project-dir", func() { c.ProjectDir = *fc.ProjectDir })
	}
	if fc.Dataset != nil {
		set("dataset", func() { c.Dataset = *fc.Dataset })
	}
	if fc.DataExt != nil {
		set("data-ext", func() { c.DataExt = *fc.DataExt })
	}
	if fc.DataDir != nil {
		set("data-dir", func() { c.DataDir = *fc.DataDir })
	}
	if fc.CheckpointsDir != nil {
		set("checkpoints-dir", func() { c.CheckpointsDir = *fc.CheckpointsDir })
	}
	if fc.LoadCkpt != nil {
		set("load-ckpt", func() { c.LoadCkpt = *fc.LoadCkpt })
	}
	if fc.Offline != nil {
		set("offline", func() { c.Offline = *fc.Offline })
	}
	if fc.Force != nil {
		set("force", func() { c.Force = *fc.Force })
	}
	if fc.BatchSize != nil {
		set("batch-size", func() { c.BatchSize = *fc.BatchSize })
	}
	if fc.Epochs != nil {
		set("epochs", func() { c.Epochs = *fc.Epochs })
	}
	if fc.LR != nil {
		set("lr", func() { c.LR = *fc.LR })
	}
	if fc.NumTrain != nil {
		set("num-train", func() { c.NumTrain = *fc.NumTrain })
	}
	if fc.NumFrames != nil {
		set("num-frames", func() { c.NumFrames = *fc.NumFrames })
	}
	if fc.NumPairs != nil {
		set("num-pairs", func() { c.NumPairs = *fc.NumPairs })
	}
	if fc.Device != nil {
		set("device", func() { c.Device = *fc.Device })
	}
	if fc.DeviceID != nil {
		set("device-id", func() { c.DeviceID = *fc.DeviceID })
	}
	if fc.NGPU != nil {
		set("ngpu", func() { c.NGPU = *fc.NGPU })
	}
	if fc.Parallel != nil {
		set("parallel", func() { c.Parallel = *fc.Parallel })
	}
	if fc.UsePool != nil {
		set("use-pool", func() { c.UsePool = *fc.UsePool })
	}
	if fc.UseRes != nil {
		set("use-res", func() { c.UseRes = *fc.UseRes })
	}
	if fc.Eval != nil {
		set("eval", func() { c.Eval = *fc.Eval })
	}
	if fc.Plots != nil {
		set("plots", func() { c.Plots = *fc.Plots })
	}
	return nil
}

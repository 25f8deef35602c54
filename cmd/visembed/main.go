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

// visembed trains visual embeddings from Moving MNIST video sequences, by
// classifying the time distance between two clips of the same video.
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/movingmnist"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/network"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/pairs"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/trainer"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/xla"
)

func main() {
	cfg := cliconfig.Default()

	root := &cobra.Command{
		Use:   "visembed",
		Short: "Learn visual embeddings from Moving MNIST frame sequences",
		Long: strings.TrimSpace(`
visembed trains a convolutional embedding of Moving MNIST frames without any
human labels: it samples pairs of short clips from the same video and trains a
classifier to predict the bucketed time distance between them. The embeddings
that solve this pretext task transfer to downstream vision tasks.

Losses: ` + strings.Join(network.LossNames(), ", ") + `.`),
		Example: strings.TrimSpace(`
  visembed --project-dir ~/work/visembed --epochs 20
  visembed --offline --force --device cpu
  visembed --load-ckpt run-20250901-120000 --epochs 5`),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setup(cmd, cfg)
			if err != nil {
				return err
			}
			return trainer.TrainModel(ctx, cfg)
		},
	}
	cfg.RegisterFlags(root.PersistentFlags())

	klog.InitFlags(nil)
	root.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	root.AddCommand(&cobra.Command{
		Use:   "download",
		Short: "Download the Moving MNIST dataset into the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(cmd, cfg); err != nil {
				return err
			}
			return trainer.DownloadDataset(cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "preprocess",
		Short: "Pre-generate the offline batch cache (use --force to rebuild)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Offline = true // Implied, preprocessing is what offline mode consumes.
			ctx, err := setup(cmd, cfg)
			if err != nil {
				return err
			}
			return trainer.Preprocess(ctx, cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Print dataset and split statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setup(cmd, cfg)
			if err != nil {
				return err
			}
			return inspect(ctx, cfg)
		},
	})

	if err := root.Execute(); err != nil {
		klog.Errorf("visembed: %+v", err)
		os.Exit(1)
	}
}

// setup merges the config file (below any flag explicitly set on the command
// line), validates the settings and builds the hyperparameters context,
// applying any --set overrides.
func setup(cmd *cobra.Command, cfg *cliconfig.Config) (*context.Context, error) {
	if cfg.ConfigFile != "" {
		if err := cfg.MergeConfigFile(cfg.ConfigFile, cmd.Flags()); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := trainer.CreateDefaultContext(cfg)
	if cfg.ContextSettings != "" {
		paramsSet, err := commandline.ParseContextSettings(ctx, cfg.ContextSettings)
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("Hyperparameters overridden with --set: %v", paramsSet)
	}
	return ctx, nil
}

func inspect(ctx *context.Context, cfg *cliconfig.Config) error {
	if err := trainer.DownloadDataset(cfg); err != nil {
		return err
	}
	seqs, err := movingmnist.Load(cfg.DatasetPath())
	if err != nil {
		return err
	}
	fmt.Printf("Dataset %q: %d videos of %d frames, %dx%d pixels (%s)\n",
		cfg.Dataset, seqs.NumVideos, seqs.SeqLen, seqs.Height, seqs.Width,
		humanize.IBytes(uint64(len(seqs.Pixels))))

	config := trainer.NewPairsConfig(ctx, cfg)
	trainIdx, validIdx, testIdx := pairs.SplitVideos(seqs.NumVideos, config.NumTrain,
		config.TestFraction, config.ValidationFraction, config.SplitSeed)
	fmt.Printf("Split (seed %d): %d train / %d validation / %d test videos\n",
		config.SplitSeed, len(trainIdx), len(validIdx), len(testIdx))

	fmt.Printf("Time buckets (%d classes):\n", config.Buckets.NumClasses())
	for class, bucket := range config.Buckets {
		if bucket.Min == bucket.Max {
			fmt.Printf("  class %d: distance %d\n", class, bucket.Min)
		} else {
			fmt.Printf("  class %d: distances %d..%d\n", class, bucket.Min, bucket.Max)
		}
	}

	// A montage of the first videos' frames, for eyeballing the data.
	montagePath := path.Join(cfg.ProjectDir, "sample_frames.png")
	if err := imaging.Save(seqs.Montage(4, 10), montagePath); err != nil {
		return errors.Wrapf(err, "failed to write %q", montagePath)
	}
	fmt.Printf("Sample frames written to %q\n", montagePath)
	return nil
}

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

package trainer

import (
	"fmt"
	"os"
	"time"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/movingmnist"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/network"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/pairs"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NewPairsConfig builds the dataset configuration from the command-line
// settings and the context hyperparameters.
func NewPairsConfig(ctx *context.Context, cfg *cliconfig.Config) *pairs.Configuration {
	config := pairs.DefaultConfig()
	config.DataDir = cfg.ResolvedDataDir()
	config.DatasetName = cfg.Dataset
	config.DatasetPath = cfg.DatasetPath()
	config.BatchSize = context.GetParamOr(ctx, "batch_size", config.BatchSize)
	config.EvalBatchSize = context.GetParamOr(ctx, "eval_batch_size", config.EvalBatchSize)
	config.NumFrames = cfg.NumFrames
	config.NumPairs = cfg.NumPairs
	config.NumTrain = cfg.NumTrain
	config.Offline = cfg.Offline
	config.Force = cfg.Force
	config.FlipH = context.GetParamOr(ctx, "augment_flip_h", false)
	config.FlipV = context.GetParamOr(ctx, "augment_flip_v", false)
	return config
}

// DownloadDataset fetches the Moving MNIST file into the data directory, if
// not yet there.
func DownloadDataset(cfg *cliconfig.Config) error {
	dataDir := cfg.ResolvedDataDir()
	if !data.FileExists(dataDir) {
		if err := os.MkdirAll(dataDir, 0777); err != nil {
			return errors.Wrapf(err, "failed to create data dir %q", dataDir)
		}
	}
	return movingmnist.Download(dataDir)
}

// Preprocess regenerates the offline batch cache. With force set, existing
// cache files are rebuilt.
func Preprocess(ctx *context.Context, cfg *cliconfig.Config) error {
	if err := DownloadDataset(cfg); err != nil {
		return err
	}
	return pairs.PreGenerate(NewPairsConfig(ctx, cfg), cfg.Force)
}

// TrainModel trains the pairwise frame-distance classifier according to the
// given context hyperparameters and command-line settings.
func TrainModel(ctx *context.Context, cfg *cliconfig.Config) error {
	backend := backends.NewWithConfig(cfg.BackendConfig())
	if wanted := cfg.NumDevicesWanted(); wanted > int(backend.NumDevices()) {
		return errors.Errorf("requested %d device(s) of type %q, backend reports only %d available",
			wanted, cfg.Device, backend.NumDevices())
	}

	if err := DownloadDataset(cfg); err != nil {
		return err
	}
	dsConfig := NewPairsConfig(ctx, cfg)
	trainDS, validEvalDS, testEvalDS, err := pairs.CreateDatasets(dsConfig)
	if err != nil {
		return err
	}
	numClasses := dsConfig.Buckets.NumClasses()

	lossName := context.GetParamOr(ctx, "loss", "cross-entropy")
	lossFn, ok := network.Losses[lossName]
	if !ok {
		return errors.Errorf("unknown loss %q, available: %v", lossName, network.LossNames())
	}

	// Metrics we are interested in.
	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)

	// The trainer orchestrates running the model, feeding results to the
	// optimizer and evaluating the metrics.
	trainer := train.NewTrainer(backend, ctx,
		network.PairClassifierGraph(numClasses),
		lossFn,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric}, // trainMetrics
		[]metrics.Interface{meanAccuracyMetric})   // evalMetrics

	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	// Checkpoints saving: resumes from --load-ckpt if given, otherwise starts
	// a fresh time-stamped directory.
	checkpoint, err := buildCheckpoint(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Checkpointing model to %q\n", checkpoint.Dir())
	period := time.Minute * 3
	train.PeriodicCallback(loop, period, true, "saving checkpoint", 100,
		func(loop *train.Loop, metrics []*tensors.Tensor) error {
			return checkpoint.Save()
		})

	var history *LossHistory
	if context.GetParamOr(ctx, "plots", false) {
		history = AttachLossHistory(loop, 10)
	}

	globalStep := optimizers.GetGlobalStep(ctx)
	if globalStep > 0 {
		klog.Infof("Resuming training from global step %d", globalStep)
		trainer.SetContext(ctx.Reuse())
	}
	if _, err = loop.RunEpochs(trainDS, cfg.Epochs); err != nil {
		return errors.WithMessagef(err, "training failed after %d step(s)", loop.LoopStep)
	}
	fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
		loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
	if err = checkpoint.Save(); err != nil {
		return errors.WithMessage(err, "failed to save the final checkpoint")
	}

	if history != nil {
		plotPath, err := history.Render(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Loss history plot written to %q\n", plotPath)
	}

	// Finally, print an evaluation on the held-out splits.
	if cfg.Eval {
		fmt.Println()
		if err = commandline.ReportEval(trainer, validEvalDS, testEvalDS); err != nil {
			return errors.WithMessage(err, "evaluation failed")
		}
		fmt.Println()
	}
	return nil
}

// buildCheckpoint creates (or reopens) the checkpoint handler under the
// checkpoints directory.
func buildCheckpoint(ctx *context.Context, cfg *cliconfig.Config) (*checkpoints.Handler, error) {
	baseDir := cfg.ResolvedCheckpointsDir()
	dir := cfg.LoadCkpt
	if dir == "" {
		dir = time.Now().Format("run-20060102-150405")
	}
	numCheckpointsToKeep := context.GetParamOr(ctx, "num_checkpoints", 3)
	checkpoint, err := checkpoints.Build(ctx).
		DirFromBase(dir, baseDir).
		Keep(numCheckpointsToKeep).
		ExcludeParams(excludeParamsFromCheckpoint...).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to set up checkpointing in %q", baseDir)
	}
	return checkpoint, nil
}

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

// Package trainer drives training of the pairwise frame-distance model: it
// assembles the datasets, the model graph, the loss, the optimizer and the
// checkpointing, and runs the epoch loop.
package trainer

import (
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/network"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/ml/train/optimizers/cosineschedule"
)

// excludeParamsFromCheckpoint are run-local settings that should not be
// restored when resuming from a checkpoint.
var excludeParamsFromCheckpoint = []string{"num_checkpoints", "plots"}

// CreateDefaultContext sets the context with the default hyperparameters.
// Individual values can still be overridden afterwards with --set.
func CreateDefaultContext(cfg *cliconfig.Config) *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		"num_checkpoints": 3,

		// loss selects among network.Losses.
		"loss": "cross-entropy",

		// batch_size for training.
		"batch_size": cfg.BatchSize,

		// eval_batch_size can be larger than training, it's more efficient.
		"eval_batch_size": 2 * cfg.BatchSize,

		"plots": cfg.Plots,

		// Random flips applied to both clips of a training pair.
		"augment_flip_h": false,
		"augment_flip_v": false,

		optimizers.ParamOptimizer:       "adamw",
		optimizers.ParamLearningRate:    cfg.LR,
		optimizers.ParamAdamEpsilon:     1e-7,
		cosineschedule.ParamPeriodSteps: 0,
		activations.ParamActivation:     "relu",
		layers.ParamDropoutRate:         0.1,
		regularizers.ParamL2:            0.0,
		regularizers.ParamL1:            0.0,

		// Embedding CNN and classification head.
		network.ParamNumConvBlocks: 4,
		network.ParamNumFilters:    32,
		network.ParamEmbeddingSize: 1024,
		network.ParamHiddenNodes:   256,
		network.ParamUsePool:       cfg.UsePool,
		network.ParamUseRes:        cfg.UseRes,
	})
	return ctx
}

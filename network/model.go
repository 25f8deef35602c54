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

// Package network builds the embedding CNN and the pair-classifier graphs.
package network

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// Hyperparameter names used from the context, with their defaults.
const (
	// ParamEmbeddingSize is the dimension of the clip embedding vector.
	ParamEmbeddingSize = "embedding_size"

	// ParamNumConvBlocks is the number of convolution+downsample blocks.
	ParamNumConvBlocks = "cnn_num_layers"

	// ParamNumFilters is the number of filters per convolution.
	ParamNumFilters = "cnn_num_filters"

	// ParamHiddenNodes is the width of the classifier's hidden layer.
	ParamHiddenNodes = "head_hidden_nodes"

	// ParamUsePool selects max-pooling for downsampling instead of strided
	// convolutions.
	ParamUsePool = "use_pool"

	// ParamUseRes enables residual connections between convolution blocks.
	ParamUseRes = "use_res"
)

// EmbeddingGraph builds the CNN that maps a stacked-frame clip, shaped
// [batch, height, width, numFrames], to its embedding vector, shaped
// [batch, embeddingSize].
//
// Each block convolves and halves the spatial resolution: with "use_pool" via a
// stride-1 convolution followed by 2x2 max-pooling, otherwise via a stride-2
// convolution. With "use_res" the block input is added back whenever shapes
// agree.
func EmbeddingGraph(ctx *context.Context, clip *Node) *Node {
	batchSize := clip.Shape().Dimensions[0]
	numBlocks := context.GetParamOr(ctx, ParamNumConvBlocks, 4)
	numFilters := context.GetParamOr(ctx, ParamNumFilters, 32)
	usePool := context.GetParamOr(ctx, ParamUsePool, false)
	useRes := context.GetParamOr(ctx, ParamUseRes, false)

	logits := clip
	for blockIdx := range numBlocks {
		ctx := ctx.Inf("%03d_conv", blockIdx)
		residual := logits
		if usePool {
			logits = layers.Convolution(ctx, logits).Filters(numFilters).KernelSize(3).PadSame().Done()
			logits = activations.ApplyFromContext(ctx, logits)
			logits = MaxPool(logits).Window(2).Done()
		} else {
			logits = layers.Convolution(ctx, logits).Filters(numFilters).KernelSize(3).PadSame().Strides(2).Done()
			logits = activations.ApplyFromContext(ctx, logits)
		}
		if useRes && residual.Shape().Equal(logits.Shape()) {
			logits = Add(logits, residual)
		}
		logits = layers.DropoutFromContext(ctx, logits)
	}

	// Flatten and project to the embedding dimension.
	logits = Reshape(logits, batchSize, -1)
	embeddingSize := context.GetParamOr(ctx, ParamEmbeddingSize, 1024)
	embedding := layers.DenseWithBias(ctx.In("embedding"), logits, embeddingSize)
	return embedding
}

// PairClassifierGraph implements train.ModelFn: inputs are the two clip
// tensors; it embeds both with shared weights and classifies the pair into a
// time-distance bucket.
//
// It returns three nodes: the bucket logits, and the two embeddings (used by
// the triplet losses; metrics only look at the logits).
func PairClassifierGraph(numClasses int) func(ctx *context.Context, spec any, inputs []*Node) []*Node {
	return func(ctx *context.Context, _ any, inputs []*Node) []*Node {
		ctx = ctx.In("model")
		clipA, clipB := inputs[0], inputs[1]
		batchSize := clipA.Shape().Dimensions[0]

		// Run the shared embedding CNN once over both clips, stacked along the
		// batch axis, then slice the two halves apart.
		stacked := Concatenate([]*Node{clipA, clipB}, 0)
		embeddings := EmbeddingGraph(ctx.In("cnn"), stacked)
		embA := Slice(embeddings, AxisRange(0, batchSize))
		embB := Slice(embeddings, AxisRange(batchSize, 2*batchSize))

		// Combine: concatenation plus element-wise distance and product.
		features := Concatenate([]*Node{
			embA,
			embB,
			Abs(Sub(embA, embB)),
			Mul(embA, embB),
		}, -1)

		headCtx := ctx.In("head")
		hiddenNodes := context.GetParamOr(headCtx, ParamHiddenNodes, 256)
		hidden := layers.DenseWithBias(headCtx.In("hidden"), features, hiddenNodes)
		hidden = activations.ApplyFromContext(headCtx, hidden)
		hidden = layers.DropoutFromContext(headCtx, hidden)
		logits := layers.DenseWithBias(headCtx.In("logits"), hidden, numClasses)
		logits.AssertDims(batchSize, numClasses)
		return []*Node{logits, embA, embB}
	}
}

package network

import (
	"maps"
	"slices"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/train/losses"
)

// Losses selectable with the "loss" hyperparameter. The cross-entropy loss
// trains the bucket classifier head; the triplet variants instead pull the
// embeddings of same-bucket pairs together in embedding space.
var Losses = map[string]losses.LossFn{
	"cross-entropy": func(labels, predictions []*Node) *Node {
		return losses.SparseCategoricalCrossEntropyLogits(labels, predictions[:1])
	},

	"triplet": func(labels, predictions []*Node) *Node {
		return tripletOnEmbeddings(labels, predictions, func(tripletLabels, embeddings []*Node) *Node {
			return losses.TripletLoss(tripletLabels, embeddings, losses.TripletMiningStrategyAll, 1.0, losses.PairwiseDistanceMetricL2)
		})
	},
	"triplet-hard": func(labels, predictions []*Node) *Node {
		return tripletOnEmbeddings(labels, predictions, func(tripletLabels, embeddings []*Node) *Node {
			return losses.TripletLoss(tripletLabels, embeddings, losses.TripletMiningStrategyHard, 1.0, losses.PairwiseDistanceMetricL2)
		})
	},
	"triplet-semi-hard": func(labels, predictions []*Node) *Node {
		return tripletOnEmbeddings(labels, predictions, func(tripletLabels, embeddings []*Node) *Node {
			return losses.TripletLoss(tripletLabels, embeddings, losses.TripletMiningStrategySemiHard, 1.0, losses.PairwiseDistanceMetricL2)
		})
	},
}

// LossNames lists the selectable losses, sorted.
func LossNames() []string {
	return slices.Sorted(maps.Keys(Losses))
}

// tripletOnEmbeddings adapts the pair-classifier outputs to the triplet losses:
// the two embeddings are stacked along the batch axis, with the bucket label
// repeated for both halves.
func tripletOnEmbeddings(labels, predictions []*Node, lossFn func(labels, embeddings []*Node) *Node) *Node {
	embA, embB := predictions[1], predictions[2]
	embeddings := Concatenate([]*Node{embA, embB}, 0)
	pairLabels := Concatenate([]*Node{labels[0], labels[0]}, 0)
	return lossFn([]*Node{pairLabels}, []*Node{embeddings})
}

package network

import (
	"testing"

	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossNames(t *testing.T) {
	names := LossNames()
	assert.Equal(t, []string{"cross-entropy", "triplet", "triplet-hard", "triplet-semi-hard"}, names)
	for _, name := range names {
		require.NotNil(t, Losses[name], "loss %q", name)
	}
}

func TestTripletLossesCoverMiningStrategies(t *testing.T) {
	// One selectable loss per mining strategy of losses.TripletLoss.
	for name, strategy := range map[string]losses.TripletMiningStrategy{
		"triplet":           losses.TripletMiningStrategyAll,
		"triplet-hard":      losses.TripletMiningStrategyHard,
		"triplet-semi-hard": losses.TripletMiningStrategySemiHard,
	} {
		assert.NotNil(t, Losses[name], "loss %q (mining strategy %d)", name, strategy)
	}
}

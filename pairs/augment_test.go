package pairs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asymmetricClip builds a numFrames-clip where only the top-left pixel of each
// frame is set, so any flip is visible.
func asymmetricClip(numFrames, height, width int) []uint8 {
	clip := make([]uint8, numFrames*height*width)
	for f := 0; f < numFrames; f++ {
		clip[f*height*width] = 255
	}
	return clip
}

func TestAugmenterAppliesSameTransformToBothClips(t *testing.T) {
	const numFrames, size = 2, 4
	clipA := asymmetricClip(numFrames, size, size)
	clipB := asymmetricClip(numFrames, size, size)

	a := NewAugmenter(true, true, 0)
	sawChange := false
	for i := 0; i < 50; i++ {
		gotA, gotB := a.Apply(clipA, clipB, numFrames, size, size)
		// Identical inputs must stay identical under the shared transform.
		assert.Equal(t, gotA, gotB)
		if gotA[0] != clipA[0] {
			sawChange = true
		}
	}
	assert.True(t, sawChange, "augmenter never fired in 50 draws")
}

func TestAugmenterFlipH(t *testing.T) {
	const size = 4
	clip := asymmetricClip(1, size, size)

	a := &Augmenter{}
	flipped := a.transformClip(clip, 1, size, size, true, false)
	// Top-left pixel moves to the top-right.
	assert.Equal(t, uint8(0), flipped[0])
	assert.Equal(t, uint8(255), flipped[size-1])
	// Input untouched.
	assert.Equal(t, uint8(255), clip[0])
}

func TestAugmenterFlipV(t *testing.T) {
	const size = 4
	clip := asymmetricClip(1, size, size)

	a := &Augmenter{}
	flipped := a.transformClip(clip, 1, size, size, false, true)
	// Top-left pixel moves to the bottom-left.
	assert.Equal(t, uint8(0), flipped[0])
	assert.Equal(t, uint8(255), flipped[(size-1)*size])
}

func TestAugmenterDisabledIsIdentity(t *testing.T) {
	clip := asymmetricClip(2, 4, 4)
	a := NewAugmenter(false, false, 0)
	gotA, gotB := a.Apply(clip, clip, 2, 4, 4)
	require.Equal(t, clip, gotA)
	require.Equal(t, clip, gotB)
}

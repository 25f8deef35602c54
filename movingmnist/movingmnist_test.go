package movingmnist

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestSequences writes a tiny Moving MNIST style file, in the on-disk
// [frames, videos, height, width] layout, where every pixel encodes its
// (frame, video) coordinates so the axes swap is easy to check.
func writeTestSequences(t *testing.T, seqLen, numVideos, height, width int) string {
	a := &Array{
		DType: dtypes.Uint8,
		Dims:  []int{seqLen, numVideos, height, width},
		Data:  make([]byte, seqLen*numVideos*height*width),
	}
	pos := 0
	for frame := 0; frame < seqLen; frame++ {
		for video := 0; video < numVideos; video++ {
			for p := 0; p < height*width; p++ {
				a.Data[pos] = uint8(frame*numVideos + video)
				pos++
			}
		}
	}
	filePath := filepath.Join(t.TempDir(), "tiny.npy")
	require.NoError(t, WriteNpyFile(a, filePath))
	return filePath
}

func TestLoadSwapsAxes(t *testing.T) {
	const seqLen, numVideos, size = 5, 3, 4
	filePath := writeTestSequences(t, seqLen, numVideos, size, size)

	s, err := Load(filePath)
	require.NoError(t, err)
	assert.Equal(t, numVideos, s.NumVideos)
	assert.Equal(t, seqLen, s.SeqLen)
	assert.Equal(t, size, s.Height)
	assert.Equal(t, size, s.Width)

	for video := 0; video < numVideos; video++ {
		for frame := 0; frame < seqLen; frame++ {
			f := s.Frame(video, frame)
			assert.Len(t, f, size*size)
			assert.Equal(t, uint8(frame*numVideos+video), f[0],
				"video %d frame %d", video, frame)
		}
	}
}

func TestClip(t *testing.T) {
	const seqLen, numVideos, size = 5, 2, 4
	filePath := writeTestSequences(t, seqLen, numVideos, size, size)
	s, err := Load(filePath)
	require.NoError(t, err)

	// Clip ending at frame 3 with 2 frames covers frames 2 and 3.
	clip := s.Clip(1, 3, 2)
	require.Len(t, clip, 2*size*size)
	assert.Equal(t, uint8(2*numVideos+1), clip[0])
	assert.Equal(t, uint8(3*numVideos+1), clip[size*size])
}

func TestSlice(t *testing.T) {
	filePath := writeTestSequences(t, 4, 6, 2, 2)
	s, err := Load(filePath)
	require.NoError(t, err)

	small := s.Slice(2)
	assert.Equal(t, 2, small.NumVideos)
	assert.Equal(t, s.Frame(1, 3), small.Frame(1, 3))
	assert.Panics(t, func() { s.Slice(7) })
}

func TestLoadRejectsWrongShape(t *testing.T) {
	a := &Array{DType: dtypes.Uint8, Dims: []int{4, 4}, Data: make([]byte, 16)}
	filePath := filepath.Join(t.TempDir(), "rank2.npy")
	require.NoError(t, WriteNpyFile(a, filePath))
	_, err := Load(filePath)
	require.Error(t, err)
}

package movingmnist

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNpyRoundTripUint8(t *testing.T) {
	a := &Array{
		DType: dtypes.Uint8,
		Dims:  []int{2, 3, 4},
		Data:  make([]byte, 2*3*4),
	}
	for i := range a.Data {
		a.Data[i] = uint8(i)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNpy(a, &buf))

	// Data must start at an offset multiple of 16, per the format spec.
	assert.Zero(t, (buf.Len()-len(a.Data))%16)

	got, err := ReadNpy(&buf)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Uint8, got.DType)
	assert.Equal(t, a.Dims, got.Dims)
	assert.Equal(t, a.Data, got.Data)
}

func TestNpyRoundTripFloat32(t *testing.T) {
	values := []float32{0, 1.5, -2.25, 1e10}
	a := &Array{
		DType: dtypes.Float32,
		Dims:  []int{4},
		Data:  make([]byte, 4*4),
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(a.Data[4*i:], math.Float32bits(v))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNpy(a, &buf))
	got, err := ReadNpy(&buf)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float32, got.DType)
	assert.Equal(t, []int{4}, got.Dims)
	for i, v := range values {
		assert.Equal(t, v, math.Float32frombits(binary.LittleEndian.Uint32(got.Data[4*i:])))
	}
}

func TestNpyFileRoundTrip(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "test.npy")
	a := &Array{DType: dtypes.Uint8, Dims: []int{5, 2}, Data: make([]byte, 10)}
	require.NoError(t, WriteNpyFile(a, filePath))
	got, err := ReadNpyFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, a.Dims, got.Dims)
}

func TestNpyRejectsBadInput(t *testing.T) {
	_, err := ReadNpy(bytes.NewReader([]byte("not a npy file at all")))
	require.Error(t, err)

	// Unsupported dtype.
	a := &Array{DType: dtypes.Float64, Dims: []int{1}, Data: make([]byte, 8)}
	require.Error(t, WriteNpy(a, &bytes.Buffer{}))

	// Data size inconsistent with dimensions.
	a = &Array{DType: dtypes.Uint8, Dims: []int{3}, Data: make([]byte, 2)}
	require.Error(t, WriteNpy(a, &bytes.Buffer{}))
}

func TestNpyHeaderParsing(t *testing.T) {
	descr, dims, fortran, err := parseNpyHeader(
		"{'descr': '|u1', 'fortran_order': False, 'shape': (20, 10000, 64, 64), }")
	require.NoError(t, err)
	assert.Equal(t, "|u1", descr)
	assert.Equal(t, []int{20, 10000, 64, 64}, dims)
	assert.False(t, fortran)

	// 1-D shape with trailing comma.
	_, dims, _, err = parseNpyHeader("{'descr': '<f4', 'fortran_order': False, 'shape': (7,), }")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, dims)
}

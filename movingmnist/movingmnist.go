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

// Package movingmnist loads the Moving MNIST dataset: 10000 synthetic videos of
// 20 frames each, with two digits bouncing inside a 64x64 grayscale canvas.
//
// See http://www.cs.toronto.edu/~nitish/unsupervised_video/
package movingmnist

import (
	"fmt"
	"net/url"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	downloadURL    = "https://www.cs.toronto.edu/~nitish/unsupervised_video"
	DefaultDataset = "mnist_test_seq"
	DefaultDataExt = ".npy"
	FrameSize      = 64 // Frames are FrameSize x FrameSize grayscale.
	SequenceLength = 20
	NumSequences   = 10000
)

// Sequences is an in-memory set of grayscale video sequences, one byte per pixel,
// laid out as [video][frame][row][column].
//
// The Moving MNIST file on disk is [frame][video][row][column]; Load swaps the
// first two axes so a video's frames are contiguous.
type Sequences struct {
	NumVideos, SeqLen, Height, Width int

	// Pixels, flat, indexed by ((video*SeqLen+frame)*Height+row)*Width+col.
	Pixels []uint8
}

// FrameBytes is the size in bytes of a single frame.
func (s *Sequences) FrameBytes() int { return s.Height * s.Width }

// Frame returns the pixels of one frame of one video, without copying.
func (s *Sequences) Frame(video, frame int) []uint8 {
	start := (video*s.SeqLen + frame) * s.FrameBytes()
	return s.Pixels[start : start+s.FrameBytes()]
}

// Clip returns the pixels of numFrames consecutive frames of a video, ending at
// (and including) frame end, without copying.
func (s *Sequences) Clip(video, end, numFrames int) []uint8 {
	start := (video*s.SeqLen + end - numFrames + 1) * s.FrameBytes()
	return s.Pixels[start : start+numFrames*s.FrameBytes()]
}

// Download fetches the Moving MNIST file into dataDir if it is not there yet.
func Download(dataDir string) error {
	dataDir = data.ReplaceTildeInDir(dataDir)
	fileURL, _ := url.JoinPath(downloadURL, DefaultDataset+DefaultDataExt)
	filePath := path.Join(dataDir, DefaultDataset+DefaultDataExt)
	if err := data.DownloadIfMissing(fileURL, filePath, ""); err != nil {
		return errors.WithMessagef(err, "downloading Moving MNIST from %q", fileURL)
	}
	return nil
}

// Load reads a Moving MNIST style ".npy" file and swaps the (frames, videos)
// axes, so that each video's frames are contiguous in memory.
func Load(filePath string) (*Sequences, error) {
	a, err := ReadNpyFile(filePath)
	if err != nil {
		return nil, err
	}
	if a.DType != dtypes.Uint8 {
		return nil, errors.Errorf("dataset %q has dtype %s, want uint8", filePath, a.DType)
	}
	if len(a.Dims) != 4 {
		return nil, errors.Errorf("dataset %q has shape %v, want rank-4 [frames, videos, height, width]",
			filePath, a.Dims)
	}
	seqLen, numVideos, height, width := a.Dims[0], a.Dims[1], a.Dims[2], a.Dims[3]
	s := &Sequences{
		NumVideos: numVideos,
		SeqLen:    seqLen,
		Height:    height,
		Width:     width,
		Pixels:    make([]uint8, len(a.Data)),
	}
	frameBytes := s.FrameBytes()
	for frame := 0; frame < seqLen; frame++ {
		for video := 0; video < numVideos; video++ {
			src := (frame*numVideos + video) * frameBytes
			dst := (video*seqLen + frame) * frameBytes
			copy(s.Pixels[dst:dst+frameBytes], a.Data[src:src+frameBytes])
		}
	}
	klog.V(1).Infof("Loaded %d videos of %d frames (%dx%d) from %q (%s)",
		numVideos, seqLen, height, width, filePath, humanize.IBytes(uint64(len(s.Pixels))))
	return s, nil
}

// Slice returns a view of the first numVideos videos. It panics if numVideos is
// out of range.
func (s *Sequences) Slice(numVideos int) *Sequences {
	if numVideos <= 0 || numVideos > s.NumVideos {
		panic(fmt.Sprintf("cannot take %d videos from a dataset with %d", numVideos, s.NumVideos))
	}
	return &Sequences{
		NumVideos: numVideos,
		SeqLen:    s.SeqLen,
		Height:    s.Height,
		Width:     s.Width,
		Pixels:    s.Pixels[:numVideos*s.SeqLen*s.FrameBytes()],
	}
}

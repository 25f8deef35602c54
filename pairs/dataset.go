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

package pairs

import (
	"io"
	"math/rand"
	"sync"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/movingmnist"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// sample is one training example: the pair of clip end-frames of one video, and
// the time-bucket class of their distance.
type sample struct {
	video, endA, endB int
	label             int32
}

// Dataset implements train.Dataset, yielding batches of clip pairs and their
// time-bucket labels. Each Yield returns two input tensors shaped
// [batch, height, width, numFrames] (values scaled to [0,1]) and one label
// tensor shaped [batch, 1].
type Dataset struct {
	name      string
	seqs      *movingmnist.Sequences
	numFrames int
	batchSize int
	buckets   Buckets

	samples []sample
	augment *Augmenter

	mu       sync.Mutex
	shuffle  *rand.Rand // nil: yield in sample order (evaluation).
	order    []int
	position int
}

var _ train.Dataset = &Dataset{}

// NewDataset builds the deterministic sample list for the given videos: for
// every time-difference covered by the buckets, numPairs candidate (endA, endB)
// pairs are drawn (seeded by sampleSeed), and every video is paired with every
// drawn candidate. The candidate draw depends only on sampleSeed, so train and
// evaluation splits see the same pair geometry.
//
// If shuffle is set, the yield order is re-shuffled on every Reset; the sample
// list itself never changes.
func NewDataset(name string, seqs *movingmnist.Sequences, videos []int,
	numFrames, numPairs, batchSize int, buckets Buckets,
	sampleSeed int64, shuffle *rand.Rand) (*Dataset, error) {
	if err := buckets.Validate(seqs.SeqLen, numFrames); err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", name)
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("dataset %q: batch size must be positive, got %d", name, batchSize)
	}
	if numPairs <= 0 {
		return nil, errors.Errorf("dataset %q: num pairs must be positive, got %d", name, numPairs)
	}

	// Draw the candidate pairs per time-difference.
	rng := rand.New(rand.NewSource(sampleSeed))
	var chosen []struct {
		ends  clipEnds
		label int32
	}
	for diff := 0; diff <= buckets.MaxDiff(); diff++ {
		label := int32(buckets.ClassOf(diff))
		cands := candidatePairs(seqs.SeqLen, numFrames, diff)
		if len(cands) <= numPairs {
			for _, c := range cands {
				chosen = append(chosen, struct {
					ends  clipEnds
					label int32
				}{c, label})
			}
			continue
		}
		for _, idx := range rng.Perm(len(cands))[:numPairs] {
			chosen = append(chosen, struct {
				ends  clipEnds
				label int32
			}{cands[idx], label})
		}
	}

	ds := &Dataset{
		name:      name,
		seqs:      seqs,
		numFrames: numFrames,
		batchSize: batchSize,
		buckets:   buckets,
		shuffle:   shuffle,
		samples:   make([]sample, 0, len(videos)*len(chosen)),
	}
	for _, video := range videos {
		for _, c := range chosen {
			ds.samples = append(ds.samples, sample{
				video: video,
				endA:  c.ends.endA,
				endB:  c.ends.endB,
				label: c.label,
			})
		}
	}
	ds.Reset()
	return ds, nil
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// NumSamples returns the total number of pair samples.
func (ds *Dataset) NumSamples() int { return len(ds.samples) }

// NumClasses returns the number of time-bucket classes.
func (ds *Dataset) NumClasses() int { return ds.buckets.NumClasses() }

// WithAugmenter sets an augmentation applied to each pair (the same transform
// on both clips). Returns ds to allow chaining.
func (ds *Dataset) WithAugmenter(augment *Augmenter) *Dataset {
	ds.augment = augment
	return ds
}

// Yield implements train.Dataset. Only full batches are yielded: when fewer
// than batchSize samples remain, it returns io.EOF.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.position+ds.batchSize > len(ds.order) {
		return nil, nil, nil, io.EOF
	}
	batch := ds.order[ds.position : ds.position+ds.batchSize]
	ds.position += ds.batchSize

	clipBytes := ds.numFrames * ds.seqs.FrameBytes()
	clipsA := make([]uint8, 0, ds.batchSize*clipBytes)
	clipsB := make([]uint8, 0, ds.batchSize*clipBytes)
	labelValues := make([]int32, 0, ds.batchSize)
	for _, idx := range batch {
		s := ds.samples[idx]
		clipA := ds.seqs.Clip(s.video, s.endA, ds.numFrames)
		clipB := ds.seqs.Clip(s.video, s.endB, ds.numFrames)
		if ds.augment != nil {
			clipA, clipB = ds.augment.Apply(clipA, clipB, ds.numFrames, ds.seqs.Height, ds.seqs.Width)
		}
		clipsA = append(clipsA, clipA...)
		clipsB = append(clipsB, clipB...)
		labelValues = append(labelValues, s.label)
	}

	spec = ds
	inputs = []*tensors.Tensor{
		ClipsToTensor[float32](clipsA, ds.batchSize, ds.numFrames, ds.seqs.Height, ds.seqs.Width),
		ClipsToTensor[float32](clipsB, ds.batchSize, ds.numFrames, ds.seqs.Height, ds.seqs.Width),
	}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(labelValues, ds.batchSize, 1)}
	return
}

// Reset implements train.Dataset: restarts the dataset, re-shuffling the yield
// order if a shuffle rng was given.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.position = 0
	if ds.order == nil {
		ds.order = make([]int, len(ds.samples))
		for i := range ds.order {
			ds.order[i] = i
		}
	}
	if ds.shuffle != nil {
		ds.shuffle.Shuffle(len(ds.order), func(i, j int) {
			ds.order[i], ds.order[j] = ds.order[j], ds.order[i]
		})
	}
}

// ClipsToTensor converts a batch of raw uint8 clips (frame-major) to a tensor
// shaped [batch, height, width, numFrames], scaling pixel values to [0, 1].
func ClipsToTensor[T float32 | float64](buffer []uint8, batchSize, numFrames, height, width int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.FromGenericsType[T](), batchSize, height, width, numFrames))
	tensors.MutableFlatData(t, func(flat []T) {
		frameBytes := height * width
		for b := 0; b < batchSize; b++ {
			clip := buffer[b*numFrames*frameBytes : (b+1)*numFrames*frameBytes]
			base := b * frameBytes * numFrames
			for f := 0; f < numFrames; f++ {
				frame := clip[f*frameBytes : (f+1)*frameBytes]
				for p, v := range frame {
					// Frames are stored frame-major, the tensor is channels-last.
					flat[base+p*numFrames+f] = T(v) / T(0xFF)
				}
			}
		}
	})
	return t
}

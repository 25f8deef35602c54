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

// Package pairs samples pairs of stacked-frame clips from video sequences and
// labels each pair with the time-distance bucket between the two clips. The
// resulting classification task trains the embedding network.
package pairs

import (
	"github.com/pkg/errors"
)

// Bucket is an inclusive range of frame time-differences that map to one class.
type Bucket struct {
	Min, Max int
}

// Buckets maps frame time-differences to class labels: the class of a
// difference d is the index of the bucket whose range contains d.
type Buckets []Bucket

// DefaultTimeBuckets groups time-differences so that nearby frames get
// fine-grained classes and distant frames coarse ones. With 20-frame sequences
// and 2-frame clips the largest usable difference is 18.
var DefaultTimeBuckets = Buckets{
	{0, 0}, {1, 1}, {2, 2}, {3, 4}, {5, 10}, {11, 18},
}

// NumClasses is the number of labels the buckets produce.
func (b Buckets) NumClasses() int { return len(b) }

// MaxDiff is the largest time-difference covered.
func (b Buckets) MaxDiff() int { return b[len(b)-1].Max }

// ClassOf returns the class of time-difference d, or -1 if no bucket covers it.
func (b Buckets) ClassOf(d int) int {
	for class, bucket := range b {
		if d >= bucket.Min && d <= bucket.Max {
			return class
		}
	}
	return -1
}

// Validate checks the buckets are contiguous ascending ranges starting at 0 and
// that the largest difference still allows two numFrames-clips inside a
// sequence of seqLen frames.
func (b Buckets) Validate(seqLen, numFrames int) error {
	if len(b) == 0 {
		return errors.Errorf("no time buckets given")
	}
	next := 0
	for i, bucket := range b {
		if bucket.Min != next || bucket.Max < bucket.Min {
			return errors.Errorf("bucket %d is [%d, %d], want a range starting at %d", i, bucket.Min, bucket.Max, next)
		}
		next = bucket.Max + 1
	}
	if numFrames < 1 || numFrames > seqLen {
		return errors.Errorf("clips of %d frames do not fit in sequences of %d frames", numFrames, seqLen)
	}
	if maxDiff := b.MaxDiff(); maxDiff > seqLen-numFrames {
		return errors.Errorf(
			"largest time-difference %d does not fit: sequences of %d frames with %d-frame clips allow at most %d",
			maxDiff, seqLen, numFrames, seqLen-numFrames)
	}
	return nil
}

// clipEnds is a candidate pair: the end frame indices of the two clips.
type clipEnds struct {
	endA, endB int
}

// candidatePairs lists every (endA, endB) with endB-endA == diff such that both
// numFrames-clips (frames [end-numFrames+1, end]) fit inside a sequence of
// seqLen frames.
func candidatePairs(seqLen, numFrames, diff int) []clipEnds {
	var cands []clipEnds
	for endA := numFrames - 1; endA+diff < seqLen; endA++ {
		cands = append(cands, clipEnds{endA: endA, endB: endA + diff})
	}
	return cands
}

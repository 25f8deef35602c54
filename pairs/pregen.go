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
	"os"

	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// Record layout of the pre-generated files: 1 label byte, followed by the raw
// uint8 frames of clip A, then of clip B (numFrames * height * width bytes each).

// Save writes all samples of the dataset, in its current order, to w. The
// augmenter (if any) is applied while writing, so the cache holds the augmented
// pixels. If verbose is set a progress bar is shown.
func (ds *Dataset) Save(w io.Writer, verbose bool) error {
	var pBar *progressbar.ProgressBar
	if verbose {
		pBar = progressbar.NewOptions(len(ds.samples),
			progressbar.OptionSetDescription("Pre-generating"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("pairs"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}

	clipBytes := ds.numFrames * ds.seqs.FrameBytes()
	record := make([]byte, 1+2*clipBytes)
	for _, idx := range ds.order {
		s := ds.samples[idx]
		clipA := ds.seqs.Clip(s.video, s.endA, ds.numFrames)
		clipB := ds.seqs.Clip(s.video, s.endB, ds.numFrames)
		if ds.augment != nil {
			clipA, clipB = ds.augment.Apply(clipA, clipB, ds.numFrames, ds.seqs.Height, ds.seqs.Width)
		}
		record[0] = byte(s.label)
		copy(record[1:1+clipBytes], clipA)
		copy(record[1+clipBytes:], clipB)
		if _, err := w.Write(record); err != nil {
			return errors.Wrapf(err, "failed writing pre-generated sample")
		}
		if pBar != nil {
			_ = pBar.Add(1)
		}
	}
	if pBar != nil {
		_ = pBar.Close()
	}
	return nil
}

// PreGeneratedDataset implements train.Dataset by reading clip pairs back from
// a file written by Dataset.Save.
type PreGeneratedDataset struct {
	name       string
	filePath   string
	batchSize  int
	numFrames  int
	height     int
	width      int
	openedFile *os.File
	buffer     []byte
	err        error
}

var _ train.Dataset = &PreGeneratedDataset{}

// NewPreGeneratedDataset creates a PreGeneratedDataset reading from filePath.
func NewPreGeneratedDataset(name, filePath string, batchSize, numFrames, height, width int) *PreGeneratedDataset {
	pds := &PreGeneratedDataset{
		name:      name,
		filePath:  filePath,
		batchSize: batchSize,
		numFrames: numFrames,
		height:    height,
		width:     width,
	}
	pds.buffer = make([]byte, batchSize*pds.entrySize())
	pds.Reset()
	return pds
}

// Name implements train.Dataset.
func (pds *PreGeneratedDataset) Name() string { return pds.name }

func (pds *PreGeneratedDataset) entrySize() int {
	return 1 + 2*pds.numFrames*pds.height*pds.width
}

// Yield implements train.Dataset. Only full batches are yielded: a short read
// at the end of the file returns io.EOF.
func (pds *PreGeneratedDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if pds.err != nil {
		return nil, nil, nil, pds.err
	}
	n, err := io.ReadFull(pds.openedFile, pds.buffer)
	if err == io.EOF || err == io.ErrUnexpectedEOF || n < len(pds.buffer) {
		return nil, nil, nil, io.EOF
	}
	if err != nil {
		pds.err = errors.Wrapf(err, "failed reading pre-generated dataset %q", pds.filePath)
		return nil, nil, nil, pds.err
	}

	entrySize := pds.entrySize()
	clipBytes := pds.numFrames * pds.height * pds.width
	clipsA := make([]uint8, 0, pds.batchSize*clipBytes)
	clipsB := make([]uint8, 0, pds.batchSize*clipBytes)
	labelValues := make([]int32, 0, pds.batchSize)
	for ii := 0; ii < pds.batchSize; ii++ {
		record := pds.buffer[ii*entrySize : (ii+1)*entrySize]
		labelValues = append(labelValues, int32(record[0]))
		clipsA = append(clipsA, record[1:1+clipBytes]...)
		clipsB = append(clipsB, record[1+clipBytes:]...)
	}

	spec = pds
	inputs = []*tensors.Tensor{
		ClipsToTensor[float32](clipsA, pds.batchSize, pds.numFrames, pds.height, pds.width),
		ClipsToTensor[float32](clipsB, pds.batchSize, pds.numFrames, pds.height, pds.width),
	}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(labelValues, pds.batchSize, 1)}
	return
}

// Reset implements train.Dataset: reopens the file from the start.
func (pds *PreGeneratedDataset) Reset() {
	if pds.openedFile != nil {
		_ = pds.openedFile.Close()
	}
	pds.openedFile, pds.err = os.Open(pds.filePath)
	if pds.err != nil {
		pds.err = errors.Wrapf(pds.err, "failed to open pre-generated dataset %q", pds.filePath)
	}
}

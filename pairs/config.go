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
	"math/rand"
	"os"
	"path"
	"time"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/movingmnist"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Configuration holds everything needed to build the train/validation/test
// datasets. Immutable for the duration of a run.
type Configuration struct {
	// DataDir, where downloaded and pre-generated data is stored.
	DataDir string

	// DatasetName is the file stem of the dataset inside DataDir ("mnist_test_seq").
	DatasetName string

	// DatasetPath is the full path of the ".npy" file.
	DatasetPath string

	// BatchSize for training; EvalBatchSize for the evaluation datasets.
	BatchSize, EvalBatchSize int

	// NumFrames stacked per clip; NumPairs drawn per time-difference.
	NumFrames, NumPairs int

	// Buckets mapping time-differences to classes.
	Buckets Buckets

	// NumTrain caps the number of training videos. 0 means all.
	NumTrain int

	// TestFraction and ValidationFraction of the videos held out.
	TestFraction, ValidationFraction float64

	// SplitSeed drives the train/validation/test video split; SampleSeed the
	// candidate pair draw. Both deterministic, so runs are reproducible.
	SplitSeed, SampleSeed int64

	// Offline reads batches from the pre-generated cache files; Force
	// regenerates the cache first.
	Offline, Force bool

	// FlipH and FlipV enable random flip augmentation of training pairs.
	FlipH, FlipV bool

	// UseParallelism wraps the online datasets in a parallelized prefetching
	// dataset with BufferSize cached batches.
	UseParallelism bool
	BufferSize     int
}

// DefaultConfig returns a Configuration with the defaults used by the CLI.
func DefaultConfig() *Configuration {
	return &Configuration{
		DatasetName:        movingmnist.DefaultDataset,
		BatchSize:          64,
		EvalBatchSize:      128,
		NumFrames:          2,
		NumPairs:           5,
		Buckets:            DefaultTimeBuckets,
		TestFraction:       0.2,
		ValidationFraction: 0.2,
		SplitSeed:          42,
		SampleSeed:         1337,
		UseParallelism:     true,
		BufferSize:         32,
	}
}

// SplitVideos deterministically splits video indices into train, validation and
// test sets: the videos are shuffled with seed, testFraction and validFraction
// are carved off the end, and numTrain (if > 0) caps the rest.
func SplitVideos(numVideos, numTrain int, testFraction, validFraction float64, seed int64) (trainIdx, validIdx, testIdx []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(numVideos)
	numTest := int(float64(numVideos) * testFraction)
	numValid := int(float64(numVideos) * validFraction)
	testIdx = perm[numVideos-numTest:]
	validIdx = perm[numVideos-numTest-numValid : numVideos-numTest]
	trainIdx = perm[:numVideos-numTest-numValid]
	if numTrain > 0 && numTrain < len(trainIdx) {
		trainIdx = trainIdx[:numTrain]
	}
	return
}

// trainFileName and friends name the pre-generated cache files inside DataDir.
func (config *Configuration) trainFileName() string {
	return path.Join(config.DataDir, config.DatasetName+"_train.bin")
}
func (config *Configuration) validFileName() string {
	return path.Join(config.DataDir, config.DatasetName+"_valid.bin")
}
func (config *Configuration) testFileName() string {
	return path.Join(config.DataDir, config.DatasetName+"_test.bin")
}

// newSplitDatasets loads the sequences and builds the three online datasets.
func (config *Configuration) newSplitDatasets() (trainDS, validDS, testDS *Dataset, err error) {
	seqs, err := movingmnist.Load(config.DatasetPath)
	if err != nil {
		return nil, nil, nil, err
	}
	trainIdx, validIdx, testIdx := SplitVideos(
		seqs.NumVideos, config.NumTrain, config.TestFraction, config.ValidationFraction, config.SplitSeed)

	shuffle := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	trainDS, err = NewDataset("train", seqs, trainIdx, config.NumFrames, config.NumPairs,
		config.BatchSize, config.Buckets, config.SampleSeed, shuffle)
	if err != nil {
		return nil, nil, nil, err
	}
	if config.FlipH || config.FlipV {
		trainDS.WithAugmenter(NewAugmenter(config.FlipH, config.FlipV, time.Now().UTC().UnixNano()))
	}
	validDS, err = NewDataset("valid", seqs, validIdx, config.NumFrames, config.NumPairs,
		config.EvalBatchSize, config.Buckets, config.SampleSeed, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	testDS, err = NewDataset("test", seqs, testIdx, config.NumFrames, config.NumPairs,
		config.EvalBatchSize, config.Buckets, config.SampleSeed, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return
}

// cacheFilesExist reports whether all three pre-generated files are present.
func (config *Configuration) cacheFilesExist() bool {
	for _, filePath := range []string{config.trainFileName(), config.validFileName(), config.testFileName()} {
		if _, err := os.Stat(filePath); err != nil {
			return false
		}
	}
	return true
}

// PreGenerate samples all pair batches and writes them to the cache files in
// DataDir. With force set, existing files are overwritten; otherwise it is a
// no-op when the files are already there.
func PreGenerate(config *Configuration, force bool) error {
	if config.cacheFilesExist() && !force {
		klog.V(1).Infof("Pre-generated files already present in %q, skipping", config.DataDir)
		return nil
	}
	trainDS, validDS, testDS, err := config.newSplitDatasets()
	if err != nil {
		return err
	}
	for _, part := range []struct {
		ds       *Dataset
		filePath string
	}{
		{trainDS, config.trainFileName()},
		{validDS, config.validFileName()},
		{testDS, config.testFileName()},
	} {
		f, err := os.Create(part.filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to create %q", part.filePath)
		}
		klog.Infof("Pre-generating %q (%d samples)...", part.filePath, part.ds.NumSamples())
		if err = part.ds.Save(f, true); err != nil {
			_ = f.Close()
			return errors.WithMessagef(err, "while pre-generating %q", part.filePath)
		}
		if err = f.Close(); err != nil {
			return errors.Wrapf(err, "failed to close %q", part.filePath)
		}
	}
	return nil
}

// CreateDatasets builds the datasets used for training and evaluation.
//
// In offline mode it reads the pre-generated cache (regenerating it first when
// force is set or the files are missing). Otherwise pairs are sampled on the
// fly, with the training dataset wrapped in a parallel prefetcher.
func CreateDatasets(config *Configuration) (trainDS, validEvalDS, testEvalDS train.Dataset, err error) {
	if config.Offline {
		if err = PreGenerate(config, config.Force); err != nil {
			return
		}
		height, width := movingmnist.FrameSize, movingmnist.FrameSize
		trainDS = NewPreGeneratedDataset("train", config.trainFileName(),
			config.BatchSize, config.NumFrames, height, width)
		validEvalDS = NewPreGeneratedDataset("valid", config.validFileName(),
			config.EvalBatchSize, config.NumFrames, height, width)
		testEvalDS = NewPreGeneratedDataset("test", config.testFileName(),
			config.EvalBatchSize, config.NumFrames, height, width)
		return
	}

	var onlineTrain, onlineValid, onlineTest *Dataset
	onlineTrain, onlineValid, onlineTest, err = config.newSplitDatasets()
	if err != nil {
		return
	}
	trainDS, validEvalDS, testEvalDS = onlineTrain, onlineValid, onlineTest
	if config.UseParallelism {
		trainDS = data.CustomParallel(trainDS).Buffer(config.BufferSize).Start()
	}
	return
}

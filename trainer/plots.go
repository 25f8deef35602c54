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

package trainer

import (
	"io"
	"os"
	"path"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	mg "github.com/erkkah/margaid"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
)

// LossHistoryFileName under the project directory.
const LossHistoryFileName = "loss_history.svg"

// LossHistory records the training batch loss along the loop, to be rendered
// as an SVG plot at the end of training.
type LossHistory struct {
	steps  []float64
	losses []float64
}

// AttachLossHistory registers a callback on the loop that records the batch
// loss every everyN steps.
func AttachLossHistory(loop *train.Loop, everyN int) *LossHistory {
	h := &LossHistory{}
	train.EveryNSteps(loop, everyN, "record loss history", 0,
		func(loop *train.Loop, metrics []*tensors.Tensor) error {
			h.Record(loop.LoopStep, float64(tensors.ToScalar[float32](metrics[0])))
			return nil
		})
	return h
}

// Record adds one observation of the batch loss.
func (h *LossHistory) Record(step int, loss float64) {
	h.steps = append(h.steps, float64(step))
	h.losses = append(h.losses, loss)
}

// NumPoints recorded so far.
func (h *LossHistory) NumPoints() int { return len(h.steps) }

// Render writes the loss history as an SVG file under the project directory
// and returns its path.
func (h *LossHistory) Render(cfg *cliconfig.Config) (string, error) {
	filePath := path.Join(cfg.ProjectDir, LossHistoryFileName)
	f, err := os.Create(filePath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %q", filePath)
	}
	if err = h.WriteSVG(f); err != nil {
		_ = f.Close()
		return "", errors.WithMessagef(err, "while rendering %q", filePath)
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close %q", filePath)
	}
	return filePath, nil
}

// WriteSVG renders the recorded points as an SVG plot.
func (h *LossHistory) WriteSVG(w io.Writer) error {
	if h.NumPoints() == 0 {
		return errors.New("no loss points recorded, nothing to plot")
	}
	series := mg.NewSeries(mg.Titled("Training Loss"))
	for i := range h.steps {
		series.Add(mg.MakeValue(h.steps[i], h.losses[i]))
	}
	diagram := mg.New(1024, 400,
		mg.WithAutorange(mg.XAxis, series),
		mg.WithAutorange(mg.YAxis, series),
		mg.WithInset(70),
		mg.WithPadding(2),
		mg.WithColorScheme(90),
	)
	diagram.Line(series, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingStrokeWidth(2))
	diagram.Axis(series, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, "Steps")
	diagram.Axis(series, mg.YAxis, diagram.ValueTicker('f', 3, 10), true, "Loss")
	diagram.Frame()
	diagram.Title("Training loss")
	if err := diagram.Render(w); err != nil {
		return errors.Wrap(err, "failed to render the loss plot")
	}
	return nil
}

package trainer

import (
	"bytes"
	"path"
	"testing"

	"github.com/NYU-CDS-Capstone-Project/learning-visual-embeddings/internal/cliconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossHistoryWriteSVG(t *testing.T) {
	h := &LossHistory{}
	for step := 10; step <= 100; step += 10 {
		h.Record(step, 2.0/float64(step))
	}
	require.Equal(t, 10, h.NumPoints())

	var buf bytes.Buffer
	require.NoError(t, h.WriteSVG(&buf))
	svg := buf.String()
	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, "Training loss")
}

func TestLossHistoryRender(t *testing.T) {
	h := &LossHistory{}
	h.Record(1, 1.5)
	h.Record(2, 1.2)

	cfg := cliconfig.Default()
	cfg.ProjectDir = t.TempDir()
	filePath, err := h.Render(cfg)
	require.NoError(t, err)
	assert.Equal(t, path.Join(cfg.ProjectDir, LossHistoryFileName), filePath)
	assert.FileExists(t, filePath)
}

func TestLossHistoryEmpty(t *testing.T) {
	h := &LossHistory{}
	var buf bytes.Buffer
	require.Error(t, h.WriteSVG(&buf))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, 768, c.Classify.Size)
	assert.Equal(t, 520, c.Segment.Size)
	assert.Equal(t, 0, c.Detect.Size)
	assert.Equal(t, 40_000_000, c.MaxPixels)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
port = "9000"
pool_size = 2
infer_timeout_ms = 1500

[segment]
model = "models/seg.onnx"
labels = "models/seg.json"
size = 256
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, 2, c.PoolSize)
	assert.Equal(t, 1500, c.InferTimeoutMs)
	assert.Equal(t, "models/seg.onnx", c.Segment.Model)
	assert.Equal(t, 256, c.Segment.Size)
	assert.Equal(t, "static/classifier.onnx", c.Classify.Model)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("pool_size = 0\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "pool_size")
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = \n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidateTask(t *testing.T) {
	c := Default()
	c.Detect.Model = ""
	assert.ErrorContains(t, c.Validate(), "detect.model")

	c = Default()
	c.Classify.Size = -1
	assert.ErrorContains(t, c.Validate(), "classify.size")
}

func TestValidateMaxPixels(t *testing.T) {
	c := Default()
	c.MaxPixels = 0
	assert.ErrorContains(t, c.Validate(), "max_pixels")
}

func TestLoadRejectsDetectSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[detect]
model = "static/detector.onnx"
labels = "static/labels_det.json"
size = 640
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "detect.size")
}

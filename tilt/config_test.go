package tilt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2.5, cfg.Angle.Cutoff)
	assert.Equal(t, 2.2, cfg.Kabsch.Cutoff)
	assert.Equal(t, "rotation_angles_xy_with_coords.dat", cfg.Angle.Output)
	assert.Equal(t, "rotation_angles_kabsch.dat", cfg.Kabsch.Output)
	assert.Equal(t, "rotation_heatmaps", cfg.Heatmap.OutputDir)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
central: Ti
ligand: O
verticalAxis: y
workers: 3
angle:
  cutoff: 2.4
  output: angles.tsv
kabsch:
  cutoff: 2.3
  euler: extrinsic
heatmap:
  format: both
mqtt:
  broker: tcp://localhost:1883
`)
	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, "Ti", cfg.Central)
	assert.Equal(t, "y", cfg.VerticalAxis)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2.4, cfg.Angle.Cutoff)
	assert.Equal(t, "angles.tsv", cfg.Angle.Output)
	assert.Equal(t, "extrinsic", cfg.Kabsch.Euler)
	assert.Equal(t, "rotation_angles_kabsch.dat", cfg.Kabsch.Output, "unset fields keep defaults")
	assert.Equal(t, 1.0, cfg.Heatmap.BinWidth)
	assert.Equal(t, "both", cfg.Heatmap.Format)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "octatilt", cfg.MQTT.PublishPrefix)

	a, err := cfg.Analyzer()
	require.NoError(t, err)
	assert.Equal(t, AxisY, a.Vertical)
	assert.Equal(t, Extrinsic, a.Euler)
	assert.Equal(t, 3, a.Workers)
}

func TestLoadConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(missing, true)
	assert.Error(t, err)

	cfg, err = LoadConfig("", true)
	require.NoError(t, err)
	assert.Equal(t, "Si", cfg.Central)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"yaml":          "central: [",
		"same species":  "central: O\nligand: O\n",
		"axis":          "verticalAxis: w\n",
		"cutoff":        "angle:\n  cutoff: 0\n",
		"euler":         "kabsch:\n  euler: zxz\n",
		"bin width":     "heatmap:\n  binWidth: -1\n",
		"format":        "heatmap:\n  format: jpg\n",
		"workers":       "workers: -2\n",
		"empty ligand":  "ligand: \"\"\n",
		"cell size":     "heatmap:\n  cellSize: 0\n",
		"tolerance":     "heatmap:\n  layerTolerance: -0.1\n",
		"kabsch cutoff": "kabsch:\n  cutoff: -2\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body), true)
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Central = "Ge"
	cfg.Heatmap.Format = "svg"
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

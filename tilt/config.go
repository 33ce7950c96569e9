package tilt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the octatilt configuration file.
type Config struct {
	Central      string        `yaml:"central" json:"central"`
	Ligand       string        `yaml:"ligand" json:"ligand"`
	VerticalAxis string        `yaml:"verticalAxis" json:"verticalAxis"`
	Workers      int           `yaml:"workers,omitempty" json:"workers,omitempty"` // 0 = GOMAXPROCS
	Angle        MethodConfig  `yaml:"angle" json:"angle"`
	Kabsch       MethodConfig  `yaml:"kabsch" json:"kabsch"`
	Heatmap      HeatmapConfig `yaml:"heatmap" json:"heatmap"`
	MQTT         MQTTConfig    `yaml:"mqtt" json:"mqtt"`
}

// MethodConfig holds the settings of one estimator.
type MethodConfig struct {
	Cutoff float64 `yaml:"cutoff" json:"cutoff"`
	Output string  `yaml:"output" json:"output"`
	Euler  string  `yaml:"euler,omitempty" json:"euler,omitempty"` // Kabsch only
}

// HeatmapConfig controls layer binning and rendering.
type HeatmapConfig struct {
	BinWidth       float64 `yaml:"binWidth" json:"binWidth"`
	LayerTolerance float64 `yaml:"layerTolerance" json:"layerTolerance"`
	OutputDir      string  `yaml:"outputDir" json:"outputDir"`
	Format         string  `yaml:"format" json:"format"`     // png, svg or both
	CellSize       int     `yaml:"cellSize" json:"cellSize"` // PNG pixels per bin
}

// MQTTConfig holds MQTT connection settings. An empty broker disables
// publishing.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// DefaultConfig returns the settings for an SiO6 framework.
func DefaultConfig() *Config {
	return &Config{
		Central:      "Si",
		Ligand:       "O",
		VerticalAxis: "z",
		Angle: MethodConfig{
			Cutoff: 2.5,
			Output: "rotation_angles_xy_with_coords.dat",
		},
		Kabsch: MethodConfig{
			Cutoff: 2.2,
			Output: "rotation_angles_kabsch.dat",
			Euler:  "intrinsic",
		},
		Heatmap: HeatmapConfig{
			BinWidth:       1.0,
			LayerTolerance: 0.5,
			OutputDir:      "rotation_heatmaps",
			Format:         "png",
			CellSize:       40,
		},
		MQTT: MQTTConfig{
			PublishPrefix: "octatilt",
			ClientID:      "octatilt",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. A missing file is an
// error only when required is true.
func LoadConfig(path string, required bool) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !required {
				return config, nil
			}
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values no run can use.
func (c *Config) Validate() error {
	if c.Central == "" {
		return fmt.Errorf("central species is required")
	}
	if c.Ligand == "" {
		return fmt.Errorf("ligand species is required")
	}
	if c.Central == c.Ligand {
		return fmt.Errorf("central and ligand species must differ (both %q)", c.Central)
	}
	if _, err := ParseAxis(c.VerticalAxis); err != nil {
		return fmt.Errorf("verticalAxis: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if !(c.Angle.Cutoff > 0) {
		return fmt.Errorf("angle.cutoff must be positive")
	}
	if !(c.Kabsch.Cutoff > 0) {
		return fmt.Errorf("kabsch.cutoff must be positive")
	}
	if _, err := ParseEulerConvention(c.Kabsch.Euler); err != nil {
		return fmt.Errorf("kabsch.euler: %w", err)
	}
	if !(c.Heatmap.BinWidth > 0) {
		return fmt.Errorf("heatmap.binWidth must be positive")
	}
	if c.Heatmap.LayerTolerance < 0 {
		return fmt.Errorf("heatmap.layerTolerance must not be negative")
	}
	if _, err := ParseImageFormat(c.Heatmap.Format); err != nil {
		return fmt.Errorf("heatmap.format: %w", err)
	}
	if c.Heatmap.CellSize <= 0 {
		return fmt.Errorf("heatmap.cellSize must be positive")
	}
	return nil
}

// Analyzer builds an Analyzer from the configuration.
func (c *Config) Analyzer() (*Analyzer, error) {
	axis, err := ParseAxis(c.VerticalAxis)
	if err != nil {
		return nil, err
	}
	euler, err := ParseEulerConvention(c.Kabsch.Euler)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		Central:  c.Central,
		Ligand:   c.Ligand,
		Vertical: axis,
		Euler:    euler,
		Workers:  c.Workers,
	}, nil
}

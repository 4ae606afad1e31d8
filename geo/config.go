package geo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the batch pipeline configuration. Every field can be overridden
// by a CLI flag; the file only sets defaults for a working area.
type Config struct {
	// Directories for the conversion pipelines
	RasterDir string `yaml:"rasterDir,omitempty" json:"rasterDir,omitempty"`
	DetectDir string `yaml:"detectDir,omitempty" json:"detectDir,omitempty"`
	VectorDir string `yaml:"vectorDir,omitempty" json:"vectorDir,omitempty"`
	OutputDir string `yaml:"outputDir" json:"outputDir"`

	// GroupField is the attribute used by the group-bbox aggregation
	GroupField string `yaml:"groupField,omitempty" json:"groupField,omitempty"`

	// SquareSize is the tile edge length in pixels for square splitting
	SquareSize int `yaml:"squareSize,omitempty" json:"squareSize,omitempty"`

	// StrictCRS rejects raster/vector pairings whose CRS tags differ.
	// Pairings with an unknown (empty) tag always pass.
	StrictCRS bool `yaml:"strictCRS,omitempty" json:"strictCRS,omitempty"`

	// PreviewFormat selects the vector preview output: "svg", "png" or ""
	// to disable previews.
	PreviewFormat string `yaml:"previewFormat,omitempty" json:"previewFormat,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:  "output",
		GroupField: "Id",
		SquareSize: 200,
		StrictCRS:  true,
	}
}

// LoadConfig loads the pipeline configuration from a YAML file and applies
// defaults to unset fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks fields that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("outputDir is required")
	}
	if c.SquareSize < 0 {
		return fmt.Errorf("squareSize must be positive, got %d", c.SquareSize)
	}
	switch c.PreviewFormat {
	case "", "svg", "png":
	default:
		return fmt.Errorf("previewFormat must be svg or png, got %q", c.PreviewFormat)
	}
	return nil
}

// SaveConfig writes the configuration to a YAML file.
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

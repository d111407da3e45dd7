// Package config provides configuration loading and management for scanrecon.
// It handles loading configuration from YAML files and provides default values.
// The engine packages never read this file; the command converts it into
// their session parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"scanrecon/internal/models"
	"scanrecon/pkg/acquisition"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/monitor"
	"scanrecon/pkg/reconstruction"
	"scanrecon/pkg/records"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Live monitor parameters
	Monitor struct {
		// Mode is one of image, slices or timegraph
		Mode string `yaml:"mode"`

		// DisplayAxes pins the horizontal, vertical and plane axes
		DisplayAxes []string `yaml:"displayAxes,omitempty"`

		// SliceAxis is the axis with one image per index in slices mode
		SliceAxis string `yaml:"sliceAxis,omitempty"`

		// Channel is the column shown in image and slices modes
		Channel string `yaml:"channel"`

		// GraphChannel is the column plotted in timegraph mode
		GraphChannel string `yaml:"graphChannel"`

		// Interval is the refresh period
		Interval time.Duration `yaml:"interval"`

		// GracePeriod bounds the wait for the acquisition process after cancel
		GracePeriod time.Duration `yaml:"gracePeriod"`

		// Async merges imageInfoAsync.csv into the record file before every pass
		Async bool `yaml:"async"`
	} `yaml:"monitor"`

	// Batch reconstruction parameters
	Batch struct {
		// Axes names three axes explicitly; empty selects them from the metadata
		Axes []string `yaml:"axes,omitempty"`

		// Channels lists the channel aliases or columns to reconstruct
		Channels []string `yaml:"channels"`

		// SelectColumn and SelectValue keep only matching records
		SelectColumn string  `yaml:"selectColumn,omitempty"`
		SelectValue  float64 `yaml:"selectValue,omitempty"`

		// Thresholds overrides the sanity threshold per channel
		Thresholds map[string]float64 `yaml:"thresholds,omitempty"`
	} `yaml:"batch"`

	// Logging parameters
	Logging struct {
		Level string `yaml:"level"`

		// File is a rotating log file; empty logs to stderr
		File    string `yaml:"file,omitempty"`
		MaxSize int    `yaml:"maxSize"` // megabytes
		MaxAge  int    `yaml:"maxAge"`  // days
	} `yaml:"logging"`

	// Scan catalog parameters
	Catalog struct {
		// Database is the sqlite file of the catalog
		Database string `yaml:"database"`
	} `yaml:"catalog"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default monitor parameters
	cfg.Monitor.Mode = string(monitor.ModeImage)
	cfg.Monitor.Channel = records.EnergyColumn
	cfg.Monitor.GraphChannel = records.EnergyColumn
	cfg.Monitor.Interval = monitor.DefaultInterval
	cfg.Monitor.GracePeriod = acquisition.DefaultGracePeriod

	// Set default batch parameters
	cfg.Batch.Channels = []string{reconstruction.ChannelEnergy}

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 10
	cfg.Logging.MaxAge = 30

	cfg.Catalog.Database = "scans.db"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// MonitorConfig converts the monitor section into the session configuration
// of a live monitor for a record file.
func (c *Config) MonitorConfig(recordsPath string) (monitor.Config, error) {
	mode, err := monitor.ParseMode(c.Monitor.Mode)
	if err != nil {
		return monitor.Config{}, err
	}
	display, err := parseAxes(c.Monitor.DisplayAxes)
	if err != nil {
		return monitor.Config{}, err
	}

	mc := monitor.DefaultConfig(recordsPath)
	mc.Mode = mode
	mc.DisplayAxes = display
	if c.Monitor.SliceAxis != "" {
		if mc.SliceAxis, err = models.ParseAxisName(c.Monitor.SliceAxis); err != nil {
			return monitor.Config{}, &models.ConfigurationError{Reason: "slice axis", Err: err}
		}
	}
	if c.Monitor.Channel != "" {
		mc.Channel = c.Monitor.Channel
	}
	if c.Monitor.GraphChannel != "" {
		mc.GraphChannel = c.Monitor.GraphChannel
	}
	if c.Monitor.Interval > 0 {
		mc.Interval = c.Monitor.Interval
	}
	if c.Monitor.GracePeriod > 0 {
		mc.GracePeriod = c.Monitor.GracePeriod
	}
	if c.Monitor.Async {
		mc.AsyncPath = filepath.Join(filepath.Dir(recordsPath), records.AsyncFileName)
	}
	return mc, nil
}

// BatchParams converts the batch section into reconstruction parameters.
func (c *Config) BatchParams() (reconstruction.Params, error) {
	axes, err := parseAxes(c.Batch.Axes)
	if err != nil {
		return reconstruction.Params{}, err
	}
	p := reconstruction.DefaultParams()
	p.Axes = axes
	if len(c.Batch.Channels) > 0 {
		p.Channels = append([]string(nil), c.Batch.Channels...)
	}
	p.SelectColumn = c.Batch.SelectColumn
	p.SelectValue = c.Batch.SelectValue
	if len(c.Batch.Thresholds) > 0 {
		p.Thresholds = make(reconstruction.Thresholds, len(c.Batch.Thresholds))
		for k, v := range c.Batch.Thresholds {
			p.Thresholds[k] = v
		}
	}
	return p, nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() (logging.Level, error) {
	if c.Logging.Level == "" {
		return logging.InfoLevel, nil
	}
	return logging.ParseLevel(c.Logging.Level)
}

// LogFile returns the rotating log file settings.
func (c *Config) LogFile() logging.FileConfig {
	return logging.FileConfig{
		Filename: c.Logging.File,
		MaxSize:  c.Logging.MaxSize,
		MaxAge:   c.Logging.MaxAge,
	}
}

func parseAxes(names []string) ([]models.AxisName, error) {
	if len(names) == 0 {
		return nil, nil
	}
	axes, err := reconstruction.ParseAxes(names)
	if err != nil {
		return nil, err
	}
	return axes, nil
}

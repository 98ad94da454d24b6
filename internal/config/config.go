package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete pciam configuration
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Grid      GridConfig      `mapstructure:"grid" yaml:"grid"`
	Simulator SimulatorConfig `mapstructure:"simulator" yaml:"simulator"`
	Results   ResultsConfig   `mapstructure:"results" yaml:"results"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// PipelineConfig controls the worker pool
type PipelineConfig struct {
	// NumPeaks is the number of correlation peaks forwarded per tile pair (default: 2)
	NumPeaks int `mapstructure:"num_peaks" yaml:"num_peaks"`
	// Devices lists the device ids that get a worker (default: [0])
	Devices []int `mapstructure:"devices" yaml:"devices"`
}

// GridConfig describes the synthetic tile grid aligned by `pciam run`
type GridConfig struct {
	Rows       int `mapstructure:"rows" yaml:"rows"`
	Cols       int `mapstructure:"cols" yaml:"cols"`
	TileWidth  int `mapstructure:"tile_width" yaml:"tile_width"`
	TileHeight int `mapstructure:"tile_height" yaml:"tile_height"`
}

// SimulatorConfig controls the simulated devices
type SimulatorConfig struct {
	// MemoryMB is the memory of each device in megabytes; 0 is unlimited (default: 0)
	MemoryMB int `mapstructure:"memory_mb" yaml:"memory_mb"`
	// TopologyFile is a YAML file describing devices and peer access.
	// When set it replaces MemoryMB and PeerAccess.
	TopologyFile string `mapstructure:"topology_file" yaml:"topology_file"`
	// PeerAccess gives every device pair direct peer access (default: false)
	PeerAccess bool `mapstructure:"peer_access" yaml:"peer_access"`
}

// ResultsConfig controls where CCF results are written
type ResultsConfig struct {
	// DBPath is the SQLite database path; empty disables persistence
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	// JSONPath is the JSON export path; empty disables export
	JSONPath string `mapstructure:"json_path" yaml:"json_path"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Enabled writes logs to Dir when true, otherwise logs go to stderr at WARN (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory (default: <config dir>/logs)
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			NumPeaks: 2,
			Devices:  []int{0},
		},
		Grid: GridConfig{
			Rows:       4,
			Cols:       4,
			TileWidth:  64,
			TileHeight: 64,
		},
		Simulator: SimulatorConfig{
			MemoryMB:   0,
			PeerAccess: false,
		},
		Results: ResultsConfig{
			DBPath:   filepath.Join(DataDir(), "results.db"),
			JSONPath: "",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        filepath.Join(DataDir(), "logs"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Pipeline defaults
	viper.SetDefault("pipeline.num_peaks", defaults.Pipeline.NumPeaks)
	viper.SetDefault("pipeline.devices", defaults.Pipeline.Devices)

	// Grid defaults
	viper.SetDefault("grid.rows", defaults.Grid.Rows)
	viper.SetDefault("grid.cols", defaults.Grid.Cols)
	viper.SetDefault("grid.tile_width", defaults.Grid.TileWidth)
	viper.SetDefault("grid.tile_height", defaults.Grid.TileHeight)

	// Simulator defaults
	viper.SetDefault("simulator.memory_mb", defaults.Simulator.MemoryMB)
	viper.SetDefault("simulator.topology_file", defaults.Simulator.TopologyFile)
	viper.SetDefault("simulator.peer_access", defaults.Simulator.PeerAccess)

	// Results defaults
	viper.SetDefault("results.db_path", defaults.Results.DBPath)
	viper.SetDefault("results.json_path", defaults.Results.JSONPath)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pciam")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pciam"
	}
	return filepath.Join(home, ".config", "pciam")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the directory for results and logs
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "pciam")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pciam"
	}
	return filepath.Join(home, ".local", "share", "pciam")
}

package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "pipeline.num_peaks")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Upper bounds that keep a simulated run within reason.
const (
	maxNumPeaks  = 64
	maxGridSide  = 1024
	maxTileSide  = 8192
	maxLogSizeMB = 1000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePipeline()...)
	errors = append(errors, c.validateGrid()...)
	errors = append(errors, c.validateSimulator()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validatePipeline() []ValidationError {
	var errors []ValidationError

	if c.Pipeline.NumPeaks < 1 || c.Pipeline.NumPeaks > maxNumPeaks {
		errors = append(errors, ValidationError{
			Field:   "pipeline.num_peaks",
			Value:   c.Pipeline.NumPeaks,
			Message: fmt.Sprintf("must be between 1 and %d", maxNumPeaks),
		})
	}

	if len(c.Pipeline.Devices) == 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.devices",
			Value:   c.Pipeline.Devices,
			Message: "must list at least one device",
		})
	}
	seen := make(map[int]bool, len(c.Pipeline.Devices))
	for _, id := range c.Pipeline.Devices {
		if id < 0 {
			errors = append(errors, ValidationError{
				Field:   "pipeline.devices",
				Value:   id,
				Message: "device ids must be non-negative",
			})
		}
		if seen[id] {
			errors = append(errors, ValidationError{
				Field:   "pipeline.devices",
				Value:   id,
				Message: "duplicate device id",
			})
		}
		seen[id] = true
	}

	return errors
}

func (c *Config) validateGrid() []ValidationError {
	var errors []ValidationError

	sides := []struct {
		field string
		value int
		max   int
	}{
		{"grid.rows", c.Grid.Rows, maxGridSide},
		{"grid.cols", c.Grid.Cols, maxGridSide},
		{"grid.tile_width", c.Grid.TileWidth, maxTileSide},
		{"grid.tile_height", c.Grid.TileHeight, maxTileSide},
	}
	for _, s := range sides {
		if s.value < 1 || s.value > s.max {
			errors = append(errors, ValidationError{
				Field:   s.field,
				Value:   s.value,
				Message: fmt.Sprintf("must be between 1 and %d", s.max),
			})
		}
	}

	return errors
}

func (c *Config) validateSimulator() []ValidationError {
	var errors []ValidationError

	if c.Simulator.MemoryMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "simulator.memory_mb",
			Value:   c.Simulator.MemoryMB,
			Message: "must be non-negative (0 means unlimited)",
		})
	}

	if path := c.Simulator.TopologyFile; path != "" {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			errors = append(errors, ValidationError{
				Field:   "simulator.topology_file",
				Value:   path,
				Message: "file does not exist",
			})
		case info.IsDir():
			errors = append(errors, ValidationError{
				Field:   "simulator.topology_file",
				Value:   path,
				Message: "must be a file, not a directory",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

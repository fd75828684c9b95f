// Package config provides configuration management for colstat passes
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for dataset passes
type Config struct {
	// Execution Configuration
	ChunkSize      int `json:"chunk_size" yaml:"chunk_size"`             // Rows per streamed chunk
	WorkerPoolSize int `json:"worker_pool_size" yaml:"worker_pool_size"` // Evaluation goroutines per chunk (0 = auto-detect)
	MaxParallelism int `json:"max_parallelism" yaml:"max_parallelism"`   // Upper bound for WorkerPoolSize

	// Aggregation Configuration
	PercentileShape int `json:"percentile_shape" yaml:"percentile_shape"` // Histogram bins used by approximate percentiles
	MIShape         int `json:"mi_shape" yaml:"mi_shape"`                 // Bins per axis for mutual information

	// Debugging Configuration
	VerboseLogging    bool   `json:"verbose_logging" yaml:"verbose_logging"`       // Enable debug-level logging
	LogFormat         string `json:"log_format" yaml:"log_format"`                 // "text" or "json"
	MetricsCollection bool   `json:"metrics_collection" yaml:"metrics_collection"` // Enable per-pass metrics
}

// SystemInfo contains system information for configuration validation
type SystemInfo struct {
	CPUCount     int
	Architecture string
	OSType       string
}

// ConfigValidator validates and provides recommendations for configuration
type ConfigValidator struct {
	systemInfo SystemInfo
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultChunkSize       = 1_048_576
	DefaultMaxParallelism  = 16
	DefaultPercentileShape = 1024
	DefaultMIShape         = 64
	DefaultLogFormat       = "text"
)

const envPrefix = "COLSTAT_"

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		ChunkSize:      DefaultChunkSize,
		WorkerPoolSize: 0, // Auto-detect
		MaxParallelism: DefaultMaxParallelism,

		PercentileShape: DefaultPercentileShape,
		MIShape:         DefaultMIShape,

		VerboseLogging:    false,
		LogFormat:         DefaultLogFormat,
		MetricsCollection: false,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("ChunkSize must be positive, got %d", c.ChunkSize)
	}

	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}

	if c.MaxParallelism <= 0 {
		return fmt.Errorf("MaxParallelism must be positive, got %d", c.MaxParallelism)
	}

	if c.PercentileShape <= 0 {
		return fmt.Errorf("PercentileShape must be positive, got %d", c.PercentileShape)
	}

	if c.MIShape <= 0 {
		return fmt.Errorf("MIShape must be positive, got %d", c.MIShape)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LogFormat must be text or json, got %q", c.LogFormat)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.ChunkSize == 0 {
		c.ChunkSize = defaults.ChunkSize
	}
	if c.MaxParallelism == 0 {
		c.MaxParallelism = defaults.MaxParallelism
	}
	if c.PercentileShape == 0 {
		c.PercentileShape = defaults.PercentileShape
	}
	if c.MIShape == 0 {
		c.MIShape = defaults.MIShape
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}

	// Boolean fields are left alone so an explicit false survives.
	return c
}

// Workers returns the evaluation goroutine count, resolving 0 to the CPU
// count and capping at MaxParallelism.
func (c Config) Workers() int {
	n := c.WorkerPoolSize
	if n == 0 {
		n = runtime.NumCPU()
	}
	if c.MaxParallelism > 0 && n > c.MaxParallelism {
		n = c.MaxParallelism
	}
	return max(n, 1)
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from COLSTAT_* environment variables
func LoadFromEnv() Config {
	config := NewConfig()

	envInt("CHUNK_SIZE", &config.ChunkSize)
	envInt("WORKER_POOL_SIZE", &config.WorkerPoolSize)
	envInt("MAX_PARALLELISM", &config.MaxParallelism)
	envInt("PERCENTILE_SHAPE", &config.PercentileShape)
	envInt("MI_SHAPE", &config.MIShape)
	envBool("VERBOSE_LOGGING", &config.VerboseLogging)
	envBool("METRICS_COLLECTION", &config.MetricsCollection)

	if val := os.Getenv(envPrefix + "LOG_FORMAT"); val != "" {
		config.LogFormat = strings.ToLower(val)
	}

	return config
}

func envInt(key string, dst *int) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}

// GetSystemInfo returns system information for configuration validation
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		CPUCount:     runtime.NumCPU(),
		Architecture: runtime.GOARCH,
		OSType:       runtime.GOOS,
	}
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		systemInfo: GetSystemInfo(),
	}
}

// Validate validates a configuration and provides recommendations
func (cv *ConfigValidator) Validate(config Config) (Config, []string, error) {
	var warnings []string
	validated := config

	if err := config.Validate(); err != nil {
		return Config{}, warnings, err
	}

	if config.WorkerPoolSize > cv.systemInfo.CPUCount*2 {
		warnings = append(warnings,
			fmt.Sprintf("Worker pool size (%d) exceeds 2x CPU count (%d), may cause contention",
				config.WorkerPoolSize, cv.systemInfo.CPUCount))
	}

	if config.ChunkSize < 1024 {
		warnings = append(warnings,
			fmt.Sprintf("Chunk size (%d) is small, passes will be dominated by per-chunk overhead",
				config.ChunkSize))
	}

	if config.WorkerPoolSize == 0 {
		validated.WorkerPoolSize = config.Workers()
		warnings = append(warnings,
			fmt.Sprintf("Auto-setting worker pool size to %d", validated.WorkerPoolSize))
	}

	return validated, warnings, nil
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/colstat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	config := config.NewConfig()

	assert.Equal(t, 1_048_576, config.ChunkSize)
	assert.Equal(t, 0, config.WorkerPoolSize) // 0 means auto-detect
	assert.Equal(t, 16, config.MaxParallelism)
	assert.Equal(t, 1024, config.PercentileShape)
	assert.Equal(t, 64, config.MIShape)
	assert.Equal(t, "text", config.LogFormat)
	assert.False(t, config.VerboseLogging)
	assert.False(t, config.MetricsCollection)
	require.NoError(t, config.Validate())
}

func TestConfig_Validation(t *testing.T) {
	valid := config.NewConfig()

	tests := []struct {
		name          string
		mutate        func(c *config.Config)
		expectedError string
	}{
		{
			name:   "valid config",
			mutate: func(c *config.Config) {},
		},
		{
			name:          "zero chunk size",
			mutate:        func(c *config.Config) { c.ChunkSize = 0 },
			expectedError: "ChunkSize must be positive, got 0",
		},
		{
			name:          "negative worker pool",
			mutate:        func(c *config.Config) { c.WorkerPoolSize = -2 },
			expectedError: "WorkerPoolSize must be non-negative, got -2",
		},
		{
			name:          "zero max parallelism",
			mutate:        func(c *config.Config) { c.MaxParallelism = 0 },
			expectedError: "MaxParallelism must be positive, got 0",
		},
		{
			name:          "zero percentile shape",
			mutate:        func(c *config.Config) { c.PercentileShape = 0 },
			expectedError: "PercentileShape must be positive, got 0",
		},
		{
			name:          "zero mi shape",
			mutate:        func(c *config.Config) { c.MIShape = 0 },
			expectedError: "MIShape must be positive, got 0",
		},
		{
			name:          "bad log format",
			mutate:        func(c *config.Config) { c.LogFormat = "xml" },
			expectedError: `LogFormat must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedError)
			}
		})
	}
}

func TestConfig_LoadFromJSON(t *testing.T) {
	jsonData := `{
		"chunk_size": 3,
		"worker_pool_size": 8,
		"metrics_collection": true
	}`

	config, err := config.LoadFromJSON([]byte(jsonData))
	require.NoError(t, err)

	assert.Equal(t, 3, config.ChunkSize)
	assert.Equal(t, 8, config.WorkerPoolSize)
	assert.True(t, config.MetricsCollection)
	assert.Equal(t, 64, config.MIShape)
}

func TestConfig_InvalidJSON(t *testing.T) {
	_, err := config.LoadFromJSON([]byte(`{"chunk_size": `))
	assert.Error(t, err)
}

func TestConfig_LoadFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "colstat.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"chunk_size": 1000, "verbose_logging": true}`), 0o600))

	cfg, err := config.LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.True(t, cfg.VerboseLogging)

	yamlPath := filepath.Join(dir, "colstat.yaml")
	yamlData := `
chunk_size: 2000
percentile_shape: 256
log_format: json
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlData), 0o600))

	cfg, err = config.LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.ChunkSize)
	assert.Equal(t, 256, cfg.PercentileShape)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestConfig_UnsupportedFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colstat.toml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size = 1"), 0o600))

	_, err := config.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")
}

func TestConfig_LoadFromNonExistentFile(t *testing.T) {
	_, err := config.LoadFromFile("/nonexistent/colstat.json")
	assert.Error(t, err)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("COLSTAT_CHUNK_SIZE", "4096")
	t.Setenv("COLSTAT_WORKER_POOL_SIZE", "12")
	t.Setenv("COLSTAT_VERBOSE_LOGGING", "true")
	t.Setenv("COLSTAT_LOG_FORMAT", "JSON")
	t.Setenv("COLSTAT_MI_SHAPE", "not-a-number")

	config := config.LoadFromEnv()

	assert.Equal(t, 4096, config.ChunkSize)
	assert.Equal(t, 12, config.WorkerPoolSize)
	assert.True(t, config.VerboseLogging)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, 64, config.MIShape) // unparsable values keep the default
}

func TestConfig_WithDefaults(t *testing.T) {
	config := config.Config{ChunkSize: 2}

	withDefaults := config.WithDefaults()

	assert.Equal(t, 2, withDefaults.ChunkSize)
	assert.Equal(t, 0, withDefaults.WorkerPoolSize)
	assert.Equal(t, 16, withDefaults.MaxParallelism)
	assert.Equal(t, "text", withDefaults.LogFormat)
	assert.False(t, withDefaults.MetricsCollection)
}

func TestConfig_Workers(t *testing.T) {
	c := config.NewConfig()
	c.WorkerPoolSize = 64
	c.MaxParallelism = 4
	assert.Equal(t, 4, c.Workers())

	c.WorkerPoolSize = 0
	assert.GreaterOrEqual(t, c.Workers(), 1)
	assert.LessOrEqual(t, c.Workers(), 4)
}

func TestGlobalConfig_SetAndGet(t *testing.T) {
	original := config.GetGlobalConfig()
	defer config.SetGlobalConfig(original)

	updated := config.NewConfig()
	updated.ChunkSize = 7
	config.SetGlobalConfig(updated)

	assert.Equal(t, 7, config.GetGlobalConfig().ChunkSize)
}

func TestConfig_ValidationRecommendations(t *testing.T) {
	validator := config.NewConfigValidator()

	cfg := config.NewConfig()
	cfg.ChunkSize = 10

	validated, warnings, err := validator.Validate(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Positive(t, validated.WorkerPoolSize)

	cfg.ChunkSize = -1
	_, _, err = validator.Validate(cfg)
	assert.Error(t, err)
}

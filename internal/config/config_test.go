package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               "8080",
		DatabaseURL:        "postgres://localhost/lumen",
		EmbeddingDimension: 1536,
		ChunkSize:          1000,
		ChunkOverlap:       200,
		TopK:               4,
		MinSimilarity:      0.7,
		HistoryWindow:      10,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LUMEN_DATABASE_URL", "postgres://localhost/lumen")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 4, cfg.TopK)
	assert.InDelta(t, 0.7, float64(cfg.MinSimilarity), 0.0001)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, 24*time.Hour, cfg.SyncInterval)
	assert.Equal(t, "lumen-attachments", cfg.S3Bucket)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("LUMEN_DATABASE_URL", "")

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LUMEN_DATABASE_URL", "postgres://localhost/lumen")
	t.Setenv("LUMEN_CHUNK_SIZE", "500")
	t.Setenv("LUMEN_CHUNK_OVERLAP", "50")
	t.Setenv("LUMEN_TOP_K", "8")
	t.Setenv("LUMEN_SYNC_INTERVAL", "1h")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, time.Hour, cfg.SyncInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }, "embedding dimension"},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunk size"},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, "chunk overlap"},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "chunk overlap"},
		{"negative top_k", func(c *Config) { c.TopK = -1 }, "top_k"},
		{"similarity out of range", func(c *Config) { c.MinSimilarity = 1.0 }, "min similarity"},
		{"negative similarity", func(c *Config) { c.MinSimilarity = -0.1 }, "min similarity"},
		{"negative history window", func(c *Config) { c.HistoryWindow = -1 }, "history window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_HasS3(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.HasS3())

	cfg.S3Endpoint = "http://localhost:9000"
	cfg.S3AccessKey = "key"
	cfg.S3SecretKey = "secret"
	assert.True(t, cfg.HasS3())
}

func TestConfig_HasOpenAI(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = "sk-test"
	assert.True(t, cfg.HasOpenAI())
}

func TestConfig_HasDrive(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.HasDrive())

	cfg.DriveFolderID = "folder-1"
	assert.True(t, cfg.HasDrive())
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	ChatModel          string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	VisionModel        string `envconfig:"VISION_MODEL" default:"gpt-4o-mini"`

	ChunkSize     int     `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap  int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK          int     `envconfig:"TOP_K" default:"4"`
	MinSimilarity float32 `envconfig:"MIN_SIMILARITY" default:"0.7"`
	HistoryWindow int     `envconfig:"HISTORY_WINDOW" default:"10"`

	DriveFolderID        string `envconfig:"DRIVE_FOLDER_ID"`
	DriveCredentialsFile string `envconfig:"DRIVE_CREDENTIALS_FILE"`

	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL" default:"24h"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// APIToken enables bearer-token auth on the chat API when set. Empty
	// means the deployment runs unauthenticated (CORS allow-list only).
	APIToken string `envconfig:"API_TOKEN"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"lumen-attachments"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LUMEN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects configurations that would fail silently per-request.
// Bad retrieval tuning is a deployment error and must halt startup.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size %d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity >= 1 {
		return fmt.Errorf("min similarity %.2f must be in [0, 1)", c.MinSimilarity)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history window must not be negative, got %d", c.HistoryWindow)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDrive() bool {
	return c.DriveFolderID != ""
}

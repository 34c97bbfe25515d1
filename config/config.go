package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"

	SummaryFirstChunk   = "first-chunk"
	SummaryFullDocument = "full-document"
)

type Config struct {
	HTTPAddr    string `validate:"required"`
	PostgresDSN string
	VectorStore string `validate:"oneof=postgres memory"`
	Catalog     string `validate:"oneof=postgres neo4j memory"`

	Neo4jURI  string
	Neo4jUser string
	Neo4jPass string

	Embeddings EmbeddingConfig
	LLM        LLMConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	Ingestion IngestionConfig
	Admin     AdminConfig
	Archive   ArchiveConfig
	History   HistoryConfig
	Log       LogConfig

	ServerURL string `validate:"required,url"`
}

type EmbeddingConfig struct {
	Provider  string `validate:"oneof=openai ollama"`
	Model     string `validate:"required"`
	Dimension int    `validate:"gt=0"`
	BatchSize int    `validate:"gt=0"`
}

type LLMConfig struct {
	Provider string `validate:"oneof=openai ollama"`
	Model    string `validate:"required"`
}

type IngestionConfig struct {
	ChunkSize          int    `validate:"gt=0"`
	ChunkOverlap       int    `validate:"gte=0,ltfield=ChunkSize"`
	SummaryPolicy      string `validate:"oneof=first-chunk full-document"`
	SummaryMaxChars    int    `validate:"gt=0"`
	StoreWriteAttempts int    `validate:"gte=1"`
	MaxUploadBytes     int64  `validate:"gt=0"`
}

// AdminConfig controls the administrative gate. An empty secret disables the
// HTTP reset route entirely.
type AdminConfig struct {
	JWTSecret string
	TokenTTL  time.Duration `validate:"gt=0"`
}

// ArchiveConfig points at an S3-compatible bucket. An empty endpoint disables
// archiving of uploaded files.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string `validate:"required"`
	UseSSL    bool
}

type HistoryConfig struct {
	Backend       string `validate:"oneof=sqlite redis memory"`
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
}

type LogConfig struct {
	Level       string `validate:"oneof=debug info warn error"`
	Development bool
}

// Load reads configuration from the environment, an optional .env file in the
// working directory and, when file is not empty, a config file understood by
// viper (yaml, toml, json, env).
func Load(file string) (Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		PostgresDSN: v.GetString("POSTGRES_DSN"),
		VectorStore: v.GetString("VECTOR_STORE"),
		Catalog:     v.GetString("CATALOG_BACKEND"),
		Neo4jURI:    v.GetString("NEO4J_URI"),
		Neo4jUser:   v.GetString("NEO4J_USERNAME"),
		Neo4jPass:   v.GetString("NEO4J_PASSWORD"),
		Embeddings: EmbeddingConfig{
			Provider:  v.GetString("EMBEDDINGS_PROVIDER"),
			Model:     v.GetString("EMBEDDINGS_MODEL"),
			Dimension: v.GetInt("EMBEDDINGS_DIMENSION"),
			BatchSize: v.GetInt("EMBED_BATCH_SIZE"),
		},
		LLM: LLMConfig{
			Provider: v.GetString("LLM_PROVIDER"),
			Model:    v.GetString("LLM_MODEL"),
		},
		OllamaHost:    v.GetString("OLLAMA_HOST"),
		OpenAIAPIKey:  v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
		Ingestion: IngestionConfig{
			ChunkSize:          v.GetInt("CHUNK_SIZE"),
			ChunkOverlap:       v.GetInt("CHUNK_OVERLAP"),
			SummaryPolicy:      v.GetString("SUMMARY_POLICY"),
			SummaryMaxChars:    v.GetInt("SUMMARY_MAX_CHARS"),
			StoreWriteAttempts: v.GetInt("STORE_WRITE_ATTEMPTS"),
			MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
		},
		Admin: AdminConfig{
			JWTSecret: v.GetString("ADMIN_JWT_SECRET"),
			TokenTTL:  v.GetDuration("ADMIN_TOKEN_TTL"),
		},
		Archive: ArchiveConfig{
			Endpoint:  v.GetString("ARCHIVE_ENDPOINT"),
			AccessKey: v.GetString("ARCHIVE_ACCESS_KEY"),
			SecretKey: v.GetString("ARCHIVE_SECRET_KEY"),
			Bucket:    v.GetString("ARCHIVE_BUCKET"),
			UseSSL:    v.GetBool("ARCHIVE_USE_SSL"),
		},
		History: HistoryConfig{
			Backend:       v.GetString("HISTORY_BACKEND"),
			SQLitePath:    v.GetString("HISTORY_SQLITE_PATH"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Log: LogConfig{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
		ServerURL: v.GetString("SERVER_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("POSTGRES_DSN", "postgres://localhost:5432/docqa?sslmode=disable")
	v.SetDefault("VECTOR_STORE", BackendPostgres)
	v.SetDefault("CATALOG_BACKEND", BackendPostgres)
	v.SetDefault("NEO4J_URI", "neo4j://localhost:7687")
	v.SetDefault("NEO4J_USERNAME", "neo4j")
	v.SetDefault("NEO4J_PASSWORD", "password")
	v.SetDefault("EMBEDDINGS_PROVIDER", ProviderOpenAI)
	v.SetDefault("EMBEDDINGS_MODEL", "text-embedding-3-small")
	v.SetDefault("EMBEDDINGS_DIMENSION", 1536)
	v.SetDefault("EMBED_BATCH_SIZE", 512)
	v.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("CHUNK_SIZE", 1000)
	v.SetDefault("CHUNK_OVERLAP", 200)
	v.SetDefault("SUMMARY_POLICY", SummaryFirstChunk)
	v.SetDefault("SUMMARY_MAX_CHARS", 12000)
	v.SetDefault("STORE_WRITE_ATTEMPTS", 1)
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("ADMIN_JWT_SECRET", "")
	v.SetDefault("ADMIN_TOKEN_TTL", time.Hour)
	v.SetDefault("ARCHIVE_ENDPOINT", "")
	v.SetDefault("ARCHIVE_ACCESS_KEY", "")
	v.SetDefault("ARCHIVE_SECRET_KEY", "")
	v.SetDefault("ARCHIVE_BUCKET", "docqa-uploads")
	v.SetDefault("ARCHIVE_USE_SSL", false)
	v.SetDefault("HISTORY_BACKEND", BackendSQLite)
	v.SetDefault("HISTORY_SQLITE_PATH", defaultHistoryPath())
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SERVER_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.VectorStore == BackendPostgres || c.Catalog == BackendPostgres {
		if c.PostgresDSN == "" {
			return fmt.Errorf("invalid config: POSTGRES_DSN is required for the postgres backend")
		}
	}
	if c.History.Backend == BackendSQLite && c.History.SQLitePath == "" {
		return fmt.Errorf("invalid config: HISTORY_SQLITE_PATH is required for the sqlite history backend")
	}
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docqa-history.db"
	}
	return filepath.Join(home, ".docqa", "history.db")
}

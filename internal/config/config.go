package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Run modes accepted by Config.Mode.
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Vector store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendQdrant   = "qdrant"
)

// Config holds all application configuration.
type Config struct {
	Mode      string          `mapstructure:"mode"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig configures Postgres. An empty URL runs without a database.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig configures the Redis task queue and lock. Optional.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type VectorConfig struct {
	Backend  string       `mapstructure:"backend"`
	EFSearch int          `mapstructure:"ef_search"`
	Qdrant   QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	BatchSize         int           `mapstructure:"batch_size"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`

	// Boundary-preserving mode; both off keeps fixed windows
	PreserveSentences  bool `mapstructure:"preserve_sentences"`
	PreserveParagraphs bool `mapstructure:"preserve_paragraphs"`
}

type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	DequeueTimeout time.Duration `mapstructure:"dequeue_timeout"`
	Janitor        JanitorConfig `mapstructure:"janitor"`
}

type JanitorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

// UploadsConfig roots the filesystem document store.
type UploadsConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// AuthConfig enables bearer-token checks on the API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeAll)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", time.Minute)

	v.SetDefault("redis.url", "")

	v.SetDefault("vector.backend", BackendMemory)
	v.SetDefault("vector.ef_search", 40)
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6334)
	v.SetDefault("vector.qdrant.collection", "deal_segments")

	v.SetDefault("embedding.provider", "hashing")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.requests_per_second", 0)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("chunking.size", 500)
	v.SetDefault("chunking.overlap", 50)
	v.SetDefault("chunking.preserve_sentences", false)
	v.SetDefault("chunking.preserve_paragraphs", false)

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.dequeue_timeout", 5*time.Second)
	v.SetDefault("worker.janitor.enabled", true)
	v.SetDefault("worker.janitor.interval", 10*time.Minute)
	v.SetDefault("worker.janitor.retention", 24*time.Hour)

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.watch", false)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "innovest-rag")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown mode '%s' (use api, worker or all)", c.Mode))
	}

	switch c.Vector.Backend {
	case BackendMemory:
		if c.Mode != ModeAll {
			warnings = append(warnings, "memory vector backend is not shared between processes; use mode 'all'")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			warnings = append(warnings, "postgres vector backend requires database.url")
		}
	case BackendQdrant:
		if c.Vector.Qdrant.Host == "" {
			warnings = append(warnings, "qdrant vector backend requires vector.qdrant.host")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s'", c.Vector.Backend))
	}

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		warnings = append(warnings, "embedding provider 'openai' is configured but api_key is empty")
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		warnings = append(warnings, fmt.Sprintf("chunking overlap %d must be in [0, %d)", c.Chunking.Overlap, c.Chunking.Size))
	}

	if c.Worker.Concurrency < 0 {
		warnings = append(warnings, fmt.Sprintf("worker concurrency %d is negative", c.Worker.Concurrency))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("telemetry sample_rate %.2f is outside [0.0, 1.0]", c.Telemetry.SampleRate))
	}

	return warnings
}

// Load reads configuration from an optional file and the environment.
// Environment variables use the INNOVEST_ prefix, e.g. INNOVEST_VECTOR_BACKEND.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INNOVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

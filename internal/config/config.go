package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Logging configuration
	Log LogConfig

	// Gemini scoring, drafting and embedding
	AI AIConfig

	// Ingestion pipeline policy
	Ingest IngestConfig

	// RSS/Atom feed sources
	Feeds FeedsConfig

	// Platform publishers
	Publish PublishConfig

	// Optional Redis mirror for the similarity index
	Redis RedisConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// AIConfig holds Gemini settings
type AIConfig struct {
	APIKey              string
	Model               string
	EmbeddingModel      string
	Temperature         float64
	EmbeddingDimensions int
	Timeout             time.Duration
}

// IngestConfig holds the pipeline thresholds and caps
type IngestConfig struct {
	RelevanceThreshold    int
	ScoringContentChars   int
	EmbeddingContentChars int
	SimilarityThreshold   float64
	SimilarityWindow      int
	Concurrency           int
}

// FeedsConfig holds feed fetching settings
type FeedsConfig struct {
	File          string
	MaxPerFeed    int
	Timeout       time.Duration
	Concurrency   int
	FetchInterval time.Duration // 0 disables the background poller
	Sources       []FeedSource
}

// FeedSource is a single RSS or Atom feed
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// PublishConfig holds platform credentials
type PublishConfig struct {
	Timeout       time.Duration
	TwitterAPIURL string
	TwitterToken  string
	BlueskyPDSURL string
	BlueskyHandle string
	BlueskyAppKey string
}

// RedisConfig holds the optional Redis connection
type RedisConfig struct {
	URL string
}

// feedsFile is the YAML layout of FEEDS_FILE
type feedsFile struct {
	Feeds []FeedSource `yaml:"feeds"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    int64(getIntEnv("MAX_BODY_BYTES", 10*1024*1024)),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "twax"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		AI: AIConfig{
			APIKey:              getEnv("GEMINI_API_KEY", ""),
			Model:               getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			EmbeddingModel:      getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			Temperature:         getFloatEnv("GEMINI_TEMPERATURE", 0.7),
			EmbeddingDimensions: getIntEnv("EMBEDDING_DIMENSIONS", 768),
			Timeout:             getDurationEnv("AI_TIMEOUT", 20*time.Second),
		},
		Ingest: IngestConfig{
			RelevanceThreshold:    getIntEnv("RELEVANCE_THRESHOLD", 6),
			ScoringContentChars:   getIntEnv("SCORING_CONTENT_CHARS", 2000),
			EmbeddingContentChars: getIntEnv("EMBEDDING_CONTENT_CHARS", 500),
			SimilarityThreshold:   getFloatEnv("SIMILARITY_THRESHOLD", 0.85),
			SimilarityWindow:      getIntEnv("SIMILARITY_WINDOW", 100),
			Concurrency:           getIntEnv("INGEST_CONCURRENCY", 5),
		},
		Feeds: FeedsConfig{
			File:          getEnv("FEEDS_FILE", ""),
			MaxPerFeed:    getIntEnv("FEED_MAX_PER_FEED", 5),
			Timeout:       getDurationEnv("FEED_TIMEOUT", 15*time.Second),
			Concurrency:   getIntEnv("FEED_CONCURRENCY", 4),
			FetchInterval: getDurationEnv("FETCH_INTERVAL", 0),
			Sources:       DefaultFeeds(),
		},
		Publish: PublishConfig{
			Timeout:       getDurationEnv("PUBLISH_TIMEOUT", 20*time.Second),
			TwitterAPIURL: getEnv("TWITTER_API_URL", "https://api.twitter.com/2/tweets"),
			TwitterToken:  getEnv("TWITTER_ACCESS_TOKEN", ""),
			BlueskyPDSURL: getEnv("BLUESKY_PDS_URL", "https://bsky.social"),
			BlueskyHandle: getEnv("BLUESKY_HANDLE", ""),
			BlueskyAppKey: getEnv("BLUESKY_APP_PASSWORD", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
	}

	if cfg.Feeds.File != "" {
		sources, err := LoadFeedsFile(cfg.Feeds.File)
		if err != nil {
			return nil, err
		}
		cfg.Feeds.Sources = sources
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Ingest.RelevanceThreshold < 1 || c.Ingest.RelevanceThreshold > 10 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be between 1 and 10")
	}
	if c.Ingest.SimilarityThreshold <= 0 || c.Ingest.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.Ingest.SimilarityWindow < 1 {
		return fmt.Errorf("SIMILARITY_WINDOW must be positive")
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("INGEST_CONCURRENCY must be positive")
	}
	if c.AI.EmbeddingDimensions < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	for _, f := range c.Feeds.Sources {
		if f.Name == "" || f.URL == "" {
			return fmt.Errorf("feed entries need both name and url")
		}
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LoadFeedsFile reads the YAML feed list
func LoadFeedsFile(path string) ([]FeedSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file %s: %w", path, err)
	}

	var file feedsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}
	if len(file.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s lists no feeds", path)
	}

	for i := range file.Feeds {
		file.Feeds[i].Name = strings.TrimSpace(file.Feeds[i].Name)
		file.Feeds[i].URL = strings.TrimSpace(file.Feeds[i].URL)
	}
	return file.Feeds, nil
}

// DefaultFeeds returns the built-in tech news feeds
func DefaultFeeds() []FeedSource {
	return []FeedSource{
		{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
		{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
		{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index"},
		{Name: "Wired", URL: "https://www.wired.com/feed/rss"},
		{Name: "VentureBeat", URL: "https://venturebeat.com/feed/"},
		{Name: "MIT Tech Review", URL: "https://www.technologyreview.com/feed/"},
		{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss.xml"},
		{Name: "Google Blog", URL: "https://blog.google/rss/"},
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

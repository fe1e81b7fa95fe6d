package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Redis      RedisConfig
	Server     ServerConfig
	Carlton    CarltonConfig
	Generator  GeneratorConfig
	Ranking    RankingConfig
	RateLimit  RateLimitConfig
	Session    SessionConfig
	Chat       ChatConfig
	Lexicon    LexiconConfig
	Logging    LoggingConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred over the individual fields
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
	Enabled  bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
	PublicDir      string
}

// CarltonConfig holds the upstream listings API configuration
type CarltonConfig struct {
	APIBase      string
	APIKey       string
	PerPage      int
	MaxPages     int
	Timeout      time.Duration
	CacheTTL     time.Duration
	ImagesTTL    time.Duration
	SyncSchedule string
	Enabled      bool
}

// GeneratorConfig holds the optional hosted text-generation API configuration.
// Any OpenAI-compatible chat completions endpoint works (Hugging Face router by default).
type GeneratorConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Enabled     bool
}

// RankingConfig holds ranking weights configuration
type RankingConfig struct {
	Base        float64
	Location    float64
	Type        float64
	BudgetNear  float64
	BudgetFar   float64
	Amenity     float64
	MaxResults  int
	MaxListings int
}

// RateLimitConfig holds per-client API rate limit settings
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SessionConfig holds chat session settings
type SessionConfig struct {
	TTL        time.Duration
	MaxHistory int
}

// ChatConfig holds contact details surfaced in chat responses
type ChatConfig struct {
	WhatsAppNumber string
	Phone          string
	Email          string
}

// LexiconConfig points at an optional lexicon file overriding the embedded one
type LexiconConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	carltonKey := getEnv("CARLTON_API_KEY", "")
	generatorKey := getEnv("HUGGINGFACE_API_KEY", getEnv("GENERATOR_API_KEY", ""))
	pgDSN := getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", "")))
	redisAddr := getEnv("REDIS_ADDR", "")

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                pgDSN,
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "carlton"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			Enabled:            getEnvAsBool("PG_ENABLED", pgDSN != ""),
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
			Prefix:   getEnv("REDIS_PREFIX", "carlton:"),
			Enabled:  redisAddr != "",
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("PORT", getEnvAsInt("SERVER_PORT", 8000)),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
			PublicDir:      getEnv("PUBLIC_DIR", "./public"),
		},
		Carlton: CarltonConfig{
			APIBase:      strings.TrimRight(getEnv("CARLTON_API_BASE", "https://listings.icarlton.com/wide_api"), "/"),
			APIKey:       carltonKey,
			PerPage:      getEnvAsInt("CARLTON_PER_PAGE", 500),
			MaxPages:     getEnvAsInt("CARLTON_MAX_PAGES", 10),
			Timeout:      getEnvAsDuration("CARLTON_TIMEOUT", 10*time.Second),
			CacheTTL:     getEnvAsDuration("CARLTON_CACHE_TTL", 5*time.Minute),
			ImagesTTL:    getEnvAsDuration("CARLTON_IMAGES_TTL", 30*time.Minute),
			SyncSchedule: getEnv("CARLTON_SYNC_SCHEDULE", "@every 30m"),
			Enabled:      carltonKey != "" && carltonKey != "contact_carlton_it_for_api_key",
		},
		Generator: GeneratorConfig{
			APIKey:      generatorKey,
			APIBase:     strings.TrimRight(getEnv("GENERATOR_API_BASE", "https://router.huggingface.co/v1"), "/"),
			Model:       getEnv("GENERATOR_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
			Temperature: getEnvAsFloat("GENERATOR_TEMPERATURE", 0.7),
			MaxTokens:   getEnvAsInt("GENERATOR_MAX_TOKENS", 150),
			Timeout:     getEnvAsDuration("GENERATOR_TIMEOUT", 8*time.Second),
			Enabled:     generatorKey != "" && generatorKey != "your_huggingface_api_key_here",
		},
		Ranking: RankingConfig{
			Base:        getEnvAsFloat("RANK_WEIGHT_BASE", 0.5),
			Location:    getEnvAsFloat("RANK_WEIGHT_LOCATION", 0.3),
			Type:        getEnvAsFloat("RANK_WEIGHT_TYPE", 0.2),
			BudgetNear:  getEnvAsFloat("RANK_WEIGHT_BUDGET_NEAR", 0.2),
			BudgetFar:   getEnvAsFloat("RANK_WEIGHT_BUDGET_FAR", 0.1),
			Amenity:     getEnvAsFloat("RANK_WEIGHT_AMENITY", 0.1),
			MaxResults:  getEnvAsInt("CHAT_MAX_RESULTS", 3),
			MaxListings: getEnvAsInt("SEARCH_MAX_LIMIT", 100),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("API_RATE_LIMIT", 100),
			Window:   getEnvAsDuration("API_RATE_WINDOW", 15*time.Minute),
		},
		Session: SessionConfig{
			TTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			MaxHistory: getEnvAsInt("SESSION_MAX_HISTORY", 20),
		},
		Chat: ChatConfig{
			WhatsAppNumber: getEnv("CARLTON_WHATSAPP_NUMBER", "97317553300"),
			Phone:          getEnv("CARLTON_PHONE", "+973 1755 3300"),
			Email:          getEnv("CARLTON_EMAIL", "info@icarlton.com"),
		},
		Lexicon: LexiconConfig{
			Path: getEnv("LEXICON_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("API_RATE_WINDOW must be positive, got %s", c.RateLimit.Window)
	}
	if c.Carlton.PerPage <= 0 {
		return fmt.Errorf("CARLTON_PER_PAGE must be positive, got %d", c.Carlton.PerPage)
	}
	if c.Ranking.MaxResults <= 0 {
		c.Ranking.MaxResults = 3
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Bool("default", defaultValue).Msg("invalid boolean value, using default")
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("15m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration value, using default")
	return defaultValue
}

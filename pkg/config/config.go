package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log           LogConfig
	Extract       ExtractConfig
	Rules         RulesConfig
	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Inbox         InboxConfig
	Storage       StorageConfig
	Search        SearchConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// ExtractConfig is the pipeline configuration. A negative column index means
// the role is unset.
type ExtractConfig struct {
	Mode          string
	Lossless      bool
	Classify      bool
	SplitFallback bool
	AutoRoles     bool
	Strict        bool
	HeaderLabels  []string
	DateCol       int
	DescCol       int
	AmountCol     int
	Password      string
	ShopNameMax   int
	Currency      string
}

type RulesConfig struct {
	File   string
	Issuer string
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

type DatabaseConfig struct {
	URL string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

type InboxConfig struct {
	Dir      string
	Schedule string
}

type StorageConfig struct {
	LocalPath string
}

type SearchConfig struct {
	IndexPath string
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Extract: ExtractConfig{
			Mode:          getEnv("EXTRACT_MODE", "pattern"),
			Lossless:      getEnvAsBool("EXTRACT_LOSSLESS", false),
			Classify:      getEnvAsBool("EXTRACT_CLASSIFY", true),
			SplitFallback: getEnvAsBool("EXTRACT_SPLIT_FALLBACK", true),
			AutoRoles:     getEnvAsBool("EXTRACT_AUTO_ROLES", false),
			Strict:        getEnvAsBool("EXTRACT_STRICT_COLUMNS", false),
			HeaderLabels:  getEnvAsList("EXTRACT_HEADER_LABELS", nil),
			DateCol:       getEnvAsInt("EXTRACT_DATE_COL", -1),
			DescCol:       getEnvAsInt("EXTRACT_DESC_COL", -1),
			AmountCol:     getEnvAsInt("EXTRACT_AMOUNT_COL", -1),
			Password:      getEnv("STATEMENT_PASSWORD", ""),
			ShopNameMax:   getEnvAsInt("SHOP_NAME_MAX_LEN", 15),
			Currency:      getEnv("DISPLAY_CURRENCY", "TWD"),
		},
		Rules: RulesConfig{
			File:   getEnv("RULES_FILE", ""),
			Issuer: getEnv("RULES_ISSUER", ""),
		},
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 20),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			MaxUploadBytes:     int64(getEnvAsInt("SERVER_MAX_UPLOAD_MB", 20)) << 20,
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Inbox: InboxConfig{
			Dir:      getEnv("INBOX_DIR", ""),
			Schedule: getEnv("INBOX_SCHEDULE", "*/5 * * * *"),
		},
		Storage: StorageConfig{
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./exports"),
		},
		Search: SearchConfig{
			IndexPath: getEnv("SEARCH_INDEX_PATH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Extract.Mode {
	case "pattern", "columns":
	default:
		return fmt.Errorf("EXTRACT_MODE must be pattern or columns, got %q", c.Extract.Mode)
	}
	if c.Extract.ShopNameMax <= 0 {
		return errors.New("SHOP_NAME_MAX_LEN must be positive")
	}
	if c.Server.RateLimitPerSecond <= 0 || c.Server.RateLimitBurst <= 0 {
		return errors.New("rate limit values must be positive")
	}
	return nil
}

// HasRoles reports whether all three column roles were configured.
func (c *ExtractConfig) HasRoles() bool {
	return c.DateCol >= 0 && c.DescCol >= 0 && c.AmountCol >= 0
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blank items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

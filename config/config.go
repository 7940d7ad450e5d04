package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	OpenFoodFacts OpenFoodFactsConfig `mapstructure:"openfoodfacts"`
	USDA          USDAConfig          `mapstructure:"usda"`
	SearXNG       SearXNGConfig       `mapstructure:"searxng"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Image         ImageConfig         `mapstructure:"image"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Matching      MatchingConfig      `mapstructure:"matching"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// OpenFoodFactsConfig holds OpenFoodFacts API configuration
type OpenFoodFactsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// USDAConfig holds USDA API configuration
type USDAConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SearXNGConfig holds web search configuration
type SearXNGConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

// LLMConfig holds reasoning model configuration
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"` // "ollama" or "gemini"
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxIterations int           `mapstructure:"max_iterations"`
	Enabled       bool          `mapstructure:"enabled"`
}

// ImageConfig holds image analyzer configuration
type ImageConfig struct {
	AnalyzerURL string        `mapstructure:"analyzer_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxSizeMB   int           `mapstructure:"max_size_mb"`
}

// StorageConfig holds profile storage configuration
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "memory"
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// MatchingConfig holds product matching configuration
type MatchingConfig struct {
	MinConfidenceThreshold float64 `mapstructure:"min_confidence_threshold"`
	EnableFuzzyMatching    bool    `mapstructure:"enable_fuzzy_matching"`
}

// RateLimitConfig holds outbound rate limits in requests per second
type RateLimitConfig struct {
	OpenFoodFacts float64 `mapstructure:"openfoodfacts"`
	SearXNG       float64 `mapstructure:"searxng"`
	USDA          float64 `mapstructure:"usda"`
}

// MaxImageBytes returns the upload limit in bytes
func (c ImageConfig) MaxImageBytes() int {
	return c.MaxSizeMB << 20
}

// Load loads configuration from environment variables and config files.
// An explicit path overrides the default search locations.
func Load(path ...string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	explicit := len(path) > 0 && path[0] != ""

	// Set config name and paths
	if explicit {
		v.SetConfigFile(path[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/bytelense/")
	}

	// Environment variable settings
	v.SetEnvPrefix("BYTELENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("openfoodfacts.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("openfoodfacts.timeout", "3s")

	// USDA defaults; an empty key disables the USDA step
	v.SetDefault("usda.api_key", "")
	v.SetDefault("usda.base_url", "https://api.nal.usda.gov/fdc")
	v.SetDefault("usda.timeout", "5s")

	v.SetDefault("searxng.base_url", "http://localhost:8888")
	v.SetDefault("searxng.timeout", "5s")
	v.SetDefault("searxng.keepalive_interval", "600s")

	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen3:8b")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_iterations", 5)

	v.SetDefault("image.analyzer_url", "http://localhost:8090")
	v.SetDefault("image.timeout", "15s")
	v.SetDefault("image.max_size_mb", 10)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./data/profiles.db")

	// Cache defaults
	v.SetDefault("cache.ttl", "720h") // 30 days
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("matching.min_confidence_threshold", 40.0)
	v.SetDefault("matching.enable_fuzzy_matching", true)

	// Rate limit defaults (requests per second)
	v.SetDefault("ratelimit.openfoodfacts", 10.0)
	v.SetDefault("ratelimit.searxng", 5.0)
	v.SetDefault("ratelimit.usda", 0.278)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if config.Storage.Driver != "sqlite" && config.Storage.Driver != "memory" {
		return fmt.Errorf("storage driver must be 'sqlite' or 'memory', got: %s", config.Storage.Driver)
	}

	if config.Storage.Driver == "sqlite" && config.Storage.DSN == "" {
		return fmt.Errorf("storage DSN is required when storage driver is 'sqlite'")
	}

	switch config.LLM.Provider {
	case "ollama":
	case "gemini":
		if config.LLM.Enabled && config.LLM.APIKey == "" {
			return fmt.Errorf("LLM API key is required for gemini (set BYTELENSE_LLM_API_KEY)")
		}
	default:
		return fmt.Errorf("llm provider must be 'ollama' or 'gemini', got: %s", config.LLM.Provider)
	}

	if config.LLM.MaxIterations < 1 {
		return fmt.Errorf("llm max_iterations must be at least 1, got: %d", config.LLM.MaxIterations)
	}

	if config.Image.MaxSizeMB < 1 {
		return fmt.Errorf("image max_size_mb must be at least 1, got: %d", config.Image.MaxSizeMB)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got: %s", config.Logging.Format)
	}

	return nil
}

// loadEnvFile reads KEY=VALUE lines from ./.env into the environment.
// Variables that are already set are left alone; a missing file is not an error.
func loadEnvFile() error {
	f, err := os.Open(".env")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

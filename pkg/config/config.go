package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/documind/documind/pkg/resilience"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
	Tracing    TracingConfig    `json:"tracing"`
	Resilience ResilienceConfig `json:"resilience"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// TracingConfig contains distributed tracing configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
}

// ResilienceConfig overrides the built-in operation profiles from the
// environment. Zero values fall back to the profile defaults.
type ResilienceConfig struct {
	LLM       ProfileConfig `json:"llm"`
	Embedding ProfileConfig `json:"embedding"`
	Database  ProfileConfig `json:"database"`
	Search    ProfileConfig `json:"search"`
}

// ProfileConfig holds the tunable knobs of a single operation profile
type ProfileConfig struct {
	Timeout          time.Duration `json:"timeout"`
	MaxRetries       int           `json:"max_retries"`
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	OpenTimeout      time.Duration `json:"open_timeout"`
	MaxConcurrent    int           `json:"max_concurrent"`
	MaxQueue         int           `json:"max_queue"`
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file just means pure-env configuration
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			ServiceName:    getEnvString("TRACING_SERVICE_NAME", "documind"),
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SampleRate:     getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Resilience: ResilienceConfig{
			LLM:       loadProfileConfig("RESILIENCE_LLM"),
			Embedding: loadProfileConfig("RESILIENCE_EMBEDDING"),
			Database:  loadProfileConfig("RESILIENCE_DATABASE"),
			Search:    loadProfileConfig("RESILIENCE_SEARCH"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadProfileConfig(prefix string) ProfileConfig {
	return ProfileConfig{
		Timeout:          getEnvDuration(prefix+"_TIMEOUT", 0),
		MaxRetries:       getEnvInt(prefix+"_MAX_RETRIES", 0),
		FailureThreshold: getEnvInt(prefix+"_FAILURE_THRESHOLD", 0),
		SuccessThreshold: getEnvInt(prefix+"_SUCCESS_THRESHOLD", 0),
		OpenTimeout:      getEnvDuration(prefix+"_OPEN_TIMEOUT", 0),
		MaxConcurrent:    getEnvInt(prefix+"_MAX_CONCURRENT", 0),
		MaxQueue:         getEnvInt(prefix+"_MAX_QUEUE", 0),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1, got %f", c.Tracing.SampleRate)
	}

	for name, p := range map[string]ProfileConfig{
		"llm":       c.Resilience.LLM,
		"embedding": c.Resilience.Embedding,
		"database":  c.Resilience.Database,
		"search":    c.Resilience.Search,
	} {
		if p.MaxConcurrent < 0 || p.MaxQueue < 0 {
			return fmt.Errorf("resilience.%s: bulkhead sizes must not be negative", name)
		}
		if p.FailureThreshold < 0 || p.SuccessThreshold < 0 {
			return fmt.Errorf("resilience.%s: circuit breaker thresholds must not be negative", name)
		}
	}

	return nil
}

// LLMProfile returns the LLM operation profile for the given operation name
// with environment overrides applied
func (c *Config) LLMProfile(name string) resilience.OperationProfile {
	return applyOverrides(resilience.LLMAPIProfile(name), c.Resilience.LLM)
}

// EmbeddingProfile returns the embedding operation profile for the given
// operation name with environment overrides applied
func (c *Config) EmbeddingProfile(name string) resilience.OperationProfile {
	return applyOverrides(resilience.EmbeddingProfile(name), c.Resilience.Embedding)
}

// DatabaseProfile returns the database operation profile for the given
// operation name with environment overrides applied
func (c *Config) DatabaseProfile(name string) resilience.OperationProfile {
	return applyOverrides(resilience.DatabaseProfile(name), c.Resilience.Database)
}

// SearchProfile returns the search operation profile for the given operation
// name with environment overrides applied
func (c *Config) SearchProfile(name string) resilience.OperationProfile {
	return applyOverrides(resilience.SearchProfile(name), c.Resilience.Search)
}

func applyOverrides(profile resilience.OperationProfile, overrides ProfileConfig) resilience.OperationProfile {
	if overrides.Timeout > 0 {
		profile.Timeout = overrides.Timeout
	}
	if overrides.MaxRetries > 0 {
		if profile.Retry == nil {
			cfg := resilience.DefaultRetryConfig()
			profile.Retry = &cfg
		}
		profile.Retry.MaxAttempts = overrides.MaxRetries
	}
	if overrides.FailureThreshold > 0 || overrides.SuccessThreshold > 0 || overrides.OpenTimeout > 0 {
		if profile.CircuitBreaker == nil {
			cfg := resilience.DefaultCircuitBreakerConfig(profile.Name)
			profile.CircuitBreaker = &cfg
		}
		if overrides.FailureThreshold > 0 {
			profile.CircuitBreaker.FailureThreshold = overrides.FailureThreshold
		}
		if overrides.SuccessThreshold > 0 {
			profile.CircuitBreaker.SuccessThreshold = overrides.SuccessThreshold
		}
		if overrides.OpenTimeout > 0 {
			profile.CircuitBreaker.Timeout = overrides.OpenTimeout
		}
	}
	if overrides.MaxConcurrent > 0 {
		if profile.Bulkhead == nil {
			cfg := resilience.DefaultBulkheadConfig(profile.Name)
			profile.Bulkhead = &cfg
		}
		profile.Bulkhead.MaxConcurrent = overrides.MaxConcurrent
	}
	if overrides.MaxQueue > 0 && profile.Bulkhead != nil {
		profile.Bulkhead.MaxQueue = overrides.MaxQueue
	}
	return profile
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

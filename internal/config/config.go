// Package config provides configuration management for the arXiv query service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the arXiv query service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Download contains PDF download settings.
	Download DownloadConfig `mapstructure:"download"`
	// ArXiv contains arXiv API client settings.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
	// OCR contains Mistral OCR client settings.
	OCR OCRConfig `mapstructure:"ocr"`
	// RateLimit contains the arXiv/OCR call quota settings.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// Port is the HTTP server port (default: 8080).
	Port int `mapstructure:"port"`
	// ReadTimeout is the maximum duration for reading the request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// DownloadConfig holds PDF download configuration.
type DownloadConfig struct {
	// Dir is the directory PDF files are downloaded into. Created on startup
	// if it does not exist. Overridable via the DOWNLOAD_DIR environment variable.
	Dir string `mapstructure:"dir"`
	// Timeout is the per-attempt timeout for a PDF fetch.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retry attempts on transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxSize is the maximum PDF size in bytes.
	MaxSize int64 `mapstructure:"max_size"`
}

// ArXivConfig holds arXiv API client configuration.
type ArXivConfig struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string `mapstructure:"base_url"`
	// PDFBaseURL is the base URL PDF artifacts are fetched from.
	PDFBaseURL string `mapstructure:"pdf_base_url"`
	// Timeout is the per-attempt timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retry attempts on transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries; doubled on each attempt.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// PacingRate is the courtesy request pacing in requests per second,
	// applied inside the HTTP client in addition to the quota limiter.
	PacingRate float64 `mapstructure:"pacing_rate"`
}

// OCRConfig holds Mistral OCR client configuration.
type OCRConfig struct {
	// APIKey is the Mistral API key, loaded exclusively from the
	// MISTRAL_OCR_API_KEY environment variable. When empty, text extraction
	// runs in local-parser-only mode and never dials out.
	APIKey string `mapstructure:"-"`
	// BaseURL is the OCR API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Model is the OCR model identifier.
	Model string `mapstructure:"model"`
	// Timeout is the per-request timeout for OCR calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxFileSize is the provider's upload size ceiling in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// Enabled reports whether remote OCR is configured.
func (c *OCRConfig) Enabled() bool {
	return c.APIKey != ""
}

// RateLimitConfig holds the call quota settings shared by the search and OCR paths.
type RateLimitConfig struct {
	// MaxCallsPerMinute caps calls in any rolling 60-second window.
	// Overridable via ARXIV_MAX_CALLS_PER_MINUTE.
	MaxCallsPerMinute int `mapstructure:"max_calls_per_minute"`
	// MaxCallsPerDay caps calls per UTC day. Overridable via ARXIV_MAX_CALLS_PER_DAY.
	MaxCallsPerDay int `mapstructure:"max_calls_per_day"`
	// MinInterval is the minimum spacing between consecutive calls.
	// Overridable (in seconds) via ARXIV_MIN_INTERVAL_SECONDS.
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// Address returns the HTTP server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("ARXIVQS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/arxiv-query-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadEnvOverrides applies the documented plain environment variable names.
// The secret is loaded exclusively from the environment (mapstructure:"-"
// keeps it out of config files); the quota and directory names predate the
// ARXIVQS_ prefix and remain supported for existing deployments.
func loadEnvOverrides(cfg *Config) {
	cfg.OCR.APIKey = os.Getenv("MISTRAL_OCR_API_KEY")

	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		cfg.Download.Dir = dir
	}
	if s := os.Getenv("ARXIV_MAX_CALLS_PER_MINUTE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.RateLimit.MaxCallsPerMinute = n
		}
	}
	if s := os.Getenv("ARXIV_MAX_CALLS_PER_DAY"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.RateLimit.MaxCallsPerDay = n
		}
	}
	if s := os.Getenv("ARXIV_MIN_INTERVAL_SECONDS"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.RateLimit.MinInterval = time.Duration(f * float64(time.Second))
		}
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Download defaults
	v.SetDefault("download.dir", defaultDownloadDir())
	v.SetDefault("download.timeout", "30s")
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.retry_delay", "2s")
	v.SetDefault("download.max_size", 100*1024*1024)

	// arXiv API defaults
	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("arxiv.pdf_base_url", "https://arxiv.org/pdf")
	v.SetDefault("arxiv.timeout", "30s")
	v.SetDefault("arxiv.max_retries", 3)
	v.SetDefault("arxiv.retry_delay", "2s")
	v.SetDefault("arxiv.pacing_rate", 3.0) // arXiv recommends max 3 req/sec

	// OCR defaults. The API key comes exclusively from MISTRAL_OCR_API_KEY.
	v.SetDefault("ocr.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("ocr.model", "mistral-ocr-latest")
	v.SetDefault("ocr.timeout", "120s")
	v.SetDefault("ocr.max_file_size", 20*1024*1024) // documented Mistral upload ceiling

	// Quota defaults, matching arXiv's published usage guidance.
	v.SetDefault("rate_limit.max_calls_per_minute", 30)
	v.SetDefault("rate_limit.max_calls_per_day", 2000)
	v.SetDefault("rate_limit.min_interval", "1s")
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads", "arxiv")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Download.Dir == "" {
		return fmt.Errorf("download directory is required")
	}
	if c.Download.MaxSize <= 0 {
		return fmt.Errorf("download max_size must be positive")
	}

	if c.ArXiv.BaseURL == "" {
		return fmt.Errorf("arxiv base_url is required")
	}
	if c.ArXiv.PDFBaseURL == "" {
		return fmt.Errorf("arxiv pdf_base_url is required")
	}
	if c.ArXiv.MaxRetries < 0 {
		return fmt.Errorf("arxiv max_retries must not be negative")
	}

	if c.OCR.Enabled() && c.OCR.BaseURL == "" {
		return fmt.Errorf("ocr base_url is required when an OCR API key is set")
	}
	if c.OCR.MaxFileSize <= 0 {
		return fmt.Errorf("ocr max_file_size must be positive")
	}

	if c.RateLimit.MaxCallsPerMinute <= 0 {
		return fmt.Errorf("rate_limit max_calls_per_minute must be positive")
	}
	if c.RateLimit.MaxCallsPerDay <= 0 {
		return fmt.Errorf("rate_limit max_calls_per_day must be positive")
	}
	if c.RateLimit.MinInterval < 0 {
		return fmt.Errorf("rate_limit min_interval must not be negative")
	}

	return nil
}

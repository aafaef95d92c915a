package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Host               string
	Port               string
	LogLevel           string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Forgery engine defaults, overridable per request
	ELAQuality              int
	SuspiciousAreaThreshold float64
	MetadataCheckEnabled    bool

	// DifferenceServiceURL points at the numeric-compute collaborator.
	// Empty means pixel differencing runs in-process.
	DifferenceServiceURL string
	DifferenceTimeout    time.Duration

	MaxConcurrentAnalyses int

	AzureStorageAccount string
	AzureStorageKey     string
}

// fileConfig mirrors Config for the optional YAML overlay. Durations are
// strings so "30s" style values work.
type fileConfig struct {
	Server struct {
		Host               string `yaml:"host"`
		Port               string `yaml:"port"`
		LogLevel           string `yaml:"logLevel"`
		RequestTimeout     string `yaml:"requestTimeout"`
		MaxRequestBodySize int64  `yaml:"maxRequestBodySize"`
	} `yaml:"server"`
	Analysis struct {
		Timeout                 string  `yaml:"timeout"`
		ImageFetchTimeout       string  `yaml:"imageFetchTimeout"`
		ELAQuality              int     `yaml:"elaQuality"`
		SuspiciousAreaThreshold float64 `yaml:"suspiciousAreaThreshold"`
		MetadataCheckEnabled    *bool   `yaml:"metadataCheckEnabled"`
		MaxConcurrent           int     `yaml:"maxConcurrent"`
	} `yaml:"analysis"`
	Difference struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"difference"`
	Azure struct {
		Account string `yaml:"account"`
		Key     string `yaml:"key"`
	} `yaml:"azure"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() *Config {
	return &Config{
		Host:                    "0.0.0.0",
		Port:                    "8080",
		LogLevel:                "info",
		RequestTimeout:          30 * time.Second,
		ImageFetchTimeout:       15 * time.Second,
		AnalysisTimeout:         20 * time.Second,
		MaxRequestBodySize:      10 * 1024 * 1024, // 10MB
		ELAQuality:              90,
		SuspiciousAreaThreshold: 0.7,
		MetadataCheckEnabled:    true,
		DifferenceTimeout:       10 * time.Second,
		MaxConcurrentAnalyses:   10,
	}
}

// LoadFromEnv builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE (if any), then environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.AnalysisTimeout = parseDurationOrDefault("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.ELAQuality = int(parseIntOrDefault("ELA_QUALITY", int64(cfg.ELAQuality)))
	cfg.SuspiciousAreaThreshold = parseFloatOrDefault("SUSPICIOUS_AREA_THRESHOLD", cfg.SuspiciousAreaThreshold)
	cfg.MetadataCheckEnabled = parseBoolOrDefault("METADATA_CHECK_ENABLED", cfg.MetadataCheckEnabled)
	cfg.DifferenceServiceURL = getEnvOrDefault("DIFFERENCE_SERVICE_URL", cfg.DifferenceServiceURL)
	cfg.DifferenceTimeout = parseDurationOrDefault("DIFFERENCE_TIMEOUT", cfg.DifferenceTimeout)
	cfg.MaxConcurrentAnalyses = int(parseIntOrDefault("MAX_CONCURRENT_ANALYSES", int64(cfg.MaxConcurrentAnalyses)))
	cfg.AzureStorageAccount = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.AzureStorageAccount)
	cfg.AzureStorageKey = getEnvOrDefault("AZURE_STORAGE_KEY", cfg.AzureStorageKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 || c.DifferenceTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s, difference=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout, c.DifferenceTimeout)
	}
	if c.ELAQuality < 1 || c.ELAQuality > 100 {
		return fmt.Errorf("ELA_QUALITY must be within 1..100 (got %d)", c.ELAQuality)
	}
	if !(c.SuspiciousAreaThreshold > 0 && c.SuspiciousAreaThreshold <= 1) {
		return fmt.Errorf("SUSPICIOUS_AREA_THRESHOLD must be within (0,1] (got %g)", c.SuspiciousAreaThreshold)
	}
	if c.MaxConcurrentAnalyses <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_ANALYSES must be > 0 (got %d)", c.MaxConcurrentAnalyses)
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.Host, fc.Server.Host)
	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Server.LogLevel)
	if fc.Server.MaxRequestBodySize > 0 {
		c.MaxRequestBodySize = fc.Server.MaxRequestBodySize
	}
	if err := setDuration(&c.RequestTimeout, fc.Server.RequestTimeout); err != nil {
		return err
	}
	if err := setDuration(&c.AnalysisTimeout, fc.Analysis.Timeout); err != nil {
		return err
	}
	if err := setDuration(&c.ImageFetchTimeout, fc.Analysis.ImageFetchTimeout); err != nil {
		return err
	}
	if fc.Analysis.ELAQuality != 0 {
		c.ELAQuality = fc.Analysis.ELAQuality
	}
	if fc.Analysis.SuspiciousAreaThreshold != 0 {
		c.SuspiciousAreaThreshold = fc.Analysis.SuspiciousAreaThreshold
	}
	if fc.Analysis.MetadataCheckEnabled != nil {
		c.MetadataCheckEnabled = *fc.Analysis.MetadataCheckEnabled
	}
	if fc.Analysis.MaxConcurrent != 0 {
		c.MaxConcurrentAnalyses = fc.Analysis.MaxConcurrent
	}
	setString(&c.DifferenceServiceURL, fc.Difference.URL)
	if err := setDuration(&c.DifferenceTimeout, fc.Difference.Timeout); err != nil {
		return err
	}
	setString(&c.AzureStorageAccount, fc.Azure.Account)
	setString(&c.AzureStorageKey, fc.Azure.Key)
	return nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q in config file: %w", value, err)
	}
	*dst = d
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"

	"cohortstat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Data     DataConfig
	Analysis AnalysisConfig
}

// DatabaseConfig holds result-store connection settings. The database
// is optional; with no URL configured, results stay in memory and are
// written to stdout only.
type DatabaseConfig struct {
	URL     string
	Host    string
	Port    int
	User    string
	Name    string
	SSLMode string
}

// Enabled reports whether a result store is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// DataConfig holds visit-record source settings.
type DataConfig struct {
	SourceFile string // .xlsx or .csv
	SheetName  string
}

// AnalysisConfig holds the statistical thresholds of a run.
type AnalysisConfig struct {
	Alpha            float64 // family-wise significance level
	MinCorrelationN  int     // minimum pairs for the duration correlation
	MaxIterations    int     // regression solver cap
	OutlierThreshold float64 // standardized residual bound
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			Host:    getEnvOrDefault("DB_HOST", "localhost"),
			Port:    getEnvIntOrDefault("DB_PORT", 5432),
			User:    getEnvOrDefault("DB_USER", "cohortstat"),
			Name:    getEnvOrDefault("DB_NAME", "cohortstat"),
			SSLMode: getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Data: DataConfig{
			SourceFile: os.Getenv("VISIT_SOURCE_FILE"),
			SheetName:  getEnvOrDefault("VISIT_SOURCE_SHEET", "Sheet1"),
		},
		Analysis: AnalysisConfig{
			Alpha:            getEnvFloatOrDefault("ANALYSIS_ALPHA", 0.05),
			MinCorrelationN:  getEnvIntOrDefault("ANALYSIS_MIN_CORRELATION_N", 10),
			MaxIterations:    getEnvIntOrDefault("ANALYSIS_MAX_ITERATIONS", 100),
			OutlierThreshold: getEnvFloatOrDefault("ANALYSIS_OUTLIER_THRESHOLD", 2.5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return errors.New(errors.CodeConfig, "ANALYSIS_ALPHA must be in (0, 1)")
	}
	if c.Analysis.MaxIterations < 1 {
		return errors.New(errors.CodeConfig, "ANALYSIS_MAX_ITERATIONS must be positive")
	}
	if c.Analysis.OutlierThreshold <= 0 {
		return errors.New(errors.CodeConfig, "ANALYSIS_OUTLIER_THRESHOLD must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

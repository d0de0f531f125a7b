// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the application configuration. It is passed explicitly
// into each component's constructor; no package reads process-wide state
// after load time.
type Config struct {
	// Data layout
	DataDir       string // Root data directory
	BronzeDir     string // Raw input files
	SilverDir     string // Cleaned per-entity snapshots
	GoldDir       string // Dimensional snapshots
	QuarantineDir string // Failed-row files, keyed by run id

	// Source workbook read once per run
	SourceFile string

	// Analytics store (DuckDB database file; empty means in-memory)
	StorePath string

	// Silver stage fan-out
	WorkerPoolSize int // 0 means use runtime.NumCPU()

	// Quality gate policy: when true a gate failure halts the run,
	// otherwise failing rows are quarantined and the run proceeds.
	GateBlocking bool

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		DataDir:        dataDir,
		BronzeDir:      getEnv("BRONZE_DIR", filepath.Join(dataDir, "bronze")),
		SilverDir:      getEnv("SILVER_DIR", filepath.Join(dataDir, "silver")),
		GoldDir:        getEnv("GOLD_DIR", filepath.Join(dataDir, "gold")),
		QuarantineDir:  getEnv("QUARANTINE_DIR", filepath.Join(dataDir, "quarantine")),
		SourceFile:     getEnv("SOURCE_FILE", filepath.Join(dataDir, "bronze", "student_evaluation_raw.xlsx")),
		StorePath:      getEnv("STORE_PATH", filepath.Join(dataDir, "db", "analytics.duckdb")),
		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 0),
		GateBlocking:   getEnvAsBool("GATE_BLOCKING", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.SourceFile == "" {
		return errors.New("source file path is required")
	}

	if c.SilverDir == "" || c.GoldDir == "" || c.QuarantineDir == "" {
		return errors.New("silver, gold and quarantine directories are required")
	}

	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	return nil
}

// EnsureDirs creates the output directories if they do not exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.SilverDir, c.GoldDir, c.QuarantineDir, filepath.Dir(c.StorePath)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

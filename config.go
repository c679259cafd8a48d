package foundry

import (
	"time"
)

// Config consolidates engine settings
type Config struct {
	Database DatabaseConfig `json:"database"`
	Query    QueryConfig    `json:"query"`
	Batch    BatchConfig    `json:"batch"`
	Model    ModelConfig    `json:"model"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	Timeout         time.Duration `json:"timeout"`
}

// QueryConfig contains query generation and execution settings
type QueryConfig struct {
	DefaultTimeout  time.Duration `json:"defaultTimeout"`
	DefaultPageSize int           `json:"defaultPageSize"`
	MaxPageSize     int           `json:"maxPageSize"`
}

// BatchConfig contains batch orchestration settings
type BatchConfig struct {
	MaxOperations  int           `json:"maxOperations"`
	DefaultTimeout time.Duration `json:"defaultTimeout"`
}

// ModelConfig locates the model document
type ModelConfig struct {
	Path string `json:"path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  25,
			ConnMaxLifetime: 5 * time.Minute,
			Timeout:         30 * time.Second,
		},
		Query: QueryConfig{
			DefaultTimeout:  30 * time.Second,
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Batch: BatchConfig{
			MaxOperations:  100,
			DefaultTimeout: 2 * time.Minute,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Query.DefaultPageSize <= 0 {
		return &ConfigError{Field: "query.defaultPageSize", Message: "must be greater than 0"}
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return &ConfigError{Field: "query.maxPageSize", Message: "must be greater than or equal to defaultPageSize"}
	}
	if c.Batch.MaxOperations <= 0 {
		return &ConfigError{Field: "batch.maxOperations", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}

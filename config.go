package facet

import (
	"time"
)

// Config consolidates settings for the schema service and its supporting
// pieces. The core marshalling types take no configuration; everything here
// feeds the server, the schema sources, and the mutation journal.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Sources SourcesConfig `json:"sources"`
	Journal JournalConfig `json:"journal"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
	MaxBodyBytes    int64         `json:"maxBodyBytes"`
}

// SourcesConfig selects where schema definitions are loaded from.
// Mode is one of "directory", "postgres" or "s3"; only the matching
// sub-config is consulted.
type SourcesConfig struct {
	Mode      string          `json:"mode"`
	Directory DirectoryConfig `json:"directory"`
	Postgres  PostgresConfig  `json:"postgres"`
	S3        S3Config        `json:"s3"`
}

// DirectoryConfig contains filesystem schema source settings
type DirectoryConfig struct {
	Path string `json:"path"`
}

// PostgresConfig contains Postgres connection settings, shared by the
// schema source and the mutation journal
type PostgresConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	Database       string        `json:"database"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	SSLMode        string        `json:"sslMode"`
	Table          string        `json:"table"`
	MaxConnections int           `json:"maxConnections"`
	Timeout        time.Duration `json:"timeout"`
	UseIAM         bool          `json:"useIAM"`
	Region         string        `json:"region"`
}

// S3Config contains object storage settings
type S3Config struct {
	Region   string `json:"region"`
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Endpoint string `json:"endpoint"`
}

// JournalConfig contains mutation journal settings. The journal records
// applied mutations in Postgres and periodically flushes them to object
// storage as Parquet via an embedded DuckDB instance.
type JournalConfig struct {
	Enabled        bool           `json:"enabled"`
	Postgres       PostgresConfig `json:"postgres"`
	S3             S3Config       `json:"s3"`
	Flush          FlushConfig    `json:"flush"`
	DuckDBPath     string         `json:"duckdbPath"`
	DuckDBMemoryMB int            `json:"duckdbMemoryMB"`
	DuckDBThreads  int            `json:"duckdbThreads"`
}

// FlushConfig contains the thresholds that trigger a journal flush
type FlushConfig struct {
	MinRecords int   `json:"minRecords"`
	MaxAgeMs   int64 `json:"maxAgeMs"`
	BatchSize  int   `json:"batchSize"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	Development bool   `json:"development"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1024 * 1024, // 1MB
		},
		Sources: SourcesConfig{
			Mode: "directory",
			Directory: DirectoryConfig{
				Path: "./schemas",
			},
			Postgres: PostgresConfig{
				Host:           "localhost",
				Port:           5432,
				SSLMode:        "require",
				Table:          "facet_schemas",
				MaxConnections: 10,
				Timeout:        30 * time.Second,
			},
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "schemas/",
			},
		},
		Journal: JournalConfig{
			Enabled: false,
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "require",
				Table:   "change_journal",
				Timeout: 30 * time.Second,
			},
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "journal/",
			},
			Flush: FlushConfig{
				MinRecords: 500,
				MaxAgeMs:   60000,
				BatchSize:  1000,
			},
			DuckDBMemoryMB: 512,
			DuckDBThreads:  2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 1 and 65535"}
	}

	switch c.Sources.Mode {
	case "directory", "postgres", "s3":
	default:
		return &ConfigError{Field: "sources.mode", Message: "must be one of directory, postgres, s3"}
	}

	if c.Sources.Mode == "directory" && c.Sources.Directory.Path == "" {
		return &ConfigError{Field: "sources.directory.path", Message: "must not be empty"}
	}

	if c.Sources.Mode == "s3" && c.Sources.S3.Bucket == "" {
		return &ConfigError{Field: "sources.s3.bucket", Message: "must not be empty"}
	}

	if c.Journal.Enabled {
		if c.Journal.Flush.MinRecords <= 0 {
			return &ConfigError{Field: "journal.flush.minRecords", Message: "must be greater than 0"}
		}
		if c.Journal.Flush.MaxAgeMs <= 0 {
			return &ConfigError{Field: "journal.flush.maxAgeMs", Message: "must be greater than 0"}
		}
		if c.Journal.Flush.BatchSize <= 0 {
			return &ConfigError{Field: "journal.flush.batchSize", Message: "must be greater than 0"}
		}
		if c.Journal.S3.Bucket == "" {
			return &ConfigError{Field: "journal.s3.bucket", Message: "must not be empty"}
		}
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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Constants for default paths
const (
	defaultUploadPath = "./uploads"
	defaultConfigPath = "./config/config.json"
)

const defaultIDLength = 16

// Storage backend names
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// S3Config holds the settings for the S3-compatible blob backend
type S3Config struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

// Config represents the application configuration
type Config struct {
	Port           int      `json:"port"`               // HTTP listen port
	BaseURL        string   `json:"base_url"`           // Base URL for share links
	MaxSize        float64  `json:"max_size_mib"`       // Maximum payload size in MiB
	RetentionHours int      `json:"retention_hours"`    // Retention window in hours
	SweepInterval  int      `json:"sweep_interval_min"` // How often the sweeper runs (minutes)
	SweepEnabled   bool     `json:"sweep_enabled"`      // Whether the background sweeper runs
	IDLength       int      `json:"id_length"`          // Length of the share token
	UploadPath     string   `json:"upload_path"`        // Blob directory for the fs backend
	SQLitePath     string   `json:"sqlite_path"`        // Metadata index database
	Storage        string   `json:"storage"`            // Blob backend: "fs" or "s3"
	S3             S3Config `json:"s3"`
}

// DefaultConfig provides default config values
var defaultConfig = Config{
	Port:           8080,
	BaseURL:        "http://localhost:8080/", // Change to your domain in production
	MaxSize:        6.0,                      // 6 MiB
	RetentionHours: 24,
	SweepInterval:  60, // Sweep once per hour
	SweepEnabled:   true,
	IDLength:       defaultIDLength,
	UploadPath:     defaultUploadPath,
	SQLitePath:     "./data/vanish.db",
	Storage:        StorageFS,
}

// Load reads the configuration from the default path, falling back to
// defaults when no config file exists.
func Load() (*Config, error) {
	return LoadFrom(defaultConfigPath)
}

// LoadFrom loads a configuration from file
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		cfg := defaultConfig
		return &cfg, nil
	}

	cfg := defaultConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("max_size_mib must be greater than 0")
	}
	if c.RetentionHours <= 0 {
		return fmt.Errorf("retention_hours must be greater than 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval_min must be greater than 0")
	}
	if c.IDLength < 8 {
		return fmt.Errorf("id_length must be at least 8")
	}
	if c.Storage != StorageFS && c.Storage != StorageS3 {
		return fmt.Errorf("storage must be %q or %q", StorageFS, StorageS3)
	}
	if c.Storage == StorageS3 && (c.S3.Endpoint == "" || c.S3.Bucket == "") {
		return fmt.Errorf("s3 storage requires endpoint and bucket")
	}
	return nil
}

func (c *Config) MaxSizeToBytes() int64 {
	return int64(c.MaxSize * 1024 * 1024)
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// SweepIntervalDuration returns the sweep interval as a duration.
func (c *Config) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Minute
}

package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Quota       QuotaConfig       `toml:"quota"`
	Sync        SyncConfig        `toml:"sync"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	YouTube YouTubeConfig `toml:"youtube"`
}

// YouTubeConfig contains Google OAuth client credentials for the YouTube Data API.
type YouTubeConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"`
}

// Configured reports whether an OAuth client has been set up.
func (c YouTubeConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
//
// APIToken guards the JSON sync endpoints; an empty value disables the check.
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	APIToken string `toml:"api_token"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// QuotaConfig controls the daily unit budget and call scheduling.
type QuotaConfig struct {
	DailyLimit     int `toml:"daily_limit"`
	PauseThreshold int `toml:"pause_threshold"`
	MaxConcurrent  int `toml:"max_concurrent"`
	MinIntervalMS  int `toml:"min_interval_ms"`
	MaxRetries     int `toml:"max_retries"`
}

// MinInterval returns the minimum spacing between remote calls.
func (c QuotaConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// SyncConfig controls batch sizes and review thresholds for sync jobs.
type SyncConfig struct {
	BatchSize       int    `toml:"batch_size"`
	ErrorThreshold  int    `toml:"error_threshold"`
	BackupDir       string `toml:"backup_dir"`
	PlaylistPrivacy string `toml:"playlist_privacy"`
	PollIntervalMS  int    `toml:"poll_interval_ms"`
}

// PollInterval returns the delay between batches in `sync run` and the dashboard.
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks numeric settings that would otherwise stall the sync engine.
func (c *Config) Validate() error {
	switch {
	case c.Quota.DailyLimit <= 0:
		return fmt.Errorf("%w: quota.daily_limit must be positive", ErrInvalidConfig)
	case c.Quota.PauseThreshold < 0 || c.Quota.PauseThreshold >= c.Quota.DailyLimit:
		return fmt.Errorf("%w: quota.pause_threshold must be between 0 and daily_limit", ErrInvalidConfig)
	case c.Quota.MaxConcurrent <= 0:
		return fmt.Errorf("%w: quota.max_concurrent must be positive", ErrInvalidConfig)
	case c.Sync.BatchSize <= 0:
		return fmt.Errorf("%w: sync.batch_size must be positive", ErrInvalidConfig)
	case c.Sync.ErrorThreshold <= 0:
		return fmt.Errorf("%w: sync.error_threshold must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes the config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig describes the household backend.
type ServerConfig struct {
	// BaseURL is the root URL of the REST API (e.g., https://home.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WebSocketPath is appended to BaseURL (with ws/wss scheme) for the
	// push channel.
	WebSocketPath string `mapstructure:"websocket_path" yaml:"websocket_path"`

	// RequestTimeoutSec bounds a single REST request.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`

	// MaxRetries is how many times a retryable REST failure is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RequestsPerSecond caps outgoing REST traffic. Zero disables the limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// SyncConfig tunes caching, polling and the push channel.
type SyncConfig struct {
	NotificationsStaleSec int `mapstructure:"notifications_stale_sec" yaml:"notifications_stale_sec"`
	MessagesStaleSec      int `mapstructure:"messages_stale_sec" yaml:"messages_stale_sec"`
	HouseholdsStaleSec    int `mapstructure:"households_stale_sec" yaml:"households_stale_sec"`
	PollIntervalSec       int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	CacheSize             int `mapstructure:"cache_size" yaml:"cache_size"`

	ReconnectBaseMs     int `mapstructure:"reconnect_base_ms" yaml:"reconnect_base_ms"`
	ReconnectCapMs      int `mapstructure:"reconnect_cap_ms" yaml:"reconnect_cap_ms"`
	ReconnectMaxAttempt int `mapstructure:"reconnect_max_attempts" yaml:"reconnect_max_attempts"`
	HeartbeatSec        int `mapstructure:"heartbeat_sec" yaml:"heartbeat_sec"`

	DraftDebounceMs int `mapstructure:"draft_debounce_ms" yaml:"draft_debounce_ms"`
}

// StorageConfig locates the local durable key-value store.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences. Values stored in the
// local key-value store take precedence once the user changes them.
type DisplayConfig struct {
	Theme         string `mapstructure:"theme" yaml:"theme"`
	HighContrast  bool   `mapstructure:"high_contrast" yaml:"high_contrast"`
	ReducedMotion bool   `mapstructure:"reduced_motion" yaml:"reduced_motion"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`

	// Offline replaces the backend with the in-memory mock.
	Offline bool `mapstructure:"offline" yaml:"offline"`
}

// Seconds converts an integer seconds setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Millis converts an integer milliseconds setting into a duration.
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ConfigDir returns ~/.config/homesync, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "homesync")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/homesync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaults lists every key with its default value. Registering all keys
// with viper is also what makes HOMESYNC_* environment overrides visible
// to Unmarshal.
func defaults() map[string]any {
	return map[string]any{
		"server.base_url":            "http://localhost:8080",
		"server.websocket_path":      "/ws",
		"server.request_timeout_sec": 30,
		"server.max_retries":         3,
		"server.requests_per_second": 10.0,

		"sync.notifications_stale_sec": 60,
		"sync.messages_stale_sec":      30,
		"sync.households_stale_sec":    300,
		"sync.poll_interval_sec":       15,
		"sync.cache_size":              128,
		"sync.reconnect_base_ms":       1000,
		"sync.reconnect_cap_ms":        30000,
		"sync.reconnect_max_attempts":  5,
		"sync.heartbeat_sec":           30,
		"sync.draft_debounce_ms":       500,

		"storage.path": filepath.Join(ConfigDir(), "homesync.db"),

		"log.level":  "info",
		"log.format": "json",
		"log.file":   filepath.Join(ConfigDir(), "homesync.log"),

		"display.theme":          "default",
		"display.high_contrast":  false,
		"display.reduced_motion": false,

		"offline": false,
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("HOMESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first so HOMESYNC_*
// variables defined there override the file. A missing config file yields
// the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings that would break the sync layer.
func (c *AppConfig) Validate() error {
	if !c.Offline && c.Server.BaseURL == "" {
		return errors.New("server.base_url is required unless offline is set")
	}
	if c.Sync.ReconnectBaseMs <= 0 || c.Sync.ReconnectCapMs < c.Sync.ReconnectBaseMs {
		return fmt.Errorf(
			"reconnect backoff base %dms / cap %dms is invalid",
			c.Sync.ReconnectBaseMs, c.Sync.ReconnectCapMs,
		)
	}
	if c.Sync.ReconnectMaxAttempt < 0 {
		return errors.New("sync.reconnect_max_attempts must not be negative")
	}
	if c.Sync.HeartbeatSec <= 0 {
		return errors.New("sync.heartbeat_sec must be positive")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("sync", cfg.Sync)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)
	v.Set("offline", cfg.Offline)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when Load is given no explicit path and the file exists.
const DefaultFile = "questboard.yaml"

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string         `yaml:"app_name"`
	Environment string         `yaml:"environment"`
	Remote      RemoteConfig   `yaml:"remote"`
	Cache       CacheConfig    `yaml:"cache"`
	Snapshot    SnapshotConfig `yaml:"snapshot"`
	Engine      EngineConfig   `yaml:"engine"`
	Refresh     RefreshConfig  `yaml:"refresh"`
	HTTP        HTTPConfig     `yaml:"http"`
	Context     ContextConfig  `yaml:"context"`
	Logger      LoggerConfig   `yaml:"logger"`
}

type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url"`
	UserID        string        `yaml:"user_id"`
	APIKey        string        `yaml:"api_key"`
	ClientID      string        `yaml:"client_id"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	Burst         int           `yaml:"burst"`
}

type CacheConfig struct {
	Dir           string        `yaml:"dir"`
	ContentMaxAge time.Duration `yaml:"content_max_age"`
}

type SnapshotConfig struct {
	Path   string `yaml:"path"`
	Retain int    `yaml:"retain"`
}

type EngineConfig struct {
	BaseMaxHealth float64 `yaml:"base_max_health"`
	BaseMaxMana   float64 `yaml:"base_max_mana"`
}

type RefreshConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxConn      int           `yaml:"max_conn"`
}

type ContextConfig struct {
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		AppName:     "questboard",
		Environment: "development",
		Remote: RemoteConfig{
			BaseURL:       "https://habitica.com",
			Timeout:       15 * time.Second,
			RatePerMinute: 30,
			Burst:         5,
		},
		Cache: CacheConfig{
			Dir:           defaultCacheDir(),
			ContentMaxAge: 24 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Retain: 5,
		},
		Engine: EngineConfig{
			BaseMaxHealth: 50,
			BaseMaxMana:   30,
		},
		Refresh: RefreshConfig{
			Enabled:         true,
			Interval:        5 * time.Minute,
			MonitorInterval: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         "8087",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Context: ContextConfig{
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logger: LoggerConfig{
			Level:      "info",
			Encoding:   "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// Load applies, in order: defaults, the YAML file at path (or DefaultFile when present),
// a .env file, and environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	_ = godotenv.Load(".env")
	cfg.applyEnv()

	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = filepath.Join(cfg.Cache.Dir, "snapshots.db")
	}
	if cfg.Remote.ClientID == "" && cfg.Remote.UserID != "" {
		cfg.Remote.ClientID = cfg.Remote.UserID + "-" + cfg.AppName
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate reports settings without which the remote service cannot be reached.
func (c *Config) Validate() error {
	var missing []string
	if c.Remote.UserID == "" {
		missing = append(missing, "HABITICA_USER_ID")
	}
	if c.Remote.APIKey == "" {
		missing = append(missing, "HABITICA_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %v", missing)
	}
	return nil
}

func (c *Config) readFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppName = getString("APP_NAME", c.AppName)
	c.Environment = getString("APP_ENV", c.Environment)

	c.Remote.BaseURL = getString("HABITICA_BASE_URL", c.Remote.BaseURL)
	c.Remote.UserID = getString("HABITICA_USER_ID", c.Remote.UserID)
	c.Remote.APIKey = getString("HABITICA_API_KEY", c.Remote.APIKey)
	c.Remote.ClientID = getString("HABITICA_CLIENT_ID", c.Remote.ClientID)
	c.Remote.Timeout = getDuration("HABITICA_TIMEOUT", c.Remote.Timeout)
	c.Remote.RatePerMinute = getInt("HABITICA_RATE_PER_MINUTE", c.Remote.RatePerMinute)
	c.Remote.Burst = getInt("HABITICA_BURST", c.Remote.Burst)

	c.Cache.Dir = getString("CACHE_DIR", c.Cache.Dir)
	c.Cache.ContentMaxAge = getDuration("CONTENT_MAX_AGE", c.Cache.ContentMaxAge)

	c.Snapshot.Path = getString("SNAPSHOT_PATH", c.Snapshot.Path)
	c.Snapshot.Retain = getInt("SNAPSHOT_RETAIN", c.Snapshot.Retain)

	c.Engine.BaseMaxHealth = getFloat("ENGINE_BASE_MAX_HEALTH", c.Engine.BaseMaxHealth)
	c.Engine.BaseMaxMana = getFloat("ENGINE_BASE_MAX_MANA", c.Engine.BaseMaxMana)

	c.Refresh.Enabled = getBool("REFRESH_ENABLED", c.Refresh.Enabled)
	c.Refresh.Interval = getDuration("REFRESH_INTERVAL", c.Refresh.Interval)
	c.Refresh.MonitorInterval = getDuration("MONITOR_INTERVAL", c.Refresh.MonitorInterval)

	c.HTTP.Host = getString("SERVER_HOST", c.HTTP.Host)
	c.HTTP.Port = getString("SERVER_PORT", c.HTTP.Port)
	c.HTTP.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.IdleTimeout = getDuration("SERVER_IDLE_TIMEOUT", c.HTTP.IdleTimeout)
	c.HTTP.MaxConn = getInt("SERVER_MAX_CONN", c.HTTP.MaxConn)

	c.Context.RequestTimeout = getDuration("REQUEST_TIMEOUT_SECONDS", c.Context.RequestTimeout)
	c.Context.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT_SECONDS", c.Context.ShutdownTimeout)

	c.Logger.Level = getString("LOG_LEVEL", c.Logger.Level)
	c.Logger.Encoding = getString("LOG_ENCODING", c.Logger.Encoding)
	c.Logger.File = getString("LOG_FILE", c.Logger.File)
	c.Logger.MaxSizeMB = getInt("LOG_MAX_SIZE_MB", c.Logger.MaxSizeMB)
	c.Logger.MaxBackups = getInt("LOG_MAX_BACKUPS", c.Logger.MaxBackups)
	c.Logger.MaxAgeDays = getInt("LOG_MAX_AGE_DAYS", c.Logger.MaxAgeDays)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "questboard")
	}
	return filepath.Join(".", "data")
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/MrEthical07/goSession/session"
)

// Config holds everything [Builder.Build] needs. Treat it as immutable once built.
//
// Values can be filled in code, starting from [DefaultConfig], or loaded from YAML and
// the environment with [LoadConfig].
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Session SessionConfig `yaml:"session"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig locates the authentication backend.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url" env:"GOSESSION_BACKEND_URL"`
	Timeout time.Duration `yaml:"timeout" env:"GOSESSION_BACKEND_TIMEOUT" env-default:"15s"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls token storage keys and proactive refresh.
type SessionConfig struct {
	AccessKey       string        `yaml:"access_key" env:"GOSESSION_ACCESS_KEY" env-default:"access_token"`
	RefreshKey      string        `yaml:"refresh_key" env:"GOSESSION_REFRESH_KEY" env-default:"refresh_token"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"GOSESSION_REFRESH_INTERVAL" env-default:"25m"`
	// ExpiryLead, when > 0, refreshes that long before a JWT access token's exp claim
	// if that comes sooner than RefreshInterval.
	ExpiryLead time.Duration `yaml:"expiry_lead" env:"GOSESSION_EXPIRY_LEAD"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageFile   = "file"
)

// StorageConfig selects where the token pair is kept. A KV or Redis client passed to
// the [Builder] takes precedence over Driver.
type StorageConfig struct {
	Driver   string      `yaml:"driver" env:"GOSESSION_STORAGE" env-default:"memory"`
	FilePath string      `yaml:"file_path" env:"GOSESSION_STORAGE_FILE"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Storage.Driver is "redis".
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"GOSESSION_REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"GOSESSION_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"GOSESSION_REDIS_DB"`
	Prefix   string        `yaml:"prefix" env:"GOSESSION_REDIS_PREFIX" env-default:"gosession"`
	TTL      time.Duration `yaml:"ttl" env:"GOSESSION_REDIS_TTL"`
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig sizes the transition queue between the state machine and subscribers.
//
// Applying a transition never waits for subscribers, and a subscriber may call back into
// the Orchestrator. With DropIfFull, transitions beyond BufferSize waiting for delivery
// are dropped and counted; otherwise the queue grows past BufferSize and nothing is lost.
type NotifyConfig struct {
	BufferSize int  `yaml:"buffer_size" env:"GOSESSION_NOTIFY_BUFFER" env-default:"256"`
	DropIfFull bool `yaml:"drop_if_full" env:"GOSESSION_NOTIFY_DROP"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"GOSESSION_METRICS"`
	EnableLatencyHistograms bool `yaml:"latency_histograms" env:"GOSESSION_METRICS_LATENCY"`
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig is read by [NewLogger]. The orchestrator itself only takes a *slog.Logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"GOSESSION_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"GOSESSION_LOG_FORMAT" env-default:"text"`
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			AccessKey:       session.DefaultAccessKey,
			RefreshKey:      session.DefaultRefreshKey,
			RefreshInterval: session.DefaultRefreshInterval,
		},
		Storage: StorageConfig{
			Driver: StorageMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "gosession",
			},
		},
		Notify: NotifyConfig{
			BufferSize: 256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// LoadConfig reads path as YAML and overlays GOSESSION_* environment variables. An
// empty path reads the environment only. The result is validated.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Backend
	if c.Backend.BaseURL == "" {
		return errors.New("Backend BaseURL is required")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return errors.New("Backend BaseURL must be http or https")
	}
	if c.Backend.Timeout < 0 {
		return errors.New("Backend Timeout must be >= 0")
	}

	// Session
	if c.Session.AccessKey == "" || c.Session.RefreshKey == "" {
		return errors.New("Session AccessKey and RefreshKey must be set")
	}
	if c.Session.AccessKey == c.Session.RefreshKey {
		return errors.New("Session AccessKey and RefreshKey must differ")
	}
	if c.Session.RefreshInterval <= 0 {
		return errors.New("Session RefreshInterval must be > 0")
	}
	if c.Session.ExpiryLead < 0 {
		return errors.New("Session ExpiryLead must be >= 0")
	}

	// Storage
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("Storage Redis Addr is required for the redis driver")
		}
		if c.Storage.Redis.TTL < 0 {
			return errors.New("Storage Redis TTL must be >= 0")
		}
	case StorageFile:
		if c.Storage.FilePath == "" {
			return errors.New("Storage FilePath is required for the file driver")
		}
	default:
		return errors.New("Storage Driver must be 'memory', 'redis' or 'file'")
	}

	// Notify
	if c.Notify.BufferSize <= 0 {
		return errors.New("Notify BufferSize must be > 0")
	}

	// Log
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("Log Format must be 'text' or 'json'")
	}

	return nil
}

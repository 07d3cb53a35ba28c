package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/pucks-replay/internal/notify"
	"github.com/dgnsrekt/pucks-replay/internal/registry"
	"github.com/dgnsrekt/pucks-replay/internal/upstream"
)

type Config struct {
	Upstream upstream.Config       `mapstructure:"upstream"`
	Session  SessionConfig         `mapstructure:"session"`
	Sink     SinkConfig            `mapstructure:"sink"`
	RTDB     RTDBConfig            `mapstructure:"rtdb"`
	Archive  ArchiveConfig         `mapstructure:"archive"`
	Spool    SpoolConfig           `mapstructure:"spool"`
	Notify   notify.Config         `mapstructure:"notify"`
	Server   ServerConfig          `mapstructure:"server"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Roster   []registry.EntityInfo `mapstructure:"roster"`
}

type SessionConfig struct {
	ReplayThreshold int `mapstructure:"replay_threshold"`
}

type SinkConfig struct {
	LiveQueue     int           `mapstructure:"live_queue"`
	ReplayQueue   int           `mapstructure:"replay_queue"`
	ReplayWorkers int           `mapstructure:"replay_workers"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RTDBConfig configures the Firebase Realtime Database sink. The sink is
// active whenever a database URL is known, either set directly or derived
// from the service account's project id.
type RTDBConfig struct {
	URL            string        `mapstructure:"url"`
	ServiceAccount string        `mapstructure:"service_account"` // raw FIREBASE_CONFIG JSON
	AuthToken      string        `mapstructure:"auth_token"`
	RatePerSecond  int           `mapstructure:"rate_per_second"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

func (c RTDBConfig) Enabled() bool {
	return c.URL != ""
}

// UsesServiceAccount reports whether writes authenticate with OAuth tokens
// minted from the service account. A database secret in AuthToken wins.
func (c RTDBConfig) UsesServiceAccount() bool {
	return c.AuthToken == "" && c.ServiceAccount != ""
}

type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Path        string `mapstructure:"path"`
	Compression string `mapstructure:"compression"`
}

type SpoolConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("upstream.url", "wss://pucks.io/ws/")
	v.SetDefault("upstream.origin", "")
	v.SetDefault("upstream.reconnect_delay", "5s")
	v.SetDefault("upstream.handshake_timeout", "10s")
	v.SetDefault("upstream.read_timeout", "90s")
	v.SetDefault("upstream.ping_interval", "30s")
	v.SetDefault("upstream.max_message_size", 1<<20)
	v.SetDefault("session.replay_threshold", 50)
	v.SetDefault("sink.live_queue", 64)
	v.SetDefault("sink.replay_queue", 16)
	v.SetDefault("sink.replay_workers", 2)
	v.SetDefault("sink.timeout", "30s")
	v.SetDefault("rtdb.url", "")
	v.SetDefault("rtdb.service_account", "")
	v.SetDefault("rtdb.auth_token", "")
	v.SetDefault("rtdb.rate_per_second", 20)
	v.SetDefault("rtdb.timeout", "10s")
	v.SetDefault("rtdb.retry_count", 3)
	v.SetDefault("rtdb.retry_delay", "1s")
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", "data/replays.db")
	v.SetDefault("archive.compression", "zstd")
	v.SetDefault("spool.enabled", false)
	v.SetDefault("spool.directory", "data/replays")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.topic", "")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "goal_net")
	v.SetDefault("notify.token", "")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.live_enabled", true)
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("PUCKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Variables the hosted bot has always been deployed with
	_ = v.BindEnv("rtdb.url", "PUCKS_RTDB_URL", "FIREBASE_DB_URL")
	_ = v.BindEnv("rtdb.service_account", "PUCKS_RTDB_SERVICE_ACCOUNT", "FIREBASE_CONFIG")
	_ = v.BindEnv("rtdb.auth_token", "PUCKS_RTDB_AUTH_TOKEN", "FIREBASE_AUTH_TOKEN")
	_ = v.BindEnv("server.port", "PUCKS_SERVER_PORT", "PORT")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// resolve fills values derived from other settings. Parse failures are left
// for Validate to report.
func (c *Config) resolve() {
	if c.RTDB.ServiceAccount == "" || c.RTDB.URL != "" {
		return
	}
	if sa, err := ParseServiceAccount(c.RTDB.ServiceAccount); err == nil {
		c.RTDB.URL = sa.DatabaseURL()
	}
}

// Package config loads daemon configuration the way the rest of this
// module's lineage does: viper, reading a YAML file with environment
// variable overrides and sane defaults. Group parallelism, the
// pause-on-failure flag and the completion callback are additionally
// hot-reloadable: OnChange registers a callback invoked whenever the
// underlying file changes, so an operator can retune concurrency
// without restarting the daemon.
package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/taskd-project/taskd/internal/logger"
)

type Config struct {
	PueueDirectory       string
	DefaultParallelTasks uint
	Groups               map[string]uint
	PauseOnFailure       bool
	Callback             string
	TickInterval         time.Duration

	Server  ServerConfig
	Redis   RedisConfig
	Metrics MetricsConfig
	Auth    AuthConfig

	LogLevel string
}

type ServerConfig struct {
	Host         string
	Port         int
	AdminPort    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimitRPS int
}

// RedisConfig is consulted only when the optional event mirror
// (internal/events.RedisPubSub) is enabled; the daemon itself never
// depends on Redis being reachable.
type RedisConfig struct {
	Enabled           bool
	Addr              string
	Password          string
	DB                int
	HeartbeatInterval time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string
}

// Load reads configuration from ./config.yaml (or /etc/taskd/config.yaml),
// falling back to defaults, with TASKD_-prefixed environment variables
// taking precedence over both.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/taskd")

	setDefaults()

	viper.SetEnvPrefix("TASKD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// OnChange registers fn to run every time the config file is rewritten
// on disk. Load must have been called first so viper knows which file
// to watch. fn receives the freshly reloaded Config; a parse failure on
// reload is logged and the previous config is left untouched.
func OnChange(fn func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			logger.Error().Err(err).Msg("failed to reload config")
			return
		}
		fn(&cfg)
	})
	viper.WatchConfig()
}

func setDefaults() {
	viper.SetDefault("pueuedirectory", "")
	viper.SetDefault("defaultparalleltasks", 1)
	viper.SetDefault("groups", map[string]uint{})
	viper.SetDefault("pauseonfailure", false)
	viper.SetDefault("callback", "")
	viper.SetDefault("tickinterval", 100*time.Millisecond)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.adminport", 8081)
	viper.SetDefault("server.readtimeout", 30*time.Second)
	viper.SetDefault("server.writetimeout", 30*time.Second)
	viper.SetDefault("server.idletimeout", 120*time.Second)
	viper.SetDefault("server.ratelimitrps", 0)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.heartbeatinterval", 5*time.Second)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})

	viper.SetDefault("loglevel", "info")
}

package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
	Branding BrandingConfig `mapstructure:"branding"`
	Poll     PollConfig     `mapstructure:"poll"`
	Actions  ActionsConfig  `mapstructure:"actions"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type APIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type AuthConfig struct {
	// Role assumed before anyone logs in or enters tokens.
	DefaultRole string `mapstructure:"default_role"`
}

type SessionConfig struct {
	// File path used by the default state-file backend.
	File string `mapstructure:"file"`

	// When addr is set the session record lives in redis instead of the
	// local file (for replicated console deployments).
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisKey      string `mapstructure:"redis_key"`
}

type BrandingConfig struct {
	Name         string `mapstructure:"name"`
	LogoURL      string `mapstructure:"logo_url"`
	SupportEmail string `mapstructure:"support_email"`
	PrimaryColor string `mapstructure:"primary_color"`
	TenantID     string `mapstructure:"tenant_id"`
	Environment  string `mapstructure:"environment"`
}

type PollConfig struct {
	StatusMs    int `mapstructure:"status_ms"`
	ActivityMs  int `mapstructure:"activity_ms"`
	PortfolioMs int `mapstructure:"portfolio_ms"`
	BalancesMs  int `mapstructure:"balances_ms"`
	SignalsMs   int `mapstructure:"signals_ms"`
	OppsMs      int `mapstructure:"opps_ms"`
	CapitalMs   int `mapstructure:"capital_ms"`
	LogsMs      int `mapstructure:"logs_ms"`
}

type ActionsConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (p PollConfig) Interval(ms int) time.Duration {
	if ms <= 0 {
		ms = 15000
	}
	return time.Duration(ms) * time.Millisecond
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. LUNIA_API_BASE_URL
	viper.SetEnvPrefix("lunia")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "7080")
	viper.SetDefault("api.base_url", "http://localhost:8080")
	viper.SetDefault("api.timeout_ms", 0)
	viper.SetDefault("auth.default_role", "USER")
	viper.SetDefault("session.file", "./state/session.json")
	viper.SetDefault("session.redis_key", "lunia:console:session")
	viper.SetDefault("branding.name", "Lunia Console")
	viper.SetDefault("branding.environment", "production")
	viper.SetDefault("poll.status_ms", 10000)
	viper.SetDefault("poll.activity_ms", 10000)
	viper.SetDefault("poll.portfolio_ms", 15000)
	viper.SetDefault("poll.balances_ms", 15000)
	viper.SetDefault("poll.signals_ms", 20000)
	viper.SetDefault("poll.opps_ms", 20000)
	viper.SetDefault("poll.capital_ms", 30000)
	viper.SetDefault("poll.logs_ms", 10000)
	viper.SetDefault("actions.qps", 5)
	viper.SetDefault("actions.burst", 10)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

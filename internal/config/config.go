// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Notifier  NotifierConfig  `yaml:"notifier" mapstructure:"notifier"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures document retrieval and retries.
type FetchConfig struct {
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs      int      `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	JitterFraction   float64  `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	HostIntervalMs   int      `yaml:"host_interval_ms" mapstructure:"host_interval_ms"`
	UserAgents       []string `yaml:"user_agents" mapstructure:"user_agents"`
	AuxEndpoint      string   `yaml:"aux_endpoint" mapstructure:"aux_endpoint"`
	AuxTimeoutSecs   int      `yaml:"aux_timeout_secs" mapstructure:"aux_timeout_secs"`
	BreakerThreshold int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SchedulerConfig configures priority scoring and refresh cycles.
type SchedulerConfig struct {
	TargetIntervalHours int     `yaml:"target_interval_hours" mapstructure:"target_interval_hours"`
	LookbackDays        int     `yaml:"lookback_days" mapstructure:"lookback_days"`
	BatchSize           int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrent       int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	DeadlineSecs        int     `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	ItemTimeoutSecs     int     `yaml:"item_timeout_secs" mapstructure:"item_timeout_secs"`
	ItemDelayMinMs      int     `yaml:"item_delay_min_ms" mapstructure:"item_delay_min_ms"`
	ItemDelayMaxMs      int     `yaml:"item_delay_max_ms" mapstructure:"item_delay_max_ms"`
	AlertMultiplier     float64 `yaml:"alert_multiplier" mapstructure:"alert_multiplier"`
	RecentChangeBonus   float64 `yaml:"recent_change_bonus" mapstructure:"recent_change_bonus"`
}

// NotifierConfig configures alert delivery.
type NotifierConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port       int    `yaml:"port" mapstructure:"port"`
	CronSecret string `yaml:"cron_secret" mapstructure:"cron_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "pricewatch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_attempts", 5)
	v.SetDefault("fetch.base_delay_ms", 2000)
	v.SetDefault("fetch.jitter_fraction", 0.3)
	v.SetDefault("fetch.host_interval_ms", 2000)
	v.SetDefault("fetch.aux_timeout_secs", 5)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 300)
	v.SetDefault("scheduler.target_interval_hours", 6)
	v.SetDefault("scheduler.lookback_days", 14)
	v.SetDefault("scheduler.batch_size", 25)
	v.SetDefault("scheduler.max_concurrent", 3)
	v.SetDefault("scheduler.deadline_secs", 300)
	v.SetDefault("scheduler.item_timeout_secs", 120)
	v.SetDefault("scheduler.item_delay_min_ms", 500)
	v.SetDefault("scheduler.item_delay_max_ms", 3000)
	v.SetDefault("scheduler.alert_multiplier", 1.5)
	v.SetDefault("scheduler.recent_change_bonus", 3.0)
	v.SetDefault("notifier.timeout_secs", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Scheduler.MaxConcurrent < 1 || c.Scheduler.MaxConcurrent > 20 {
		problems = append(problems, "scheduler.max_concurrent must be between 1 and 20")
	}
	if c.Fetch.MaxAttempts < 1 || c.Fetch.MaxAttempts > 10 {
		problems = append(problems, "fetch.max_attempts must be between 1 and 10")
	}
	if c.Fetch.JitterFraction < 0 || c.Fetch.JitterFraction > 1 {
		problems = append(problems, "fetch.jitter_fraction must be between 0 and 1")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.CronSecret == "" {
			problems = append(problems, "server.cron_secret is required for serve")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Stats      StatsConfig      `yaml:"stats" mapstructure:"stats"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ClassifierConfig selects and bounds the transcript classifier.
type ClassifierConfig struct {
	Provider            string `yaml:"provider" mapstructure:"provider"` // anthropic, openai or none
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts         int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxTokens           int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TranscriptCharLimit int    `yaml:"transcript_char_limit" mapstructure:"transcript_char_limit"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns TimeoutSecs as a duration.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI (or compatible) API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// StatsConfig configures aggregation.
type StatsConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Location resolves Timezone.
func (c StatsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: stats.timezone %q", c.Timezone)
	}
	return loc, nil
}

// NotifyConfig configures event delivery.
type NotifyConfig struct {
	Buffer int        `yaml:"buffer" mapstructure:"buffer"`
	AMQP   AMQPConfig `yaml:"amqp" mapstructure:"amqp"`
}

// AMQPConfig configures event fan-out to a message broker. Empty URL
// disables it.
type AMQPConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	Exchange   string `yaml:"exchange" mapstructure:"exchange"`
	RoutingKey string `yaml:"routing_key" mapstructure:"routing_key"`
}

// ArchiveConfig configures durable write-through storage.
type ArchiveConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"` // none, sqlite or postgres
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	RestoreOnStart bool   `yaml:"restore_on_start" mapstructure:"restore_on_start"`
}

// MonitoringConfig configures quality alerting. Rates are fractions
// (0.3 = 30%); a zero threshold disables that check.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackDays          int     `yaml:"lookback_days" mapstructure:"lookback_days"`
	MinCalls              int     `yaml:"min_calls" mapstructure:"min_calls"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	NegativeRateThreshold float64 `yaml:"negative_rate_threshold" mapstructure:"negative_rate_threshold"`
	MinAverageScore       float64 `yaml:"min_average_score" mapstructure:"min_average_score"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CALLSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("classifier.provider", "anthropic")
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("classifier.max_attempts", 2)
	v.SetDefault("classifier.max_tokens", 2048)
	v.SetDefault("classifier.transcript_char_limit", 12000)
	v.SetDefault("classifier.breaker_threshold", 5)
	v.SetDefault("classifier.breaker_cooldown_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("stats.timezone", "UTC")
	v.SetDefault("notify.buffer", 64)
	v.SetDefault("notify.amqp.url", "")
	v.SetDefault("notify.amqp.exchange", "callscore.events")
	v.SetDefault("notify.amqp.routing_key", "call.analyzed")
	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.database_url", "")
	v.SetDefault("archive.max_conns", 10)
	v.SetDefault("archive.restore_on_start", false)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_days", 1)
	v.SetDefault("monitoring.min_calls", 10)
	v.SetDefault("monitoring.failure_rate_threshold", 0.30)
	v.SetDefault("monitoring.negative_rate_threshold", 0.30)
	v.SetDefault("monitoring.min_average_score", 5.0)

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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir"`
	BotFile   string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// DatabaseConfig locates the local subscriber state database.
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"STATE_DB_PATH"`
	// BusyTimeoutMS is passed to the sqlite busy_timeout pragma.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" envconfig:"STATE_DB_BUSY_TIMEOUT_MS"`
}

// PlanConfig locates the yearly reading plan resource.
type PlanConfig struct {
	Path string `yaml:"path" envconfig:"PLAN_PATH"`
}

// Completion policies applied when a subscriber finishes the plan.
const (
	OnCompleteDeactivate = "deactivate"
	OnCompleteReset      = "reset"
)

// ScheduleConfig controls the daily dispatch cycle.
type ScheduleConfig struct {
	// SendTime is the default "HH:MM" wall-clock time for the daily reminder.
	SendTime string `yaml:"send_time" envconfig:"SEND_TIME"`
	Timezone string `yaml:"timezone" envconfig:"SCHEDULE_TIMEZONE"`
	// OnComplete selects what happens after the last plan day: deactivate|reset.
	OnComplete string `yaml:"on_complete" envconfig:"SCHEDULE_ON_COMPLETE"`
	// SendPoll enables the follow-up "have you read" poll after each reminder.
	SendPoll bool `yaml:"send_poll" envconfig:"SCHEDULE_SEND_POLL"`
}

// DispatchConfig tunes the outbound delivery workers.
type DispatchConfig struct {
	Workers        int     `yaml:"workers" envconfig:"DISPATCH_WORKERS"`
	QueueSize      int     `yaml:"queue_size" envconfig:"DISPATCH_QUEUE_SIZE"`
	MaxRetries     int     `yaml:"max_retries" envconfig:"DISPATCH_MAX_RETRIES"`
	RetryBackoffMS int     `yaml:"retry_backoff_ms" envconfig:"DISPATCH_RETRY_BACKOFF_MS"`
	RatePerSecond  float64 `yaml:"rate_per_second" envconfig:"DISPATCH_RATE_PER_SECOND"`
}

// RateLimitConfig holds settings for inbound command rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// Config aggregates every setting of the bot.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Plan      PlanConfig      `yaml:"plan"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if strings.TrimSpace(cfg.Database.Path) == "" {
		cfg.Database.Path = "data/subscribers.db"
	}
	if cfg.Database.BusyTimeoutMS <= 0 {
		cfg.Database.BusyTimeoutMS = 5000
	}

	if strings.TrimSpace(cfg.Plan.Path) == "" {
		cfg.Plan.Path = "data/plan.csv"
	}

	st := strings.TrimSpace(cfg.Schedule.SendTime)
	if st == "" {
		st = "07:00"
	}
	if _, err := time.Parse("15:04", st); err != nil {
		return fmt.Errorf("invalid schedule.send_time %q; expected HH:MM", cfg.Schedule.SendTime)
	}
	cfg.Schedule.SendTime = st

	tz := strings.TrimSpace(cfg.Schedule.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	cfg.Schedule.Timezone = tz

	oc := strings.ToLower(strings.TrimSpace(cfg.Schedule.OnComplete))
	if oc == "" {
		oc = OnCompleteDeactivate
	}
	switch oc {
	case OnCompleteDeactivate, OnCompleteReset:
	default:
		return fmt.Errorf("invalid schedule.on_complete %q; allowed: deactivate, reset", cfg.Schedule.OnComplete)
	}
	cfg.Schedule.OnComplete = oc

	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = 256
	}
	if cfg.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must be >= 0")
	}
	if cfg.Dispatch.RetryBackoffMS <= 0 {
		cfg.Dispatch.RetryBackoffMS = 2000
	}
	if cfg.Dispatch.RatePerSecond <= 0 {
		cfg.Dispatch.RatePerSecond = 25
	}

	return nil
}

// RetryBackoff returns the dispatch retry backoff as a duration.
func (d DispatchConfig) RetryBackoff() time.Duration {
	return time.Duration(d.RetryBackoffMS) * time.Millisecond
}

// Location resolves the configured timezone. Normalize guarantees validity.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

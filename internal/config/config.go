package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"worklog/internal/model"
)

// Config keeps runtime settings for the work log.
type Config struct {
	StorePath      string `yaml:"store_path" env:"WORKLOG_STORE" env-default:"tasks.json"`
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL" env-default:"worklog.db"`
	TelegramToken  string `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	ReminderTime   string `yaml:"reminder_time" env:"REMINDER_TIME" env-default:"08:00"`
	ReportInterval int    `yaml:"report_interval_hours" env:"REPORT_INTERVAL_HOURS" env-default:"0"`
	Timezone       string `yaml:"timezone" env:"TIMEZONE" env-default:"Local"`
	HTTPAddr       string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`
	WebhookURL     string `yaml:"webhook_url" env:"WEBHOOK_URL"`
}

// Load reads configuration from the optional YAML file at path, then the environment.
// A missing file falls back to environment variables only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		err := cleanenv.ReadConfig(path, &cfg)
		if err == nil {
			return cfg, cfg.validate()
		}
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	c.StorePath = strings.TrimSpace(c.StorePath)
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	if c.StorePath == "" {
		return fmt.Errorf("WORKLOG_STORE must not be empty")
	}
	if _, err := model.ParseTimeOfDay(c.ReminderTime); err != nil || strings.TrimSpace(c.ReminderTime) == "" {
		return fmt.Errorf("REMINDER_TIME: expected HH:MM, got %q", c.ReminderTime)
	}
	if c.ReportInterval < 0 {
		return fmt.Errorf("REPORT_INTERVAL_HOURS must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Interval returns the periodic report interval; zero disables it.
func (c Config) Interval() time.Duration {
	return time.Duration(c.ReportInterval) * time.Hour
}

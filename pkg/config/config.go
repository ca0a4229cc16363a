// Package config loads server configuration from the environment, with
// an optional YAML profile file underneath.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Port              string `yaml:"port"`
	LogLevel          string `yaml:"log_level"`
	LedgerDriver      string `yaml:"ledger_driver"` // file | sqlite | postgres
	LedgerPath        string `yaml:"ledger_path"`
	DatabaseURL       string `yaml:"database_url"`
	AuthSecret        string `yaml:"auth_secret"`
	RedisAddr         string `yaml:"redis_addr"`
	RateRPS           int    `yaml:"rate_rps"`
	RateBurst         int    `yaml:"rate_burst"`
	SweepIntervalSecs int    `yaml:"sweep_interval_secs"`
}

func defaults() Config {
	return Config{
		Port:         "8080",
		LogLevel:     "INFO",
		LedgerDriver: "file",
		LedgerPath:   "data/chain.json",
		RateRPS:      20,
		RateBurst:    40,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables on top.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	overlayString(&cfg.Port, "PORT")
	overlayString(&cfg.LogLevel, "LOG_LEVEL")
	overlayString(&cfg.LedgerDriver, "LEDGER_DRIVER")
	overlayString(&cfg.LedgerPath, "LEDGER_PATH")
	overlayString(&cfg.DatabaseURL, "DATABASE_URL")
	overlayString(&cfg.AuthSecret, "AUTH_SECRET")
	overlayString(&cfg.RedisAddr, "REDIS_ADDR")
	if err := overlayInt(&cfg.RateRPS, "RATE_RPS"); err != nil {
		return Config{}, err
	}
	if err := overlayInt(&cfg.RateBurst, "RATE_BURST"); err != nil {
		return Config{}, err
	}
	if err := overlayInt(&cfg.SweepIntervalSecs, "SWEEP_INTERVAL_SECS"); err != nil {
		return Config{}, err
	}

	switch cfg.LedgerDriver {
	case "file", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}
	return cfg, nil
}

func overlayString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

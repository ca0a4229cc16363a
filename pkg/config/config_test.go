package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "LOG_LEVEL", "LEDGER_DRIVER", "LEDGER_PATH",
		"DATABASE_URL", "AUTH_SECRET", "REDIS_ADDR", "RATE_RPS", "RATE_BURST",
		"SWEEP_INTERVAL_SECS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "file", cfg.LedgerDriver)
	assert.Equal(t, "data/chain.json", cfg.LedgerPath)
	assert.Equal(t, 20, cfg.RateRPS)
	assert.Equal(t, 40, cfg.RateBurst)
	assert.Zero(t, cfg.SweepIntervalSecs)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LEDGER_DRIVER", "sqlite")
	t.Setenv("LEDGER_PATH", "/var/lib/tenderchain/ledger.db")
	t.Setenv("RATE_RPS", "5")
	t.Setenv("SWEEP_INTERVAL_SECS", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.LedgerDriver)
	assert.Equal(t, "/var/lib/tenderchain/ledger.db", cfg.LedgerPath)
	assert.Equal(t, 5, cfg.RateRPS)
	assert.Equal(t, 60, cfg.SweepIntervalSecs)
}

func TestLoadYAMLFileThenEnvWins(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: \"7000\"\nledger_driver: postgres\ndatabase_url: postgres://localhost/tenders\nrate_rps: 100\n",
	), 0600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port, "environment overrides the file")
	assert.Equal(t, "postgres", cfg.LedgerDriver)
	assert.Equal(t, "postgres://localhost/tenders", cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.RateRPS)
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_DRIVER", "etcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ledger driver")
}

func TestLoadRejectsNonIntegerRate(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_RPS", "many")

	_, err := Load()
	assert.Error(t, err)
}

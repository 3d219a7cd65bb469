package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/coop-ledger/config"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/shares"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	cfg, err := config.Load("", "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Redis.Enabled)
	assert.Zero(t, cfg.Redis.TTL, "per-share cache entries live until invalidated")

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, shares.DueMonthEnd, policy.ScheduleRule)
	assert.Equal(t, shares.DueCapped30, policy.CycleRule)
	assert.Equal(t, generic.CurrencyPHP, policy.Currency)
	assert.True(t, policy.RulesDiverge())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9090
database:
  path: /tmp/ledger.db
ledger:
  timezone: UTC
  cycle_due_rule: month_end
  default_share_unit_value: "100"
scheduler:
  check_interval: 5m
`)

	cfg, err := config.Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.CheckInterval)
	assert.Equal(t, "100", cfg.Ledger.DefaultShareUnitValue)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, policy.Location)
	assert.False(t, policy.RulesDiverge())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "server:\n  port: 9090\n")
	envPath := writeFile(t, ".env", "REDIS_ENABLED=true\nREDIS_ADDR=cache:6379\n")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LEDGER_QUALIFYING_RULE", "single_full_payment")
	t.Cleanup(func() {
		os.Unsetenv("REDIS_ENABLED")
		os.Unsetenv("REDIS_ADDR")
	})

	cfg, err := config.Load(path, envPath)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, shares.QualifySingleFull, policy.QualifyingRule)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := config.Load("", filepath.Join(t.TempDir(), "absent.env"))

	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 0\n"},
		{"bad timezone", "ledger:\n  timezone: Mars/Olympus\n"},
		{"bad due rule", "ledger:\n  schedule_due_rule: fortnightly\n"},
		{"bad qualifying rule", "ledger:\n  qualifying_rule: vibes\n"},
		{"bad unit value", "ledger:\n  default_share_unit_value: abc\n"},
		{"negative unit value", "ledger:\n  default_share_unit_value: \"-1\"\n"},
		{"zero interval", "scheduler:\n  enabled: true\n  check_interval: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, "config.yaml", tt.yaml), "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), "")

	assert.Error(t, err)
}

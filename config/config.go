// Package config loads the server configuration.
//
// Values are layered: built-in defaults, then the YAML file, then a .env
// file, then process environment variables. Command-line flags in
// cmd/server override the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/shares"
)

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	// TTL is opt-in; zero keeps per-share values until invalidated.
	TTL      time.Duration `yaml:"ttl"`
}

// LedgerConfig holds the calendar and money settings of the cooperative.
type LedgerConfig struct {
	Timezone              string `yaml:"timezone"`
	Currency              string `yaml:"currency"`
	ScheduleDueRule       string `yaml:"schedule_due_rule"`
	CycleDueRule          string `yaml:"cycle_due_rule"`
	QualifyingRule        string `yaml:"qualifying_rule"`
	DefaultShareUnitValue string `yaml:"default_share_unit_value"`
	MinLoanAmount         string `yaml:"min_loan_amount"`
	MaxLoanAmount         string `yaml:"max_loan_amount"`
}

type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root of the configuration tree.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LogConfig       `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{Path: "./coop.db"},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Ledger: LedgerConfig{
			Timezone:              "Asia/Manila",
			Currency:              string(generic.CurrencyPHP),
			ScheduleDueRule:       string(shares.DueMonthEnd),
			CycleDueRule:          string(shares.DueCapped30),
			QualifyingRule:        string(shares.QualifyPeriodPaid),
			DefaultShareUnitValue: "250",
			MinLoanAmount:         "1000",
			MaxLoanAmount:         "500000",
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			CheckInterval: time.Hour,
		},
		Logging: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path (skipped when path is empty), the .env
// file at envPath (skipped when missing), then applies environment
// overrides and validates the result.
func Load(path, envPath string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Server.Port = GetEnvOrDefaultAsInt("SERVER_PORT", cfg.Server.Port)
	if origins := GetEnvOrDefaultAsString("SERVER_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	cfg.Database.Path = GetEnvOrDefaultAsString("DATABASE_PATH", cfg.Database.Path)

	cfg.Redis.Enabled = GetEnvOrDefaultAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = GetEnvOrDefaultAsString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnvOrDefaultAsString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvOrDefaultAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.Ledger.Timezone = GetEnvOrDefaultAsString("LEDGER_TIMEZONE", cfg.Ledger.Timezone)
	cfg.Ledger.Currency = GetEnvOrDefaultAsString("LEDGER_CURRENCY", cfg.Ledger.Currency)
	cfg.Ledger.ScheduleDueRule = GetEnvOrDefaultAsString("LEDGER_SCHEDULE_DUE_RULE", cfg.Ledger.ScheduleDueRule)
	cfg.Ledger.CycleDueRule = GetEnvOrDefaultAsString("LEDGER_CYCLE_DUE_RULE", cfg.Ledger.CycleDueRule)
	cfg.Ledger.QualifyingRule = GetEnvOrDefaultAsString("LEDGER_QUALIFYING_RULE", cfg.Ledger.QualifyingRule)
	cfg.Ledger.DefaultShareUnitValue = GetEnvOrDefaultAsString("LEDGER_SHARE_UNIT_VALUE", cfg.Ledger.DefaultShareUnitValue)

	cfg.Scheduler.Enabled = GetEnvOrDefaultAsBool("SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	if secs := GetEnvOrDefaultAsInt("SCHEDULER_CHECK_INTERVAL_SECONDS", 0); secs > 0 {
		cfg.Scheduler.CheckInterval = time.Duration(secs) * time.Second
	}

	cfg.Logging.Level = GetEnvOrDefaultAsString("LOGGING_LEVEL", cfg.Logging.Level)
}

// Validate checks every field that is parsed later.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"ledger.default_share_unit_value": c.Ledger.DefaultShareUnitValue,
		"ledger.min_loan_amount":          c.Ledger.MinLoanAmount,
		"ledger.max_loan_amount":          c.Ledger.MaxLoanAmount,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%s: invalid decimal %q", name, v)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative, got %s", name, v)
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be positive when the scheduler is enabled")
	}
	return nil
}

// Policy builds the shares calendar policy from the ledger section.
func (c *AppConfig) Policy() (shares.Policy, error) {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return shares.Policy{}, fmt.Errorf("ledger.timezone: %w", err)
	}
	scheduleRule, err := shares.ParseDueDayRule(c.Ledger.ScheduleDueRule)
	if err != nil {
		return shares.Policy{}, fmt.Errorf("ledger.schedule_due_rule: %w", err)
	}
	cycleRule, err := shares.ParseDueDayRule(c.Ledger.CycleDueRule)
	if err != nil {
		return shares.Policy{}, fmt.Errorf("ledger.cycle_due_rule: %w", err)
	}
	qualifying, err := shares.ParseQualifyingRule(c.Ledger.QualifyingRule)
	if err != nil {
		return shares.Policy{}, fmt.Errorf("ledger.qualifying_rule: %w", err)
	}

	currency := generic.Currency(strings.ToUpper(c.Ledger.Currency))
	if currency == "" {
		currency = generic.DefaultCurrency
	}

	return shares.Policy{
		Location:       loc,
		Currency:       currency,
		ScheduleRule:   scheduleRule,
		CycleRule:      cycleRule,
		QualifyingRule: qualifying,
	}, nil
}

// Decimal parses a ledger amount that Validate already accepted.
func Decimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return defaultVal
}

func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

// Package config loads wallet configuration from a TOML file, a .env file
// and BENSAVE_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/bensave/wallet/mobilemoney"
	"github.com/bensave/wallet/rates"
)

// Config holds all bensave configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Log         LogConfig         `toml:"log"`
	Rates       RatesConfig       `toml:"rates"`
	MobileMoney MobileMoneyConfig `toml:"mobile_money"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	StaticDir      string   `toml:"static_dir,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RolloverCheck  Duration `toml:"rollover_check"` // 0 disables the background check
}

// StorageConfig holds the SQLite database location.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// RatesConfig holds exchange-rate settings. Fallback values are decimal
// strings so they stay exact.
type RatesConfig struct {
	BaseURL  string            `toml:"base_url"`
	Timeout  Duration          `toml:"timeout"`
	Target   string            `toml:"target"`
	Fallback map[string]string `toml:"fallback"`
}

// MobileMoneyConfig holds simulator settings.
type MobileMoneyConfig struct {
	Delay        Duration `toml:"delay"`
	ApprovalRate float64  `toml:"approval_rate"`
}

// Duration decodes TOML strings like "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	fallback := make(map[string]string)
	for code, v := range rates.DefaultFallback() {
		fallback[code] = v.String()
	}
	return Config{
		Server: ServerConfig{
			Port:           8080,
			StaticDir:      "./web",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
			RolloverCheck:  Duration{time.Hour},
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(DataDir(), "bensave.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Rates: RatesConfig{
			BaseURL:  rates.DefaultBaseURL,
			Timeout:  Duration{rates.DefaultTimeout},
			Target:   "GHS",
			Fallback: fallback,
		},
		MobileMoney: MobileMoneyConfig{
			Delay:        Duration{mobilemoney.DefaultDelay},
			ApprovalRate: mobilemoney.DefaultApprovalRate,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bensave")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bensave")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bensave")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "bensave")
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file at path (ConfigPath() if empty), then applies
// .env and environment overrides. A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BENSAVE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BENSAVE_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("BENSAVE_STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
	if v := os.Getenv("BENSAVE_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("BENSAVE_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("BENSAVE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BENSAVE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("BENSAVE_RATES_URL"); v != "" {
		c.Rates.BaseURL = v
	}
	if v := os.Getenv("BENSAVE_RATES_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BENSAVE_RATES_TIMEOUT %q: %w", v, err)
		}
		c.Rates.Timeout = Duration{d}
	}
	if v := os.Getenv("BENSAVE_MOMO_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BENSAVE_MOMO_DELAY %q: %w", v, err)
		}
		c.MobileMoney.Delay = Duration{d}
	}
	if v := os.Getenv("BENSAVE_MOMO_APPROVAL_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid BENSAVE_MOMO_APPROVAL_RATE %q: %w", v, err)
		}
		c.MobileMoney.ApprovalRate = r
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Server.Port))
	}
	if c.Server.RolloverCheck.Duration < 0 {
		errs = append(errs, "server.rollover_check must not be negative")
	}
	if c.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path is required")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format %q: must be text or json", c.Log.Format))
	}
	if c.Rates.Timeout.Duration <= 0 {
		errs = append(errs, "rates.timeout must be positive")
	}
	if _, err := c.FallbackRates(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MobileMoney.Delay.Duration < 0 {
		errs = append(errs, "mobile_money.delay must not be negative")
	}
	if c.MobileMoney.ApprovalRate < 0 || c.MobileMoney.ApprovalRate > 1 {
		errs = append(errs, fmt.Sprintf("invalid approval rate %v: must be between 0 and 1", c.MobileMoney.ApprovalRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FallbackRates parses the static rate table.
func (c *Config) FallbackRates() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Rates.Fallback))
	for code, raw := range c.Rates.Fallback {
		v, err := decimal.NewFromString(raw)
		if err != nil || !v.IsPositive() {
			return nil, fmt.Errorf("invalid fallback rate for %s: %q", code, raw)
		}
		out[strings.ToUpper(code)] = v
	}
	return out, nil
}

// RatesSourceConfig converts to the rates package config.
func (c *Config) RatesSourceConfig() (rates.Config, error) {
	fallback, err := c.FallbackRates()
	if err != nil {
		return rates.Config{}, err
	}
	return rates.Config{
		BaseURL:  c.Rates.BaseURL,
		Timeout:  c.Rates.Timeout.Duration,
		Target:   c.Rates.Target,
		Fallback: fallback,
	}, nil
}

// Simulator builds a mobile-money simulator from the config.
func (c *Config) Simulator() *mobilemoney.Simulator {
	sim := mobilemoney.NewSimulator()
	sim.Delay = c.MobileMoney.Delay.Duration
	sim.ApprovalRate = c.MobileMoney.ApprovalRate
	return sim
}

// Package config loads runtime settings from the environment and an optional
// YAML file. Environment variables win over the file; the file wins over defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port       string `mapstructure:"port"`
	InstanceID string `mapstructure:"instance_id"`

	// Backend selection
	DataBackend  string `mapstructure:"data_backend"`
	SQLiteDBPath string `mapstructure:"sqlite_db_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`

	// AMQP change events; empty URL disables publishing
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
	AMQPQueue    string `mapstructure:"amqp_queue"`

	// Redis shared cache and realtime bridge; empty address disables both
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Auth
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`

	// Google Sheets mirror; empty spreadsheet id disables it
	GoogleSpreadsheetID      string `mapstructure:"google_spreadsheet_id"`
	GoogleSheetName          string `mapstructure:"google_sheet_name"`
	GoogleServiceAccountFile string `mapstructure:"google_service_account_file"`
	GoogleServiceAccountJSON string `mapstructure:"google_service_account_json"`

	// Allow-lists; empty paths use the built-in lists
	CategoriesFile string `mapstructure:"categories_file"`
	SourcesFile    string `mapstructure:"sources_file"`

	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheSize          int           `mapstructure:"cache_size"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RecurringInterval  time.Duration `mapstructure:"recurring_interval"`

	// CIDRs whose X-Forwarded-For and X-Real-IP headers are trusted, comma separated in the environment
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"port":                        "8081",
	"instance_id":                 "",
	"data_backend":                "memory",
	"sqlite_db_path":              "./data/fintrack.db",
	"postgres_dsn":                "",
	"amqp_url":                    "",
	"amqp_exchange":               "fintrack",
	"amqp_queue":                  "record_changes",
	"redis_addr":                  "",
	"redis_password":              "",
	"redis_db":                    0,
	"jwt_secret":                  "",
	"access_token_ttl":            "15m",
	"refresh_token_ttl":           "720h",
	"cookie_secure":               false,
	"google_spreadsheet_id":       "",
	"google_sheet_name":           "Transactions",
	"google_service_account_file": "",
	"google_service_account_json": "",
	"categories_file":             "",
	"sources_file":                "",
	"cache_ttl":                   "5m",
	"cache_size":                  500,
	"rate_limit_per_minute":       60,
	"recurring_interval":          "1h",
	"trusted_proxies":             []string{},
	"log_level":                   "info",
	"log_format":                  "text",
}

// Load reads FINTRACK_CONFIG (or ./fintrack.yaml when present) and the environment.
// Environment keys are the upper-cased field names, e.g. DATA_BACKEND.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigType("yaml")
	cfgPath := os.Getenv("FINTRACK_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("fintrack")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, "POSTGRES_DSN is required when using postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite postgres]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisAddr != "" && !strings.Contains(c.RedisAddr, ":") {
		errs = append(errs, fmt.Sprintf("invalid Redis address '%s': expected host:port", c.RedisAddr))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Sprintf("invalid Redis database %d: must not be negative", c.RedisDB))
	}

	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters")
	}
	if c.AccessTokenTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid access token TTL %v: must be at least 1 minute", c.AccessTokenTTL))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, "refresh token TTL must be longer than access token TTL")
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google Sheet name is required when a spreadsheet is configured")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	for _, f := range []string{c.CategoriesFile, c.SourcesFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Sprintf("allow-list file not readable: %s", f))
		}
	}

	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if c.RecurringInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// Instance returns InstanceID or the hostname, used to tag realtime events.
func (c *Config) Instance() string {
	if c.InstanceID != "" {
		return c.InstanceID
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "fintrack"
}

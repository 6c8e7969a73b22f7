// Package config loads the console's settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Receipt time zones on hosts without a zoneinfo database

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/session"
)

// FileEnv names the environment variable holding the path of the YAML config file
const FileEnv = "CONSOLE_CONFIG"

// Config holds all configuration for the console
type Config struct {
	Port       string `yaml:"port"`
	APIBaseURL string `yaml:"api_base_url"`

	// Redis backs the token store and notification queue; empty means in-memory
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`

	CookieName     string   `yaml:"cookie_name"`
	CookieDomain   string   `yaml:"cookie_domain"` // Shared base domain, e.g. "example.com"
	CookieSecure   bool     `yaml:"cookie_secure"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	RateLimit float64 `yaml:"rate_limit"` // Banking API requests per second; zero disables
	RateBurst int     `yaml:"rate_burst"`

	DebounceDelay     time.Duration `yaml:"debounce_delay"`
	ProfileMaxAge     time.Duration `yaml:"profile_max_age"` // Suspensions and role changes apply after at most this long
	WalletRefresh     time.Duration `yaml:"wallet_refresh"`
	DepositSaveDelay  time.Duration `yaml:"deposit_save_delay"`
	SettingsSaveDelay time.Duration `yaml:"settings_save_delay"`
	SessionIdle       time.Duration `yaml:"session_idle"` // Idle sessions are closed after this long

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "json" or "text"
	Timezone  string `yaml:"timezone"`   // Receipt dates
}

// Default returns the configuration for local development
func Default() Config {
	opts := session.DefaultOptions()
	return Config{
		Port:              "8080",
		APIBaseURL:        "http://localhost:5000/api",
		CookieName:        session.DefaultCookieConfig().Name,
		AllowedOrigins:    middleware.DefaultCORSConfig().AllowedOrigins,
		RateLimit:         20,
		RateBurst:         40,
		DebounceDelay:     opts.DebounceDelay,
		ProfileMaxAge:     opts.ProfileMaxAge,
		WalletRefresh:     opts.WalletRefresh,
		DepositSaveDelay:  opts.DepositSaveDelay,
		SettingsSaveDelay: opts.SettingsSaveDelay,
		SessionIdle:       30 * time.Minute,
		LogLevel:          "info",
		LogFormat:         "text",
		Timezone:          "UTC",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONSOLE_CONFIG, then environment variables.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup(FileEnv); ok && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("BANKING_API_URL", &c.APIBaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("COOKIE_NAME", &c.CookieName)
	str("COOKIE_DOMAIN", &c.CookieDomain)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("TIMEZONE", &c.Timezone)

	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if v, ok := lookup("RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup("RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DEBOUNCE_DELAY", &c.DebounceDelay},
		{"PROFILE_MAX_AGE", &c.ProfileMaxAge},
		{"WALLET_REFRESH", &c.WalletRefresh},
		{"DEPOSIT_SAVE_DELAY", &c.DepositSaveDelay},
		{"SETTINGS_SAVE_DELAY", &c.SettingsSaveDelay},
		{"SESSION_IDLE", &c.SessionIdle},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return nil
}

// Validate checks the settings the console cannot start without
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	u, err := url.ParseRequestURI(c.APIBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid banking API URL %q", c.APIBaseURL)
	}
	if c.CookieName == "" {
		return errors.New("cookie name is required")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.WalletRefresh < 0 || c.SessionIdle < 0 || c.ProfileMaxAge < 0 {
		return errors.New("durations must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone receipts are printed in
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level returns the minimum log level
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// APIClient returns the banking API client settings
func (c Config) APIClient(logger *slog.Logger) apiclient.Config {
	return apiclient.Config{
		BaseURL:   c.APIBaseURL,
		RateLimit: rate.Limit(c.RateLimit),
		Burst:     c.RateBurst,
		Logger:    logger,
	}
}

// SessionOptions returns the per-session timer settings
func (c Config) SessionOptions() session.Options {
	return session.Options{
		DebounceDelay:     c.DebounceDelay,
		ProfileMaxAge:     c.ProfileMaxAge,
		WalletRefresh:     c.WalletRefresh,
		DepositSaveDelay:  c.DepositSaveDelay,
		SettingsSaveDelay: c.SettingsSaveDelay,
	}
}

// Cookie returns the session cookie settings
func (c Config) Cookie() session.CookieConfig {
	return session.CookieConfig{
		Name:   c.CookieName,
		Domain: c.CookieDomain,
		Secure: c.CookieSecure,
	}
}

// CORS returns the CORS settings
func (c Config) CORS() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins:   c.AllowedOrigins,
		AllowCredentials: true,
	}
}

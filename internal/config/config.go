// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	CatalogPath string
	LogLevel    string
	CORSOrigins []string

	SweepInterval     time.Duration
	SessionRetention  time.Duration
	Budgets           TierDurations
	CollectWindows    TierDurations
	VendorCallTimeout time.Duration
	CommitTimeout     time.Duration

	// RemoteVendors enables gRPC calls to vendors with an endpoint. When off,
	// every vendor is quoted by the simulator.
	RemoteVendors    bool
	VendorSimLatency time.Duration

	Notify NotifyConfig
	DB     DBConfig
}

// TierDurations holds one duration per urgency tier.
type TierDurations struct {
	High   time.Duration
	Medium time.Duration
	Low    time.Duration
}

// NotifyConfig controls outbound notification delivery.
type NotifyConfig struct {
	WebhookURL  string
	MinSeverity string
}

// DBConfig controls SQLite write retries.
type DBConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	frontendURL := getEnv("FRONTEND_URL", "")

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: frontendURL,
		DBPath:      getEnv("DB_PATH", "./data/verichain.db"),
		CatalogPath: getEnv("CATALOG_PATH", "./configs/catalog.yaml"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins: getEnvList("CORS_ORIGINS", defaultOrigins(frontendURL)),

		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		SessionRetention: getEnvDuration("SESSION_RETENTION", 24*time.Hour),
		Budgets: TierDurations{
			High:   getEnvDuration("BUDGET_HIGH", 5*time.Minute),
			Medium: getEnvDuration("BUDGET_MEDIUM", 15*time.Minute),
			Low:    getEnvDuration("BUDGET_LOW", 60*time.Minute),
		},
		CollectWindows: TierDurations{
			High:   getEnvDuration("COLLECT_WINDOW_HIGH", 30*time.Second),
			Medium: getEnvDuration("COLLECT_WINDOW_MEDIUM", 60*time.Second),
			Low:    getEnvDuration("COLLECT_WINDOW_LOW", 120*time.Second),
		},
		VendorCallTimeout: getEnvDuration("VENDOR_CALL_TIMEOUT", 10*time.Second),
		CommitTimeout:     getEnvDuration("COMMIT_TIMEOUT", 30*time.Second),
		RemoteVendors:     getEnvBool("REMOTE_VENDORS_ENABLED", true),
		VendorSimLatency:  getEnvDuration("VENDOR_SIM_LATENCY", 0),

		Notify: NotifyConfig{
			WebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
			MinSeverity: strings.ToLower(getEnv("NOTIFY_MIN_SEVERITY", "warning")),
		},
		DB: DBConfig{
			MaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			RetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.SessionRetention < 0 {
		return fmt.Errorf("SESSION_RETENTION must be >= 0")
	}
	if c.VendorCallTimeout <= 0 {
		return fmt.Errorf("VENDOR_CALL_TIMEOUT must be > 0")
	}
	if c.VendorSimLatency < 0 {
		return fmt.Errorf("VENDOR_SIM_LATENCY must be >= 0")
	}
	if c.CommitTimeout <= 0 {
		return fmt.Errorf("COMMIT_TIMEOUT must be > 0")
	}
	for _, tier := range []struct {
		name           string
		budget, window time.Duration
	}{
		{"HIGH", c.Budgets.High, c.CollectWindows.High},
		{"MEDIUM", c.Budgets.Medium, c.CollectWindows.Medium},
		{"LOW", c.Budgets.Low, c.CollectWindows.Low},
	} {
		if tier.budget <= 0 {
			return fmt.Errorf("BUDGET_%s must be > 0", tier.name)
		}
		if tier.window <= 0 {
			return fmt.Errorf("COLLECT_WINDOW_%s must be > 0", tier.name)
		}
		if tier.window > tier.budget {
			return fmt.Errorf("COLLECT_WINDOW_%s cannot exceed BUDGET_%s", tier.name, tier.name)
		}
	}
	switch c.Notify.MinSeverity {
	case "info", "warning", "critical":
	default:
		return fmt.Errorf("NOTIFY_MIN_SEVERITY %q is not one of info, warning, critical", c.Notify.MinSeverity)
	}
	if c.DB.MaxRetries < 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be >= 0")
	}
	if c.DB.RetryBaseDelay <= 0 {
		return fmt.Errorf("DB_RETRY_BASE_DELAY must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return logLevels[c.LogLevel]
}

func defaultOrigins(frontendURL string) []string {
	if frontendURL == "" {
		return []string{"*"}
	}
	return []string{frontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

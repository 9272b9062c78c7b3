package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRONTEND_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.Budgets.High != 5*time.Minute || cfg.Budgets.Medium != 15*time.Minute || cfg.Budgets.Low != time.Hour {
		t.Errorf("Unexpected budgets: %+v", cfg.Budgets)
	}
	if cfg.CollectWindows.High != 30*time.Second {
		t.Errorf("Expected high collect window 30s, got %v", cfg.CollectWindows.High)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("Expected sweep interval 30s, got %v", cfg.SweepInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("Expected wildcard origin without a frontend URL, got %v", cfg.CORSOrigins)
	}
	if !cfg.RemoteVendors {
		t.Error("Expected remote vendors to be enabled by default")
	}
	if !cfg.IsDevelopment() {
		t.Error("Expected development mode without a frontend URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FRONTEND_URL", "https://dash.example.com")
	t.Setenv("BUDGET_HIGH", "10m")
	t.Setenv("COLLECT_WINDOW_HIGH", "45")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REMOTE_VENDORS_ENABLED", "off")
	t.Setenv("DB_MAX_RETRIES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.Budgets.High != 10*time.Minute {
		t.Errorf("Expected high budget 10m, got %v", cfg.Budgets.High)
	}
	if cfg.CollectWindows.High != 45*time.Second {
		t.Errorf("Expected bare seconds to parse as 45s, got %v", cfg.CollectWindows.High)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.RemoteVendors {
		t.Error("Expected remote vendors to be disabled")
	}
	if cfg.DB.MaxRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", cfg.DB.MaxRetries)
	}
	if cfg.IsDevelopment() {
		t.Error("Expected production mode with a public frontend URL")
	}
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	t.Setenv("DB_MAX_RETRIES", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("Expected fallback sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.DB.MaxRetries != 3 {
		t.Errorf("Expected fallback retries, got %d", cfg.DB.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"window above budget", map[string]string{"BUDGET_HIGH": "1m", "COLLECT_WINDOW_HIGH": "2m"}, "COLLECT_WINDOW_HIGH"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad severity", map[string]string{"NOTIFY_MIN_SEVERITY": "urgent"}, "NOTIFY_MIN_SEVERITY"},
		{"empty port", map[string]string{"PORT": ""}, "PORT"},
		{"zero sweep", map[string]string{"SWEEP_INTERVAL": "0s"}, "SWEEP_INTERVAL"},
		{"negative retries", map[string]string{"DB_MAX_RETRIES": "-1"}, "DB_MAX_RETRIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

package cmd

import (
	"testing"
	"time"
)

func TestServeCmdFlagDefaults(t *testing.T) {
	cmd := newServeCmd()

	tests := []struct {
		flag     string
		expected string
	}{
		{"http-addr", ":8080"},
		{"db", "tasksage.db"},
		{"jwt-secret", ""},
		{"token-ttl", "24h0m0s"},
		{"anthropic-model", ""},
		{"metrics-enabled", "true"},
		{"metrics-addr", ":9090"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := cmd.Flags().Lookup(tt.flag)
			if f == nil {
				t.Fatalf("flag %q is not registered", tt.flag)
			}
			if f.DefValue != tt.expected {
				t.Errorf("flag %q default = %q, want %q", tt.flag, f.DefValue, tt.expected)
			}
		})
	}
}

func TestResolveServeEnv(t *testing.T) {
	t.Setenv("TASKSAGE_HTTP_ADDR", ":4000")
	t.Setenv("TASKSAGE_DB", "/var/lib/tasksage/data.db")
	t.Setenv("TASKSAGE_JWT_SECRET", "env-secret")
	t.Setenv("ANTHROPIC_MODEL", "claude-sonnet-4-5")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("METRICS_ADDR", ":9999")

	cfg := ServeConfig{
		HTTPAddr: ":8080",
		DBPath:   "tasksage.db",
		TokenTTL: 24 * time.Hour,
		Metrics:  MetricsConfig{Enabled: true, Addr: ":9090"},
	}
	resolveServeEnv(&cfg)

	if cfg.HTTPAddr != ":4000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":4000")
	}
	if cfg.DBPath != "/var/lib/tasksage/data.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/var/lib/tasksage/data.db")
	}
	if cfg.JWTSecret != "env-secret" {
		t.Errorf("JWTSecret = %q, want %q", cfg.JWTSecret, "env-secret")
	}
	if cfg.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q, want %q", cfg.Model, "claude-sonnet-4-5")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Metrics.Addr != ":9999" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9999")
	}
}

func TestResolveServeEnvFlagsWin(t *testing.T) {
	t.Setenv("TASKSAGE_HTTP_ADDR", ":4000")
	t.Setenv("TASKSAGE_JWT_SECRET", "env-secret")

	cfg := ServeConfig{
		HTTPAddr:  ":3000",
		JWTSecret: "flag-secret",
	}
	resolveServeEnv(&cfg)

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want flag value %q", cfg.HTTPAddr, ":3000")
	}
	if cfg.JWTSecret != "flag-secret" {
		t.Errorf("JWTSecret = %q, want flag value %q", cfg.JWTSecret, "flag-secret")
	}
}

func TestServeCmdRequiresSecret(t *testing.T) {
	t.Setenv("TASKSAGE_JWT_SECRET", "")

	cmd := newServeCmd()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"--db", ":memory:"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when no JWT secret is configured")
	}
}

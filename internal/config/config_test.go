package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Store != StorePostgres {
		t.Errorf("expected default store postgres, got %s", cfg.Store)
	}
	if cfg.DBMaxConns != 10 || cfg.DBMinConns != 2 {
		t.Errorf("expected pool 10/2, got %d/%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.RequestTimeout)
	}
	if len(cfg.SeedDoctors) != 3 || cfg.SeedDoctors[0] != "mjones" {
		t.Errorf("unexpected seed doctors %v", cfg.SeedDoctors)
	}
	if !cfg.AutoMigrate || !cfg.MetricsEnabled {
		t.Error("expected AUTO_MIGRATE and METRICS_ENABLED to default to true")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE", "Memory")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("SEED_DOCTORS", "kwong, ,alee")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("expected memory store, got %s", cfg.Store)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.RequestTimeout)
	}
	if len(cfg.SeedDoctors) != 2 || cfg.SeedDoctors[1] != "alee" {
		t.Errorf("unexpected seed doctors %v", cfg.SeedDoctors)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.RateLimitRPS)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	os.Unsetenv("PORT")
	t.Cleanup(func() { os.Unsetenv("PORT") })
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("PORT=9191\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9191" {
		t.Errorf("expected port from env file, got %s", cfg.Port)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:            "development",
			Store:          StoreMemory,
			DBMaxConns:     10,
			DBMinConns:     2,
			OTelSampleRate: 1,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Store = "redis" }},
		{"postgres without url", func(c *Config) { c.Store = StorePostgres }},
		{"production without key", func(c *Config) { c.Env = "production" }},
		{"sample rate above one", func(c *Config) { c.OTelSampleRate = 1.5 }},
		{"min above max", func(c *Config) { c.DBMinConns = 20 }},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	c := valid()
	c.Env = "production"
	c.AuthSigningKey = "secret"
	c.Store = StorePostgres
	c.DatabaseURL = "postgres://localhost/appointments"
	if err := c.Validate(); err != nil {
		t.Errorf("expected production config to validate, got %v", err)
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MIN_SEPARATION", "")
	t.Setenv("LOCK_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinSeparation != 30*time.Minute {
		t.Errorf("expected 30m separation, got %s", cfg.MinSeparation)
	}
	if cfg.DefaultSlotMinutes != 30 {
		t.Errorf("expected 30 minute slots, got %d", cfg.DefaultSlotMinutes)
	}
	if cfg.LockWait != 3*time.Second {
		t.Errorf("expected 3s lock wait, got %s", cfg.LockWait)
	}
	if cfg.LockBackend != "redis" {
		t.Errorf("expected redis lock backend, got %q", cfg.LockBackend)
	}
	if cfg.Location != time.UTC {
		t.Errorf("expected UTC location, got %s", cfg.Location)
	}
}

func TestLoad_DurationFormats(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MIN_SEPARATION", "15m")
	t.Setenv("LOCK_WAIT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinSeparation != 15*time.Minute {
		t.Errorf("expected 15m, got %s", cfg.MinSeparation)
	}
	if cfg.LockWait != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.LockWait)
	}
}

func TestLoad_RedisURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_URL", "redis://alice:pw@cache:6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RedisAddr != "cache:6380" || cfg.RedisUsername != "alice" || cfg.RedisPassword != "pw" {
		t.Fatalf("unexpected redis settings: %q %q %q", cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Env:                "dev",
		LockBackend:        "local",
		LockWait:           time.Second,
		DefaultSlotMinutes: 30,
		JWTSecret:          "s",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"negative separation", func(c *Config) { c.MinSeparation = -time.Minute }, true},
		{"zero slot minutes", func(c *Config) { c.DefaultSlotMinutes = 0 }, true},
		{"unknown lock backend", func(c *Config) { c.LockBackend = "etcd" }, true},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"auth disabled in dev", func(c *Config) { c.JWTSecret = ""; c.AuthDisabled = true }, false},
		{"auth disabled in prod", func(c *Config) { c.Env = "prod"; c.AuthDisabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

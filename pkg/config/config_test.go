package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "ACCESS_TOKEN_TTL", "CORS_ALLOWED_ORIGINS", "NATS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Auth.AccessTokenTTL != 30*time.Minute {
		t.Errorf("expected default token ttl, got %v", cfg.Auth.AccessTokenTTL)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("expected wildcard origins, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.NATS.Enabled {
		t.Errorf("NATS must be off unless enabled")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("VERIFY_RATE_LIMIT", "3")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()

	if cfg.Server.Port != "9000" {
		t.Errorf("port: got %q", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("driver: got %q", cfg.Store.Driver)
	}
	if cfg.Auth.AccessTokenTTL != 5*time.Minute {
		t.Errorf("ttl: got %v", cfg.Auth.AccessTokenTTL)
	}
	if cfg.RateLimit.VerifyAttempts != 3 {
		t.Errorf("verify attempts: got %d", cfg.RateLimit.VerifyAttempts)
	}
	if !cfg.Redis.Enabled {
		t.Errorf("redis should be enabled")
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins: got %v", cfg.Server.AllowedOrigins)
	}
}

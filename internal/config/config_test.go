package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
logLevel: debug
jwtSecret: secret
sessionTTL: 24h
notifierDriver: memory
authRateLimitPerMinute: 5
trustProxy: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.JWTSecret != "secret" || cfg.AuthRateLimitPerMinute != 5 || !cfg.TrustProxy {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		t.Fatalf("parse ttl: %v", err)
	}
	if ttl != 24*time.Hour {
		t.Fatalf("expected 24h, got %v", ttl)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
jwtSecret: from-file
redisAddr: file:6379
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-env" {
		t.Fatalf("env should override jwtSecret, got %s", cfg.JWTSecret)
	}
	if cfg.RedisAddr != "env:6379" || cfg.DatabaseURL != "postgres://env/db" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"missing port":      "jwtSecret: s\n",
		"missing jwtSecret": "port: \"8080\"\n",
		"amqp without url":  "port: \"8080\"\njwtSecret: s\nnotifierDriver: amqp\n",
		"unknown driver":    "port: \"8080\"\njwtSecret: s\nnotifierDriver: kafka\n",
		"negative limit":    "port: \"8080\"\njwtSecret: s\nauthRateLimitPerMinute: -1\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseSessionTTL(t *testing.T) {
	if d, err := ParseSessionTTL(""); err != nil || d != 0 {
		t.Fatalf("empty ttl should parse to zero, got %v %v", d, err)
	}
	if _, err := ParseSessionTTL("not-a-duration"); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
